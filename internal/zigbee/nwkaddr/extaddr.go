package nwkaddr

import "fmt"

// ExtAddr is a 64-bit IEEE extended address.
type ExtAddr uint64

func (a ExtAddr) String() string {
	return fmt.Sprintf("%016X", uint64(a))
}

// ExtPanID is a 64-bit extended PAN identifier, globally unique per
// Zigbee network.
type ExtPanID uint64

func (a ExtPanID) String() string {
	return fmt.Sprintf("%016X", uint64(a))
}

// PanID is the 16-bit PAN identifier MAC frames carry.
type PanID uint16
