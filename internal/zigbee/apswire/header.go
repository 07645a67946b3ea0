// Package apswire implements the Zigbee APS header wire format (§6)
// as an internal/packet Chunk.
package apswire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/nugget/zigbeesim/internal/packet"
)

// FrameType is the APS frame-control frame type (bits 0-1).
type FrameType int

const (
	FrameData FrameType = iota
	FrameCommand
	FrameAck
	FrameInterPan
)

// DeliveryMode is the APS frame-control delivery mode (bits 2-3).
type DeliveryMode int

const (
	DeliveryUnicast DeliveryMode = iota
	_reservedDelivery
	DeliveryBroadcast
	DeliveryGroupAddressing
)

// ErrExtendedHeaderUnsupported is returned by Deserialize when the
// extended-header bit is set: fragmentation (the only user of it) is
// out of scope (§1, §9).
var ErrExtendedHeaderUnsupported = errors.New("apswire: extended header (fragmentation) not supported")

// Header is the APS header (§6 "Wire format — APS header").
type Header struct {
	FrameType     FrameType
	DeliveryMode  DeliveryMode
	AckFormat     bool
	Security      bool
	AckRequest    bool
	ExtHeaderPresent bool

	GroupAddr   uint16 // valid when DeliveryMode == DeliveryGroupAddressing
	DstEndpoint uint8  // valid otherwise

	ClusterID   uint16
	ProfileID   uint16
	SrcEndpoint uint8
	ApsCounter  uint8
}

func (h *Header) TypeID() string { return "zigbee.aps.Header" }

func (h *Header) SerializedSize() int {
	return 1 + 2 + 2 + 2 + 1 + 1 // frame control, addr field, cluster, profile, src-ep, counter
}

func (h *Header) frameControl() byte {
	fc := byte(h.FrameType&0x3) | byte(h.DeliveryMode&0x3)<<2
	if h.AckFormat {
		fc |= 1 << 4
	}
	if h.Security {
		fc |= 1 << 5
	}
	if h.AckRequest {
		fc |= 1 << 6
	}
	if h.ExtHeaderPresent {
		fc |= 1 << 7
	}
	return fc
}

func (h *Header) Serialize(data []byte) {
	data[0] = h.frameControl()
	if h.DeliveryMode == DeliveryGroupAddressing {
		binary.BigEndian.PutUint16(data[1:3], h.GroupAddr)
	} else {
		data[1] = h.DstEndpoint
		data[2] = 0
	}
	binary.BigEndian.PutUint16(data[3:5], h.ClusterID)
	binary.BigEndian.PutUint16(data[5:7], h.ProfileID)
	data[7] = h.SrcEndpoint
	data[8] = h.ApsCounter
}

func (h *Header) Deserialize(data []byte) (int, error) {
	if len(data) < 9 {
		return 0, packet.ErrBufferUnderrun
	}
	fc := data[0]
	h.FrameType = FrameType(fc & 0x3)
	h.DeliveryMode = DeliveryMode((fc >> 2) & 0x3)
	h.AckFormat = fc&(1<<4) != 0
	h.Security = fc&(1<<5) != 0
	h.AckRequest = fc&(1<<6) != 0
	h.ExtHeaderPresent = fc&(1<<7) != 0

	if h.DeliveryMode == DeliveryGroupAddressing {
		h.GroupAddr = binary.BigEndian.Uint16(data[1:3])
		h.DstEndpoint = 0
	} else {
		h.DstEndpoint = data[1]
		h.GroupAddr = 0
	}
	h.ClusterID = binary.BigEndian.Uint16(data[3:5])
	h.ProfileID = binary.BigEndian.Uint16(data[5:7])
	h.SrcEndpoint = data[7]
	h.ApsCounter = data[8]

	if h.ExtHeaderPresent {
		return 9, ErrExtendedHeaderUnsupported
	}
	return 9, nil
}

func (h *Header) Print() string {
	return fmt.Sprintf("cluster=%d profile=%d srcEp=%d counter=%d", h.ClusterID, h.ProfileID, h.SrcEndpoint, h.ApsCounter)
}

var _ packet.Header = (*Header)(nil)
