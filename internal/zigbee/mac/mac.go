// Package mac declares the MAC boundary the NWK layer consumes (§6).
// The IEEE 802.15.4 MAC itself — beacon ordering, association
// bookkeeping, ACK/retry — is out of scope (§1): this package only
// pins down the interface NWK is the sole direct client of, following
// the teacher's interface+real-client+fake pattern for external
// collaborators it does not own.
package mac

import "github.com/nugget/zigbeesim/internal/zigbee/nwkaddr"

// DataStatus is the result carried by McpsDataConfirm.
type DataStatus int

const (
	DataSuccess DataStatus = iota
	DataChannelAccessFailure
	DataNoAck
	DataTransactionOverflow
	DataInvalidParameter
)

// DataRequestParams mirrors McpsDataRequest's parameters: enough
// addressing to hand an NWK frame to the MAC for transmission.
type DataRequestParams struct {
	SrcAddrMode byte
	DstAddrMode byte
	DstPanID    nwkaddr.PanID
	DstAddr     nwkaddr.Addr
	MsduHandle  uint8
}

// DataConfirm is delivered asynchronously after McpsDataRequest.
type DataConfirm struct {
	MsduHandle uint8
	Status     DataStatus
}

// DataIndication is delivered when a frame arrives from the channel.
type DataIndication struct {
	SrcAddr nwkaddr.Addr
	DstAddr nwkaddr.Addr
	Lqi     uint8
	Nsdu    []byte
}

// Mac is the boundary NWK drives: McpsDataRequest, the short and
// extended address setters, and the data indication/confirm callback
// registrations. Beacon, association, scan and start primitives are
// not part of this interface.
type Mac interface {
	McpsDataRequest(params DataRequestParams, nsdu []byte)
	SetExtendedAddress(addr nwkaddr.ExtAddr)
	SetShortAddress(addr nwkaddr.Addr)
	SetDataIndicationCallback(cb func(DataIndication))
	SetDataConfirmCallback(cb func(DataConfirm))
}
