// Package aps implements the Zigbee APS layer (§4.6): APSDE-DATA
// request/indication dispatch over unicast, broadcast, groupcast and
// binding-table delivery; APSME group and binding management; tx-options
// parsing; header encode/decode. It is the sole caller of
// internal/zigbee/nwk's NLDE-DATA.request.
package aps

import (
	"log/slog"

	"github.com/nugget/zigbeesim/internal/zigbee/binding"
	"github.com/nugget/zigbeesim/internal/zigbee/group"
	"github.com/nugget/zigbeesim/internal/zigbee/nwk"
	"github.com/nugget/zigbeesim/internal/zigbee/nwkaddr"
)

// ConfirmStatus is the status code carried by every APSDE/APSME
// confirm (§4.6, §7).
type ConfirmStatus int

const (
	Success ConfirmStatus = iota
	SecurityFail
	DefragUnsupported
	NotSupported
	NoShortAddress
	InvalidGroup
	TableFull
	InvalidParameter
	IllegalRequest
	InvalidBinding
	NoBoundDevice
)

func (s ConfirmStatus) String() string {
	switch s {
	case Success:
		return "SUCCESS"
	case SecurityFail:
		return "SECURITY_FAIL"
	case DefragUnsupported:
		return "DEFRAG_UNSUPPORTED"
	case NotSupported:
		return "NOT_SUPPORTED"
	case NoShortAddress:
		return "NO_SHORT_ADDRESS"
	case InvalidGroup:
		return "INVALID_GROUP"
	case TableFull:
		return "TABLE_FULL"
	case InvalidParameter:
		return "INVALID_PARAMETER"
	case IllegalRequest:
		return "ILLEGAL_REQUEST"
	case InvalidBinding:
		return "INVALID_BINDING"
	case NoBoundDevice:
		return "NO_BOUND_DEVICE"
	default:
		return "UNKNOWN"
	}
}

// DefaultNonMemberRadius is apsNonMemberRadius (§4.6 "GROUP: ...
// non-member-radius = apsNonMemberRadius").
const DefaultNonMemberRadius uint8 = 2

// Stack is one node's APS layer, riding on top of an NWK stack.
type Stack struct {
	nwk    *nwk.Stack
	logger *slog.Logger

	selfExtAddr nwkaddr.ExtAddr

	groups   *group.Table
	bindings *binding.Table

	apsCounter uint8

	// pending correlates in-flight NLDE-DATA.confirm callbacks back to
	// the APSDE-DATA.request that triggered them, keyed by the NWK
	// destination address each send used. NWK confirms for the same
	// destination always arrive in the order they were sent, so a FIFO
	// queue per destination is enough correlation.
	pending map[nwkaddr.Addr][]*fanout

	dataConfirmCb    func(DataConfirmParams)
	dataIndicationCb func(DataIndicationParams)
	groupConfirmCb   func(GroupConfirmParams)
	bindConfirmCb    func(BindConfirmParams)
}

// New creates an APS Stack riding on n, sharing n's group table (§2,
// §4.4 "shared by NWK ... and APS").
func New(n *nwk.Stack, selfExtAddr nwkaddr.ExtAddr, logger *slog.Logger) *Stack {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Stack{
		nwk:         n,
		logger:      logger,
		selfExtAddr: selfExtAddr,
		groups:      n.GroupTable(),
		bindings:    binding.New(),
		pending:     make(map[nwkaddr.Addr][]*fanout),
	}
	n.SetDataIndicationCallback(s.onNldeDataIndication)
	n.SetDataConfirmCallback(s.onNldeDataConfirm)
	return s
}

// SetDataConfirmCallback registers the APSDE-DATA.confirm sink.
func (s *Stack) SetDataConfirmCallback(cb func(DataConfirmParams)) { s.dataConfirmCb = cb }

// SetDataIndicationCallback registers the APSDE-DATA.indication sink.
func (s *Stack) SetDataIndicationCallback(cb func(DataIndicationParams)) {
	s.dataIndicationCb = cb
}

// SetGroupConfirmCallback registers the APSME-ADD-GROUP /
// REMOVE-GROUP / REMOVE-ALL-GROUPS.confirm sink.
func (s *Stack) SetGroupConfirmCallback(cb func(GroupConfirmParams)) { s.groupConfirmCb = cb }

// SetBindConfirmCallback registers the APSME-BIND / UNBIND.confirm
// sink.
func (s *Stack) SetBindConfirmCallback(cb func(BindConfirmParams)) { s.bindConfirmCb = cb }

// BindingTable exposes the binding table for tests and management
// tooling.
func (s *Stack) BindingTable() *binding.Table { return s.bindings }

func (s *Stack) nextApsCounter() uint8 {
	v := s.apsCounter
	s.apsCounter++
	return v
}
