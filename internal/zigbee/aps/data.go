package aps

import (
	"github.com/nugget/zigbeesim/internal/zigbee/apswire"
	"github.com/nugget/zigbeesim/internal/zigbee/binding"
	"github.com/nugget/zigbeesim/internal/zigbee/nwk"
	"github.com/nugget/zigbeesim/internal/zigbee/nwkaddr"
	"github.com/nugget/zigbeesim/internal/zigbee/nwkwire"
)

// DstMode selects how APSDE-DATA.request resolves its destination
// (§4.6).
type DstMode int

const (
	NoAddrUseBinding DstMode = iota
	Group
	ShortEP
	ExtEP
)

// TxOptions is the APSDE-DATA.request tx-options bitmap (§4.6).
type TxOptions uint8

const (
	TxSecurity TxOptions = 1 << iota
	TxUseNwkKey
	TxAckRequired
	TxFragmentationPermitted
	TxIncludeExtendedNonce
)

func (o TxOptions) has(bit TxOptions) bool { return o&bit != 0 }

// DataRequestParams is the parameter set of APSDE-DATA.request (§4.6).
type DataRequestParams struct {
	DstMode     DstMode
	DstAddr16   nwkaddr.Addr
	DstAddr64   nwkaddr.ExtAddr
	DstEndpoint uint8
	SrcEndpoint uint8
	ProfileID   uint16
	ClusterID   uint16
	Radius      uint8
	TxOptions   TxOptions
	Asdu        []byte

	UseAlias  bool
	AliasSrc  nwkaddr.Addr
	AliasSeq  uint8
}

// DataConfirmParams is the result of APSDE-DATA.request (§4.6).
type DataConfirmParams struct {
	Status      ConfirmStatus
	DstEndpoint uint8
}

// DataIndicationParams is delivered to the application for every
// frame this node's APS layer accepts (§4.6).
type DataIndicationParams struct {
	DstMode     DstMode
	SrcAddr16   nwkaddr.Addr
	SrcEndpoint uint8
	DstEndpoint uint8
	GroupID     uint16
	ClusterID   uint16
	ProfileID   uint16
	Asdu        []byte
}

type fanout struct {
	remaining   int
	worst       ConfirmStatus
	dstEndpoint uint8
}

// DataRequest implements APSDE-DATA.request (§4.6).
func (s *Stack) DataRequest(params DataRequestParams) {
	if params.SrcEndpoint < 1 || params.SrcEndpoint > 254 {
		s.confirmNow(IllegalRequest, params.DstEndpoint)
		return
	}
	if params.TxOptions.has(TxAckRequired) {
		s.confirmNow(NotSupported, params.DstEndpoint)
		return
	}

	switch params.DstMode {
	case NoAddrUseBinding:
		s.dataRequestBinding(params)
	case Group:
		s.dataRequestGroup(params)
	case ShortEP:
		s.dataRequestShortEP(params)
	case ExtEP:
		s.confirmNow(NoShortAddress, params.DstEndpoint)
	default:
		s.confirmNow(InvalidParameter, params.DstEndpoint)
	}
}

func (s *Stack) confirmNow(status ConfirmStatus, dstEndpoint uint8) {
	if s.dataConfirmCb != nil {
		s.dataConfirmCb(DataConfirmParams{Status: status, DstEndpoint: dstEndpoint})
	}
}

func (s *Stack) dataRequestBinding(params DataRequestParams) {
	srcKey := binding.Source{ExtAddr: s.selfExtAddr, Endpoint: params.SrcEndpoint, ClusterID: params.ClusterID}
	dests, ok := s.bindings.LookupEntries(srcKey)
	if !ok || len(dests) == 0 {
		s.confirmNow(NoBoundDevice, params.DstEndpoint)
		return
	}

	fo := &fanout{remaining: len(dests), dstEndpoint: params.DstEndpoint}
	for _, d := range dests {
		switch d.Mode {
		case binding.Group:
			s.sendGroup(params, uint16(d.GroupID), fo)
		case binding.IEEEEndpoint:
			// No nwkAddressMap is maintained (§9 Open Question 2): an
			// IEEE destination without a resolvable short address
			// always confirms NO_SHORT_ADDRESS.
			s.resolveFanout(fo, NoShortAddress)
		}
	}
}

func (s *Stack) dataRequestGroup(params DataRequestParams) {
	if params.DstAddr16 == 0x0000 {
		s.confirmNow(InvalidGroup, params.DstEndpoint)
		return
	}
	fo := &fanout{remaining: 1, dstEndpoint: params.DstEndpoint}
	s.sendGroup(params, uint16(params.DstAddr16), fo)
}

func (s *Stack) sendGroup(params DataRequestParams, groupID uint16, fo *fanout) {
	hdr := s.apsHeader(apswire.FrameData, apswire.DeliveryGroupAddressing, params)
	hdr.GroupAddr = groupID
	s.pendFanout(nwkaddr.Addr(groupID), fo)
	s.nwk.NldeDataRequest(nwk.NldeDataRequestParams{
		DestinationMode: nwk.Mcst,
		Destination:     nwkaddr.Addr(groupID),
		Radius:          params.Radius,
		NonMemberRadius: DefaultNonMemberRadius,
		Nsdu:            encodeFrame(hdr, params.Asdu),
	})
}

func (s *Stack) dataRequestShortEP(params DataRequestParams) {
	if params.UseAlias && params.TxOptions.has(TxAckRequired) {
		s.confirmNow(NotSupported, params.DstEndpoint)
		return
	}
	delivery := apswire.DeliveryUnicast
	if params.DstAddr16.IsBroadcast() {
		delivery = apswire.DeliveryBroadcast
	}
	hdr := s.apsHeader(apswire.FrameData, delivery, params)
	hdr.DstEndpoint = params.DstEndpoint

	fo := &fanout{remaining: 1, dstEndpoint: params.DstEndpoint}
	s.pendFanout(params.DstAddr16, fo)

	req := nwk.NldeDataRequestParams{
		DestinationMode: nwk.UcstBcst,
		Destination:     params.DstAddr16,
		Radius:          params.Radius,
		DiscoverRoute:   nwkwire.DiscoverEnable,
		Nsdu:            encodeFrame(hdr, params.Asdu),
	}
	if params.UseAlias {
		req.UseAlias = true
		req.AliasSource = params.AliasSrc
		req.AliasSequence = params.AliasSeq
	}
	s.nwk.NldeDataRequest(req)
}
