package nwk

import (
	"github.com/nugget/zigbeesim/internal/simtime"
	"github.com/nugget/zigbeesim/internal/trace"
	"github.com/nugget/zigbeesim/internal/zigbee/mac"
	"github.com/nugget/zigbeesim/internal/zigbee/nwkaddr"
	"github.com/nugget/zigbeesim/internal/zigbee/nwkwire"
	"github.com/nugget/zigbeesim/internal/zigbee/tables"
)

// DestinationMode selects how NLDE-DATA.request resolves its
// destination (§4.5).
type DestinationMode int

const (
	UcstBcst DestinationMode = iota
	Mcst
)

// NldeDataRequestParams is the parameter set of NLDE-DATA.request
// (§4.5).
type NldeDataRequestParams struct {
	DestinationMode DestinationMode
	Destination     nwkaddr.Addr
	Radius          uint8
	DiscoverRoute   nwkwire.DiscoverRoute
	Security        bool
	NonMemberRadius uint8
	Nsdu            []byte

	// AliasSource/AliasSequence override self-address/local counter
	// when set (§4.5 "from alias if set").
	UseAlias      bool
	AliasSource   nwkaddr.Addr
	AliasSequence uint8
}

// NldeDataConfirmParams is the result of NLDE-DATA.request (§4.5).
type NldeDataConfirmParams struct {
	Status      ConfirmStatus
	Destination nwkaddr.Addr
}

// NldeDataIndicationParams is delivered to APS for every frame this
// node receives and is the final destination of (§4.5, §2).
type NldeDataIndicationParams struct {
	Source      nwkaddr.Addr
	Destination nwkaddr.Addr
	Nsdu        []byte
	Lqi         uint8
	Security    bool
}

// NldeDataRequest implements NLDE-DATA.request (§4.5 steps 1-4).
func (s *Stack) NldeDataRequest(params NldeDataRequestParams) {
	radius := params.Radius
	if radius == 0 {
		radius = DefaultRadius
	}
	seq := s.nextSeq()
	src := s.selfAddr
	if params.UseAlias {
		src = params.AliasSource
		seq = params.AliasSequence
	}

	hdr := &nwkwire.Header{
		FrameType:      nwkwire.FrameData,
		DiscoverRoute:  params.DiscoverRoute,
		Source:         src,
		Destination:    params.Destination,
		Radius:         radius,
		SequenceNumber: seq,
		Security:       params.Security,
	}

	if params.DestinationMode == Mcst {
		hdr.Multicast = true
		hdr.NonMemberRadius = params.NonMemberRadius
		hdr.MaxNonMemberRadius = params.NonMemberRadius
		s.sendBroadcast(hdr, params.Nsdu)
		s.confirm(Success, params.Destination)
		return
	}

	if params.Destination.IsBroadcast() {
		s.sendBroadcast(hdr, params.Nsdu)
		s.confirm(Success, params.Destination)
		return
	}

	s.dispatchUnicast(hdr, params)
}

func (s *Stack) dispatchUnicast(hdr *nwkwire.Header, params NldeDataRequestParams) {
	dst := params.Destination
	entry, ok := s.routing.Lookup(dst, s.sim.Now())
	switch {
	case ok && entry.Status == tables.Active:
		hdr.Destination = dst
		s.sendFrame(entry.NextHop, hdr, params.Nsdu)
		s.confirm(Success, dst)
	case ok && entry.Status == tables.DiscoveryUnderway:
		s.pending[dst] = append(s.pending[dst], pendingSend{params: params, nsdu: params.Nsdu})
	default:
		if params.DiscoverRoute == nwkwire.DiscoverSuppress {
			s.confirm(NoRouteAvailable, dst)
			return
		}
		s.pending[dst] = append(s.pending[dst], pendingSend{params: params, nsdu: params.Nsdu})
		s.originateRouteDiscovery(dst, false)
	}
}

func (s *Stack) confirm(status ConfirmStatus, dst nwkaddr.Addr) {
	if s.dataConfirmCb != nil {
		s.dataConfirmCb(NldeDataConfirmParams{Status: status, Destination: dst})
	}
}

// sendFrame serializes hdr+payload and hands the frame to the MAC for
// a specific next hop.
func (s *Stack) sendFrame(nextHop nwkaddr.Addr, hdr *nwkwire.Header, payload []byte) {
	buf := make([]byte, hdr.SerializedSize()+len(payload))
	hdr.Serialize(buf)
	copy(buf[hdr.SerializedSize():], payload)
	s.mac.McpsDataRequest(mac.DataRequestParams{DstAddr: nextHop}, buf)
}

// sendBroadcast hands hdr+payload to the MAC addressed to the
// all-devices broadcast class so the shared medium fans it out to
// every neighbor. hdr.Destination is left untouched: it may carry a
// broadcast address class or, for multicast, the group id receivers
// check their group table against.
func (s *Stack) sendBroadcast(hdr *nwkwire.Header, payload []byte) {
	s.sendFrame(nwkaddr.AllDevices, hdr, payload)
}

// onMacDataIndication is the MAC's single entry point into this
// stack (§2 "Inbound packets flow MAC->C7->C8->user").
func (s *Stack) onMacDataIndication(ind mac.DataIndication) {
	hdr := &nwkwire.Header{}
	n, err := hdr.Deserialize(ind.Nsdu)
	if err != nil {
		s.trace(trace.KindFrameDropped, s.nodeID, map[string]any{"reason": "malformed_header"})
		return
	}
	payload := ind.Nsdu[n:]

	switch hdr.FrameType {
	case nwkwire.FrameCommand:
		s.handleCommand(hdr, payload, ind.Lqi)
	case nwkwire.FrameData:
		s.handleData(hdr, payload, ind.Lqi)
	}
}

func (s *Stack) handleData(hdr *nwkwire.Header, payload []byte, lqi uint8) {
	if hdr.Multicast {
		s.handleMulticastData(hdr, payload, lqi)
		return
	}
	if hdr.Destination.IsBroadcast() {
		s.handleBroadcastData(hdr, payload, lqi)
		return
	}
	if hdr.Destination == s.selfAddr {
		s.deliverUp(hdr, payload, lqi)
		return
	}
	// Mesh forwarding: this frame is addressed to some other node.
	s.forwardUnicast(hdr, payload)
}

func (s *Stack) deliverUp(hdr *nwkwire.Header, payload []byte, lqi uint8) {
	if s.dataIndicationCb != nil {
		s.dataIndicationCb(NldeDataIndicationParams{
			Source:      hdr.Source,
			Destination: hdr.Destination,
			Nsdu:        payload,
			Lqi:         lqi,
			Security:    hdr.Security,
		})
	}
}

func (s *Stack) forwardUnicast(hdr *nwkwire.Header, payload []byte) {
	entry, ok := s.routing.Lookup(hdr.Destination, s.sim.Now())
	if !ok || entry.Status != tables.Active || entry.NextHop == nwkaddr.AllDevices {
		s.trace(trace.KindRouteError, s.nodeID, map[string]any{"dst": hdr.Destination.String()})
		return
	}
	s.sendFrame(entry.NextHop, hdr, payload)
}

func (s *Stack) handleBroadcastData(hdr *nwkwire.Header, payload []byte, lqi uint8) {
	now := s.sim.Now()
	if s.broadcast.Seen(hdr.Source, hdr.SequenceNumber, now) {
		s.trace(trace.KindBroadcastDropped, s.nodeID, map[string]any{"src": hdr.Source.String(), "seq": hdr.SequenceNumber})
		return
	}
	_ = s.broadcast.Record(hdr.Source, hdr.SequenceNumber, now.Add(BroadcastRecordLife))

	s.deliverUp(hdr, payload, lqi)

	if hdr.Radius == 0 {
		return
	}
	rebroadcast := *hdr
	rebroadcast.Radius--
	jitter := broadcastJitter(s.selfAddr, hdr.SequenceNumber)
	s.sim.Schedule(jitter, func() {
		s.sendBroadcast(&rebroadcast, payload)
	})
}

func (s *Stack) handleMulticastData(hdr *nwkwire.Header, payload []byte, lqi uint8) {
	now := s.sim.Now()
	if s.broadcast.Seen(hdr.Source, hdr.SequenceNumber, now) {
		return
	}
	_ = s.broadcast.Record(hdr.Source, hdr.SequenceNumber, now.Add(BroadcastRecordLife))

	member := s.groups.IsGroupMember(uint16(hdr.Destination))
	if member {
		s.deliverUp(hdr, payload, lqi)
	}

	radiusLeft := hdr.Radius
	if !member {
		radiusLeft = hdr.NonMemberRadius
	}
	if radiusLeft == 0 {
		return
	}
	rebroadcast := *hdr
	if member {
		rebroadcast.Radius = radiusLeft - 1
	} else {
		rebroadcast.NonMemberRadius = radiusLeft - 1
	}
	jitter := broadcastJitter(s.selfAddr, hdr.SequenceNumber)
	s.sim.Schedule(jitter, func() {
		s.sendBroadcast(&rebroadcast, payload)
	})
}

// broadcastJitter returns a small deterministic delay so that two
// neighbors hearing the same broadcast do not retransmit in the exact
// same tick; derived from (addr, seq) rather than a random source so
// reruns with the same topology reproduce the same schedule (§5
// "same seeded streams produce identical event sequences").
func broadcastJitter(addr nwkaddr.Addr, seq uint8) simtime.Time {
	return simtime.Time((uint32(addr)*31+uint32(seq))%8 * 1_000_000)
}
