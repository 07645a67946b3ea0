package nwk

import (
	"github.com/nugget/zigbeesim/internal/trace"
	"github.com/nugget/zigbeesim/internal/zigbee/nwkaddr"
	"github.com/nugget/zigbeesim/internal/zigbee/nwkwire"
	"github.com/nugget/zigbeesim/internal/zigbee/tables"
)

// RouteDiscoveryConfirmParams is the result of
// NLME-ROUTE-DISCOVERY.request (§4.5 "Many-to-one").
type RouteDiscoveryConfirmParams struct {
	Status ConfirmStatus
}

// RouteDiscoveryRequest implements NLME-ROUTE-DISCOVERY.request. A
// concentrator calls it with manyToOne=true and no destination (§4.5
// "destination-mode=NO_ADDRESS"); an ordinary node never needs to call
// it directly since NldeDataRequest triggers discovery on demand.
func (s *Stack) RouteDiscoveryRequest(manyToOne bool) {
	if manyToOne && !s.isConcentrator {
		s.routeDiscoveryConfirm(NotPermitted)
		return
	}
	s.originateRouteDiscovery(nwkaddr.AllRoutersAndCoordinator, manyToOne)
	s.routeDiscoveryConfirm(Success)
}

func (s *Stack) routeDiscoveryConfirm(status ConfirmStatus) {
	if s.routeDiscoveryCb != nil {
		s.routeDiscoveryCb(RouteDiscoveryConfirmParams{Status: status})
	}
}

// originateRouteDiscovery starts an AODV-style route search as the
// originator (§4.5 "Route discovery (RREQ/RREP)").
func (s *Stack) originateRouteDiscovery(dst nwkaddr.Addr, manyToOne bool) {
	rreqID := s.nextRreqID()

	if !manyToOne {
		err := s.routing.AddEntry(tables.RouteEntry{
			Destination: dst,
			Status:      tables.DiscoveryUnderway,
		})
		if err != nil {
			s.confirm(InvalidRequest, dst)
			return
		}
	}

	s.broadcastRREQ(rreqCommand{RreqID: rreqID, ManyToOne: manyToOne, Source: s.selfAddr, Destination: dst, PathCost: 0})
	evt := s.sim.Schedule(RreqRetryTimeout, func() { s.onRreqRetryTimeout(rreqID, dst, manyToOne, true) })
	s.rreqRetry.Start(rreqID, tables.InitialRreqRetries, evt)
}

func (s *Stack) broadcastRREQ(cmd rreqCommand) {
	hdr := &nwkwire.Header{
		FrameType:      nwkwire.FrameCommand,
		Source:         s.selfAddr,
		Destination:    nwkaddr.AllRoutersAndCoordinator,
		Radius:         DefaultRadius,
		SequenceNumber: s.nextSeq(),
	}
	s.sendFrame(nwkaddr.AllRoutersAndCoordinator, hdr, cmd.encode())
}

func (s *Stack) onRreqRetryTimeout(rreqID uint8, dst nwkaddr.Addr, manyToOne, originator bool) {
	entry, ok := s.rreqRetry.Get(rreqID)
	if !ok {
		return
	}
	if entry.RetryCount-1 <= 0 {
		tried := tables.RreqRetries
		if originator {
			tried = tables.InitialRreqRetries
		}
		s.rreqRetry.Finish(rreqID)
		s.trace(trace.KindRreqRetriesExhausted, s.nodeID, map[string]any{
			"rreqId":  rreqID,
			"dst":     dst.String(),
			"retries": tried,
		})
		if !manyToOne {
			_ = s.routing.AddEntry(tables.RouteEntry{Destination: dst, Status: tables.DiscoveryFailed})
			s.failPending(dst, RouteDiscoveryFailed)
		}
		return
	}

	var cmd rreqCommand
	if originator {
		cmd = rreqCommand{RreqID: rreqID, ManyToOne: manyToOne, Source: s.selfAddr, Destination: dst, PathCost: 0}
	} else {
		de, ok := s.discovery.Lookup(tables.DiscoveryKey{RreqID: rreqID, Source: dst}, s.sim.Now())
		if !ok {
			s.rreqRetry.Finish(rreqID)
			return
		}
		cmd = rreqCommand{RreqID: rreqID, ManyToOne: manyToOne, Source: dst, Destination: s.relayDestHint, PathCost: uint8(de.ForwardCost)}
	}
	s.broadcastRREQ(cmd)
	evt := s.sim.Schedule(RreqRetryTimeout, func() { s.onRreqRetryTimeout(rreqID, dst, manyToOne, originator) })
	s.rreqRetry.Decrement(rreqID, evt)
}

// failPending confirms every NLDE-DATA.request queued against dst
// with status and drops the queue.
func (s *Stack) failPending(dst nwkaddr.Addr, status ConfirmStatus) {
	pending := s.pending[dst]
	delete(s.pending, dst)
	for range pending {
		s.confirm(status, dst)
	}
}

// flushPending re-dispatches every NLDE-DATA.request queued against
// dst now that an ACTIVE route exists.
func (s *Stack) flushPending(dst nwkaddr.Addr, nextHop nwkaddr.Addr) {
	pending := s.pending[dst]
	delete(s.pending, dst)
	for _, p := range pending {
		hdr := &nwkwire.Header{
			FrameType:      nwkwire.FrameData,
			Source:         s.selfAddr,
			Destination:    dst,
			Radius:         DefaultRadius,
			SequenceNumber: s.nextSeq(),
		}
		s.sendFrame(nextHop, hdr, p.nsdu)
		s.confirm(Success, dst)
	}
}

func (s *Stack) handleCommand(hdr *nwkwire.Header, payload []byte, lqi uint8) {
	if len(payload) == 0 {
		return
	}
	switch payload[0] {
	case cmdRREQ:
		cmd, err := decodeRREQ(payload)
		if err != nil {
			return
		}
		s.handleRREQ(hdr, cmd, lqi)
	case cmdRREP:
		cmd, err := decodeRREP(payload)
		if err != nil {
			return
		}
		s.handleRREP(hdr, cmd)
	case cmdRouteRecord:
		cmd, err := decodeRouteRecord(payload)
		if err != nil {
			return
		}
		s.handleRouteRecord(cmd)
	case cmdLinkStatus:
		s.handleLinkStatus(hdr)
	}
}

func (s *Stack) handleRREQ(hdr *nwkwire.Header, cmd rreqCommand, lqi uint8) {
	if cmd.Source == s.selfAddr {
		return // echo of our own RREQ coming back around; never relay our own request
	}
	now := s.sim.Now()
	key := tables.DiscoveryKey{RreqID: cmd.RreqID, Source: cmd.Source}
	linkCost := nwkaddr.LinkCostFromLQI(lqi)
	forwardCost := int(cmd.PathCost) + linkCost

	existing, ok := s.discovery.Lookup(key, now)
	if ok && forwardCost >= existing.ForwardCost {
		return // known route at least as good already recorded; drop
	}

	s.discovery.AddEntry(key, tables.DiscoveryEntry{
		Sender:      hdr.Source,
		ForwardCost: forwardCost,
		Expiration:  now.Add(RreqRetryTimeout * 2),
	}, now)

	if cmd.ManyToOne {
		_ = s.routing.AddEntry(tables.RouteEntry{
			Destination: cmd.Source,
			NextHop:     hdr.Source,
			Status:      tables.Active,
			ManyToOne:   true,
			LifetimeDeadline: now.Add(RouteExpiry),
		})
		s.trace(trace.KindRouteDiscovered, s.nodeID, map[string]any{"dst": cmd.Source.String(), "nextHop": hdr.Source.String(), "cost": forwardCost})
		s.relayDestHint = cmd.Destination
		s.rebroadcastRREQ(cmd, forwardCost)
		return
	}

	if cmd.Destination == s.selfAddr {
		s.replyRREP(cmd, key, 0)
		return
	}

	s.relayDestHint = cmd.Destination
	s.rebroadcastRREQ(cmd, forwardCost)
}

func (s *Stack) rebroadcastRREQ(cmd rreqCommand, forwardCost int) {
	out := cmd
	out.PathCost = uint8(forwardCost)
	s.broadcastRREQ(out)
	evt := s.sim.Schedule(RreqRetryTimeout, func() {
		s.onRreqRetryTimeout(cmd.RreqID, cmd.Source, cmd.ManyToOne, false)
	})
	s.rreqRetry.Start(cmd.RreqID, tables.RreqRetries, evt)
}

func (s *Stack) replyRREP(cmd rreqCommand, key tables.DiscoveryKey, residualCost uint8) {
	de, ok := s.discovery.Lookup(key, s.sim.Now())
	if !ok {
		return
	}
	rrep := rrepCommand{RreqID: cmd.RreqID, OriginalSource: cmd.Source, RouteDest: s.selfAddr, ResidualCost: residualCost}
	hdr := &nwkwire.Header{
		FrameType:      nwkwire.FrameCommand,
		Source:         s.selfAddr,
		Destination:    de.Sender,
		Radius:         DefaultRadius,
		SequenceNumber: s.nextSeq(),
	}
	s.sendFrame(de.Sender, hdr, rrep.encode())
}

func (s *Stack) handleRREP(hdr *nwkwire.Header, cmd rrepCommand) {
	now := s.sim.Now()
	_ = s.routing.AddEntry(tables.RouteEntry{
		Destination:      cmd.RouteDest,
		NextHop:          hdr.Source,
		Status:           tables.Active,
		LifetimeDeadline: now.Add(RouteExpiry),
	})
	s.trace(trace.KindRouteDiscovered, s.nodeID, map[string]any{"dst": cmd.RouteDest.String(), "nextHop": hdr.Source.String(), "cost": cmd.ResidualCost})

	if cmd.OriginalSource == s.selfAddr {
		s.rreqRetry.Finish(cmd.RreqID)
		s.flushPending(cmd.RouteDest, hdr.Source)
		return
	}

	key := tables.DiscoveryKey{RreqID: cmd.RreqID, Source: cmd.OriginalSource}
	de, ok := s.discovery.Lookup(key, now)
	if !ok {
		s.trace(trace.KindRouteError, s.nodeID, map[string]any{"dst": cmd.OriginalSource.String()})
		return
	}
	s.rreqRetry.Finish(cmd.RreqID)
	forward := rrepCommand{RreqID: cmd.RreqID, OriginalSource: cmd.OriginalSource, RouteDest: cmd.RouteDest, ResidualCost: cmd.ResidualCost}
	fhdr := &nwkwire.Header{
		FrameType:      nwkwire.FrameCommand,
		Source:         s.selfAddr,
		Destination:    de.Sender,
		Radius:         DefaultRadius,
		SequenceNumber: s.nextSeq(),
	}
	s.sendFrame(de.Sender, fhdr, forward.encode())
}
