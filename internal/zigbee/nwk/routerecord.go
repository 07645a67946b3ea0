package nwk

import (
	"github.com/nugget/zigbeesim/internal/trace"
	"github.com/nugget/zigbeesim/internal/zigbee/nwkaddr"
	"github.com/nugget/zigbeesim/internal/zigbee/nwkwire"
	"github.com/nugget/zigbeesim/internal/zigbee/tables"
)

// SendRouteRecord originates a route-record command toward
// concentrator over whatever active many-to-one route this node
// already holds (installed by an earlier concentrator RREQ flood).
// Real devices send one after their data request into a many-to-one
// route gets a RouteRecordReq flag on its first reply; this simulator
// exposes it as a direct call instead of wiring that flag end to end.
func (s *Stack) SendRouteRecord(concentrator nwkaddr.Addr) ConfirmStatus {
	entry, ok := s.routing.Lookup(concentrator, s.sim.Now())
	if !ok || entry.Status != tables.Active {
		s.trace(trace.KindRouteError, s.nodeID, map[string]any{"dst": concentrator.String()})
		return NoRouteAvailable
	}
	cmd := routeRecordCommand{Originator: s.selfAddr, Concentrator: concentrator}
	s.sendRouteRecordFrame(cmd, entry.NextHop)
	return Success
}

func (s *Stack) sendRouteRecordFrame(cmd routeRecordCommand, nextHop nwkaddr.Addr) {
	hdr := &nwkwire.Header{
		FrameType:      nwkwire.FrameCommand,
		Source:         s.selfAddr,
		Destination:    nextHop,
		Radius:         DefaultRadius,
		SequenceNumber: s.nextSeq(),
	}
	s.sendFrame(nextHop, hdr, cmd.encode())
}

// handleRouteRecord either records the path at the concentrator it was
// bound for, or appends this relay's own address and forwards it one
// hop closer.
func (s *Stack) handleRouteRecord(cmd routeRecordCommand) {
	if cmd.Concentrator == s.selfAddr {
		relays := append([]nwkaddr.Addr{}, cmd.Relays...)
		s.sourceRoutes[cmd.Originator] = relays
		s.trace(trace.KindRouteRecordReceived, s.nodeID, map[string]any{
			"originator": cmd.Originator.String(),
			"hops":       len(relays),
		})
		return
	}

	entry, ok := s.routing.Lookup(cmd.Concentrator, s.sim.Now())
	if !ok || entry.Status != tables.Active {
		s.trace(trace.KindRouteError, s.nodeID, map[string]any{"dst": cmd.Concentrator.String()})
		return
	}

	out := cmd
	out.Relays = append(append([]nwkaddr.Addr{}, cmd.Relays...), s.selfAddr)
	s.sendRouteRecordFrame(out, entry.NextHop)
}
