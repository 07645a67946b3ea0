package nwk

import (
	"github.com/nugget/zigbeesim/internal/simtime"
	"github.com/nugget/zigbeesim/internal/trace"
	"github.com/nugget/zigbeesim/internal/zigbee/nwkaddr"
	"github.com/nugget/zigbeesim/internal/zigbee/nwkwire"
)

// LinkStatusPeriod is how often a router or coordinator broadcasts a
// single-hop link status beacon (§4.5 "neighbor aging").
const LinkStatusPeriod = simtime.Time(15_000_000_000) // 15s of ns-resolution ticks

// NeighborAgeLimit is how many missed link status periods a neighbor
// tolerates before this node evicts it and drops any route using it
// as a next hop.
const NeighborAgeLimit = 3

// Start begins this node's periodic link status beacon and neighbor
// aging sweep. An end device, which never relays and has no neighbors
// of its own to age, has nothing useful to gain from this and should
// not call it.
func (s *Stack) Start() {
	s.sim.Schedule(LinkStatusPeriod, s.onLinkStatusTick)
}

func (s *Stack) onLinkStatusTick() {
	s.broadcastLinkStatus()
	s.ageNeighbors()
	s.sim.Schedule(LinkStatusPeriod, s.onLinkStatusTick)
}

func (s *Stack) broadcastLinkStatus() {
	hdr := &nwkwire.Header{
		FrameType:      nwkwire.FrameCommand,
		Source:         s.selfAddr,
		Destination:    nwkaddr.AllDevices,
		Radius:         1,
		SequenceNumber: s.nextSeq(),
	}
	s.sendBroadcast(hdr, linkStatusCommand{}.encode())
}

func (s *Stack) handleLinkStatus(hdr *nwkwire.Header) {
	s.neighborHeard[hdr.Source] = s.sim.Now()
}

// ageNeighbors evicts any address this node has not heard a link
// status beacon from within NeighborAgeLimit periods, and drops any
// routing table entry that used it as a next hop, since that path can
// no longer be trusted to be alive.
func (s *Stack) ageNeighbors() {
	now := s.sim.Now()
	limit := LinkStatusPeriod * NeighborAgeLimit
	for addr, lastHeard := range s.neighborHeard {
		if now.Sub(lastHeard) <= limit {
			continue
		}
		delete(s.neighborHeard, addr)
		s.dropRoutesVia(addr)
		s.trace(trace.KindNeighborAged, s.nodeID, map[string]any{"neighbor": addr.String()})
	}
}

func (s *Stack) dropRoutesVia(nextHop nwkaddr.Addr) {
	for _, e := range s.routing.Entries() {
		if e.NextHop == nextHop {
			s.routing.Delete(e.Destination)
		}
	}
}
