package tables

import (
	"github.com/nugget/zigbeesim/internal/simtime"
	"github.com/nugget/zigbeesim/internal/zigbee/nwkaddr"
)

// Relationship describes how a neighbor relates to this node (§3).
type Relationship int

const (
	RelNone Relationship = iota
	RelParent
	RelChild
	RelSibling
	RelPrevChild
	RelUnauthChild
)

// NeighborEntry is one row of the neighbor table (§3).
type NeighborEntry struct {
	ExtAddr            nwkaddr.ExtAddr
	NwkAddr            nwkaddr.Addr
	DeviceType         nwkaddr.DeviceType
	RxOnWhenIdle       bool
	Relationship       Relationship
	TimeoutCounter     int
	DeviceTimeoutDeadline simtime.Time
	TxFailure          bool
	LQI                uint8
	OutgoingCost       int
	Age                int
	ExtPanID           nwkaddr.ExtPanID
	LogicalChannel     int
	Depth              int
	BeaconOrder        int
	PotentialParent    bool
	lastScan           uint64
}

// NeighborTable is the per-node neighbor table.
type NeighborTable struct {
	entries  map[nwkaddr.ExtAddr]*NeighborEntry
	scanSeq  uint64
}

func NewNeighborTable() *NeighborTable {
	return &NeighborTable{entries: make(map[nwkaddr.ExtAddr]*NeighborEntry)}
}

// AddOrUpdate inserts or replaces the entry for e.ExtAddr, stamping it
// with the current scan sequence number so ties in LookupBestParent
// resolve to "last scan wins".
func (t *NeighborTable) AddOrUpdate(e NeighborEntry) {
	t.scanSeq++
	e.lastScan = t.scanSeq
	cp := e
	t.entries[e.ExtAddr] = &cp
}

// Get returns the entry for addr.
func (t *NeighborTable) Get(addr nwkaddr.ExtAddr) (NeighborEntry, bool) {
	e, ok := t.entries[addr]
	if !ok {
		return NeighborEntry{}, false
	}
	return *e, true
}

// Delete removes the entry for addr.
func (t *NeighborTable) Delete(addr nwkaddr.ExtAddr) {
	delete(t.entries, addr)
}

// LookupBestParent selects, among entries sharing extPanID that are
// COORD or ROUTER, flagged potential-parent, and have link-cost <= 3,
// the one with the lowest link cost; ties go to the most recently
// scanned entry (§4.3).
func (t *NeighborTable) LookupBestParent(extPanID nwkaddr.ExtPanID) (NeighborEntry, bool) {
	var best *NeighborEntry
	for _, e := range t.entries {
		if e.ExtPanID != extPanID {
			continue
		}
		if e.DeviceType != nwkaddr.Coordinator && e.DeviceType != nwkaddr.Router {
			continue
		}
		if !e.PotentialParent {
			continue
		}
		cost := nwkaddr.LinkCostFromLQI(e.LQI)
		if cost > 3 {
			continue
		}
		if best == nil {
			best = e
			continue
		}
		bestCost := nwkaddr.LinkCostFromLQI(best.LQI)
		if cost < bestCost || (cost == bestCost && e.lastScan >= best.lastScan) {
			best = e
		}
	}
	if best == nil {
		return NeighborEntry{}, false
	}
	return *best, true
}

func (t *NeighborTable) Len() int { return len(t.entries) }

func (t *NeighborTable) Entries() []NeighborEntry {
	out := make([]NeighborEntry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, *e)
	}
	return out
}
