// Package tables implements the bounded, self-expiring Zigbee NWK
// tables of §4.3: routing, route-discovery, RREQ-retry, neighbor,
// broadcast-transaction, and PAN-id. None of them take a lock — per
// §5 they are mutated only by their owning node's own event-loop
// iteration, so a Go map guarded by nothing is exactly as safe as the
// source's single-threaded tables.
package tables

import (
	"errors"

	"github.com/nugget/zigbeesim/internal/simtime"
	"github.com/nugget/zigbeesim/internal/zigbee/nwkaddr"
)

// ErrTableFull is returned when a bounded table has no room for a new
// entry.
var ErrTableFull = errors.New("tables: table full")

// RouteStatus is the lifecycle state of a routing-table entry.
type RouteStatus int

const (
	Active RouteStatus = iota
	DiscoveryUnderway
	DiscoveryFailed
	Inactive
	ValidationUnderway
)

func (s RouteStatus) String() string {
	switch s {
	case Active:
		return "ACTIVE"
	case DiscoveryUnderway:
		return "DISCOVERY_UNDERWAY"
	case DiscoveryFailed:
		return "DISCOVERY_FAILED"
	case Inactive:
		return "INACTIVE"
	case ValidationUnderway:
		return "VALIDATION_UNDERWAY"
	default:
		return "UNKNOWN"
	}
}

// RouteEntry is one row of the routing table (§3).
type RouteEntry struct {
	Destination   nwkaddr.Addr
	NextHop       nwkaddr.Addr
	Status        RouteStatus
	ManyToOne     bool
	NoRouteCache  bool
	RouteRecordReq bool
	GroupIDFlag   bool
	LifetimeDeadline simtime.Time
}

// DefaultRoutingTableSize is the default bound on the routing table
// (§3 "Bounded (default 32)").
const DefaultRoutingTableSize = 32

// RoutingTable is the per-node Zigbee routing table.
type RoutingTable struct {
	maxSize int
	entries map[nwkaddr.Addr]*RouteEntry
}

// NewRoutingTable creates a routing table bounded at maxSize entries.
// maxSize <= 0 uses DefaultRoutingTableSize.
func NewRoutingTable(maxSize int) *RoutingTable {
	if maxSize <= 0 {
		maxSize = DefaultRoutingTableSize
	}
	return &RoutingTable{
		maxSize: maxSize,
		entries: make(map[nwkaddr.Addr]*RouteEntry),
	}
}

// AddEntry inserts or overwrites the entry for its destination,
// failing with ErrTableFull if the table is at capacity and the
// destination is not already present.
func (t *RoutingTable) AddEntry(e RouteEntry) error {
	if _, exists := t.entries[e.Destination]; !exists && len(t.entries) >= t.maxSize {
		return ErrTableFull
	}
	cp := e
	t.entries[e.Destination] = &cp
	return nil
}

// Lookup returns the entry for dst, marking it INACTIVE in place if
// its lifetime has passed (§4.3, §8 "Zigbee table laws").
func (t *RoutingTable) Lookup(dst nwkaddr.Addr, now simtime.Time) (RouteEntry, bool) {
	e, ok := t.entries[dst]
	if !ok {
		return RouteEntry{}, false
	}
	if e.Status == Active && !e.LifetimeDeadline.IsZero() && !now.Before(e.LifetimeDeadline) {
		e.Status = Inactive
	}
	return *e, true
}

// Delete removes the entry for dst, if any.
func (t *RoutingTable) Delete(dst nwkaddr.Addr) {
	delete(t.entries, dst)
}

// Purge removes every INACTIVE entry, having first transitioned any
// expired ACTIVE entries.
func (t *RoutingTable) Purge(now simtime.Time) {
	for dst, e := range t.entries {
		if e.Status == Active && !e.LifetimeDeadline.IsZero() && !now.Before(e.LifetimeDeadline) {
			e.Status = Inactive
		}
		if e.Status == Inactive {
			delete(t.entries, dst)
		}
	}
}

// Len returns the current number of entries, including inactive ones
// not yet purged.
func (t *RoutingTable) Len() int { return len(t.entries) }

// Entries returns a snapshot of every entry for printing (§6
// "Persisted state": destination, next-hop, status, flags). The
// order follows map iteration and is not stable between calls.
func (t *RoutingTable) Entries() []RouteEntry {
	out := make([]RouteEntry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, *e)
	}
	return out
}
