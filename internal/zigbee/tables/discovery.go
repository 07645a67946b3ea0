package tables

import "github.com/nugget/zigbeesim/internal/simtime"
import "github.com/nugget/zigbeesim/internal/zigbee/nwkaddr"

// DiscoveryKey identifies a route-discovery-table row (§3).
type DiscoveryKey struct {
	RreqID uint8
	Source nwkaddr.Addr
}

// DiscoveryEntry tracks an in-flight RREQ this node has seen (§3).
type DiscoveryEntry struct {
	Sender       nwkaddr.Addr
	ForwardCost  int
	ResidualCost int
	Expiration   simtime.Time
}

// DiscoveryTable is the route-discovery table: it purges lazily on
// every access (§4.3).
type DiscoveryTable struct {
	entries map[DiscoveryKey]*DiscoveryEntry
}

func NewDiscoveryTable() *DiscoveryTable {
	return &DiscoveryTable{entries: make(map[DiscoveryKey]*DiscoveryEntry)}
}

func (t *DiscoveryTable) purge(now simtime.Time) {
	for k, e := range t.entries {
		if !now.Before(e.Expiration) {
			delete(t.entries, k)
		}
	}
}

// AddEntry inserts or replaces the row for key, purging expired rows
// first.
func (t *DiscoveryTable) AddEntry(key DiscoveryKey, e DiscoveryEntry, now simtime.Time) {
	t.purge(now)
	cp := e
	t.entries[key] = &cp
}

// Lookup returns the row for key, purging expired rows first.
func (t *DiscoveryTable) Lookup(key DiscoveryKey, now simtime.Time) (DiscoveryEntry, bool) {
	t.purge(now)
	e, ok := t.entries[key]
	if !ok {
		return DiscoveryEntry{}, false
	}
	return *e, true
}

// Delete removes the row for key, purging expired rows first.
func (t *DiscoveryTable) Delete(key DiscoveryKey, now simtime.Time) {
	t.purge(now)
	delete(t.entries, key)
}

func (t *DiscoveryTable) Len() int { return len(t.entries) }
