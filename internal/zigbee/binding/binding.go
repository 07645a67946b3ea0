// Package binding implements the APS binding table (§4.7): a two-level
// structure mapping a source key {ext-addr, endpoint, cluster-id} to a
// bounded list of destinations, each either a group or an
// IEEE-address-plus-endpoint pair.
package binding

import "github.com/nugget/zigbeesim/internal/zigbee/nwkaddr"

// DefaultMaxSources and DefaultMaxDestinations bound the table (§3).
const (
	DefaultMaxSources      = 10
	DefaultMaxDestinations = 10
)

// Result is the outcome of a Bind/Unbind call.
type Result int

const (
	Bound Result = iota
	EntryExists
	TableFull
	Unbound
	EntryNotFound
)

func (r Result) String() string {
	switch r {
	case Bound:
		return "BOUND"
	case EntryExists:
		return "ENTRY_EXISTS"
	case TableFull:
		return "TABLE_FULL"
	case Unbound:
		return "UNBOUND"
	case EntryNotFound:
		return "ENTRY_NOT_FOUND"
	default:
		return "UNKNOWN"
	}
}

// DstMode selects which fields of Destination are meaningful.
type DstMode int

const (
	Group DstMode = iota
	IEEEEndpoint
)

// Source identifies the {ext-addr, endpoint, cluster-id} binding key.
type Source struct {
	ExtAddr   nwkaddr.ExtAddr
	Endpoint  uint8
	ClusterID uint16
}

// Destination is one bound target, either a group or an IEEE endpoint
// (§3).
type Destination struct {
	Mode     DstMode
	GroupID  uint16
	ExtAddr  nwkaddr.ExtAddr
	Endpoint uint8
}

func (d Destination) equal(o Destination) bool {
	if d.Mode != o.Mode {
		return false
	}
	switch d.Mode {
	case Group:
		return d.GroupID == o.GroupID && d.Endpoint == o.Endpoint
	default:
		return d.ExtAddr == o.ExtAddr && d.Endpoint == o.Endpoint
	}
}

// Table is the APS binding table.
type Table struct {
	maxSources      int
	maxDestinations int
	rows            []row
}

type row struct {
	source Source
	dests  []Destination
}

// New creates a binding table with the default bounds.
func New() *Table {
	return &Table{maxSources: DefaultMaxSources, maxDestinations: DefaultMaxDestinations}
}

func (t *Table) findRow(src Source) int {
	for i, r := range t.rows {
		if r.source == src {
			return i
		}
	}
	return -1
}

// Bind adds dst to src's destination list, creating the source row if
// needed (§4.7).
func (t *Table) Bind(src Source, dst Destination) Result {
	idx := t.findRow(src)
	if idx < 0 {
		if len(t.rows) >= t.maxSources {
			return TableFull
		}
		t.rows = append(t.rows, row{source: src})
		idx = len(t.rows) - 1
	}
	r := &t.rows[idx]
	for _, d := range r.dests {
		if d.equal(dst) {
			return EntryExists
		}
	}
	if len(r.dests) >= t.maxDestinations {
		return TableFull
	}
	r.dests = append(r.dests, dst)
	return Bound
}

// Unbind removes dst from src's destination list.
func (t *Table) Unbind(src Source, dst Destination) Result {
	idx := t.findRow(src)
	if idx < 0 {
		return EntryNotFound
	}
	r := &t.rows[idx]
	for i, d := range r.dests {
		if d.equal(dst) {
			r.dests = append(r.dests[:i], r.dests[i+1:]...)
			if len(r.dests) == 0 {
				t.rows = append(t.rows[:idx], t.rows[idx+1:]...)
			}
			return Unbound
		}
	}
	return EntryNotFound
}

// LookupEntries returns the destinations bound to src (the hot read
// path, per §4.7).
func (t *Table) LookupEntries(src Source) ([]Destination, bool) {
	idx := t.findRow(src)
	if idx < 0 {
		return nil, false
	}
	out := make([]Destination, len(t.rows[idx].dests))
	copy(out, t.rows[idx].dests)
	return out, len(out) > 0
}
