package tables

import "github.com/nugget/zigbeesim/internal/simcore"

// Retry budgets for route-request rebroadcast (§4.5).
const (
	InitialRreqRetries = 3 // the originator of an RREQ
	RreqRetries        = 2 // a relaying intermediate router
)

// RreqRetryEntry tracks one outstanding RREQ's retry timer (§3).
type RreqRetryEntry struct {
	RetryCount int
	PendingEvt simcore.EventId
}

// RreqRetryTable holds one entry per outstanding RREQ id.
type RreqRetryTable struct {
	entries map[uint8]*RreqRetryEntry
}

func NewRreqRetryTable() *RreqRetryTable {
	return &RreqRetryTable{entries: make(map[uint8]*RreqRetryEntry)}
}

// Start registers a new RREQ id with the given initial retry budget.
func (t *RreqRetryTable) Start(rreqID uint8, retries int, evt simcore.EventId) {
	t.entries[rreqID] = &RreqRetryEntry{RetryCount: retries, PendingEvt: evt}
}

// Get returns the entry for rreqID.
func (t *RreqRetryTable) Get(rreqID uint8) (RreqRetryEntry, bool) {
	e, ok := t.entries[rreqID]
	if !ok {
		return RreqRetryEntry{}, false
	}
	return *e, true
}

// Decrement lowers the retry count by one and rearms the pending
// event handle, returning the new count.
func (t *RreqRetryTable) Decrement(rreqID uint8, newEvt simcore.EventId) int {
	e, ok := t.entries[rreqID]
	if !ok {
		return 0
	}
	e.RetryCount--
	e.PendingEvt = newEvt
	return e.RetryCount
}

// Finish removes the entry for rreqID (retries exhausted or RREP
// received).
func (t *RreqRetryTable) Finish(rreqID uint8) {
	delete(t.entries, rreqID)
}

func (t *RreqRetryTable) Len() int { return len(t.entries) }
