package simcore

import "github.com/nugget/zigbeesim/internal/simtime"

// NoContext is the sentinel context value used outside of event
// dispatch (§3 "Simulation context").
const NoContext uint32 = 0xFFFFFFFF

// state tracks an event's lifecycle for IsExpired/IsPending.
type state int

const (
	statePending state = iota
	stateCancelled
	stateFired
	stateRemoved
)

// event is the internal queue record: (expiration, insertion
// sequence, context, cancelled flag, erased callable) per §3.
type event struct {
	expiration simtime.Time
	sequence   uint64
	context    uint32
	state      state
	fn         func()
	destroy    bool // destroy-time events live in a separate FIFO list
	index      int  // heap index, maintained by container/heap
}

// EventId is an opaque handle identifying a scheduled event (§3). It
// is valid until the event runs, is cancelled, or is removed.
type EventId struct {
	ev  *event
	uid uint64
}

// IsExpired reports whether the event has already run, been
// cancelled, or been removed.
func (id EventId) IsExpired() bool {
	if id.ev == nil {
		return true
	}
	return id.ev.state != statePending
}

// IsPending reports whether the event is still sitting in the queue,
// eligible to run.
func (id EventId) IsPending() bool {
	return !id.IsExpired()
}

// valid reports whether id refers to a live event record at all
// (guards against the zero EventId).
func (id EventId) valid() bool {
	return id.ev != nil
}
