// Package simcore implements the simulation kernel: a single-threaded
// cooperative virtual-time event scheduler (§4.1). It is the one piece
// every other package in this module ultimately runs on top of — every
// Zigbee protocol action is an event here, and every timeout is a
// cancellable [EventId].
package simcore

import (
	"container/heap"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nugget/zigbeesim/internal/simtime"
)

// Simulator owns the current time, the current context, the event
// counter, and the destroy list; it drives the run loop (§4.1) and
// exposes the kernel API of §6.
//
// The shape (a logger injected at construction, a mutex guarding
// shared state, explicit Run/Stop) follows the teacher's
// internal/scheduler.Scheduler; the difference is that this scheduler
// orders by virtual time, not wall-clock timers, so the "timer map"
// becomes a container/heap priority queue instead.
type Simulator struct {
	mu sync.Mutex

	logger *slog.Logger

	queue   eventQueue
	destroy []*event

	now            simtime.Time
	currentContext uint32
	eventCount     uint64
	nextSeq        uint64
	nextUID        uint64

	stopRequested bool
	stopAt        *simtime.Time
	stopAtSet     bool
}

// New creates a Simulator. A nil logger is replaced with slog.Default,
// matching the teacher's constructor convention.
func New(logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{
		logger:         logger,
		currentContext: NoContext,
	}
}

// Now returns the current virtual time. Monotonic non-decreasing
// during a Run (§3).
func (s *Simulator) Now() simtime.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// GetContext returns the context (logical node id) of the event
// currently being dispatched, or NoContext outside of dispatch.
func (s *Simulator) GetContext() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentContext
}

// GetEventCount returns the number of non-cancelled events dispatched
// so far.
func (s *Simulator) GetEventCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eventCount
}

// Schedule arranges for f to run at now+delay. delay must be >= 0;
// negative delay is scheduling misuse and is fatal (§4.1, §7). The
// event's context is inherited from the currently running event (or
// NoContext if none is running).
func (s *Simulator) Schedule(delay simtime.Time, f func()) EventId {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduleLocked(s.currentContext, delay, f)
}

// ScheduleNow is equivalent to Schedule(0, f): it runs after every
// event already queued at the current time, ordered by insertion
// sequence like any other zero-delay event.
func (s *Simulator) ScheduleNow(f func()) EventId {
	return s.Schedule(0, f)
}

// ScheduleWithContext posts f to run at now+delay under the given
// context. This is the ONLY kernel entry point safe to call from a
// thread other than the one running Run (§4.1, §5): the mutex below
// is the cross-thread posting point.
func (s *Simulator) ScheduleWithContext(ctx uint32, delay simtime.Time, f func()) EventId {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduleLocked(ctx, delay, f)
}

func (s *Simulator) scheduleLocked(ctx uint32, delay simtime.Time, f func()) EventId {
	if delay < 0 {
		panic(fmt.Sprintf("simcore: negative delay %v is scheduling misuse", delay))
	}
	ev := &event{
		expiration: s.now.Add(delay),
		sequence:   s.nextSeq,
		context:    ctx,
		state:      statePending,
		fn:         f,
	}
	s.nextSeq++
	s.nextUID++
	heap.Push(&s.queue, ev)
	return EventId{ev: ev, uid: s.nextUID}
}

// ScheduleDestroy registers f to run only when Destroy is called, in
// FIFO order among destroy events. Destroy events cannot be cancelled
// or removed (§4.1) — doing either is fatal.
func (s *Simulator) ScheduleDestroy(f func()) EventId {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUID++
	ev := &event{
		context: s.currentContext,
		state:   statePending,
		destroy: true,
		fn:      f,
	}
	s.destroy = append(s.destroy, ev)
	return EventId{ev: ev, uid: s.nextUID}
}

// Cancel flips the event's cancelled flag. It remains in the queue
// (or destroy list) but will not run; O(1). Cancelling an
// already-expired event is a no-op. Cancelling a destroy-time event is
// a fatal program error (§5).
func (s *Simulator) Cancel(id EventId) {
	if !id.valid() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id.ev.destroy {
		panic("simcore: cancelling a destroy-time event is a fatal program error")
	}
	if id.ev.state == statePending {
		id.ev.state = stateCancelled
	}
}

// Remove extracts the event from the queue immediately, freeing its
// memory rather than merely flagging it; O(log n). Removing a
// destroy-time event is a fatal program error (§4.1).
func (s *Simulator) Remove(id EventId) {
	if !id.valid() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id.ev.destroy {
		panic("simcore: removing a destroy-time event is a fatal program error")
	}
	if id.ev.state != statePending {
		return
	}
	if id.ev.index >= 0 && id.ev.index < len(s.queue) && s.queue[id.ev.index] == id.ev {
		heap.Remove(&s.queue, id.ev.index)
	}
	id.ev.state = stateRemoved
}

// IsExpired reports whether id has already run, been cancelled, or
// been removed.
func (s *Simulator) IsExpired(id EventId) bool {
	return id.IsExpired()
}

// GetDelayLeft returns the remaining virtual time until id fires, or 0
// if it has already expired.
func (s *Simulator) GetDelayLeft(id EventId) simtime.Time {
	if !id.valid() || id.IsExpired() {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return id.ev.expiration.Sub(s.now)
}

// Stop causes the currently running event to be the last one Run
// executes.
func (s *Simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopRequested = true
}

// StopAt schedules a stop deadline at now+delay: Run returns once the
// earliest queued event's expiration reaches that deadline, without
// dispatching it. This is the Go rendering of the spec's overloaded
// "Stop(delay)" (§6).
func (s *Simulator) StopAt(delay simtime.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.now.Add(delay)
	s.stopAt = &t
	s.stopAtSet = true
}

// IsFinished reports whether the event queue is empty (ignoring
// pending destroy events, which only run on Destroy).
func (s *Simulator) IsFinished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len() == 0
}

// Run drives the event loop: repeatedly peek the earliest event,
// advance now to its expiration, install its context as current,
// remove it, and — if not cancelled — invoke it. Returns when the
// queue empties, a stop deadline is reached, or Stop() was called
// during the just-dispatched event (§4.1).
func (s *Simulator) Run() {
	for {
		s.mu.Lock()
		if s.stopRequested {
			s.stopRequested = false
			s.mu.Unlock()
			return
		}
		top := s.queue.peek()
		if top == nil {
			s.mu.Unlock()
			return
		}
		if s.stopAtSet && top.expiration >= *s.stopAt {
			s.mu.Unlock()
			return
		}
		ev := heap.Pop(&s.queue).(*event)
		s.now = ev.expiration
		s.currentContext = ev.context

		fired := ev.state == statePending
		if fired {
			ev.state = stateFired
			s.eventCount++
		}
		f := ev.fn
		s.mu.Unlock()

		if fired && f != nil {
			f()
		}
	}
}

// Destroy flushes destroy-time events in FIFO order, then resets
// kernel state so a fresh Run is possible (§4.1).
func (s *Simulator) Destroy() {
	s.mu.Lock()
	pending := s.destroy
	s.destroy = nil
	s.mu.Unlock()

	for _, ev := range pending {
		if ev.state != statePending {
			continue
		}
		ev.state = stateFired
		if ev.fn != nil {
			ev.fn()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = nil
	s.now = 0
	s.currentContext = NoContext
	s.eventCount = 0
	s.nextSeq = 0
	s.stopRequested = false
	s.stopAt = nil
	s.stopAtSet = false
}
