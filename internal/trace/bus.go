// Package trace provides a publish/subscribe bus carrying simulation
// diagnostic events (RREQ retries exhausted, route errors, dropped
// frames, ...) out of the kernel and Zigbee layers to whatever is
// watching a run — a CLI printer, the dashboard, a test assertion.
// The bus is nil-safe: calling Publish on a nil *Bus is a no-op, so
// protocol code never needs a guard check before emitting a trace
// event.
package trace

import "sync"

// Kind constants name the trace events this module emits.
const (
	// KindRreqRetriesExhausted signals an RREQ's retry budget ran out.
	// Data: rreqId, dst, retries.
	KindRreqRetriesExhausted = "rreq_retries_exhausted"
	// KindRouteError signals a forwarding failure: unknown next hop.
	// Data: dst.
	KindRouteError = "route_error"
	// KindRouteDiscovered signals a routing entry went ACTIVE via RREP.
	// Data: dst, nextHop, cost.
	KindRouteDiscovered = "route_discovered"
	// KindBroadcastDropped signals a duplicate broadcast was dropped.
	// Data: src, seq.
	KindBroadcastDropped = "broadcast_dropped"
	// KindFrameDropped signals a frame dropped for an unsupported or
	// rejected reason (security, extended header, ...).
	// Data: reason.
	KindFrameDropped = "frame_dropped"
	// KindRouteRecordReceived signals a concentrator recorded a source
	// route reported by a route-record command.
	// Data: originator, hops.
	KindRouteRecordReceived = "route_record_received"
	// KindNeighborAged signals a neighbor was evicted for going too
	// long without a link status beacon.
	// Data: neighbor.
	KindNeighborAged = "neighbor_aged"
)

// Event is a single diagnostic event published by the simulation.
type Event struct {
	Source string
	Kind   string
	Node   string
	Data   map[string]any
}

// Bus is a non-blocking broadcast bus. Subscribers receive events on
// buffered channels; slow subscribers miss events rather than
// blocking publishers — correct for a trace feed, where observing a
// run must never perturb it.
type Bus struct {
	mu         sync.RWMutex
	subs       map[chan Event]struct{}
	recvToSend map[<-chan Event]chan Event
}

// New creates an event bus ready for use.
func New() *Bus {
	return &Bus{
		subs:       make(map[chan Event]struct{}),
		recvToSend: make(map[<-chan Event]chan Event),
	}
}

// Publish sends an event to all subscribers. Non-blocking: a full
// subscriber channel drops the event rather than stalls the caller.
// Safe to call on a nil receiver.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe returns a channel that receives published events. The
// caller must eventually call Unsubscribe.
func (b *Bus) Subscribe(bufSize int) <-chan Event {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[ch] = struct{}{}
	b.recvToSend[ch] = ch
	return ch
}

// Unsubscribe removes a subscription and closes its channel. Safe to
// call with an already-unsubscribed channel.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sendCh, ok := b.recvToSend[ch]
	if !ok {
		return
	}
	delete(b.subs, sendCh)
	delete(b.recvToSend, ch)
	close(sendCh)
}

// SubscriberCount returns the number of active subscribers. Safe on a
// nil receiver.
func (b *Bus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
