// Package events defines the domain events the core scheduler emits.
// Rendering and logging are consumers only; they never feed back into
// the core.
package events

import (
	channerics "github.com/niceyeti/channerics/channels"

	"github.com/gridfleet/gridfleet/fleet"
	"github.com/gridfleet/gridfleet/grid"
)

// Kind enumerates the domain event types the scheduler can emit.
type Kind int

const (
	Move Kind = iota
	Blocked
	Pickup
	Dropoff
	Yield
	RetreatKind
	Emergency
	DeadlockResolved
)

func (k Kind) String() string {
	switch k {
	case Move:
		return "MOVE"
	case Blocked:
		return "BLOCKED"
	case Pickup:
		return "PICKUP"
	case Dropoff:
		return "DROPOFF"
	case Yield:
		return "YIELD"
	case RetreatKind:
		return "RETREAT"
	case Emergency:
		return "EMERGENCY"
	case DeadlockResolved:
		return "DEADLOCK_RESOLVED"
	default:
		return "UNKNOWN"
	}
}

// Event is a single domain occurrence, timestamped by tick.
type Event struct {
	Kind    Kind
	AgentID fleet.AgentID
	From    grid.Cell
	To      grid.Cell
	Tick    int
}

// Sink receives events as the scheduler emits them. A Sink must not
// block for long — the scheduler is synchronous and a slow sink stalls
// the whole tick.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Multi fans a single emitted event out to every sink in order.
type Multi []Sink

func (m Multi) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// Recorder is a Sink that simply appends to a slice, useful for tests
// and for the dashboard's snapshot buffer.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Emit(e Event) { r.Events = append(r.Events, e) }

// Broadcaster owns a single buffered channel of emitted events and fans it
// out to one goroutine per sink via channerics.Broadcast, the same pattern
// fastview's view_builder uses to fan a view-model channel out to every
// registered view. Use it in place of Multi when sinks may be slow or want
// their own goroutine instead of running inline on the scheduler's tick.
type Broadcaster struct {
	in   chan Event
	done chan struct{}
}

// NewBroadcaster starts a Broadcaster feeding every sink from its own
// goroutine. buffer sizes the shared input channel; 0 is unbuffered.
func NewBroadcaster(buffer int, sinks ...Sink) *Broadcaster {
	b := &Broadcaster{in: make(chan Event, buffer), done: make(chan struct{})}
	outs := channerics.Broadcast(b.done, b.in, len(sinks))
	for i, sink := range sinks {
		go func(ch <-chan Event, s Sink) {
			for e := range ch {
				s.Emit(e)
			}
		}(outs[i], sink)
	}
	return b
}

// Emit enqueues e for delivery to every sink, or drops it if Close has
// already run.
func (b *Broadcaster) Emit(e Event) {
	select {
	case <-b.done:
		return
	default:
	}
	select {
	case b.in <- e:
	case <-b.done:
	}
}

// Close stops the broadcaster: it closes the shared input channel so every
// per-sink goroutine drains and exits, and signals done to unblock Emit.
func (b *Broadcaster) Close() {
	close(b.done)
	close(b.in)
}
