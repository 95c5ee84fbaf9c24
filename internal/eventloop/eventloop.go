package eventloop

import (
	"sync"
	"time"

	"github.com/cryguy/njs/internal/core"
)

// Completion is work finished off the VM goroutine whose result must be
// delivered on it.
type Completion struct {
	ID  string
	Run func(ctx core.Context)

	// Discard, when set, releases the completion's resources if it is
	// never run. See Discard on EventLoop.
	Discard func(ctx core.Context)
}

// EventLoop tracks in-flight background work and hands completions back to
// the goroutine that owns the VM. Add and Complete may be called from any
// goroutine; Drain only from the VM goroutine.
type EventLoop struct {
	mu       sync.Mutex
	inflight map[string]time.Time
	done     []*Completion
	wake     chan struct{}
}

// New creates a new EventLoop.
func New() *EventLoop {
	return &EventLoop{
		inflight: make(map[string]time.Time),
		wake:     make(chan struct{}, 1),
	}
}

// Add registers work that will later be passed to Complete.
func (el *EventLoop) Add(id string) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.inflight[id] = time.Now()
}

// Complete queues c for delivery on the VM goroutine.
func (el *EventLoop) Complete(c *Completion) {
	el.mu.Lock()
	delete(el.inflight, c.ID)
	el.done = append(el.done, c)
	el.mu.Unlock()

	select {
	case el.wake <- struct{}{}:
	default:
	}
}

// DrainCompleted runs every completion queued so far, each inside its own
// handle scope followed by a microtask checkpoint when the backend has
// one. Returns the number of completions run.
//
// A panicking completion propagates to the caller; the completions queued
// behind it are put back at the head of the queue for the next drain.
func (el *EventLoop) DrainCompleted(ctx core.Context) int {
	el.mu.Lock()
	done := el.done
	el.done = nil
	el.mu.Unlock()

	ran := 0
	defer func() {
		if ran < len(done) {
			el.requeue(done[ran+1:])
		}
	}()
	for _, c := range done {
		el.run(ctx, c)
		ran++
	}
	return ran
}

func (el *EventLoop) run(ctx core.Context, c *Completion) {
	sc := ctx.OpenScope()
	defer sc.Close()
	c.Run(ctx)
	if mt, ok := ctx.(core.MicrotaskRunner); ok {
		mt.RunMicrotasks()
	}
}

func (el *EventLoop) requeue(rest []*Completion) {
	if len(rest) == 0 {
		return
	}
	el.mu.Lock()
	el.done = append(append([]*Completion(nil), rest...), el.done...)
	el.mu.Unlock()
}

// Drain delivers completions until no work is in flight or the deadline
// passes. Completions may start new work, which is waited for as well.
// Must be called on the VM goroutine.
func (el *EventLoop) Drain(ctx core.Context, deadline time.Time) int {
	total := 0
	for {
		total += el.DrainCompleted(ctx)

		if !el.HasPending() {
			return total
		}

		wait := time.Until(deadline)
		if wait <= 0 {
			return total
		}
		timer := time.NewTimer(wait)
		select {
		case <-el.wake:
			timer.Stop()
		case <-timer.C:
			total += el.DrainCompleted(ctx)
			return total
		}
	}
}

// HasPending returns true if work is in flight or completions are queued.
func (el *EventLoop) HasPending() bool {
	el.mu.Lock()
	defer el.mu.Unlock()
	return len(el.inflight) > 0 || len(el.done) > 0
}

// InFlight returns the ids of work not yet completed, with start times.
func (el *EventLoop) InFlight() map[string]time.Time {
	el.mu.Lock()
	defer el.mu.Unlock()
	out := make(map[string]time.Time, len(el.inflight))
	for id, t := range el.inflight {
		out[id] = t
	}
	return out
}

// Discard takes every queued completion without running it and calls its
// Discard hook inside a handle scope. Returns the number discarded. Must
// be called on the VM goroutine.
func (el *EventLoop) Discard(ctx core.Context) int {
	el.mu.Lock()
	done := el.done
	el.done = nil
	el.mu.Unlock()

	for _, c := range done {
		if c.Discard == nil {
			continue
		}
		func() {
			sc := ctx.OpenScope()
			defer sc.Close()
			c.Discard(ctx)
		}()
	}
	return len(done)
}

// Reset forgets all in-flight work and queued completions.
func (el *EventLoop) Reset() {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.inflight = make(map[string]time.Time)
	el.done = nil
}
