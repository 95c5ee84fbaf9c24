package njs

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cryguy/njs/internal/core"
	"github.com/cryguy/njs/internal/eventloop"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrQueueClosed is returned by Post after Close.
	ErrQueueClosed = errors.New("njs: work queue closed")

	// ErrTaskPanicked is reported through TaskData.Err when OnWork panics.
	ErrTaskPanicked = errors.New("njs: task work panicked")
)

// Task is a unit of asynchronous work. OnWork runs on a worker goroutine
// and must not touch the VM. OnDone and then OnDestroy run on the VM
// goroutine inside a fresh handle scope. If the queue closes before the
// completion is delivered, only OnDestroy runs.
type Task interface {
	OnWork()
	OnDone(ctx core.Context, data *TaskData)
	OnDestroy(ctx core.Context)
}

// TaskSlot indexes the values a task keeps alive across the async gap.
type TaskSlot int

const (
	TaskCallback TaskSlot = iota
	TaskExports
	TaskParams
	TaskCustom

	taskSlotCount
)

// TaskData holds persistent handles for a task. It is reset after
// OnDestroy.
type TaskData struct {
	slots [taskSlotCount]Persistent
	err   error
}

// NewTaskData returns empty task data.
func NewTaskData() *TaskData { return &TaskData{} }

// Set stores v in slot. Must run on the VM goroutine.
func (d *TaskData) Set(ctx core.Context, slot TaskSlot, v Value) {
	d.slots[slot].MakePersistent(ctx, v)
}

// Get returns a local handle to the value in slot, empty if unset.
func (d *TaskData) Get(slot TaskSlot) Value { return d.slots[slot].MakeLocal() }

func (d *TaskData) Callback() Value { return d.Get(TaskCallback) }

// Err reports how OnWork failed, wrapping ErrTaskPanicked if it panicked.
// Valid in OnDone.
func (d *TaskData) Err() error { return d.err }

// Reset releases every slot. The queue calls it after OnDestroy.
func (d *TaskData) Reset() {
	for i := range d.slots {
		d.slots[i].Reset()
	}
}

// WorkQueue runs task work on a bounded pool of goroutines and delivers
// completions through an event loop drained by the VM goroutine.
type WorkQueue struct {
	loop   *eventloop.EventLoop
	group  errgroup.Group
	closed atomic.Bool
	posted atomic.Int64
}

// NewWorkQueue creates a queue running at most workers OnWork calls at a
// time. workers <= 0 means no limit.
func NewWorkQueue(workers int) *WorkQueue {
	q := &WorkQueue{loop: eventloop.New()}
	if workers > 0 {
		q.group.SetLimit(workers)
	}
	return q
}

// Post schedules t. It may block while all workers are busy. The returned
// id identifies the task in logs.
func (q *WorkQueue) Post(t Task, data *TaskData) (string, error) {
	if q.closed.Load() {
		return "", ErrQueueClosed
	}
	if data == nil {
		data = NewTaskData()
	}
	id := uuid.NewString()
	q.loop.Add(id)
	q.posted.Add(1)

	q.group.Go(func() error {
		start := time.Now()
		data.err = q.work(id, t)
		log.WithFields(log.Fields{"task": id, "took": time.Since(start)}).Debug("njs: task work done")
		q.loop.Complete(&eventloop.Completion{
			ID: id,
			Run: func(ctx core.Context) {
				defer data.Reset()
				t.OnDone(ctx, data)
				t.OnDestroy(ctx)
			},
			Discard: func(ctx core.Context) {
				defer data.Reset()
				t.OnDestroy(ctx)
			},
		})
		return nil
	})
	return id, nil
}

func (q *WorkQueue) work(id string, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{"task": id, "panic": fmt.Sprint(r)}).Error("njs: task work panicked")
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	t.OnWork()
	return nil
}

// Drain runs completions on the calling goroutine, which must own ctx,
// until nothing is in flight or the deadline passes. Returns the number
// of completions run.
func (q *WorkQueue) Drain(ctx core.Context, deadline time.Time) int {
	return q.loop.Drain(ctx, deadline)
}

// Pending reports whether tasks are in flight or awaiting delivery.
func (q *WorkQueue) Pending() bool { return q.loop.HasPending() }

// Posted returns the number of tasks posted since creation.
func (q *WorkQueue) Posted() int64 { return q.posted.Load() }

// Close stops accepting tasks and waits for running OnWork calls.
// Completions not yet drained get OnDestroy and have their data reset on
// ctx, which must be owned by the calling goroutine. With a nil ctx they
// are dropped.
func (q *WorkQueue) Close(ctx core.Context) error {
	q.closed.Store(true)
	err := q.group.Wait()
	if ctx != nil {
		if n := q.loop.Discard(ctx); n > 0 {
			log.WithField("tasks", n).Warn("njs: work queue closed with undelivered completions")
		}
	} else if q.loop.HasPending() {
		log.Warn("njs: work queue closed with undelivered completions")
	}
	q.loop.Reset()
	return err
}
