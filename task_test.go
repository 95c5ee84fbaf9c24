package njs

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/cryguy/njs/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordTask struct {
	worked    atomic.Bool
	panics    bool
	param     string
	events    []string
	err       error
	destroyed bool
}

func (t *recordTask) OnWork() {
	t.worked.Store(true)
	if t.panics {
		panic("work failed")
	}
}

func (t *recordTask) OnDone(ctx core.Context, data *TaskData) {
	t.events = append(t.events, "done")
	t.err = data.Err()
	if p := data.Get(TaskParams); p.IsValid() {
		t.param = p.String()
	}
}

func (t *recordTask) OnDestroy(ctx core.Context) {
	t.events = append(t.events, "destroy")
	t.destroyed = true
}

func TestWorkQueue_PostAndDrain(t *testing.T) {
	e := newTestEnv(t)
	q := NewWorkQueue(2)
	t.Cleanup(func() { _ = q.Close(e.vm) })

	task := &recordTask{}
	data := NewTaskData()
	data.Set(e.vm, TaskParams, e.str("payload"))
	assert.Equal(t, 1, e.vm.Stats().Persistents)

	id, err := q.Post(task, data)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.True(t, q.Pending())

	n := q.Drain(e.vm, time.Now().Add(5*time.Second))
	assert.Equal(t, 1, n)
	assert.True(t, task.worked.Load())
	assert.Equal(t, []string{"done", "destroy"}, task.events)
	assert.Equal(t, "payload", task.param)
	assert.False(t, q.Pending())

	assert.False(t, data.Get(TaskParams).IsValid())
	assert.Equal(t, 0, e.vm.Stats().Persistents)
	assert.Equal(t, int64(1), q.Posted())
}

func TestWorkQueue_ManyTasks(t *testing.T) {
	e := newTestEnv(t)
	q := NewWorkQueue(3)
	t.Cleanup(func() { _ = q.Close(e.vm) })

	tasks := make([]*recordTask, 20)
	for i := range tasks {
		tasks[i] = &recordTask{}
		_, err := q.Post(tasks[i], nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 20, q.Drain(e.vm, time.Now().Add(5*time.Second)))
	for _, task := range tasks {
		assert.True(t, task.destroyed)
	}
}

func TestWorkQueue_PanickingWorkStillCompletes(t *testing.T) {
	e := newTestEnv(t)
	q := NewWorkQueue(1)
	t.Cleanup(func() { _ = q.Close(e.vm) })

	task := &recordTask{panics: true}
	_, err := q.Post(task, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, q.Drain(e.vm, time.Now().Add(5*time.Second)))
	assert.True(t, task.destroyed)
	require.ErrorIs(t, task.err, ErrTaskPanicked)
	assert.Contains(t, task.err.Error(), "work failed")
}

func TestWorkQueue_SuccessfulWorkHasNoError(t *testing.T) {
	e := newTestEnv(t)
	q := NewWorkQueue(1)
	t.Cleanup(func() { _ = q.Close(e.vm) })

	task := &recordTask{}
	_, err := q.Post(task, nil)
	require.NoError(t, err)
	q.Drain(e.vm, time.Now().Add(5*time.Second))
	assert.NoError(t, task.err)
}

func TestWorkQueue_CloseDestroysUndelivered(t *testing.T) {
	e := newTestEnv(t)
	q := NewWorkQueue(2)

	task := &recordTask{}
	data := NewTaskData()
	data.Set(e.vm, TaskParams, e.str("never delivered"))
	_, err := q.Post(task, data)
	require.NoError(t, err)
	assert.Equal(t, 1, e.vm.Stats().Persistents)

	require.NoError(t, q.Close(e.vm))
	assert.True(t, task.worked.Load())
	assert.Equal(t, []string{"destroy"}, task.events)
	assert.False(t, data.Get(TaskParams).IsValid())
	assert.Equal(t, 0, e.vm.Stats().Persistents)
	assert.False(t, q.Pending())
}

func TestWorkQueue_Closed(t *testing.T) {
	q := NewWorkQueue(0)
	require.NoError(t, q.Close(nil))
	_, err := q.Post(&recordTask{}, nil)
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestWorkQueue_DrainDeadline(t *testing.T) {
	e := newTestEnv(t)
	q := NewWorkQueue(1)

	block := make(chan struct{})
	_, err := q.Post(&blockingTask{release: block}, nil)
	require.NoError(t, err)

	start := time.Now()
	assert.Equal(t, 0, q.Drain(e.vm, start.Add(50*time.Millisecond)))
	assert.True(t, q.Pending())

	close(block)
	assert.Equal(t, 1, q.Drain(e.vm, time.Now().Add(5*time.Second)))
	require.NoError(t, q.Close(e.vm))
}

type blockingTask struct {
	release chan struct{}
}

func (t *blockingTask) OnWork()                                 { <-t.release }
func (t *blockingTask) OnDone(ctx core.Context, data *TaskData) {}
func (t *blockingTask) OnDestroy(ctx core.Context)              {}
