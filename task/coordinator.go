package task

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/volaas/volauth"
)

// DefaultRetention is how long terminal tasks stay queryable before the
// sweeper drops them.
const DefaultRetention = time.Hour

// Fn is the unit of work a task runs. The returned value becomes the
// task's result.
type Fn func(ctx context.Context) (interface{}, error)

// record pairs the task state with its completion channel. The channel is
// closed exactly once, when the task reaches a terminal state.
type record struct {
	task Task
	done chan struct{}
}

// Coordinator runs management mutations asynchronously. Each submission
// returns a Queued task handle at once; the mutation transitions it to
// Running and then to a terminal state. Started mutations are never
// aborted; the coordinator only reports outcomes.
type Coordinator struct {
	log   *zap.Logger
	idgen volauth.IDGenerator
	clock clock.Clock

	retention time.Duration

	mu    sync.RWMutex
	tasks map[volauth.ID]*record

	wg   sync.WaitGroup
	done chan struct{}
	once sync.Once
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithClock sets the clock used for timestamps and retention sweeps.
func WithClock(c clock.Clock) CoordinatorOption {
	return func(co *Coordinator) {
		co.clock = c
	}
}

// WithRetention sets how long terminal tasks are retained.
func WithRetention(d time.Duration) CoordinatorOption {
	return func(co *Coordinator) {
		co.retention = d
	}
}

// WithIDGenerator sets the task ID generator.
func WithIDGenerator(g volauth.IDGenerator) CoordinatorOption {
	return func(co *Coordinator) {
		co.idgen = g
	}
}

// NewCoordinator creates a coordinator and starts its retention sweeper.
func NewCoordinator(log *zap.Logger, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		log:       log,
		idgen:     volauth.NewIDGenerator(),
		clock:     clock.New(),
		retention: DefaultRetention,
		tasks:     map[volauth.ID]*record{},
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.wg.Add(1)
	go c.sweep()

	return c
}

// Submit registers a task and starts fn in its own goroutine. The
// returned handle is a snapshot in the Queued state.
func (c *Coordinator) Submit(ctx context.Context, kind string, fn Fn) *Task {
	r := &record{
		task: Task{
			ID:        c.idgen.ID(),
			Kind:      kind,
			Status:    StatusQueued,
			CreatedAt: c.clock.Now().UTC(),
		},
		done: make(chan struct{}),
	}

	c.mu.Lock()
	c.tasks[r.task.ID] = r
	c.mu.Unlock()

	snapshot := r.task

	c.wg.Add(1)
	go c.run(r, fn)

	return &snapshot
}

func (c *Coordinator) run(r *record, fn Fn) {
	defer c.wg.Done()

	c.transition(r, func(t *Task) {
		t.Status = StatusRunning
		t.StartedAt = c.clock.Now().UTC()
	})

	// Management mutations run detached from the submitting request's
	// lifetime.
	result, err := fn(context.Background())

	c.transition(r, func(t *Task) {
		t.FinishedAt = c.clock.Now().UTC()
		if err != nil {
			t.Status = StatusFailed
			t.Error = err.Error()
			return
		}
		t.Status = StatusSucceeded
		t.Result = result
	})
	close(r.done)

	if err != nil {
		c.log.Info("management task failed",
			zap.String("task", string(r.task.ID)),
			zap.String("kind", r.task.Kind),
			zap.Error(err))
		return
	}
	c.log.Debug("management task succeeded",
		zap.String("task", string(r.task.ID)),
		zap.String("kind", r.task.Kind))
}

func (c *Coordinator) transition(r *record, fn func(*Task)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&r.task)
}

// FindTaskByID returns a snapshot of a single task.
func (c *Coordinator) FindTaskByID(ctx context.Context, id volauth.ID) (*Task, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	snapshot := r.task
	return &snapshot, nil
}

// FindTasks returns snapshots of tasks matching filter.
func (c *Coordinator) FindTasks(ctx context.Context, filter TaskFilter) ([]*Task, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ts := []*Task{}
	for _, r := range c.tasks {
		if filter.Kind != nil && r.task.Kind != *filter.Kind {
			continue
		}
		if filter.Status != nil && r.task.Status != *filter.Status {
			continue
		}
		snapshot := r.task
		ts = append(ts, &snapshot)
	}
	return ts, nil
}

// WaitForTask blocks until the task reaches a terminal state or ctx ends,
// and returns the final snapshot.
func (c *Coordinator) WaitForTask(ctx context.Context, id volauth.ID) (*Task, error) {
	c.mu.RLock()
	r, ok := c.tasks[id]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrTaskNotFound
	}

	select {
	case <-r.done:
		return c.FindTaskByID(ctx, id)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Acknowledge drops a terminal task before its retention window expires.
func (c *Coordinator) Acknowledge(ctx context.Context, id volauth.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	if !r.task.Status.Terminal() {
		return ErrTaskNotTerminal
	}
	delete(c.tasks, id)
	return nil
}

// Close stops the sweeper and waits for in-flight tasks.
func (c *Coordinator) Close() {
	c.once.Do(func() {
		close(c.done)
	})
	c.wg.Wait()
}

func (c *Coordinator) sweep() {
	defer c.wg.Done()

	ticker := c.clock.Ticker(c.retention / 4)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			cutoff := c.clock.Now().UTC().Add(-c.retention)
			c.mu.Lock()
			for id, r := range c.tasks {
				if r.task.Status.Terminal() && r.task.FinishedAt.Before(cutoff) {
					delete(c.tasks, id)
				}
			}
			c.mu.Unlock()
		}
	}
}
