// Package tasks bounds and tracks background work. Submission blocks on a
// weighted semaphore until a permit frees; cancellation is cooperative and
// tag-scoped, so an environment's background work can be torn down in one
// call.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/metrics"
)

// ErrSubmitTimeout signals that a submission blocked past its deadline
// because permits never freed. That usually means leaked or stuck tasks,
// which is why it is reported distinctly from ordinary busy blocking.
var ErrSubmitTimeout = errors.New("task submission timed out waiting for a permit")

// ErrClosed is returned when submitting to a closed manager.
var ErrClosed = errors.New("task manager is closed")

// Func is a cancellable unit of background work. Implementations must poll
// ctx at safe checkpoints and release held resources before returning.
type Func func(ctx context.Context) error

// Handle identifies a submitted task and lets callers wait for it.
type Handle struct {
	ID   string
	Tag  string
	done chan struct{}
	task *task
}

// Done is closed when the task finishes, whatever the outcome.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the task's result after Done is closed.
func (h *Handle) Err() error { return h.task.err }

// Wait blocks until the task completes or ctx is cancelled.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.task.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type task struct {
	id        string
	tag       string
	startedAt time.Time
	cancel    context.CancelFunc
	err       error
}

// Counters is a snapshot of task lifecycle counts.
type Counters struct {
	Created   int64 `json:"created"`
	Completed int64 `json:"completed"`
	Cancelled int64 `json:"cancelled"`
	Failed    int64 `json:"failed"`
	Active    int64 `json:"active"`
}

// Manager runs background tasks under a concurrency bound.
type Manager struct {
	sem           *semaphore.Weighted
	logger        *slog.Logger
	warnAfter     time.Duration
	sweepInterval time.Duration

	mu        sync.Mutex
	tasks     map[string]*task
	byTag     map[string]map[string]*task
	created   int64
	done      int64
	cancelled int64
	failed    int64
	closed    bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a manager allowing at most maxConcurrent tasks and
// starts the long-running-task sweep.
func NewManager(maxConcurrent int64, warnAfter, sweepInterval time.Duration, logger *slog.Logger) *Manager {
	if maxConcurrent <= 0 {
		maxConcurrent = 20
	}
	if warnAfter <= 0 {
		warnAfter = 5 * time.Minute
	}
	if sweepInterval <= 0 {
		sweepInterval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		sem:           semaphore.NewWeighted(maxConcurrent),
		logger:        logger,
		warnAfter:     warnAfter,
		sweepInterval: sweepInterval,
		tasks:         make(map[string]*task),
		byTag:         make(map[string]map[string]*task),
		ctx:           ctx,
		cancel:        cancel,
	}

	m.wg.Add(1)
	go m.sweepLoop()

	return m
}

// Submit schedules fn under the given tag, blocking until a permit frees.
// This is the only suspension point: once fn starts it is never blocked by
// the manager. A ctx deadline hit while waiting yields ErrSubmitTimeout.
func (m *Manager) Submit(ctx context.Context, tag string, fn Func) (*Handle, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	m.mu.Unlock()

	if err := m.sem.Acquire(ctx, 1); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: tag=%s", ErrSubmitTimeout, tag)
		}
		return nil, fmt.Errorf("submit task tag=%s: %w", tag, err)
	}

	taskCtx, taskCancel := context.WithCancel(m.ctx)
	t := &task{
		id:        uuid.New().String(),
		tag:       tag,
		startedAt: time.Now(),
		cancel:    taskCancel,
	}
	h := &Handle{ID: t.id, Tag: tag, done: make(chan struct{}), task: t}

	m.mu.Lock()
	m.tasks[t.id] = t
	if m.byTag[tag] == nil {
		m.byTag[tag] = make(map[string]*task)
	}
	m.byTag[tag][t.id] = t
	m.created++
	m.mu.Unlock()

	metrics.TasksActive.Inc()
	metrics.TasksTotal.WithLabelValues("created").Inc()

	m.wg.Add(1)
	go func() {
		// Self-deregistration happens on every outcome, like scoped
		// cleanup: the permit, registry entry, and context are all
		// released even if fn panicked its way into an error return.
		defer func() {
			taskCancel()
			m.deregister(t)
			m.sem.Release(1)
			metrics.TasksActive.Dec()
			close(h.done)
			m.wg.Done()
		}()

		t.err = fn(taskCtx)
		m.record(t)
	}()

	return h, nil
}

// CancelTag requests cooperative cancellation of every task under the tag.
// Tasks decide when to observe the signal; nothing is force-killed.
func (m *Manager) CancelTag(tag string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, t := range m.byTag[tag] {
		t.cancel()
		n++
	}
	if n > 0 {
		m.logger.Info("cancellation requested", "tag", tag, "tasks", n)
	}
	return n
}

// Cancel requests cancellation of a single task by id.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return false
	}
	t.cancel()
	return true
}

// Counters returns a snapshot of the lifecycle counters.
func (m *Manager) Counters() Counters {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Counters{
		Created:   m.created,
		Completed: m.done,
		Cancelled: m.cancelled,
		Failed:    m.failed,
		Active:    int64(len(m.tasks)),
	}
}

// Close stops the sweep, cancels all running tasks, and waits for them.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
}

func (m *Manager) record(t *task) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case t.err == nil:
		m.done++
		metrics.TasksTotal.WithLabelValues("completed").Inc()
	case errors.Is(t.err, context.Canceled):
		m.cancelled++
		metrics.TasksTotal.WithLabelValues("cancelled").Inc()
		m.logger.Debug("task cancelled", "task_id", t.id, "tag", t.tag)
	default:
		m.failed++
		metrics.TasksTotal.WithLabelValues("failed").Inc()
		m.logger.Error("task failed",
			"task_id", t.id,
			"tag", t.tag,
			"error", t.err,
		)
	}
}

func (m *Manager) deregister(t *task) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.tasks, t.id)
	if tagged := m.byTag[t.tag]; tagged != nil {
		delete(tagged, t.id)
		if len(tagged) == 0 {
			delete(m.byTag, t.tag)
		}
	}
}

// sweepLoop periodically flags tasks running past the warning threshold.
// The sweep only logs; it never force-kills.
func (m *Manager) sweepLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for _, t := range m.tasks {
		if age := now.Sub(t.startedAt); age > m.warnAfter {
			m.logger.Warn("task running past warning threshold",
				"task_id", t.id,
				"tag", t.tag,
				"running_for", age.Round(time.Second).String(),
			)
		}
	}
}
