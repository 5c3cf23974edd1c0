// Package scheduler implements the Cleanup Scheduler (spec §4.6): a
// periodic task runner that invokes plugin-supplied cleanup routines on
// fixed intervals. It is grounded on the teacher's gourdiantoken
// cleanupRotatedTokens/cleanupRevokedTokens goroutines - one ticker per
// concern, select on ctx.Done() vs ticker.C, per-run timeout context - but
// generalizes the single hard-coded pair of goroutines into a registry of
// named, plugin-supplied CleanupTask values with independent intervals.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/veyra/authcore/internal/metrics"
	"github.com/veyra/authcore/internal/orm"
)

// CleanupResult is what a task runner returns (spec §4.6).
type CleanupResult struct {
	Cleaned int
	Errors  []error
}

// CleanupTask is a plugin-registered periodic job. IntervalMs is the
// spec-required fixed-interval form (spec §4.6); Trigger is an additive
// alternative (e.g. CronTrigger) a plugin may set instead. When both are
// absent, IntervalMs defaults to one minute.
type CleanupTask struct {
	Name       string
	PluginName string
	IntervalMs int64
	Trigger    Trigger
	Enabled    bool
	Runner     func(ctx context.Context, port orm.Port, pluginConfig map[string]any) CleanupResult
}

func (t CleanupTask) trigger() Trigger {
	if t.Trigger != nil {
		return t.Trigger
	}
	interval := time.Duration(t.IntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Minute
	}
	return NewIntervalTrigger(interval)
}

// taskState tracks the last run and lifecycle of one registered task, the
// in-memory-only cleanup_task_state entity from spec §3.
type taskState struct {
	task       CleanupTask
	lastRunAt  time.Time
	cancel     context.CancelFunc
	done       chan struct{}
}

// Scheduler runs every enabled CleanupTask on its own ticker. Tasks never
// overlap with another run of the *same* task name (spec §5): each task
// owns a single goroutine that never re-enters itself.
type Scheduler struct {
	port   orm.Port
	mu     sync.Mutex
	tasks  map[string]*taskState
	configs map[string]map[string]any
	running bool
}

// New returns a Scheduler bound to port, used by every task's Runner.
func New(port orm.Port) *Scheduler {
	return &Scheduler{
		port:    port,
		tasks:   map[string]*taskState{},
		configs: map[string]map[string]any{},
	}
}

// RegisterCleanupTask adds a task. Safe to call before or after Start;
// tasks registered after Start begin immediately if the scheduler is running.
func (s *Scheduler) RegisterCleanupTask(task CleanupTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.Name] = &taskState{task: task}
	if s.running && task.Enabled {
		s.startTaskLocked(task.Name)
	}
}

// SetPluginConfig stores the per-plugin config tasks of that plugin receive
// on every run (spec §4.6: "runner(orm, pluginConfig)").
func (s *Scheduler) SetPluginConfig(pluginName string, config map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[pluginName] = config
}

// Start spawns a cooperative ticker goroutine for every enabled task.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	for name, st := range s.tasks {
		if st.task.Enabled {
			s.startTaskLocked(name)
		}
	}
}

// startTaskLocked must be called with s.mu held.
func (s *Scheduler) startTaskLocked(name string) {
	st := s.tasks[name]
	if st.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	st.cancel = cancel
	st.done = make(chan struct{})
	go s.runTaskLoop(ctx, st)
}

func (s *Scheduler) runTaskLoop(ctx context.Context, st *taskState) {
	defer close(st.done)
	trigger := st.task.trigger()

	for {
		wait := time.Until(trigger.Next(st.lastRunAt))
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.runOnce(ctx, st)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, st *taskState) {
	s.mu.Lock()
	config := s.configs[st.task.PluginName]
	s.mu.Unlock()

	runCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	result := safeRun(runCtx, st.task, s.port, config)
	st.lastRunAt = time.Now()
	metrics.CleanupTaskDuration.WithLabelValues(st.task.Name).Observe(time.Since(start).Seconds())

	outcome := "ok"
	if len(result.Errors) > 0 {
		outcome = "error"
		logx.Errorf("scheduler: task %q reported %d error(s): %v", st.task.Name, len(result.Errors), result.Errors)
	}
	metrics.CleanupTaskRuns.WithLabelValues(st.task.Name, outcome).Inc()
	_ = ctx
}

// safeRun invokes the runner and converts a panic into a result error, so a
// single misbehaving task can never take the scheduler down (spec §4.6:
// "task runners must swallow their own exceptions").
func safeRun(ctx context.Context, task CleanupTask, port orm.Port, config map[string]any) (result CleanupResult) {
	defer func() {
		if r := recover(); r != nil {
			result.Errors = append(result.Errors, panicError{r})
		}
	}()
	return task.Runner(ctx, port, config)
}

type panicError struct{ value any }

func (p panicError) Error() string { return "cleanup task panicked: " + toString(p.value) }

func toString(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	if s, ok := v.(string); ok {
		return s
	}
	return "unknown panic"
}

// Stop cancels every task's ticker and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	dones := make([]chan struct{}, 0, len(s.tasks))
	for _, st := range s.tasks {
		if st.cancel != nil {
			st.cancel()
			dones = append(dones, st.done)
			st.cancel = nil
		}
	}
	s.mu.Unlock()

	for _, done := range dones {
		<-done
	}
}

// IsRunning reflects scheduler state.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastRunAt returns when name last ran, for introspection/tests.
func (s *Scheduler) LastRunAt(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.tasks[name]
	if !ok || st.lastRunAt.IsZero() {
		return time.Time{}, false
	}
	return st.lastRunAt, true
}
