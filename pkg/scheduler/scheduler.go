// Package scheduler runs periodic tasks without overlap.
//
// Every task is a two-state machine: a tick starts a run only while the task is
// Idle, a tick arriving while it is Running is dropped.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raykavin/dexwatch/pkg/core"
	"github.com/raykavin/dexwatch/pkg/logger"
)

// State of a task
type State int32

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// Func is one run of a periodic task
type Func func(ctx context.Context) error

// Recorder observes task runs
type Recorder interface {
	ObserveSweep(task string, duration time.Duration, err error)
	TickDropped(task string)
}

type noopRecorder struct{}

func (noopRecorder) ObserveSweep(string, time.Duration, error) {}
func (noopRecorder) TickDropped(string)                        {}

// Task is a registered periodic function
type Task struct {
	name       string
	interval   time.Duration
	fn         Func
	runOnStart bool
	state      atomic.Int32
}

func (t *Task) Name() string { return t.name }

func (t *Task) State() State { return State(t.state.Load()) }

// TaskOption configures a task at registration
type TaskOption func(*Task)

// RunOnStart fires the first tick as soon as the scheduler starts
func RunOnStart(enabled bool) TaskOption {
	return func(t *Task) {
		t.runOnStart = enabled
	}
}

// Scheduler owns the periodic tasks and their goroutines
type Scheduler struct {
	log      logger.Logger
	recorder Recorder

	mu      sync.Mutex
	tasks   map[string]*Task
	order   []string
	ctx     context.Context
	cancel  context.CancelFunc
	loops   sync.WaitGroup
	running sync.WaitGroup
}

type Option func(*Scheduler)

// WithRecorder reports runs and dropped ticks to recorder
func WithRecorder(recorder Recorder) Option {
	return func(s *Scheduler) {
		if recorder != nil {
			s.recorder = recorder
		}
	}
}

func New(log logger.Logger, options ...Option) *Scheduler {
	s := &Scheduler{
		log:      log,
		recorder: noopRecorder{},
		tasks:    make(map[string]*Task),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Register adds a periodic task. It must be called before Start.
func (s *Scheduler) Register(name string, interval time.Duration, fn Func, options ...TaskOption) error {
	if interval <= 0 {
		return fmt.Errorf("%w: task %s interval must be positive", core.ErrConfig, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		return fmt.Errorf("scheduler already started, cannot register %s", name)
	}
	if _, ok := s.tasks[name]; ok {
		return fmt.Errorf("%w: task %s already registered", core.ErrConfig, name)
	}

	task := &Task{name: name, interval: interval, fn: fn}
	for _, option := range options {
		option(task)
	}

	s.tasks[name] = task
	s.order = append(s.order, name)
	return nil
}

// Tasks returns the registered tasks in registration order
func (s *Scheduler) Tasks() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := make([]*Task, 0, len(s.order))
	for _, name := range s.order {
		tasks = append(tasks, s.tasks[name])
	}
	return tasks
}

// Start launches one ticking loop per task. The loops end when ctx is done or
// Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	for _, name := range s.order {
		task := s.tasks[name]
		s.loops.Add(1)
		go s.loop(task)
	}
}

// Stop ends every loop and waits for in-flight runs to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.mu.Unlock()

	s.loops.Wait()
	s.running.Wait()
}

// Trigger fires a tick of the named task out of schedule. It reports whether a
// run started, false when the task is unknown, not started or still running.
func (s *Scheduler) Trigger(name string) bool {
	s.mu.Lock()
	task, ok := s.tasks[name]
	started := s.ctx != nil
	s.mu.Unlock()

	if !ok || !started {
		return false
	}
	return s.tick(task)
}

func (s *Scheduler) loop(task *Task) {
	defer s.loops.Done()

	ticker := time.NewTicker(task.interval)
	defer ticker.Stop()

	log := s.log.WithFields(map[string]any{
		"task":     task.name,
		"interval": task.interval.String(),
	})
	log.Info("task scheduled")

	if task.runOnStart {
		s.tick(task)
	}

	for {
		select {
		case <-s.ctx.Done():
			log.Debug("task loop stopped")
			return
		case <-ticker.C:
			s.tick(task)
		}
	}
}

// tick starts a run of task unless it is still running. No run starts after
// Stop has cancelled the scheduler.
func (s *Scheduler) tick(task *Task) bool {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}

	if !task.state.CompareAndSwap(int32(Idle), int32(Running)) {
		s.mu.Unlock()
		s.recorder.TickDropped(task.name)
		s.log.WithField("task", task.name).Warn("previous run still in progress, tick dropped")
		return false
	}

	s.running.Add(1)
	s.mu.Unlock()

	go s.run(task)
	return true
}

func (s *Scheduler) run(task *Task) {
	defer s.running.Done()
	defer task.state.Store(int32(Idle))

	log := s.log.WithField("task", task.name)
	start := time.Now()

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}

		duration := time.Since(start)
		s.recorder.ObserveSweep(task.name, duration, err)

		if err != nil {
			log.WithError(err).Error("task run failed")
			return
		}
		log.WithField("duration", duration.String()).Debug("task run finished")
	}()

	err = task.fn(s.ctx)
}
