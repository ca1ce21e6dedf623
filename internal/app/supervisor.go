package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"NewsForwarder/internal/config"
)

// TaskState is the lifecycle state of a supervised task.
type TaskState string

const (
	StateRunning    TaskState = "running"
	StateRestarting TaskState = "restarting"
	StateFailed     TaskState = "failed"
	StateStopped    TaskState = "stopped"
)

// Task is a long-running unit of work restarted by the Supervisor.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Supervisor keeps tasks running until the root context ends.
type Supervisor struct {
	restartDelay time.Duration
	maxRestarts  int
	logger       *slog.Logger

	mu       sync.RWMutex
	states   map[string]TaskState
	restarts map[string]int
}

// NewSupervisor applies the restart policy from cfg; zero MaxRestarts means unlimited.
func NewSupervisor(cfg config.SupervisorConfig, logger *slog.Logger) *Supervisor {
	delay := cfg.RestartDelay
	if delay <= 0 {
		delay = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		restartDelay: delay,
		maxRestarts:  cfg.MaxRestarts,
		logger:       logger,
		states:       map[string]TaskState{},
		restarts:     map[string]int{},
	}
}

// Run blocks until every task has stopped. Tasks that gave up are reported in the error.
func (s *Supervisor) Run(ctx context.Context, tasks ...Task) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, task := range tasks {
		task := task
		s.setState(task.Name, StateRunning)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.supervise(ctx, task); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (s *Supervisor) supervise(ctx context.Context, task Task) error {
	log := s.logger.With("task", task.Name)
	for {
		s.setState(task.Name, StateRunning)
		err := runGuarded(ctx, task)
		if ctx.Err() != nil {
			s.setState(task.Name, StateStopped)
			log.Info("task stopped")
			return nil
		}

		restarts := s.restartCount(task.Name)
		if s.maxRestarts > 0 && restarts >= s.maxRestarts {
			s.setState(task.Name, StateFailed)
			log.Error("task gave up", "restarts", restarts, "error", err)
			return fmt.Errorf("task %s: gave up after %d restarts: %w", task.Name, restarts, err)
		}

		log.Error("task exited, restarting", "error", err, "delay", s.restartDelay, "restarts", restarts)
		s.setState(task.Name, StateRestarting)
		s.mu.Lock()
		s.restarts[task.Name]++
		s.mu.Unlock()

		timer := time.NewTimer(s.restartDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.setState(task.Name, StateStopped)
			return nil
		case <-timer.C:
		}
	}
}

func runGuarded(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if err := task.Run(ctx); err != nil {
		return err
	}
	return errors.New("returned without error")
}

// Status reports every task state by name.
func (s *Supervisor) Status() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.states))
	for name, state := range s.states {
		out[name] = string(state)
	}
	return out
}

// Healthy is false once any task has given up.
func (s *Supervisor) Healthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, state := range s.states {
		if state == StateFailed {
			return false
		}
	}
	return true
}

func (s *Supervisor) setState(name string, state TaskState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[name] = state
}

func (s *Supervisor) restartCount(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.restarts[name]
}
