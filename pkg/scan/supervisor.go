package scan

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Runner is one drive's supervised scan lifecycle; *Worker implements it.
type Runner interface {
	Run(ctx context.Context) error
	Stop()
	Device() string
	PID() int
	Progress() (*Progress, error)
	BadBlocks() ([]string, error)
}

// Supervisor runs one worker per drive and tracks their lifecycle. Worker
// errors are collected per drive rather than cancelling the batch: a
// scanner exiting non-zero is evidence, not an emergency.
type Supervisor struct {
	mu      sync.Mutex
	workers []Runner
	errs    map[string]error

	group *errgroup.Group
}

func NewSupervisor() *Supervisor {
	return &Supervisor{errs: map[string]error{}}
}

// Start launches every worker under supervision.
func (s *Supervisor) Start(ctx context.Context, workers []Runner) {
	s.mu.Lock()
	s.workers = workers
	s.mu.Unlock()

	s.group, ctx = errgroup.WithContext(ctx)
	for _, w := range workers {
		w := w
		s.group.Go(func() error {
			err := w.Run(ctx)
			s.mu.Lock()
			s.errs[w.Device()] = err
			s.mu.Unlock()
			// worker failure must not tear down the other drives
			return nil
		})
	}
}

// Wait blocks until every worker has exited and returns the per-drive
// errors (nil entries for clean exits).
func (s *Supervisor) Wait() map[string]error {
	if s.group != nil {
		s.group.Wait()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	errs := make(map[string]error, len(s.errs))
	for dev, err := range s.errs {
		errs[dev] = err
	}
	return errs
}

// Workers returns the supervised workers.
func (s *Supervisor) Workers() []Runner {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workers
}

// StopAll terminates every tracked worker. Used by the unified abort
// path; cancellation always covers the whole batch because all selected
// drives share one monitoring window.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	workers := s.workers
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w Runner) {
			defer wg.Done()
			w.Stop()
		}(w)
	}
	wg.Wait()
}
