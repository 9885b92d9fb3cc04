// Package scheduler runs the engine's cooperative background timers: funding
// updates, reserve convergence, fee accrual, liquidation sweeps, limit-order
// and trigger scans, and the OHLCV rollup. Every job is a named, independently
// intervalled ticker loop recovered from panics so one misbehaving job never
// takes the process down with it.
package scheduler

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rtxlabs/vperp/logging"
)

// Job is one periodic unit of work. ctx is cancelled when the Supervisor
// stops; Run should return promptly once it observes cancellation.
type Job struct {
	Name     string
	Interval time.Duration
	// Jitter adds up to this much random delay once, before the job's
	// ticker starts, spreading jobs that share an interval across time.
	Jitter time.Duration
	Run    func(ctx context.Context)
}

// Supervisor owns a set of Jobs and runs each on its own goroutine/ticker
// until Stop is called.
type Supervisor struct {
	log  *logging.Logger
	jobs []Job
	stop chan struct{}
	done chan struct{}
}

// New constructs a Supervisor logging through log.
func New(log *logging.Logger) *Supervisor {
	return &Supervisor{
		log:  log,
		stop: make(chan struct{}),
	}
}

// Register adds a job. Must be called before Start.
func (s *Supervisor) Register(j Job) {
	s.jobs = append(s.jobs, j)
}

// Start launches every registered job on its own goroutine.
func (s *Supervisor) Start(ctx context.Context) {
	s.done = make(chan struct{}, len(s.jobs))
	for _, j := range s.jobs {
		go s.runLoop(ctx, j)
	}
}

// Stop signals every job loop to exit and blocks until they all have.
func (s *Supervisor) Stop() {
	close(s.stop)
	for i := 0; i < len(s.jobs); i++ {
		<-s.done
	}
}

func (s *Supervisor) runLoop(ctx context.Context, j Job) {
	defer func() { s.done <- struct{}{} }()

	if j.Jitter > 0 {
		select {
		case <-time.After(time.Duration(rand.Int63n(int64(j.Jitter)))):
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		}
	}

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, j)
		}
	}
}

func (s *Supervisor) tick(ctx context.Context, j Job) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduler: job panicked", errors.New(toString(r)),
				logging.String("job", j.Name),
			)
		}
	}()
	start := time.Now()
	j.Run(ctx)
	s.log.Debug("scheduler: job tick completed",
		logging.String("job", j.Name),
		logging.String("elapsed", time.Since(start).String()),
	)
}

func toString(v interface{}) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	if s, ok := v.(string); ok {
		return s
	}
	return "non-string panic value"
}
