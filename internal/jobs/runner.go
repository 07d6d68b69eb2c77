// Package jobs runs engine operations on a background worker and reports
// how they ended, so that the goroutine owning the live model never blocks
// on the file system or the network.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kurobon/modelrepo/internal/repo"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("job runner is closed")

// Job is one unit of background work.
type Job struct {
	Name string
	Repo *repo.Handle
	Run  func(ctx context.Context) error
}

// Result reports a finished job.
type Result struct {
	Job      Job
	Err      error
	Duration time.Duration
}

// Runner executes jobs one at a time in submission order.
type Runner struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	queue   chan Job
	results chan Result
	done    chan struct{}
}

// Option configures a Runner.
type Option func(*runnerConfig)

type runnerConfig struct {
	queueSize  int
	resultSize int
}

// WithQueueSize bounds the number of jobs waiting to run.
func WithQueueSize(n int) Option {
	return func(c *runnerConfig) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithResultBuffer sets how many results may wait to be read.
func WithResultBuffer(n int) Option {
	return func(c *runnerConfig) {
		if n >= 0 {
			c.resultSize = n
		}
	}
}

// NewRunner starts the worker. Results must be drained by the caller.
func NewRunner(opts ...Option) *Runner {
	cfg := runnerConfig{queueSize: 32, resultSize: 32}
	for _, opt := range opts {
		opt(&cfg)
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		ctx:     ctx,
		cancel:  cancel,
		queue:   make(chan Job, cfg.queueSize),
		results: make(chan Result, cfg.resultSize),
		done:    make(chan struct{}),
	}
	go r.work()
	return r
}

// Submit queues j. It blocks while the queue is full.
func (r *Runner) Submit(j Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.queue <- j
	return nil
}

// Results delivers one Result per job, in submission order. It is closed
// once Close has drained the queue.
func (r *Runner) Results() <-chan Result { return r.results }

// Close stops accepting jobs, runs the ones already queued and waits for
// the worker to exit.
func (r *Runner) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
	r.cancel()
}

// Abort cancels the running job and discards queued ones.
func (r *Runner) Abort() {
	r.cancel()
	r.Close()
}

func (r *Runner) work() {
	defer close(r.done)
	defer close(r.results)
	for j := range r.queue {
		if r.ctx.Err() != nil {
			r.results <- Result{Job: j, Err: r.ctx.Err()}
			continue
		}
		r.results <- r.run(j)
	}
}

func (r *Runner) run(j Job) Result {
	start := time.Now()
	logger := log.With().Str("job", j.Name).Logger()
	if j.Repo != nil {
		logger = logger.With().Str("repo", j.Repo.Name()).Logger()
	}
	err := j.Run(r.ctx)
	res := Result{Job: j, Err: err, Duration: time.Since(start)}
	if err != nil {
		logger.Error().Err(err).Dur("took", res.Duration).Msg("job failed")
	} else {
		logger.Debug().Dur("took", res.Duration).Msg("job finished")
	}
	return res
}
