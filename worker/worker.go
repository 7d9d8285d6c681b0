// Package worker runs pipeline jobs on a single background goroutine.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"family-atlas/model"
	"family-atlas/pipeline"
)

const (
	DefaultQueueSize = 4
	progressBuffer   = 16
)

var (
	ErrQueueFull = errors.New("worker queue full")
	ErrStopped   = errors.New("worker stopped")
	ErrJobPanic  = errors.New("job panicked")
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, source, base string, mode pipeline.Mode, notify func(pipeline.Progress)) ([]model.LocationGroup, error)
}

type Result struct {
	JobID  string
	Groups []model.LocationGroup
	Err    error
}

// Job is a queued run. Progress is delivered on a buffered channel and
// dropped when the consumer falls behind; the Result always arrives.
type Job struct {
	ID     string
	Source string
	Base   string
	Mode   pipeline.Mode

	ctx      context.Context
	cancel   context.CancelFunc
	progress chan pipeline.Progress
	done     chan Result
}

// Progress is closed once the job finishes.
func (j *Job) Progress() <-chan pipeline.Progress {
	return j.progress
}

// Done delivers exactly one Result.
func (j *Job) Done() <-chan Result {
	return j.done
}

// Cancel asks the run to stop at its next checkpoint.
func (j *Job) Cancel() {
	j.cancel()
}

// Wait blocks until the job finishes or ctx is done.
func (j *Job) Wait(ctx context.Context) (Result, error) {
	select {
	case res := <-j.done:
		return res, nil
	case <-ctx.Done():
		return Result{JobID: j.ID}, ctx.Err()
	}
}

func (j *Job) publish(p pipeline.Progress) {
	select {
	case j.progress <- p:
	default:
	}
}

func (j *Job) finish(res Result) {
	close(j.progress)
	j.done <- res
	close(j.done)
	j.cancel()
}

// Worker owns one goroutine that processes jobs in submission order.
type Worker struct {
	runner Runner
	queue  chan *Job
	log    *zap.Logger

	// mu orders Submit against shutdown so no job lands in the queue
	// after the final drain.
	mu      sync.Mutex
	stopped bool
}

func New(runner Runner, queueSize int, log *zap.Logger) *Worker {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{
		runner: runner,
		queue:  make(chan *Job, queueSize),
		log:    log,
	}
}

// Start launches the worker goroutine. It exits when ctx is cancelled,
// failing any jobs still queued.
func (w *Worker) Start(ctx context.Context) {
	go w.loop(ctx)
}

// Submit queues a run without blocking. The job's context derives from
// ctx, so cancelling ctx cancels the job. Once the worker has stopped it
// returns ErrStopped.
func (w *Worker) Submit(ctx context.Context, source, base string, mode pipeline.Mode) (*Job, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		w.log.Warn("worker stopped, rejecting job", zap.String("source", source))
		return nil, ErrStopped
	}

	jobCtx, cancel := context.WithCancel(ctx)
	job := &Job{
		ID:       uuid.NewString(),
		Source:   source,
		Base:     base,
		Mode:     mode,
		ctx:      jobCtx,
		cancel:   cancel,
		progress: make(chan pipeline.Progress, progressBuffer),
		done:     make(chan Result, 1),
	}

	select {
	case w.queue <- job:
		w.log.Info("job queued",
			zap.String("job_id", job.ID),
			zap.String("source", source),
			zap.String("mode", string(mode)),
		)
		return job, nil
	default:
		cancel()
		w.log.Warn("worker queue full, rejecting job", zap.String("source", source))
		return nil, ErrQueueFull
	}
}

func (w *Worker) loop(ctx context.Context) {
	for {
		if err := ctx.Err(); err != nil {
			w.stop(err)
			return
		}
		select {
		case <-ctx.Done():
			w.stop(ctx.Err())
			return
		case job := <-w.queue:
			w.process(job)
		}
	}
}

// stop rejects further submissions and fails every job still queued.
func (w *Worker) stop(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	for {
		select {
		case job := <-w.queue:
			job.finish(Result{JobID: job.ID, Err: fmt.Errorf("%w: %w", ErrStopped, err)})
		default:
			return
		}
	}
}

func (w *Worker) process(job *Job) {
	start := time.Now()
	w.log.Info("job started",
		zap.String("job_id", job.ID),
		zap.String("source", job.Source),
		zap.String("base", job.Base),
	)

	groups, err := w.run(job)

	w.log.Info("job finished",
		zap.String("job_id", job.ID),
		zap.Int("locations", len(groups)),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err),
	)
	job.finish(Result{JobID: job.ID, Groups: groups, Err: err})
}

// run calls the runner, recovering a panic into an error so the worker
// goroutine survives.
func (w *Worker) run(job *Job) (groups []model.LocationGroup, err error) {
	defer func() {
		if v := recover(); v != nil {
			w.log.Error("panic recovered",
				zap.Any("error", v),
				zap.String("job_id", job.ID),
				zap.Time("timestamp", time.Now()),
			)
			groups, err = nil, fmt.Errorf("%w: %v", ErrJobPanic, v)
		}
	}()
	if err := job.ctx.Err(); err != nil {
		return nil, err
	}
	return w.runner.Run(job.ctx, job.Source, job.Base, job.Mode, job.publish)
}
