package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"family-atlas/model"
	"family-atlas/pipeline"
)

type runnerFunc func(ctx context.Context, source, base string, mode pipeline.Mode, notify func(pipeline.Progress)) ([]model.LocationGroup, error)

func (f runnerFunc) Run(ctx context.Context, source, base string, mode pipeline.Mode, notify func(pipeline.Progress)) ([]model.LocationGroup, error) {
	return f(ctx, source, base, mode, notify)
}

func wait(t *testing.T, job *Job) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := job.Wait(ctx)
	if err != nil {
		t.Fatalf("job %s did not finish: %v", job.ID, err)
	}
	return res
}

func TestWorkerRunsJob(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, source, base string, mode pipeline.Mode, notify func(pipeline.Progress)) ([]model.LocationGroup, error) {
		if source != "/in" || base != "/lib" || mode != pipeline.ModeFull {
			t.Errorf("unexpected arguments %s %s %s", source, base, mode)
		}
		notify(pipeline.Progress{Percent: 10, State: pipeline.StateFiltering})
		notify(pipeline.Progress{Percent: 100, State: pipeline.StateComplete})
		return []model.LocationGroup{model.NewLocationGroup("2021", "Home", "/lib/Photos/2021/Home", model.Coordinates{})}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := New(runner, 1, zaptest.NewLogger(t))
	w.Start(ctx)

	job, err := w.Submit(ctx, "/in", "/lib", pipeline.ModeFull)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.ID == "" {
		t.Fatal("expected a job id")
	}

	var percents []int
	for p := range job.Progress() {
		percents = append(percents, p.Percent)
	}
	if len(percents) != 2 || percents[0] != 10 || percents[1] != 100 {
		t.Errorf("progress = %v", percents)
	}

	res := wait(t, job)
	if res.Err != nil || res.JobID != job.ID || len(res.Groups) != 1 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestWorkerQueueFull(t *testing.T) {
	w := New(runnerFunc(func(context.Context, string, string, pipeline.Mode, func(pipeline.Progress)) ([]model.LocationGroup, error) {
		return nil, nil
	}), 1, zaptest.NewLogger(t))

	// Not started, so the queue never drains.
	if _, err := w.Submit(context.Background(), "a", "b", pipeline.ModeFull); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if _, err := w.Submit(context.Background(), "a", "b", pipeline.ModeFull); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestWorkerCancelJob(t *testing.T) {
	started := make(chan struct{})
	runner := runnerFunc(func(ctx context.Context, source, base string, mode pipeline.Mode, notify func(pipeline.Progress)) ([]model.LocationGroup, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := New(runner, 1, zaptest.NewLogger(t))
	w.Start(ctx)

	job, err := w.Submit(ctx, "/in", "/lib", pipeline.ModeFull)
	if err != nil {
		t.Fatal(err)
	}
	<-started
	job.Cancel()

	if res := wait(t, job); !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", res.Err)
	}
}

func TestWorkerRecoversPanic(t *testing.T) {
	calls := 0
	runner := runnerFunc(func(ctx context.Context, source, base string, mode pipeline.Mode, notify func(pipeline.Progress)) ([]model.LocationGroup, error) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		return nil, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := New(runner, 2, zaptest.NewLogger(t))
	w.Start(ctx)

	first, err := w.Submit(ctx, "/a", "/lib", pipeline.ModeFull)
	if err != nil {
		t.Fatal(err)
	}
	if res := wait(t, first); !errors.Is(res.Err, ErrJobPanic) {
		t.Fatalf("expected ErrJobPanic, got %v", res.Err)
	}

	second, err := w.Submit(ctx, "/b", "/lib", pipeline.ModeScanOnly)
	if err != nil {
		t.Fatal(err)
	}
	if res := wait(t, second); res.Err != nil {
		t.Fatalf("worker should survive a panic, got %v", res.Err)
	}
}

func TestWorkerStopFailsQueuedJobs(t *testing.T) {
	w := New(runnerFunc(func(context.Context, string, string, pipeline.Mode, func(pipeline.Progress)) ([]model.LocationGroup, error) {
		t.Error("runner must not be called after shutdown")
		return nil, nil
	}), 2, zaptest.NewLogger(t))

	job, err := w.Submit(context.Background(), "/in", "/lib", pipeline.ModeFull)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Start(ctx)

	if res := wait(t, job); !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("expected queued job to fail with context.Canceled, got %v", res.Err)
	}
}

func TestWorkerSubmitAfterStop(t *testing.T) {
	w := New(runnerFunc(func(context.Context, string, string, pipeline.Mode, func(pipeline.Progress)) ([]model.LocationGroup, error) {
		t.Error("runner must not be called after shutdown")
		return nil, nil
	}), 2, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	cancel()

	deadline := time.Now().Add(5 * time.Second)
	for {
		job, err := w.Submit(context.Background(), "/in", "/lib", pipeline.ModeFull)
		if errors.Is(err, ErrStopped) {
			if job != nil {
				t.Fatal("expected no job once stopped")
			}
			break
		}
		if err != nil {
			t.Fatalf("unexpected error %v", err)
		}
		// Accepted before the loop noticed the cancellation: it must
		// still be finished by the final drain.
		if res := wait(t, job); !errors.Is(res.Err, ErrStopped) {
			t.Fatalf("expected a queued job to fail with ErrStopped, got %v", res.Err)
		}
		if time.Now().After(deadline) {
			t.Fatal("worker never reported stopped")
		}
	}
}
