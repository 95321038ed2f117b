package cmdqueue

import (
	"context"
	"time"
)

// Handler processes one claimed job. It returns the JSON result to store
// on success. A *FailError marks the job failed without redelivery; any
// other error releases the job for another attempt.
type Handler func(ctx context.Context, job *Job) ([]byte, error)

// FailError is a terminal handler failure: the job is marked failed with
// the given code instead of being retried.
type FailError struct {
	Code    string
	Message string
}

func (e *FailError) Error() string { return e.Code + ": " + e.Message }

// Run polls for visible jobs and processes them one at a time. Commands
// mutate a shared document, so the runner is deliberately serial. It
// blocks until ctx is cancelled.
func (q *Queue) Run(ctx context.Context, handler Handler) {
	log := q.opts.Logger
	log.Info("cmdqueue: runner started",
		"visibility", q.opts.Visibility, "poll", q.opts.PollInterval)

	ticker := time.NewTicker(q.opts.PollInterval)
	defer ticker.Stop()
	sweeper := time.NewTicker(q.opts.SweepInterval)
	defer sweeper.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("cmdqueue: runner stopped")
			return
		case <-ticker.C:
			q.poll(ctx, handler)
		case <-sweeper.C:
			n, err := q.Sweep(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Warn("cmdqueue: sweep failed", "error", err)
				}
				continue
			}
			if n > 0 {
				log.Info("cmdqueue: swept finished jobs", "removed", n)
			}
		}
	}
}

func (q *Queue) poll(ctx context.Context, handler Handler) {
	log := q.opts.Logger
	for {
		job, err := q.Claim(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("cmdqueue: claim failed", "error", err)
			}
			return
		}
		if job == nil {
			return
		}

		if q.opts.MaxAttempts > 0 && job.Attempts > q.opts.MaxAttempts {
			log.Warn("cmdqueue: job exceeded max attempts",
				"id", job.ID, "attempts", job.Attempts)
			_ = q.Fail(ctx, job.ID, "max_attempts", "job exceeded max delivery attempts")
			continue
		}

		result, err := handler(ctx, job)
		switch e := err.(type) {
		case nil:
			if err := q.Finish(ctx, job.ID, result); err != nil {
				log.Warn("cmdqueue: finish failed", "id", job.ID, "error", err)
			}
		case *FailError:
			log.Info("cmdqueue: job failed terminally",
				"id", job.ID, "code", e.Code)
			_ = q.Fail(ctx, job.ID, e.Code, e.Message)
		default:
			log.Warn("cmdqueue: handler failed, releasing",
				"id", job.ID, "error", err)
			_ = q.Release(ctx, job.ID)
		}
	}
}
