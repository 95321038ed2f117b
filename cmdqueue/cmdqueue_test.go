package cmdqueue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/atelierink/sketchd/cmdqueue"
	"github.com/atelierink/sketchd/dbopen"
)

func newQueue(t *testing.T, opts cmdqueue.Options) *cmdqueue.Queue {
	t.Helper()
	db := dbopen.OpenMemory(t)
	q := cmdqueue.New(db, opts)
	if err := q.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return q
}

func waitStatus(t *testing.T, q *cmdqueue.Queue, id string, want cmdqueue.Status) *cmdqueue.Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job, err := q.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := q.Get(context.Background(), id)
	t.Fatalf("job %s never reached %q, last seen %+v", id, want, job)
	return nil
}

func TestEnqueueAndGet(t *testing.T) {
	q := newQueue(t, cmdqueue.Options{})
	ctx := context.Background()

	id, err := q.Enqueue(ctx, "draw a sun")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	job, err := q.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Prompt != "draw a sun" || job.Status != cmdqueue.StatusQueued {
		t.Fatalf("job = %+v", job)
	}
	if job.Attempts != 0 || !job.FinishedAt.IsZero() {
		t.Fatalf("fresh job = %+v", job)
	}

	n, err := q.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if n != 1 {
		t.Fatalf("pending = %d, want 1", n)
	}
}

func TestGet_Missing(t *testing.T) {
	q := newQueue(t, cmdqueue.Options{})
	_, err := q.Get(context.Background(), "job_missing")
	if !errors.Is(err, cmdqueue.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestClaim_Empty(t *testing.T) {
	q := newQueue(t, cmdqueue.Options{})
	job, err := q.Claim(context.Background())
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if job != nil {
		t.Fatalf("claimed %+v from an empty queue", job)
	}
}

func TestClaim_OldestFirst(t *testing.T) {
	q := newQueue(t, cmdqueue.Options{})
	ctx := context.Background()

	first, _ := q.Enqueue(ctx, "first")
	time.Sleep(2 * time.Millisecond)
	second, _ := q.Enqueue(ctx, "second")

	job, err := q.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if job == nil || job.ID != first {
		t.Fatalf("claimed %+v, want %s", job, first)
	}
	if job.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", job.Attempts)
	}

	job, err = q.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if job == nil || job.ID != second {
		t.Fatalf("claimed %+v, want %s", job, second)
	}
}

func TestClaim_VisibilityTimeout(t *testing.T) {
	q := newQueue(t, cmdqueue.Options{Visibility: 50 * time.Millisecond})
	ctx := context.Background()

	id, _ := q.Enqueue(ctx, "slow job")

	job, err := q.Claim(ctx)
	if err != nil || job == nil {
		t.Fatalf("first claim = %+v, %v", job, err)
	}

	// Claimed and within the window: invisible.
	job, err = q.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if job != nil {
		t.Fatalf("claimed hidden job %+v", job)
	}

	time.Sleep(70 * time.Millisecond)

	// Window expired: redelivered with the attempt count bumped.
	job, err = q.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if job == nil || job.ID != id {
		t.Fatalf("claimed %+v, want %s", job, id)
	}
	if job.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", job.Attempts)
	}
}

func TestFinish(t *testing.T) {
	q := newQueue(t, cmdqueue.Options{})
	ctx := context.Background()

	id, _ := q.Enqueue(ctx, "x")
	q.Claim(ctx)

	if err := q.Finish(ctx, id, []byte(`{"completed":true}`)); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	job, _ := q.Get(ctx, id)
	if job.Status != cmdqueue.StatusDone {
		t.Fatalf("status = %q, want done", job.Status)
	}
	if string(job.Result) != `{"completed":true}` {
		t.Fatalf("result = %s", job.Result)
	}
	if job.FinishedAt.IsZero() {
		t.Fatal("FinishedAt not set")
	}

	n, _ := q.Pending(ctx)
	if n != 0 {
		t.Fatalf("pending = %d, want 0", n)
	}
	// Done jobs never come back.
	if job, _ := q.Claim(ctx); job != nil {
		t.Fatalf("claimed finished job %+v", job)
	}
}

func TestFail(t *testing.T) {
	q := newQueue(t, cmdqueue.Options{})
	ctx := context.Background()

	id, _ := q.Enqueue(ctx, "x")
	q.Claim(ctx)

	if err := q.Fail(ctx, id, "validation", "empty prompt"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	job, _ := q.Get(ctx, id)
	if job.Status != cmdqueue.StatusFailed {
		t.Fatalf("status = %q, want failed", job.Status)
	}
	if job.ErrCode != "validation" || job.ErrMessage != "empty prompt" {
		t.Fatalf("error fields = %q / %q", job.ErrCode, job.ErrMessage)
	}
}

func TestRelease(t *testing.T) {
	q := newQueue(t, cmdqueue.Options{})
	ctx := context.Background()

	id, _ := q.Enqueue(ctx, "x")
	q.Claim(ctx)

	if err := q.Release(ctx, id); err != nil {
		t.Fatalf("Release: %v", err)
	}
	job, err := q.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if job == nil || job.ID != id {
		t.Fatalf("claimed %+v, want released job", job)
	}
	if job.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", job.Attempts)
	}
}

func TestRun_Success(t *testing.T) {
	q := newQueue(t, cmdqueue.Options{PollInterval: 5 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id, _ := q.Enqueue(ctx, "draw a sun")

	go q.Run(ctx, func(_ context.Context, job *cmdqueue.Job) ([]byte, error) {
		if job.Prompt != "draw a sun" {
			t.Errorf("prompt = %q", job.Prompt)
		}
		return []byte(`{"ok":true}`), nil
	})

	job := waitStatus(t, q, id, cmdqueue.StatusDone)
	if string(job.Result) != `{"ok":true}` {
		t.Fatalf("result = %s", job.Result)
	}
}

func TestRun_TerminalFailure(t *testing.T) {
	q := newQueue(t, cmdqueue.Options{PollInterval: 5 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id, _ := q.Enqueue(ctx, "nonsense")

	go q.Run(ctx, func(context.Context, *cmdqueue.Job) ([]byte, error) {
		return nil, &cmdqueue.FailError{Code: "validation", Message: "empty prompt"}
	})

	job := waitStatus(t, q, id, cmdqueue.StatusFailed)
	if job.ErrCode != "validation" {
		t.Fatalf("err code = %q", job.ErrCode)
	}
	if job.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1; terminal failures must not retry", job.Attempts)
	}
}

func TestRun_MaxAttempts(t *testing.T) {
	q := newQueue(t, cmdqueue.Options{
		Visibility:   10 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
		MaxAttempts:  2,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id, _ := q.Enqueue(ctx, "flaky")

	go q.Run(ctx, func(context.Context, *cmdqueue.Job) ([]byte, error) {
		return nil, errors.New("transient")
	})

	job := waitStatus(t, q, id, cmdqueue.StatusFailed)
	if job.ErrCode != "max_attempts" {
		t.Fatalf("err code = %q, want max_attempts", job.ErrCode)
	}
	if job.Attempts <= 2 {
		t.Fatalf("attempts = %d, want > 2", job.Attempts)
	}
}

func TestRun_SweepsFinishedJobs(t *testing.T) {
	q := newQueue(t, cmdqueue.Options{
		PollInterval:  5 * time.Millisecond,
		Retention:     time.Millisecond,
		SweepInterval: 10 * time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id, _ := q.Enqueue(ctx, "draw a sun")

	go q.Run(ctx, func(context.Context, *cmdqueue.Job) ([]byte, error) {
		return []byte(`{"ok":true}`), nil
	})

	waitStatus(t, q, id, cmdqueue.StatusDone)

	// The runner's own sweeper removes the row once retention expires.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := q.Get(ctx, id); errors.Is(err, cmdqueue.ErrNotFound) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("finished job %s never swept", id)
}

func TestSweep(t *testing.T) {
	q := newQueue(t, cmdqueue.Options{Retention: time.Millisecond})
	ctx := context.Background()

	done, _ := q.Enqueue(ctx, "done job")
	kept, _ := q.Enqueue(ctx, "still queued")
	q.Claim(ctx)
	q.Finish(ctx, done, nil)

	time.Sleep(5 * time.Millisecond)

	n, err := q.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("swept %d jobs, want 1", n)
	}
	if _, err := q.Get(ctx, done); !errors.Is(err, cmdqueue.ErrNotFound) {
		t.Fatalf("done job still present: %v", err)
	}
	if _, err := q.Get(ctx, kept); err != nil {
		t.Fatalf("queued job swept: %v", err)
	}
}
