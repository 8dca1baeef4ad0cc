package worker_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shpitdev/profile-enricher/pkg/pipeline/core"
	"github.com/shpitdev/profile-enricher/pkg/pipeline/worker"
	"github.com/shpitdev/profile-enricher/pkg/profile"
)

func job(id string) core.Job {
	return core.Job{PortfolioID: id, Source: profile.SourcePDF, Location: id + ".pdf"}
}

func fastRetry(retries int) worker.Options {
	return worker.Options{
		Workers:        1,
		MaxRetries:     retries,
		FailurePolicy:  worker.FailurePolicyPartialOutput,
		RequestTimeout: time.Second,
		BackoffInitial: time.Millisecond,
		BackoffMax:     2 * time.Millisecond,
	}
}

func TestProcessAll_RetriesTransient(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	fn := func(_ context.Context, j core.Job) (string, error) {
		if calls.Add(1) <= 2 {
			return "", &core.TransientError{Err: errors.New("browser not ready")}
		}
		return "saved:" + j.PortfolioID, nil
	}

	var logs bytes.Buffer
	opts := fastRetry(3)
	opts.Logger = slog.New(slog.NewTextHandler(&logs, nil))

	out, err := worker.ProcessAll(context.Background(), []core.Job{job("p1")}, fn, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].Err != nil || out[0].Output != "saved:p1" {
		t.Fatalf("unexpected output: %#v", out)
	}
	if out[0].Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", out[0].Attempts)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
	if n := strings.Count(logs.String(), "retrying transient failure"); n != 2 {
		t.Fatalf("expected 2 retry log lines, got %d:\n%s", n, logs.String())
	}
}

func TestProcessAll_DoesNotRetryPermanent(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	fn := func(context.Context, core.Job) (string, error) {
		calls.Add(1)
		return "", errors.New("unreadable pdf")
	}

	out, err := worker.ProcessAll(context.Background(), []core.Job{job("p1")}, fn, fastRetry(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].Err == nil || out[0].Err.Error() != "unreadable pdf" {
		t.Fatalf("unexpected output: %#v", out[0])
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 call, got %d", calls.Load())
	}
}

func TestProcessAll_RetryableHook(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("rate limited upstream")
	var calls atomic.Int32
	fn := func(context.Context, core.Job) (string, error) {
		calls.Add(1)
		return "", sentinel
	}

	opts := fastRetry(2)
	opts.Retryable = func(err error) bool { return errors.Is(err, sentinel) }

	out, err := worker.ProcessAll(context.Background(), []core.Job{job("p1")}, fn, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !errors.Is(out[0].Err, sentinel) {
		t.Fatalf("unexpected output: %#v", out[0])
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
}

func TestProcessAll_RespectsPerErrorRetryCap(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	fn := func(context.Context, core.Job) (string, error) {
		calls.Add(1)
		return "", &core.LimitedTransientError{Err: errors.New("navigation aborted"), ExtraRetries: 1}
	}

	out, err := worker.ProcessAll(context.Background(), []core.Job{job("p1")}, fn, fastRetry(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].Err == nil {
		t.Fatalf("expected error output, got %#v", out[0])
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls (1 initial + 1 retry), got %d", calls.Load())
	}
}

func TestProcessAll_FailFastStops(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	fn := func(_ context.Context, j core.Job) (string, error) {
		calls.Add(1)
		if j.PortfolioID == "bad" {
			return "", errors.New("boom")
		}
		t.Errorf("unexpected call for %q", j.PortfolioID)
		return "", nil
	}

	out, err := worker.ProcessAll(context.Background(), []core.Job{job("bad"), job("good")}, fn, worker.Options{
		Workers:       1,
		FailurePolicy: worker.FailurePolicyFailFast,
	})
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom error, got %v", err)
	}
	if out != nil {
		t.Fatalf("expected nil output on fail-fast, got %#v", out)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 call, got %d", calls.Load())
	}
}

func TestProcessAll_PartialOutputContinues(t *testing.T) {
	t.Parallel()

	fn := func(_ context.Context, j core.Job) (string, error) {
		if j.PortfolioID == "bad" {
			return "", errors.New("boom")
		}
		return "ok", nil
	}

	out, err := worker.ProcessAll(context.Background(), []core.Job{job("bad"), job("good")}, fn, worker.Options{Workers: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(out))
	}
	if out[0].Err == nil || out[1].Err != nil || out[1].Output != "ok" {
		t.Fatalf("unexpected outputs: %#v", out)
	}

	stats := worker.Summarize(out)
	if stats != (worker.Stats{Succeeded: 1, Failed: 1}) {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestProcessAll_AppliesRequestTimeout(t *testing.T) {
	t.Parallel()

	fn := func(ctx context.Context, _ core.Job) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	opts := fastRetry(0)
	opts.RequestTimeout = 10 * time.Millisecond

	out, err := worker.ProcessAll(context.Background(), []core.Job{job("p1")}, fn, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !errors.Is(out[0].Err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", out[0].Err)
	}
}

func TestProcessAllWithCallback_CompletesInCompletionOrder(t *testing.T) {
	t.Parallel()

	releaseSlow := make(chan struct{})
	startedSlow := make(chan struct{})
	var firstCallback atomic.Value
	firstCallback.Store("")

	fn := func(_ context.Context, j core.Job) (string, error) {
		if j.PortfolioID == "slow" {
			close(startedSlow)
			<-releaseSlow
		}
		return j.PortfolioID, nil
	}

	var mu sync.Mutex
	var seen []string
	doneErr := make(chan error, 1)
	go func() {
		_, err := worker.ProcessAllWithCallback(
			context.Background(),
			[]core.Job{job("slow"), job("fast")},
			fn,
			func(res worker.Result[core.Job, string]) error {
				mu.Lock()
				defer mu.Unlock()
				seen = append(seen, res.Input.PortfolioID)
				if len(seen) == 1 {
					firstCallback.Store(res.Input.PortfolioID)
				}
				return nil
			},
			worker.Options{Workers: 2},
		)
		doneErr <- err
	}()

	select {
	case <-startedSlow:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for slow job to start")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && firstCallback.Load().(string) != "fast" {
		time.Sleep(10 * time.Millisecond)
	}
	if got := firstCallback.Load().(string); got != "fast" {
		t.Fatalf("expected fast callback first, got %q", got)
	}

	close(releaseSlow)
	select {
	case err := <-doneErr:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for completion")
	}

	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(seen, []string{"fast", "slow"}) {
		t.Fatalf("unexpected callback order: %v", seen)
	}
}

func TestProcessAllWithCallback_CallbackErrorStopsRun(t *testing.T) {
	t.Parallel()

	callbackErr := errors.New("store unavailable")
	_, err := worker.ProcessAllWithCallback(
		context.Background(),
		[]core.Job{job("p1")},
		func(_ context.Context, j core.Job) (string, error) { return j.PortfolioID, nil },
		func(worker.Result[core.Job, string]) error { return callbackErr },
		worker.Options{Workers: 1},
	)
	if !errors.Is(err, callbackErr) {
		t.Fatalf("expected callback error, got %v", err)
	}
}
