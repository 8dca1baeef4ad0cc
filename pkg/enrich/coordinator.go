package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/shpitdev/profile-enricher/pkg/profile"
)

// Options configures a Coordinator.
type Options struct {
	// TaskTimeout bounds each task individually, starting when it is dispatched.
	TaskTimeout time.Duration

	// Tasks overrides the default task set.
	Tasks []Task

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.TaskTimeout <= 0 {
		o.TaskTimeout = 30 * time.Second
	}
	if len(o.Tasks) == 0 {
		o.Tasks = DefaultTasks()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Coordinator dispatches the task set concurrently and assembles the results.
// It is safe for concurrent use; one Coordinator normally serves a whole process.
type Coordinator struct {
	gen  Generator
	opts Options
}

func NewCoordinator(gen Generator, opts Options) *Coordinator {
	return &Coordinator{gen: gen, opts: opts.withDefaults()}
}

// Enrich runs every applicable task against raw, each under its own budget
// (budget <= 0 uses the configured TaskTimeout), and returns the assembled
// profile together with the degraded task names. It never fails: late results
// are discarded and every failure is recorded as a fallback. The returned task
// names do not share storage with the profile.
func (c *Coordinator) Enrich(ctx context.Context, raw profile.RawProfile, budget time.Duration) (profile.EnrichedProfile, []profile.TaskName) {
	outcomes := c.Run(ctx, raw, budget)
	enriched := profile.Assemble(raw, outcomes)

	c.opts.Logger.Info("profile enriched",
		slog.String("source", string(raw.Source())),
		slog.Int("tasks", len(outcomes)),
		slog.Any("degraded", enriched.DegradedTasks),
	)
	return enriched, slices.Clone(enriched.DegradedTasks)
}

// Run dispatches the applicable tasks and returns one outcome per task that ran.
// Outcomes are in task-set order regardless of completion order.
func (c *Coordinator) Run(ctx context.Context, raw profile.RawProfile, budget time.Duration) []profile.Outcome {
	if budget <= 0 {
		budget = c.opts.TaskTimeout
	}

	var applicable []Task
	for _, t := range c.opts.Tasks {
		if t.Applies(raw) {
			applicable = append(applicable, t)
			continue
		}
		c.opts.Logger.Debug("enrichment task skipped", slog.String("task", string(t.Name)))
	}

	// One slot per task; each goroutine writes only its own index.
	slots := make([]profile.Outcome, len(applicable))
	var wg sync.WaitGroup
	for i, t := range applicable {
		wg.Add(1)
		go func() {
			defer wg.Done()
			slots[i] = c.runTask(ctx, t, raw, budget)
		}()
	}
	wg.Wait()

	for _, o := range slots {
		attrs := []any{
			slog.String("task", string(o.Task)),
			slog.String("status", string(o.Status)),
			slog.Duration("elapsed", o.Elapsed.Round(time.Millisecond)),
		}
		if o.Fallback() {
			c.opts.Logger.Warn("enrichment task degraded", append(attrs, slog.String("error_detail", o.ErrorDetail))...)
			continue
		}
		c.opts.Logger.Debug("enrichment task done", attrs...)
	}
	return slots
}

// runTask waits for one task until it finishes or its budget elapses. The task
// goroutine is abandoned on timeout; its buffered result is dropped.
func (c *Coordinator) runTask(ctx context.Context, t Task, raw profile.RawProfile, budget time.Duration) profile.Outcome {
	start := time.Now()
	taskCtx, cancel := context.WithTimeout(withBudget(ctx, budget), budget)
	defer cancel()

	done := make(chan profile.Outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- t.Fallback(raw, fmt.Sprintf("panic: %v", r))
			}
		}()
		out, _ := t.Run(taskCtx, c.gen, raw)
		done <- out
	}()

	var out profile.Outcome
	select {
	case out = <-done:
	case <-taskCtx.Done():
		out = t.Fallback(raw, failureDetail(taskCtx, taskCtx.Err()))
	}
	if out.Fallback() && taskCtx.Err() != nil {
		switch {
		case budgetExpired(ctx, taskCtx):
			out.ErrorDetail = timeoutDetail(taskCtx)
		case ctx.Err() != nil:
			out.ErrorDetail = "canceled: " + ctx.Err().Error()
		}
	}
	out.Task = t.Name
	out.Elapsed = time.Since(start)
	return out
}

// budgetExpired reports whether taskCtx ended because its own budget ran out
// rather than because the caller's context ended first.
func budgetExpired(parent, taskCtx context.Context) bool {
	if !errors.Is(taskCtx.Err(), context.DeadlineExceeded) || errors.Is(parent.Err(), context.Canceled) {
		return false
	}
	parentDeadline, ok := parent.Deadline()
	if !ok {
		return true
	}
	taskDeadline, _ := taskCtx.Deadline()
	return parentDeadline.After(taskDeadline)
}
