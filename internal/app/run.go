package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/shpitdev/profile-enricher/pkg/pipeline/core"
	"github.com/shpitdev/profile-enricher/pkg/pipeline/io/local"
	"github.com/shpitdev/profile-enricher/pkg/pipeline/redact"
	"github.com/shpitdev/profile-enricher/pkg/pipeline/worker"
	"github.com/shpitdev/profile-enricher/pkg/profile"
)

// Result is the outcome of enriching one document.
type Result struct {
	PortfolioID string
	RecordID    string
	Profile     profile.EnrichedProfile
	Degraded    []profile.TaskName
}

// RunDocument extracts, normalizes, enriches and saves one document. An empty
// PortfolioID creates a new portfolio titled after the profile.
func (a *App) RunDocument(ctx context.Context, job core.Job) (Result, error) {
	ex, ok := a.extractors[job.Source]
	if !ok {
		return Result{}, &profile.ValidationError{Field: "source_type", Value: string(job.Source), Reason: "no extractor"}
	}

	doc, err := ex.Extract(ctx, job.Location)
	if err != nil {
		return Result{}, err
	}
	raw, err := profile.Normalize(job.Source, doc)
	if err != nil {
		return Result{}, err
	}

	enriched, degraded := a.coord.Enrich(ctx, raw, a.cfg.Generation.TaskTimeout)

	portfolioID := job.PortfolioID
	created := portfolioID == ""
	if created {
		if portfolioID, err = a.store.CreatePortfolio(ctx, portfolioTitle(raw), ""); err != nil {
			return Result{}, errors.Wrap(err, "create portfolio")
		}
		a.logger.Info("portfolio created", slog.String("portfolio_id", portfolioID))
	}
	recordID, err := a.sink.SaveProfile(ctx, portfolioID, enriched)
	if err != nil {
		if created {
			// Do not leave an empty portfolio behind.
			if derr := a.store.DeletePortfolio(context.WithoutCancel(ctx), portfolioID); derr != nil {
				a.logger.Warn("portfolio cleanup failed",
					slog.String("portfolio_id", portfolioID),
					slog.String("error", redact.Secrets(derr.Error())),
				)
			}
		}
		return Result{}, errors.Wrap(err, "save profile")
	}

	return Result{
		PortfolioID: portfolioID,
		RecordID:    recordID,
		Profile:     enriched,
		Degraded:    degraded,
	}, nil
}

func portfolioTitle(raw profile.RawProfile) string {
	if v, ok := raw.Field("name"); ok {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s) + " portfolio"
		}
	}
	return "Untitled portfolio"
}

// RunBatch processes every job from src on the worker pool and streams one
// report row per job to report as jobs complete. Per-job failures are
// recorded in the report unless Batch.FailFast is set.
func (a *App) RunBatch(ctx context.Context, src core.JobSource, report io.Writer) (worker.Stats, error) {
	runID := uuid.NewString()
	logger := a.logger.With(slog.String("run", runID))
	runStart := time.Now()

	jobs, err := src.Load(ctx)
	if err != nil {
		return worker.Stats{}, err
	}
	logger.Info("batch run start",
		slog.Int("jobs", len(jobs)),
		slog.Int("workers", a.cfg.Batch.Workers),
		slog.Int("max_retries", a.cfg.Batch.MaxRetries),
		slog.Duration("request_timeout", a.cfg.Batch.RequestTimeout),
		slog.Bool("fail_fast", a.cfg.Batch.FailFast),
	)

	rw, err := local.NewReportWriter(report)
	if err != nil {
		return worker.Stats{}, errors.Wrap(err, "write report header")
	}

	policy := worker.FailurePolicyPartialOutput
	if a.cfg.Batch.FailFast {
		policy = worker.FailurePolicyFailFast
	}

	completed := 0
	results, err := worker.ProcessAllWithCallback(ctx, jobs, a.RunDocument,
		func(res worker.Result[core.Job, Result]) error {
			completed++
			row := reportRow(res)
			attrs := []any{
				slog.String("portfolio_id", row.PortfolioID),
				slog.String("status", row.Status),
				slog.Int("attempts", res.Attempts),
				slog.String("completed", fmt.Sprintf("%d/%d", completed, len(jobs))),
			}
			if res.Err != nil {
				logger.Warn("batch job failed", append(attrs, slog.String("error", row.Error))...)
			} else {
				logger.Info("batch job done", append(attrs, slog.Any("degraded", res.Output.Degraded))...)
			}
			return rw.Write(row)
		},
		worker.Options{
			Workers:           a.cfg.Batch.Workers,
			MaxRetries:        a.cfg.Batch.MaxRetries,
			RequestTimeout:    a.cfg.Batch.RequestTimeout,
			FailurePolicy:     policy,
			BackoffInitial:    500 * time.Millisecond,
			BackoffMax:        5 * time.Second,
			BackoffJitterFrac: 0.2,
			Logger:            logger,
		},
	)
	if ferr := rw.Flush(); ferr != nil && err == nil {
		err = errors.Wrap(ferr, "flush report")
	}
	if err != nil {
		return worker.Stats{}, err
	}

	stats := worker.Summarize(results)
	logger.Info("batch run complete",
		slog.Int("ok", stats.Succeeded),
		slog.Int("error", stats.Failed),
		slog.Int("retried", stats.Retried),
		slog.Duration("duration", time.Since(runStart).Round(time.Millisecond)),
	)
	return stats, nil
}

func reportRow(res worker.Result[core.Job, Result]) local.ReportRow {
	row := local.ReportRow{
		PortfolioID: res.Input.PortfolioID,
		Source:      string(res.Input.Source),
		Location:    res.Input.Location,
		Attempts:    res.Attempts,
		ElapsedMS:   res.Elapsed.Milliseconds(),
	}
	if res.Err != nil {
		row.Status = "error"
		row.Error = redact.Secrets(res.Err.Error())
		return row
	}
	row.Status = "ok"
	row.PortfolioID = res.Output.PortfolioID
	row.RecordID = res.Output.RecordID
	for _, t := range res.Output.Degraded {
		row.DegradedTasks = append(row.DegradedTasks, string(t))
	}
	return row
}
