// Package core holds the contracts shared by the batch pipeline: where jobs
// come from, how documents are turned into profile data, and where enriched
// profiles are persisted.
package core

import (
	"context"
	"errors"

	"github.com/shpitdev/profile-enricher/pkg/profile"
)

// Job is one document to enrich on behalf of a portfolio.
type Job struct {
	PortfolioID string
	Source      profile.SourceType
	// Location is a URL for scraped sources and a file path for documents.
	Location string
}

// JobSource loads the jobs for one batch run.
type JobSource interface {
	Load(ctx context.Context) ([]Job, error)
}

// Extractor turns a document location into the raw key/value document that
// profile.Normalize understands.
type Extractor interface {
	Extract(ctx context.Context, location string) (map[string]any, error)
}

// ExtractFunc adapts a function to the Extractor interface.
type ExtractFunc func(ctx context.Context, location string) (map[string]any, error)

func (f ExtractFunc) Extract(ctx context.Context, location string) (map[string]any, error) {
	return f(ctx, location)
}

// ProfileSink persists enriched profiles. It returns the stored record id.
type ProfileSink interface {
	SaveProfile(ctx context.Context, portfolioID string, p profile.EnrichedProfile) (string, error)
}

// TransientError marks an error as retryable by worker implementations.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	if e == nil || e.Err == nil {
		return "transient error"
	}
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// LimitedTransientError is retryable, but only ExtraRetries more times
// regardless of the worker's configured retry budget.
type LimitedTransientError struct {
	Err          error
	ExtraRetries int
}

func (e *LimitedTransientError) Error() string {
	if e == nil || e.Err == nil {
		return "transient error"
	}
	return e.Err.Error()
}

func (e *LimitedTransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *LimitedTransientError) MaxExtraRetries() int {
	if e == nil {
		return 0
	}
	return e.ExtraRetries
}

// Transient wraps err as a TransientError; nil stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	var te *TransientError
	if errors.As(err, &te) {
		return err
	}
	return &TransientError{Err: err}
}
