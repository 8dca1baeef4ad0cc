// Package enrich runs the profile enrichment tasks against a text-generation
// backend and folds their independent results into one EnrichedProfile.
package enrich

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Request is one text-generation call.
type Request struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// Generator is the text-generation capability used by every task.
//
// Implementations return a *GenerationError on network, auth, quota or
// malformed-response failures.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// ErrTimeoutExceeded marks a task whose budget elapsed before the backend answered.
var ErrTimeoutExceeded = errors.New("timeout exceeded")

// GenerationError is a remote text-generation failure.
type GenerationError struct {
	Provider string
	// Code is the upstream HTTP status, 0 when the call never got a response.
	Code      int
	Transient bool
	Err       error
}

func (e *GenerationError) Error() string {
	if e == nil {
		return "generation error"
	}
	msg := "generation failed"
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	if e.Code != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GenerationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
