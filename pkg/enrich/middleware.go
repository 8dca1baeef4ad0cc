package enrich

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/shpitdev/profile-enricher/pkg/pipeline/redact"
)

// RateLimited shares one request budget across every caller of gen.
// rps <= 0 returns gen unchanged.
func RateLimited(gen Generator, rps float64) Generator {
	if rps <= 0 {
		return gen
	}
	limiter := rate.NewLimiter(rate.Limit(rps), 1)
	return GeneratorFunc(func(ctx context.Context, req Request) (string, error) {
		if err := limiter.Wait(ctx); err != nil {
			return "", err
		}
		return gen.Generate(ctx, req)
	})
}

// Traced logs every generation call with its timing and outcome.
func Traced(gen Generator, logger *slog.Logger, model string) Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &tracedGenerator{next: gen, logger: logger, model: model}
}

type tracedGenerator struct {
	next   Generator
	logger *slog.Logger
	model  string
	calls  atomic.Int64
}

func (t *tracedGenerator) Generate(ctx context.Context, req Request) (string, error) {
	call := t.calls.Add(1)
	deadlineIn := "none"
	if d, ok := ctx.Deadline(); ok {
		deadlineIn = time.Until(d).Round(time.Millisecond).String()
	}
	t.logger.Debug("generation request",
		slog.Int64("call", call),
		slog.String("model", t.model),
		slog.Float64("temperature", float64(req.Temperature)),
		slog.Int("max_tokens", req.MaxTokens),
		slog.Int("prompt_chars", len(req.Prompt)),
		slog.String("deadline_in", deadlineIn),
	)

	start := time.Now()
	text, err := t.next.Generate(ctx, req)
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		t.logger.Warn("generation failed",
			slog.Int64("call", call),
			slog.String("model", t.model),
			slog.Duration("duration", elapsed),
			slog.String("error", redact.Secrets(err.Error())),
		)
		return text, err
	}
	t.logger.Debug("generation response",
		slog.Int64("call", call),
		slog.String("model", t.model),
		slog.Duration("duration", elapsed),
		slog.Int("response_chars", len(text)),
	)
	return text, nil
}
