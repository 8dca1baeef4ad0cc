package enrich_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shpitdev/profile-enricher/pkg/enrich"
)

func TestRateLimitedSpacesCalls(t *testing.T) {
	t.Parallel()

	var stamps []time.Time
	base := enrich.GeneratorFunc(func(context.Context, enrich.Request) (string, error) {
		stamps = append(stamps, time.Now())
		return "ok", nil
	})
	gen := enrich.RateLimited(base, 20)

	for i := 0; i < 3; i++ {
		_, err := gen.Generate(context.Background(), enrich.Request{})
		require.NoError(t, err)
	}
	require.Len(t, stamps, 3)
	assert.GreaterOrEqual(t, stamps[2].Sub(stamps[0]), 80*time.Millisecond)
}

func TestRateLimitedDisabled(t *testing.T) {
	t.Parallel()

	base := enrich.GeneratorFunc(func(context.Context, enrich.Request) (string, error) { return "ok", nil })
	gen := enrich.RateLimited(base, 0)
	_, isFunc := gen.(enrich.GeneratorFunc)
	assert.True(t, isFunc)
}

func TestRateLimitedHonoursContext(t *testing.T) {
	t.Parallel()

	base := enrich.GeneratorFunc(func(context.Context, enrich.Request) (string, error) { return "ok", nil })
	gen := enrich.RateLimited(base, 0.001)
	_, err := gen.Generate(context.Background(), enrich.Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = gen.Generate(ctx, enrich.Request{})
	require.Error(t, err)
}

func TestTracedLogsAndRedacts(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	base := enrich.GeneratorFunc(func(_ context.Context, req enrich.Request) (string, error) {
		if req.Prompt == "fail" {
			return "", errors.New("rejected api_key=topsecret")
		}
		return "done", nil
	})
	gen := enrich.Traced(base, logger, "test-model")

	text, err := gen.Generate(context.Background(), enrich.Request{Prompt: "hello", MaxTokens: 10})
	require.NoError(t, err)
	assert.Equal(t, "done", text)

	_, err = gen.Generate(context.Background(), enrich.Request{Prompt: "fail"})
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, "generation request")
	assert.Contains(t, out, "model=test-model")
	assert.Contains(t, out, "generation failed")
	assert.NotContains(t, out, "topsecret")
}
