package enrich_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shpitdev/profile-enricher/pkg/enrich"
	"github.com/shpitdev/profile-enricher/pkg/profile"
)

func TestSplitList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "simple", in: "Go, Leadership, Team Management", want: []string{"Go", "Leadership", "Team Management"}},
		{name: "drops empties", in: " Go ,, ,SQL,", want: []string{"Go", "SQL"}},
		{name: "newlines kept inside entries", in: "Go\nRust, SQL", want: []string{"Go\nRust", "SQL"}},
		{name: "embedded commas split", in: "Hiring, Training, and Mentoring", want: []string{"Hiring", "Training", "and Mentoring"}},
		{name: "empty", in: "", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, enrich.SplitList(tt.in))
		})
	}
}

func TestDefaultTasks(t *testing.T) {
	t.Parallel()

	tasks := enrich.DefaultTasks()
	require.Len(t, tasks, 3)

	want := []struct {
		name        profile.TaskName
		temperature float32
		maxTokens   int
	}{
		{profile.TaskSummary, 0.7, 500},
		{profile.TaskSkills, 0.5, 300},
		{profile.TaskKeywords, 0.3, 200},
	}
	for i, w := range want {
		assert.Equal(t, w.name, tasks[i].Name)
		assert.InDelta(t, w.temperature, tasks[i].Temperature, 1e-6)
		assert.Equal(t, w.maxTokens, tasks[i].MaxTokens)
		assert.NotEmpty(t, tasks[i].System)
	}
}

func TestTaskRunSkipsWithoutInput(t *testing.T) {
	t.Parallel()

	called := false
	gen := enrich.GeneratorFunc(func(context.Context, enrich.Request) (string, error) {
		called = true
		return "x", nil
	})
	raw := profile.NewRawProfile(map[string]any{"name": "x"})

	for _, task := range enrich.DefaultTasks()[:2] {
		_, ok := task.Run(context.Background(), gen, raw)
		assert.False(t, ok, "task %s", task.Name)
	}
	assert.False(t, called)

	out, ok := enrich.DefaultTasks()[2].Run(context.Background(), gen, raw)
	assert.True(t, ok, "keywords always runs")
	assert.Equal(t, []string{"x"}, out.Items)
}

func TestTaskRunRedactsDetail(t *testing.T) {
	t.Parallel()

	gen := enrich.GeneratorFunc(func(context.Context, enrich.Request) (string, error) {
		return "", &enrich.GenerationError{Provider: "openai", Code: 401, Err: errors.New("invalid key gsk_abcdefgh12345678")}
	})
	raw := profile.NewRawProfile(nil, profile.WithSummary("orig"))

	out, ok := enrich.DefaultTasks()[0].Run(context.Background(), gen, raw)
	require.True(t, ok)
	assert.Equal(t, profile.StatusFallback, out.Status)
	assert.Equal(t, "orig", out.Text)
	assert.Equal(t, "openai: generation failed: status 401: invalid key <redacted_key>", out.ErrorDetail)
}

func TestTaskRunDeadlineDetail(t *testing.T) {
	t.Parallel()

	gen := enrich.GeneratorFunc(func(ctx context.Context, _ enrich.Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	out, ok := enrich.DefaultTasks()[1].Run(ctx, gen, profile.NewRawProfile(nil, profile.WithExperience("x")))
	require.True(t, ok)
	assert.Equal(t, "timeout exceeded", out.ErrorDetail)
	assert.Equal(t, []string{}, out.Items)
}

func TestTaskWithoutInputNeverRuns(t *testing.T) {
	t.Parallel()

	called := false
	gen := enrich.GeneratorFunc(func(context.Context, enrich.Request) (string, error) {
		called = true
		return "x", nil
	})
	task := enrich.Task{Name: profile.TaskKeywords, MaxTokens: 200, List: true}
	raw := profile.NewRawProfile(map[string]any{"name": "x"}, profile.WithSummary("s"))

	assert.False(t, task.Applies(raw))
	_, ok := task.Run(context.Background(), gen, raw)
	assert.False(t, ok)
	assert.False(t, called)
}
