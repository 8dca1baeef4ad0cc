package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/shpitdev/profile-enricher/pkg/pipeline/redact"
	"github.com/shpitdev/profile-enricher/pkg/profile"
)

const (
	summarySystem  = "You are a professional resume writer who writes concise, high-impact summaries."
	skillsSystem   = "You are an applicant tracking system analyst that extracts skills from work history."
	keywordsSystem = "You are an SEO specialist who optimizes professional profiles for search."
)

const summaryTemplate = `Rewrite the following self-description as a professional summary. Stay accurate and professional.

%s

Answer with one concise, impactful paragraph that highlights key achievements and skills.`

const skillsTemplate = `List the skills demonstrated in the following professional experience as a single comma-separated list.

%s

Include:
1. Technical skills (languages, tools, platforms)
2. Soft skills (leadership, communication, project management)
3. Domain expertise (industry-specific knowledge)`

const keywordsTemplate = `Produce SEO-friendly keywords for the professional profile below. Cover:
1. Job titles and roles
2. Industry terms
3. Technical skills and tools
4. Professional certifications
5. Key achievements

Profile data:
%s

Answer with a single comma-separated list of keywords.`

// Task is one enrichment operation: a prompt template, its decoding parameters,
// and a parser for the generated text.
type Task struct {
	Name        profile.TaskName
	System      string
	Template    string
	Temperature float32
	MaxTokens   int

	// Input selects the prompt input from the profile. A task with a nil
	// Input never runs.
	Input func(profile.RawProfile) (string, bool)
	// List parses the response as a comma-separated list.
	List bool
}

// DefaultTasks returns the summary, skills and keywords tasks.
func DefaultTasks() []Task {
	return []Task{
		{
			Name:        profile.TaskSummary,
			System:      summarySystem,
			Template:    summaryTemplate,
			Temperature: 0.7,
			MaxTokens:   500,
			Input:       summaryInput,
		},
		{
			Name:        profile.TaskSkills,
			System:      skillsSystem,
			Template:    skillsTemplate,
			Temperature: 0.5,
			MaxTokens:   300,
			Input:       experienceInput,
			List:        true,
		},
		{
			Name:        profile.TaskKeywords,
			System:      keywordsSystem,
			Template:    keywordsTemplate,
			Temperature: 0.3,
			MaxTokens:   200,
			Input:       profileText,
			List:        true,
		},
	}
}

// Applies reports whether raw carries the input this task needs.
func (t Task) Applies(raw profile.RawProfile) bool {
	if t.Input == nil {
		return false
	}
	_, ok := t.Input(raw)
	return ok
}

// Run executes the task once. It never returns an error: any failure becomes a
// fallback outcome. ok is false when the task's input is absent and nothing ran.
func (t Task) Run(ctx context.Context, gen Generator, raw profile.RawProfile) (out profile.Outcome, ok bool) {
	if t.Input == nil {
		return profile.Outcome{}, false
	}
	in, ok := t.Input(raw)
	if !ok {
		return profile.Outcome{}, false
	}

	start := time.Now()
	text, err := gen.Generate(ctx, Request{
		System:      t.System,
		Prompt:      fmt.Sprintf(t.Template, in),
		Temperature: t.Temperature,
		MaxTokens:   t.MaxTokens,
	})
	if err == nil {
		out, err = t.parse(text)
	}
	if err != nil {
		out = t.Fallback(raw, failureDetail(ctx, err))
	}
	out.Elapsed = time.Since(start)
	return out, true
}

// Fallback builds the deterministic default outcome for this task.
func (t Task) Fallback(raw profile.RawProfile, detail string) profile.Outcome {
	out := profile.Outcome{
		Task:        t.Name,
		Status:      profile.StatusFallback,
		ErrorDetail: detail,
	}
	if t.List {
		out.Items = []string{}
		return out
	}
	out.Text, _ = raw.Summary()
	return out
}

func (t Task) parse(text string) (profile.Outcome, error) {
	if strings.TrimSpace(text) == "" {
		return profile.Outcome{}, &GenerationError{Err: errors.New("empty response")}
	}
	if !t.List {
		return profile.Outcome{Task: t.Name, Status: profile.StatusEnhanced, Text: text}, nil
	}
	items := SplitList(text)
	if len(items) == 0 {
		return profile.Outcome{}, errors.New("no items in response")
	}
	return profile.Outcome{Task: t.Name, Status: profile.StatusEnhanced, Items: items}, nil
}

// SplitList splits generated text on commas, trims each entry and drops empty
// ones. Entries that themselves contain commas are split apart.
func SplitList(text string) []string {
	parts := strings.Split(text, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func summaryInput(raw profile.RawProfile) (string, bool) {
	return raw.Summary()
}

func experienceInput(raw profile.RawProfile) (string, bool) {
	return raw.Experience()
}

// profileText stringifies the whole profile as JSON with sorted keys.
func profileText(raw profile.RawProfile) (string, bool) {
	m := raw.Fields()
	if m == nil {
		m = map[string]any{}
	}
	if s, ok := raw.Summary(); ok {
		if _, exists := m["summary"]; !exists {
			m["summary"] = s
		}
	}
	if s, ok := raw.Experience(); ok {
		if _, exists := m["experience"]; !exists {
			m["experience"] = s
		}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Sprintf("%v", m), true
	}
	return string(b), true
}

func failureDetail(ctx context.Context, err error) string {
	if errors.Is(err, ErrTimeoutExceeded) || errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return timeoutDetail(ctx)
	}
	if errors.Is(err, context.Canceled) {
		return "canceled: " + redact.Secrets(err.Error())
	}
	return redact.Secrets(err.Error())
}

func timeoutDetail(ctx context.Context) string {
	if budget, ok := budgetFrom(ctx); ok {
		return fmt.Sprintf("%s after %s", ErrTimeoutExceeded, budget)
	}
	return ErrTimeoutExceeded.Error()
}

type budgetKey struct{}

func withBudget(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, budgetKey{}, d)
}

func budgetFrom(ctx context.Context) (time.Duration, bool) {
	d, ok := ctx.Value(budgetKey{}).(time.Duration)
	return d, ok
}
