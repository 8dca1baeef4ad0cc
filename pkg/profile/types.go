package profile

import (
	"encoding/json"
	"time"
)

// TaskName identifies one enrichment sub-task.
type TaskName string

const (
	TaskSummary  TaskName = "summary"
	TaskSkills   TaskName = "skills"
	TaskKeywords TaskName = "keywords"
)

// AllTasks returns every task name in canonical order.
func AllTasks() []TaskName {
	return []TaskName{TaskSummary, TaskSkills, TaskKeywords}
}

// Status tags how a sub-task finished.
type Status string

const (
	StatusEnhanced Status = "enhanced"
	StatusFallback Status = "fallback"
)

// RawProfile is the source-agnostic profile handed to enrichment.
//
// A RawProfile is immutable once built: accessors hand out copies, never the
// backing map.
type RawProfile struct {
	source        SourceType
	summary       string
	hasSummary    bool
	experience    string
	hasExperience bool
	fields        map[string]any
}

// Option sets an optional RawProfile attribute.
type Option func(*RawProfile)

// WithSummary promotes a free-text self description.
func WithSummary(s string) Option {
	return func(p *RawProfile) {
		p.summary = s
		p.hasSummary = true
	}
}

// WithExperience promotes a flattened work-history blob.
func WithExperience(s string) Option {
	return func(p *RawProfile) {
		p.experience = s
		p.hasExperience = true
	}
}

// WithSource records which extractor produced the document.
func WithSource(s SourceType) Option {
	return func(p *RawProfile) {
		p.source = s
	}
}

// NewRawProfile builds a RawProfile from a copy of fields.
func NewRawProfile(fields map[string]any, opts ...Option) RawProfile {
	p := RawProfile{fields: cloneMap(fields)}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func (p RawProfile) Source() SourceType { return p.source }

// Summary returns the promoted summary and whether one was present.
func (p RawProfile) Summary() (string, bool) { return p.summary, p.hasSummary }

// Experience returns the promoted experience text and whether one was present.
func (p RawProfile) Experience() (string, bool) { return p.experience, p.hasExperience }

// Field returns a copy of one carried-through source field.
func (p RawProfile) Field(key string) (any, bool) {
	v, ok := p.fields[key]
	if !ok {
		return nil, false
	}
	return cloneValue(v), true
}

// Fields returns a deep copy of every carried-through source field.
func (p RawProfile) Fields() map[string]any {
	return cloneMap(p.fields)
}

// Outcome is the result of one enrichment sub-task.
//
// Text carries the summary value; Items carries the skills and keywords values.
// ErrorDetail is set only when Status is StatusFallback.
type Outcome struct {
	Task        TaskName
	Status      Status
	Text        string
	Items       []string
	ErrorDetail string
	Elapsed     time.Duration
}

// Fallback reports whether the task degraded.
func (o Outcome) Fallback() bool {
	return o.Status != StatusEnhanced
}

// EnrichedProfile is a RawProfile merged with its enrichment outcomes.
type EnrichedProfile struct {
	RawProfile

	EnhancedSummary string
	ExtractedSkills []string
	SEOKeywords     []string

	// DegradedTasks is a set kept in canonical task order.
	DegradedTasks []TaskName
}

// Degraded reports whether task fell back or was skipped.
func (p EnrichedProfile) Degraded(task TaskName) bool {
	for _, t := range p.DegradedTasks {
		if t == task {
			return true
		}
	}
	return false
}

// Map renders the profile as the JSON-like enhanced_data mapping: every source
// field plus the enrichment keys. Enrichment keys replace same-named source fields.
func (p EnrichedProfile) Map() map[string]any {
	out := p.Fields()
	if out == nil {
		out = make(map[string]any, 4)
	}
	out["enhanced_summary"] = p.EnhancedSummary
	out["extracted_skills"] = stringsToAny(p.ExtractedSkills)
	out["seo_keywords"] = stringsToAny(p.SEOKeywords)
	degraded := make([]any, 0, len(p.DegradedTasks))
	for _, t := range p.DegradedTasks {
		degraded = append(degraded, string(t))
	}
	out["degraded_tasks"] = degraded
	return out
}

func (p EnrichedProfile) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Map())
}

func stringsToAny(in []string) []any {
	out := make([]any, 0, len(in))
	for _, s := range in {
		out = append(out, s)
	}
	return out
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i := range t {
			out[i] = cloneMap(t[i])
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, s := range t {
			out[k] = s
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
