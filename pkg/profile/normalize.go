package profile

import (
	"strings"
)

// Normalize converts the output of a document extractor into a RawProfile.
//
// Every document field is carried through verbatim; summary and experience are
// additionally promoted using the source-specific field names. Only an unknown
// source type is rejected.
func Normalize(source SourceType, doc map[string]any) (RawProfile, error) {
	if !source.valid() {
		return RawProfile{}, &ValidationError{Field: "source_type", Value: string(source), Reason: "unknown source type"}
	}

	opts := []Option{WithSource(source)}
	switch source {
	case SourceLinkedIn:
		if s, ok := firstText(doc, "summary", "headline"); ok {
			opts = append(opts, WithSummary(s))
		}
		if s, ok := flattenExperience(doc["experience"]); ok {
			opts = append(opts, WithExperience(s))
		}
	case SourcePDF:
		sections := sectionMap(doc["sections"])
		if s, ok := firstText(sections, "summary"); ok {
			opts = append(opts, WithSummary(s))
		} else if s, ok := firstText(doc, "summary"); ok {
			opts = append(opts, WithSummary(s))
		}
		if s, ok := firstText(sections, "experience"); ok {
			opts = append(opts, WithExperience(s))
		} else if s, ok := firstText(doc, "experience"); ok {
			opts = append(opts, WithExperience(s))
		}
	}

	return NewRawProfile(doc, opts...), nil
}

// firstText returns the first non-blank string value among keys.
func firstText(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		s, ok := m[k].(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s != "" {
			return s, true
		}
	}
	return "", false
}

func sectionMap(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, s := range t {
			out[k] = s
		}
		return out
	default:
		return nil
	}
}

// flattenExperience renders a scraped experience list as one text blob, one
// paragraph per position. A plain string is used as is.
func flattenExperience(v any) (string, bool) {
	var entries []map[string]any
	switch t := v.(type) {
	case string:
		t = strings.TrimSpace(t)
		return t, t != ""
	case []map[string]any:
		entries = t
	case []any:
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				entries = append(entries, m)
			}
		}
	default:
		return "", false
	}

	var paras []string
	for _, e := range entries {
		var head []string
		for _, k := range []string{"title", "company", "duration"} {
			if s, ok := firstText(e, k); ok {
				head = append(head, s)
			}
		}
		var b strings.Builder
		b.WriteString(strings.Join(head, " - "))
		if desc, ok := firstText(e, "description"); ok {
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(desc)
		}
		if b.Len() > 0 {
			paras = append(paras, b.String())
		}
	}
	if len(paras) == 0 {
		return "", false
	}
	return strings.Join(paras, "\n\n"), true
}
