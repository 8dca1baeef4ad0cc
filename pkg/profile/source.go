package profile

import (
	"fmt"
	"strings"
)

// SourceType names the external extractor that produced a raw document.
type SourceType string

const (
	SourceLinkedIn SourceType = "linkedin"
	SourcePDF      SourceType = "pdf"
)

// ParseSource maps a user or storage supplied source name onto a SourceType.
func ParseSource(raw string) (SourceType, error) {
	s := strings.TrimSpace(strings.ToLower(raw))
	switch s {
	case "linkedin", "linked-in", "scrape":
		return SourceLinkedIn, nil
	case "pdf", "resume", "document":
		return SourcePDF, nil
	default:
		return "", &ValidationError{Field: "source_type", Value: raw, Reason: "unknown source type"}
	}
}

func (s SourceType) valid() bool {
	return s == SourceLinkedIn || s == SourcePDF
}

// ValidationError reports caller-supplied input the normalizer cannot accept.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "validation error"
	}
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}
