package extract

import "strings"

// Resume section names, in header-detection priority order.
const (
	SectionContact    = "contact"
	SectionSummary    = "summary"
	SectionExperience = "experience"
	SectionEducation  = "education"
	SectionSkills     = "skills"
)

var sectionKeywords = []struct {
	name     string
	keywords []string
}{
	{SectionContact, []string{"contact", "email", "phone"}},
	{SectionSummary, []string{"summary", "objective", "profile"}},
	{SectionExperience, []string{"experience", "work", "employment"}},
	{SectionEducation, []string{"education", "academic", "qualification"}},
	{SectionSkills, []string{"skills", "technologies", "competencies"}},
}

// Sections buckets resume text into sections by keyword. A line mentioning a
// section keyword switches the current section and is kept as its first line.
// Lines before the first header are dropped.
func Sections(text string) map[string]string {
	var b [5]strings.Builder
	current := -1
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		for i, s := range sectionKeywords {
			if containsAny(lower, s.keywords) {
				current = i
				break
			}
		}
		if current >= 0 && line != "" {
			b[current].WriteString(line)
			b[current].WriteByte('\n')
		}
	}

	out := make(map[string]string, len(sectionKeywords))
	for i, s := range sectionKeywords {
		out[s.name] = b[i].String()
	}
	return out
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ResumeDocument is the raw document handed to profile.Normalize for a PDF.
func ResumeDocument(text string) map[string]any {
	sections := Sections(text)
	m := make(map[string]any, len(sections))
	for k, v := range sections {
		m[k] = v
	}
	return map[string]any{
		"raw_text": text,
		"sections": m,
	}
}
