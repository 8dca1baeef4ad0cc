package extract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shpitdev/profile-enricher/internal/extract"
)

const resume = `Jane Doe
  Contact
jane@example.com
Professional Summary
Backend engineer with ten years in Go.

Work Experience
Staff Engineer, Acme (2020 - now)
Led the API platform team.
Education
BSc Computer Science
Skills
Go, SQL, Kubernetes
`

func TestSections(t *testing.T) {
	t.Parallel()

	got := extract.Sections(resume)
	assert.Equal(t, "Contact\njane@example.com\n", got[extract.SectionContact])
	assert.Equal(t, "Professional Summary\nBackend engineer with ten years in Go.\n", got[extract.SectionSummary])
	assert.Equal(t, "Work Experience\nStaff Engineer, Acme (2020 - now)\nLed the API platform team.\n", got[extract.SectionExperience])
	assert.Equal(t, "Education\nBSc Computer Science\n", got[extract.SectionEducation])
	assert.Equal(t, "Skills\nGo, SQL, Kubernetes\n", got[extract.SectionSkills])
}

func TestSectionsFirstKeywordWins(t *testing.T) {
	t.Parallel()

	// "email" (contact) outranks "experience" on the same line.
	got := extract.Sections("Experience and email\nline")
	assert.Equal(t, "Experience and email\nline\n", got[extract.SectionContact])
	assert.Empty(t, got[extract.SectionExperience])
}

func TestSectionsWithoutHeaders(t *testing.T) {
	t.Parallel()

	got := extract.Sections("just some\ntext")
	assert.Len(t, got, 5)
	for name, body := range got {
		assert.Empty(t, body, name)
	}
}

func TestResumeDocumentFeedsNormalize(t *testing.T) {
	t.Parallel()

	doc := extract.ResumeDocument(resume)
	assert.Equal(t, resume, doc["raw_text"])
	sections, ok := doc["sections"].(map[string]any)
	assert.True(t, ok)
	assert.Contains(t, sections["experience"], "Led the API platform team.")
}
