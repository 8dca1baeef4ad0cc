package extract

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentStreamText(t *testing.T) {
	t.Parallel()

	stream := strings.Join([]string{
		"BT",
		"/F1 14 Tf",
		"72 720 Td",
		"(Summary) Tj",
		"0 -16 Td",
		"[(Backend ) -120 (engineer)] TJ",
		"T*",
		`(Skills\072 Go\, SQL) Tj`,
		"ET",
	}, "\n")

	got := contentStreamText([]byte(stream))
	assert.Equal(t, "Summary\nBackend engineer\nSkills: Go, SQL\n", got)
}

func TestDecodePDFString(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		`plain`:          "plain",
		`a\(b\)`:         "a(b)",
		`tab\there`:      "tab\there",
		`\101\102`:       "AB",
		`back\\slash`:    `back\slash`,
		`unknown\qchar`:  "unknownqchar",
	}
	for in, want := range tests {
		assert.Equal(t, want, decodePDFString([]byte(in)), in)
	}
}

func TestReadPDFTextRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, _, err := ReadPDFText(context.Background(), strings.NewReader("not a pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdfcpu read")
}

func TestPDFExtractMissingFile(t *testing.T) {
	t.Parallel()

	_, err := PDF{}.Extract(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open pdf")
}
