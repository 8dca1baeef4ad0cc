// Package extract turns source documents (PDF resumes, scraped profile pages)
// into the raw key/value documents consumed by profile.Normalize.
package extract

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pkg/errors"
)

// ErrNoText is returned for PDFs without an extractable text layer.
var ErrNoText = errors.New("no text content found in PDF")

// PDF extracts resume text from PDF files with pdfcpu.
type PDF struct {
	Logger *slog.Logger
}

// Extract reads the PDF at path and returns its resume document.
func (p PDF) Extract(ctx context.Context, path string) (map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open pdf")
	}
	defer f.Close()

	text, pages, err := ReadPDFText(ctx, f)
	if err != nil {
		return nil, errors.Wrapf(err, "extract %s", path)
	}
	if p.Logger != nil {
		p.Logger.Debug("pdf text extracted",
			slog.String("path", path),
			slog.Int("pages", pages),
			slog.Int("chars", len(text)),
		)
	}
	return ResumeDocument(text), nil
}

// ReadPDFText concatenates the text of every page, one text line per line.
func ReadPDFText(ctx context.Context, rs io.ReadSeeker) (string, int, error) {
	pctx, err := api.ReadValidateAndOptimize(rs, model.NewDefaultConfiguration())
	if err != nil {
		return "", 0, errors.Wrap(err, "pdfcpu read")
	}

	var all strings.Builder
	for pageNr := 1; pageNr <= pctx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}
		r, err := pdfcpu.ExtractPageContent(pctx, pageNr)
		if err != nil || r == nil {
			continue
		}
		data, err := io.ReadAll(r)
		if err != nil || len(data) == 0 {
			continue
		}
		page := contentStreamText(data)
		if strings.TrimSpace(page) == "" {
			continue
		}
		if all.Len() > 0 {
			all.WriteByte('\n')
		}
		all.WriteString(page)
	}
	if strings.TrimSpace(all.String()) == "" {
		return "", pctx.PageCount, ErrNoText
	}
	return all.String(), pctx.PageCount, nil
}

var pdfStringRe = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)`)

// contentStreamText pulls shown strings out of a page content stream. Line
// moves (Td, TD, T*, ' and ") become newlines so resume headers stay on their
// own line.
func contentStreamText(data []byte) string {
	var sb strings.Builder
	newline := func() {
		if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteByte('\n')
		}
	}

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		switch {
		case len(line) == 0:
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				sb.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("'")), bytes.HasSuffix(line, []byte(`"`)):
			newline()
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				sb.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")), bytes.Equal(line, []byte("T*")):
			newline()
		case bytes.Equal(line, []byte("ET")):
			newline()
		}
	}
	return sb.String()
}

func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 >= len(raw) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		default:
			if raw[i] < '0' || raw[i] > '7' {
				sb.WriteByte(raw[i])
				continue
			}
			val := int(raw[i] - '0')
			for n := 0; n < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; n++ {
				i++
				val = val*8 + int(raw[i]-'0')
			}
			sb.WriteByte(byte(val))
		}
	}
	return sb.String()
}
