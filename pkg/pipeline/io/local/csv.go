package local

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shpitdev/profile-enricher/pkg/pipeline/core"
	"github.com/shpitdev/profile-enricher/pkg/profile"
)

var manifestColumns = []string{"portfolio_id", "source", "location"}

// ReadManifestCSV reads a batch manifest with the columns portfolio_id, source
// and location (any order, case-insensitive header). Blank rows are skipped.
func ReadManifestCSV(r io.Reader) ([]core.Job, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(manifestColumns))
	for i, col := range header {
		idx[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range manifestColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing required column %q", col)
		}
	}

	var jobs []core.Job
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if blank(rec) {
			continue
		}
		get := func(col string) string {
			i := idx[col]
			if i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		src, err := profile.ParseSource(get("source"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		j := core.Job{PortfolioID: get("portfolio_id"), Source: src, Location: get("location")}
		if j.PortfolioID == "" || j.Location == "" {
			return nil, fmt.Errorf("line %d: portfolio_id and location are required", line)
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Manifest is a JobSource backed by a CSV file on disk. Relative document
// locations resolve against the manifest's directory.
type Manifest struct {
	Path string
}

func (m Manifest) Load(_ context.Context) ([]core.Job, error) {
	f, err := os.Open(m.Path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	jobs, err := ReadManifestCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.Path, err)
	}
	dir := filepath.Dir(m.Path)
	for i, j := range jobs {
		if j.Source == profile.SourcePDF && !filepath.IsAbs(j.Location) {
			jobs[i].Location = filepath.Join(dir, j.Location)
		}
	}
	return jobs, nil
}
