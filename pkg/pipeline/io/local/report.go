package local

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReportRow is one line of the batch report.
type ReportRow struct {
	PortfolioID   string
	Source        string
	Location      string
	Status        string
	RecordID      string
	DegradedTasks []string
	Error         string
	Attempts      int
	ElapsedMS     int64
}

// ReportHeader returns the stable CSV header for ReportRow.
func ReportHeader() []string {
	return []string{
		"portfolio_id",
		"source",
		"location",
		"status",
		"record_id",
		"degraded_tasks",
		"error",
		"attempts",
		"elapsed_ms",
	}
}

// ReportWriter streams report rows as CSV. Call Flush when done.
type ReportWriter struct {
	cw *csv.Writer
}

// NewReportWriter writes the header immediately.
func NewReportWriter(w io.Writer) (*ReportWriter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(ReportHeader()); err != nil {
		return nil, err
	}
	return &ReportWriter{cw: cw}, nil
}

func (rw *ReportWriter) Write(r ReportRow) error {
	return rw.cw.Write([]string{
		r.PortfolioID,
		r.Source,
		r.Location,
		r.Status,
		r.RecordID,
		strings.Join(r.DegradedTasks, ";"),
		r.Error,
		strconv.Itoa(r.Attempts),
		strconv.FormatInt(r.ElapsedMS, 10),
	})
}

func (rw *ReportWriter) Flush() error {
	rw.cw.Flush()
	return rw.cw.Error()
}

// ReadReportCSV reads a report written by ReportWriter. Extra columns are ignored.
func ReadReportCSV(r io.Reader) ([]ReportRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, name := range ReportHeader() {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}

	var rows []ReportRow
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		get := func(col string) string {
			i := index[col]
			if i >= len(rec) {
				return ""
			}
			return rec[i]
		}

		row := ReportRow{
			PortfolioID: get("portfolio_id"),
			Source:      get("source"),
			Location:    get("location"),
			Status:      get("status"),
			RecordID:    get("record_id"),
			Error:       get("error"),
		}
		if d := get("degraded_tasks"); d != "" {
			row.DegradedTasks = strings.Split(d, ";")
		}
		if row.Attempts, err = strconv.Atoi(get("attempts")); err != nil {
			return nil, fmt.Errorf("attempts: %w", err)
		}
		if row.ElapsedMS, err = strconv.ParseInt(get("elapsed_ms"), 10, 64); err != nil {
			return nil, fmt.Errorf("elapsed_ms: %w", err)
		}
		rows = append(rows, row)
	}
}
