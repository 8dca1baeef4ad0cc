// Package store persists enriched profiles in the portfolio schema.
package store

import (
	"context"
	"embed"
	"encoding/json"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/shpitdev/profile-enricher/pkg/profile"
)

//go:embed schema/postgres/*.sql schema/sqlite/*.sql
var schemaFS embed.FS

// ErrNotFound is returned when no row matches.
var ErrNotFound = errors.New("not found")

// Driver names accepted by Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverNone     = "none"
)

// Record is one profile_data row.
type Record struct {
	ID           string
	PortfolioID  string
	SourceType   profile.SourceType
	RawData      map[string]any
	EnhancedData map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Portfolio is the subset of a portfolios row this service touches.
type Portfolio struct {
	ID          string
	Title       string
	Theme       string
	SEOKeywords []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Store is the persistence collaborator for enrichment runs.
type Store interface {
	// SaveProfile writes one profile_data row and mirrors the enriched SEO
	// keywords onto the portfolio when that portfolio exists.
	SaveProfile(ctx context.Context, portfolioID string, p profile.EnrichedProfile) (string, error)
	// LatestProfile returns the newest profile_data row for a portfolio.
	LatestProfile(ctx context.Context, portfolioID string) (Record, error)
	CreatePortfolio(ctx context.Context, title, theme string) (string, error)
	// DeletePortfolio removes a portfolio row. Missing rows are not an error.
	DeletePortfolio(ctx context.Context, id string) error
	Portfolio(ctx context.Context, id string) (Portfolio, error)
	Close() error
}

// Open connects to the store named by driver and applies the schema.
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverPostgres, "postgresql", "pgx":
		return ConnectPostgres(ctx, dsn, logger)
	case DriverSQLite, "sqlite3":
		return OpenSQLite(ctx, dsn, logger)
	case DriverNone, "":
		return Discard{}, nil
	default:
		return nil, errors.Errorf("unknown store driver %q", driver)
	}
}

// migrations returns the embedded schema files for dialect in apply order.
func migrations(dialect string) ([]string, []string, error) {
	dir := "schema/" + dialect
	entries, err := fs.ReadDir(schemaFS, dir)
	if err != nil {
		return nil, nil, errors.Wrap(err, "read schema dir")
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var names, stmts []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		data, err := schemaFS.ReadFile(dir + "/" + e.Name())
		if err != nil {
			return nil, nil, errors.Wrapf(err, "read %s", e.Name())
		}
		names = append(names, e.Name())
		stmts = append(stmts, string(data))
	}
	return names, stmts, nil
}

type encoded struct {
	id       string
	source   string
	raw      []byte
	enhanced []byte
	keywords []string
	now      time.Time
}

func encode(portfolioID string, p profile.EnrichedProfile) (encoded, error) {
	if _, err := uuid.Parse(portfolioID); err != nil {
		return encoded{}, &profile.ValidationError{Field: "portfolio_id", Value: portfolioID, Reason: "not a uuid"}
	}
	raw, err := json.Marshal(nonNil(p.RawProfile.Fields()))
	if err != nil {
		return encoded{}, errors.Wrap(err, "encode raw_data")
	}
	enhanced, err := json.Marshal(p.Map())
	if err != nil {
		return encoded{}, errors.Wrap(err, "encode enhanced_data")
	}
	keywords := p.SEOKeywords
	if keywords == nil {
		keywords = []string{}
	}
	return encoded{
		id:       uuid.NewString(),
		source:   string(p.Source()),
		raw:      raw,
		enhanced: enhanced,
		keywords: keywords,
		now:      time.Now().UTC(),
	}, nil
}

func decodeRecord(rec *Record, raw, enhanced []byte) error {
	if err := json.Unmarshal(raw, &rec.RawData); err != nil {
		return errors.Wrap(err, "decode raw_data")
	}
	if len(enhanced) > 0 {
		if err := json.Unmarshal(enhanced, &rec.EnhancedData); err != nil {
			return errors.Wrap(err, "decode enhanced_data")
		}
	}
	return nil
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// Discard drops every write. It backs runs configured without a store.
type Discard struct{}

func (Discard) SaveProfile(_ context.Context, portfolioID string, p profile.EnrichedProfile) (string, error) {
	if _, err := encode(portfolioID, p); err != nil {
		return "", err
	}
	return uuid.NewString(), nil
}

func (Discard) LatestProfile(context.Context, string) (Record, error) {
	return Record{}, ErrNotFound
}

func (Discard) CreatePortfolio(context.Context, string, string) (string, error) {
	return uuid.NewString(), nil
}

func (Discard) DeletePortfolio(context.Context, string) error { return nil }

func (Discard) Portfolio(context.Context, string) (Portfolio, error) {
	return Portfolio{}, ErrNotFound
}

func (Discard) Close() error { return nil }
