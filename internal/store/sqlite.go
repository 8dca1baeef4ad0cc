package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/shpitdev/profile-enricher/pkg/profile"
)

// Fixed-width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLite is a single-file store for local runs.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, errors.Wrapf(err, "mkdir %s", filepath.Dir(path))
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	db.SetMaxOpenConns(1) // single writer

	s := &SQLite{db: db, logger: logger}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	return s, nil
}

func (s *SQLite) Migrate(ctx context.Context) error {
	names, stmts, err := migrations("sqlite")
	if err != nil {
		return err
	}
	for i, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "execute %s", names[i])
		}
		s.logger.Debug("migration applied", slog.String("file", names[i]))
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) SaveProfile(ctx context.Context, portfolioID string, p profile.EnrichedProfile) (string, error) {
	e, err := encode(portfolioID, p)
	if err != nil {
		return "", err
	}
	keywords, err := json.Marshal(e.keywords)
	if err != nil {
		return "", errors.Wrap(err, "encode seo_keywords")
	}
	now := e.now.Format(timeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", errors.Wrap(err, "begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO profile_data (id, portfolio_id, source_type, raw_data, enhanced_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.id, portfolioID, e.source, string(e.raw), string(e.enhanced), now, now,
	); err != nil {
		return "", errors.Wrap(err, "insert profile_data")
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE portfolios SET seo_keywords = ?, updated_at = ? WHERE id = ?`,
		string(keywords), now, portfolioID,
	); err != nil {
		return "", errors.Wrap(err, "update portfolio keywords")
	}
	if err := tx.Commit(); err != nil {
		return "", errors.Wrap(err, "commit")
	}
	return e.id, nil
}

func (s *SQLite) LatestProfile(ctx context.Context, portfolioID string) (Record, error) {
	var (
		rec              Record
		source, raw      string
		enhanced         sql.NullString
		created, updated string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, portfolio_id, source_type, raw_data, enhanced_data, created_at, updated_at
		FROM profile_data
		WHERE portfolio_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`, portfolioID,
	).Scan(&rec.ID, &rec.PortfolioID, &source, &raw, &enhanced, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, errors.Wrap(err, "select profile_data")
	}
	rec.SourceType = profile.SourceType(source)
	rec.CreatedAt, _ = time.Parse(timeLayout, created)
	rec.UpdatedAt, _ = time.Parse(timeLayout, updated)
	if err := decodeRecord(&rec, []byte(raw), []byte(enhanced.String)); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *SQLite) CreatePortfolio(ctx context.Context, title, theme string) (string, error) {
	id := uuid.NewString()
	if strings.TrimSpace(theme) == "" {
		theme = "default"
	}
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO portfolios (id, title, theme, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`, id, title, theme, now, now)
	if err != nil {
		return "", errors.Wrap(err, "insert portfolio")
	}
	return id, nil
}

func (s *SQLite) DeletePortfolio(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM portfolios WHERE id = ?`, id); err != nil {
		return errors.Wrap(err, "delete portfolio")
	}
	return nil
}

func (s *SQLite) Portfolio(ctx context.Context, id string) (Portfolio, error) {
	var (
		p                          Portfolio
		keywords, created, updated string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, theme, seo_keywords, created_at, updated_at
		FROM portfolios WHERE id = ?`, id,
	).Scan(&p.ID, &p.Title, &p.Theme, &keywords, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Portfolio{}, ErrNotFound
	}
	if err != nil {
		return Portfolio{}, errors.Wrap(err, "select portfolio")
	}
	if err := json.Unmarshal([]byte(keywords), &p.SEOKeywords); err != nil {
		return Portfolio{}, errors.Wrap(err, "decode seo_keywords")
	}
	p.CreatedAt, _ = time.Parse(timeLayout, created)
	p.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return p, nil
}
