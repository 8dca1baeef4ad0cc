package store

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/shpitdev/profile-enricher/pkg/profile"
)

// Postgres is the PostgreSQL store backed by a pgx pool.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// ConnectPostgres creates a pgx pool and runs schema migrations.
func ConnectPostgres(ctx context.Context, databaseURL string, logger *slog.Logger) (*Postgres, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse DATABASE_URL")
	}
	config.MaxConns = 10
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, errors.Wrap(err, "create pgx pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}

	db := &Postgres{pool: pool, logger: logger}
	if err := db.Migrate(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	logger.Info("postgres store connected", slog.String("host", config.ConnConfig.Host))
	return db, nil
}

// Migrate applies the embedded schema on one dedicated connection.
func (db *Postgres) Migrate(ctx context.Context) error {
	names, stmts, err := migrations("postgres")
	if err != nil {
		return err
	}
	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return errors.Wrap(err, "acquire migration connection")
	}
	defer conn.Release()

	for i, stmt := range stmts {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return errors.Wrapf(err, "execute %s", names[i])
		}
		db.logger.Debug("migration applied", slog.String("file", names[i]))
	}
	return nil
}

func (db *Postgres) Close() error {
	db.pool.Close()
	return nil
}

func (db *Postgres) SaveProfile(ctx context.Context, portfolioID string, p profile.EnrichedProfile) (string, error) {
	e, err := encode(portfolioID, p)
	if err != nil {
		return "", err
	}

	err = pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO profile_data (id, portfolio_id, source_type, raw_data, enhanced_data, created_at, updated_at)
			VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6, $6)`,
			e.id, portfolioID, e.source, string(e.raw), string(e.enhanced), e.now,
		); err != nil {
			return errors.Wrap(err, "insert profile_data")
		}
		if _, err := tx.Exec(ctx,
			`UPDATE portfolios SET seo_keywords = $1, updated_at = $2 WHERE id = $3`,
			e.keywords, e.now, portfolioID,
		); err != nil {
			return errors.Wrap(err, "update portfolio keywords")
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return e.id, nil
}

func (db *Postgres) LatestProfile(ctx context.Context, portfolioID string) (Record, error) {
	var (
		rec           Record
		source        string
		raw, enhanced []byte
	)
	err := db.pool.QueryRow(ctx, `
		SELECT id::text, portfolio_id::text, source_type, raw_data, enhanced_data, created_at, updated_at
		FROM profile_data
		WHERE portfolio_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, portfolioID,
	).Scan(&rec.ID, &rec.PortfolioID, &source, &raw, &enhanced, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, errors.Wrap(err, "select profile_data")
	}
	rec.SourceType = profile.SourceType(source)
	if err := decodeRecord(&rec, raw, enhanced); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (db *Postgres) CreatePortfolio(ctx context.Context, title, theme string) (string, error) {
	id := uuid.NewString()
	if strings.TrimSpace(theme) == "" {
		theme = "default"
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO portfolios (id, title, theme) VALUES ($1, $2, $3)`, id, title, theme)
	if err != nil {
		return "", errors.Wrap(err, "insert portfolio")
	}
	return id, nil
}

func (db *Postgres) DeletePortfolio(ctx context.Context, id string) error {
	if _, err := db.pool.Exec(ctx, `DELETE FROM portfolios WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "delete portfolio")
	}
	return nil
}

func (db *Postgres) Portfolio(ctx context.Context, id string) (Portfolio, error) {
	var p Portfolio
	err := db.pool.QueryRow(ctx, `
		SELECT id::text, title, theme, seo_keywords, created_at, updated_at
		FROM portfolios WHERE id = $1`, id,
	).Scan(&p.ID, &p.Title, &p.Theme, &p.SEOKeywords, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Portfolio{}, ErrNotFound
	}
	if err != nil {
		return Portfolio{}, errors.Wrap(err, "select portfolio")
	}
	return p, nil
}
