// Package app wires extraction, normalization, enrichment and persistence
// into single-document and batch runs.
package app

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/shpitdev/profile-enricher/internal/config"
	"github.com/shpitdev/profile-enricher/internal/extract"
	"github.com/shpitdev/profile-enricher/internal/store"
	"github.com/shpitdev/profile-enricher/pkg/enrich"
	"github.com/shpitdev/profile-enricher/pkg/enrich/gemini"
	"github.com/shpitdev/profile-enricher/pkg/enrich/openai"
	"github.com/shpitdev/profile-enricher/pkg/pipeline/core"
	"github.com/shpitdev/profile-enricher/pkg/profile"
)

// App holds the process-wide collaborators. One generation client and one
// coordinator serve every run.
type App struct {
	cfg        config.Config
	logger     *slog.Logger
	coord      *enrich.Coordinator
	store      store.Store
	sink       core.ProfileSink
	extractors map[profile.SourceType]core.Extractor
	closers    []func() error
}

// Deps overrides collaborators, mainly for tests. Nil fields are built from config.
type Deps struct {
	Generator  enrich.Generator
	Store      store.Store
	Extractors map[profile.SourceType]core.Extractor
}

// New builds the application from cfg.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, deps Deps) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{cfg: cfg, logger: logger, store: deps.Store, extractors: deps.Extractors}

	// The generation client and the store connect independently.
	var (
		g     errgroup.Group
		gen   = deps.Generator
		st    store.Store
		owned = a.store == nil
	)
	if gen == nil {
		g.Go(func() (err error) {
			gen, err = NewGenerator(ctx, cfg.Generation, logger)
			return err
		})
	}
	if owned {
		g.Go(func() (err error) {
			st, err = store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN, logger)
			return errors.Wrap(err, "open store")
		})
	}
	if err := g.Wait(); err != nil {
		if st != nil {
			_ = st.Close()
		}
		return nil, err
	}
	if owned {
		a.store = st
		a.closers = append(a.closers, st.Close)
	}
	a.sink = a.store

	a.coord = enrich.NewCoordinator(gen, enrich.Options{
		TaskTimeout: cfg.Generation.TaskTimeout,
		Logger:      logger,
	})

	if a.extractors == nil {
		scraper := extract.NewScraper(extract.ScraperConfig{
			ControlURL:      cfg.Browser.ControlURL,
			NavigateTimeout: cfg.Browser.NavigationTimeout,
			Logger:          logger,
		})
		a.closers = append(a.closers, scraper.Close)
		a.extractors = map[profile.SourceType]core.Extractor{
			profile.SourceLinkedIn: scraper,
			profile.SourcePDF:      extract.PDF{Logger: logger},
		}
	}
	return a, nil
}

// NewGenerator builds the configured generation client wrapped with the
// shared rate limit and call tracing.
func NewGenerator(ctx context.Context, cfg config.Generation, logger *slog.Logger) (enrich.Generator, error) {
	var (
		gen enrich.Generator
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case config.ProviderGemini:
		gen, err = gemini.New(ctx, gemini.Config{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL})
	case config.ProviderOpenAI:
		gen, err = openai.New(openai.Config{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL})
	default:
		return nil, errors.Errorf("unknown generation provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("generation client ready",
		slog.String("provider", cfg.Provider),
		slog.String("model", cfg.Model),
		slog.Float64("rate_limit_rps", cfg.RateLimitRPS),
	)
	return enrich.Traced(enrich.RateLimited(gen, cfg.RateLimitRPS), logger, cfg.Model), nil
}

// Store exposes the configured store.
func (a *App) Store() store.Store { return a.store }

// Close releases the browser and store in reverse order of creation.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
