package extract

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/pkg/errors"

	"github.com/shpitdev/profile-enricher/pkg/pipeline/core"
)

// ScraperConfig configures the headless browser used for profile pages.
type ScraperConfig struct {
	// ControlURL is the DevTools WebSocket URL of an existing Chrome.
	// Empty launches a local headless Chrome on first use.
	ControlURL string

	// NavigateTimeout bounds navigation plus page load. Default: 30s.
	NavigateTimeout time.Duration

	Logger *slog.Logger
}

// Scraper renders public profile pages in a shared browser and parses them
// with ParseProfileHTML. It is safe for concurrent use; each call opens its
// own tab.
type Scraper struct {
	cfg ScraperConfig

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
}

func NewScraper(cfg ScraperConfig) *Scraper {
	if cfg.NavigateTimeout <= 0 {
		cfg.NavigateTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Scraper{cfg: cfg}
}

// Extract scrapes the profile at url.
func (s *Scraper) Extract(ctx context.Context, url string) (map[string]any, error) {
	b, err := s.connect()
	if err != nil {
		return nil, core.Transient(err)
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return nil, core.Transient(errors.Wrap(err, "browser: create tab"))
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavigateTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(url); err != nil {
		return nil, &core.LimitedTransientError{Err: errors.Wrapf(err, "browser: navigate %s", url), ExtraRetries: 1}
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		s.cfg.Logger.Warn("browser: wait load timeout", slog.String("url", url), slog.String("error", err.Error()))
	}

	html, err := page.Context(navCtx).HTML()
	if err != nil {
		return nil, core.Transient(errors.Wrap(err, "browser: read DOM"))
	}
	doc, err := ParseProfileHTML(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	s.cfg.Logger.Debug("profile page scraped",
		slog.String("url", url),
		slog.Int("experience", len(doc["experience"].([]any))),
		slog.Int("education", len(doc["education"].([]any))),
	)
	return doc, nil
}

func (s *Scraper) connect() (*rod.Browser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser != nil {
		return s.browser, nil
	}

	wsURL := s.cfg.ControlURL
	if wsURL == "" {
		l := launcher.New().Headless(true).Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, errors.Wrap(err, "browser: launch")
		}
		wsURL = u
		s.lnch = l
		s.cfg.Logger.Info("browser: launched local chrome", slog.String("url", wsURL))
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, errors.Wrap(err, "browser: connect")
	}
	s.browser = b
	return b, nil
}

// Close shuts down the browser if this scraper launched it.
func (s *Scraper) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.browser != nil {
		err = s.browser.Close()
		s.browser = nil
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
		s.lnch = nil
	}
	return err
}
