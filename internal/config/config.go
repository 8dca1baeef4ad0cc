// Package config loads runtime settings from an optional YAML file and
// environment overrides.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Providers accepted by Generation.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	Generation Generation `yaml:"generation"`
	Store      Store      `yaml:"store"`
	Browser    Browser    `yaml:"browser"`
	Batch      Batch      `yaml:"batch"`
	Log        Log        `yaml:"log"`
}

type Generation struct {
	Provider     string        `yaml:"provider"`
	Model        string        `yaml:"model"`
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	TaskTimeout  time.Duration `yaml:"task_timeout"`
	RateLimitRPS float64       `yaml:"rate_limit_rps"`

	// fileAPIKey is the api_key read from the config file, before any
	// environment override.
	fileAPIKey string
}

type Store struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type Browser struct {
	ControlURL        string        `yaml:"control_url"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
}

type Batch struct {
	Workers        int           `yaml:"workers"`
	MaxRetries     int           `yaml:"max_retries"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	FailFast       bool          `yaml:"fail_fast"`
}

type Log struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// Default returns the settings used when neither file nor environment say otherwise.
func Default() Config {
	return Config{
		Generation: Generation{
			Provider:    ProviderGemini,
			TaskTimeout: 30 * time.Second,
		},
		Store:   Store{Driver: "none"},
		Browser: Browser{NavigationTimeout: 30 * time.Second},
		Batch: Batch{
			Workers:        4,
			MaxRetries:     2,
			RequestTimeout: 2 * time.Minute,
		},
		Log: Log{Format: "text", Level: "info"},
	}
}

// Load reads path (skipped when empty) over the defaults, then applies the
// environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path = strings.TrimSpace(path); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "read config file")
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "parse %s", path)
		}
		cfg.Generation.fileAPIKey = cfg.Generation.APIKey
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	envString(&c.Generation.Provider, "LLM_PROVIDER")
	envString(&c.Generation.Model, "LLM_MODEL")
	envString(&c.Generation.BaseURL, "LLM_BASE_URL")
	envString(&c.Store.Driver, "STORE_DRIVER")
	envString(&c.Store.DSN, "DATABASE_URL")
	envString(&c.Browser.ControlURL, "BROWSER_CONTROL_URL")

	c.Generation.resolveAPIKey()

	var err error
	if c.Generation.TaskTimeout, err = envDuration("TASK_TIMEOUT", c.Generation.TaskTimeout); err != nil {
		return err
	}
	if c.Generation.RateLimitRPS, err = envFloat("RATE_LIMIT_RPS", c.Generation.RateLimitRPS); err != nil {
		return err
	}
	if c.Batch.Workers, err = envInt("WORKERS", c.Batch.Workers); err != nil {
		return err
	}
	if c.Batch.MaxRetries, err = envInt("MAX_RETRIES", c.Batch.MaxRetries); err != nil {
		return err
	}
	if c.Batch.RequestTimeout, err = envDuration("REQUEST_TIMEOUT", c.Batch.RequestTimeout); err != nil {
		return err
	}
	if c.Batch.FailFast, err = envBool("FAIL_FAST", c.Batch.FailFast); err != nil {
		return err
	}
	return nil
}

// UseProvider switches the provider and picks the API key for it again, so a
// provider chosen after Load still gets its own key.
func (g *Generation) UseProvider(name string) {
	g.Provider = name
	g.resolveAPIKey()
}

// resolveAPIKey applies the key overrides for the current provider. A
// provider-specific key wins over the generic one, which wins over the file.
func (g *Generation) resolveAPIKey() {
	key := g.fileAPIKey
	envString(&key, "LLM_API_KEY")
	if strings.EqualFold(g.Provider, ProviderGemini) {
		envString(&key, "GEMINI_API_KEY")
	}
	g.APIKey = key
}

// ValidateGeneration checks the settings needed to build a generation client.
func (c Config) ValidateGeneration() error {
	g := c.Generation
	switch strings.ToLower(g.Provider) {
	case ProviderGemini, ProviderOpenAI:
	default:
		return errors.Errorf("unknown generation provider %q", g.Provider)
	}
	if strings.TrimSpace(g.APIKey) == "" {
		if strings.EqualFold(g.Provider, ProviderGemini) {
			return errors.New("GEMINI_API_KEY is required")
		}
		return errors.New("LLM_API_KEY is required")
	}
	if strings.TrimSpace(g.Model) == "" {
		return errors.New("generation model is required (LLM_MODEL)")
	}
	if g.TaskTimeout <= 0 {
		return errors.Errorf("task timeout must be positive, got %s", g.TaskTimeout)
	}
	if g.RateLimitRPS < 0 {
		return errors.Errorf("rate limit must not be negative, got %g", g.RateLimitRPS)
	}
	return nil
}

func envString(dst *string, varName string) {
	if v := strings.TrimSpace(os.Getenv(varName)); v != "" {
		*dst = v
	}
}

func envInt(varName string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s=%q", varName, v)
	}
	return out, nil
}

func envFloat(varName string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s=%q", varName, v)
	}
	return out, nil
}

func envDuration(varName string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s=%q", varName, v)
	}
	return out, nil
}

func envBool(varName string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.Wrapf(err, "invalid %s=%q", varName, v)
	}
	return out, nil
}
