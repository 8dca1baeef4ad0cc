// Package gemini implements enrich.Generator on the Gemini API.
package gemini

import (
	"context"
	"errors"
	"net"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"google.golang.org/genai"

	"github.com/shpitdev/profile-enricher/pkg/enrich"
)

const provider = "gemini"

type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string
}

// Generator is safe for concurrent use; build one per process and share it.
type Generator struct {
	client *genai.Client
	model  string
}

func New(ctx context.Context, cfg Config) (*Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, pkgerrors.New("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, pkgerrors.New("generation model is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "create gemini client")
	}
	return &Generator{
		client: client,
		model:  strings.TrimSpace(cfg.Model),
	}, nil
}

func (g *Generator) Model() string { return g.model }

func (g *Generator) Generate(ctx context.Context, req enrich.Request) (string, error) {
	resp, err := g.client.Models.GenerateContent(
		ctx,
		g.model,
		[]*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)},
		buildConfig(req),
	)
	if err != nil {
		return "", classifyErr(err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", &enrich.GenerationError{Provider: provider, Err: errors.New("empty response")}
	}
	return text, nil
}

func buildConfig(req enrich.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		CandidateCount: 1,
		Temperature:    genai.Ptr(req.Temperature),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if strings.TrimSpace(req.System) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	return cfg
}

func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &enrich.GenerationError{Provider: provider, Err: err}
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &enrich.GenerationError{
			Provider:  provider,
			Code:      apiErr.Code,
			Transient: apiErr.Code == 429 || apiErr.Code/100 == 5,
			Err:       err,
		}
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return &enrich.GenerationError{Provider: provider, Transient: ne.Timeout(), Err: err}
	}
	return &enrich.GenerationError{Provider: provider, Err: err}
}
