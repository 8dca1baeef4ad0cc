// Package openai implements enrich.Generator against OpenAI-compatible
// chat-completions endpoints such as Groq.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/shpitdev/profile-enricher/pkg/enrich"
)

const (
	// DefaultBaseURL is the Groq OpenAI-compatible API root.
	DefaultBaseURL = "https://api.groq.com/openai/v1"

	provider = "openai"
)

type Config struct {
	APIKey  string
	Model   string
	BaseURL string

	// HTTPClient defaults to a client with a 120s timeout.
	HTTPClient *http.Client
}

// Generator is safe for concurrent use; build one per process and share it.
type Generator struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

func New(cfg Config) (gen *Generator, err error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		err = errors.New("LLM_API_KEY is required")
		return gen, err
	}
	if strings.TrimSpace(cfg.Model) == "" {
		err = errors.New("generation model is required")
		return gen, err
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	gen = &Generator{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      strings.TrimSpace(cfg.Model),
		endpoint:   base + "/chat/completions",
		httpClient: httpClient,
	}
	return gen, err
}

func (g *Generator) Model() string { return g.model }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (g *Generator) Generate(ctx context.Context, req enrich.Request) (text string, err error) {
	body := chatRequest{
		Model:       g.model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if strings.TrimSpace(req.System) != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.Prompt})

	var reqBody []byte
	reqBody, err = json.Marshal(body)
	if err != nil {
		err = fail(0, errors.Wrap(err, "failed to marshal request"))
		return text, err
	}

	var httpReq *http.Request
	httpReq, err = http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		err = fail(0, errors.Wrap(err, "failed to create HTTP request"))
		return text, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	var resp *http.Response
	resp, err = g.httpClient.Do(httpReq)
	if err != nil {
		ge := fail(0, errors.Wrap(err, "HTTP request failed"))
		var ne net.Error
		ge.Transient = errors.As(err, &ne) && ne.Timeout()
		err = ge
		return text, err
	}
	defer resp.Body.Close()

	var respBody []byte
	respBody, err = io.ReadAll(resp.Body)
	if err != nil {
		err = fail(resp.StatusCode, errors.Wrap(err, "failed to read response body"))
		return text, err
	}

	if resp.StatusCode != http.StatusOK {
		ge := fail(resp.StatusCode, errors.Errorf("API request failed: %s", truncate(string(respBody), 300)))
		ge.Transient = resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode/100 == 5
		err = ge
		return text, err
	}

	var parsed chatResponse
	err = json.Unmarshal(respBody, &parsed)
	if err != nil {
		err = fail(resp.StatusCode, errors.Wrap(err, "failed to parse chat response"))
		return text, err
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		err = fail(resp.StatusCode, errors.New("no content in chat response"))
		return text, err
	}

	text = parsed.Choices[0].Message.Content
	return text, err
}

func fail(code int, err error) *enrich.GenerationError {
	return &enrich.GenerationError{Provider: provider, Code: code, Err: err}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
