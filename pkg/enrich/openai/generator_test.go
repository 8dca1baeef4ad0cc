package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shpitdev/profile-enricher/pkg/enrich"
	"github.com/shpitdev/profile-enricher/pkg/enrich/openai"
)

func TestGenerate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer gsk_testkey", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Go, Leadership"}}]}`))
	}))
	defer srv.Close()

	gen, err := openai.New(openai.Config{APIKey: "gsk_testkey", Model: "llama-3.3-70b-versatile", BaseURL: srv.URL + "/v1/"})
	require.NoError(t, err)

	text, err := gen.Generate(context.Background(), enrich.Request{
		System:      "sys",
		Prompt:      "extract",
		Temperature: 0.5,
		MaxTokens:   300,
	})
	require.NoError(t, err)
	assert.Equal(t, "Go, Leadership", text)

	assert.Equal(t, "llama-3.3-70b-versatile", got["model"])
	assert.InDelta(t, 0.5, got["temperature"], 1e-6)
	assert.EqualValues(t, 300, got["max_tokens"])
	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "extract", msgs[1].(map[string]any)["content"])
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantTransient bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"error":"slow down"}`, wantTransient: true},
		{name: "server error", status: http.StatusBadGateway, body: `bad gateway`, wantTransient: true},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":"bad key"}`, wantTransient: false},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`, wantTransient: false},
		{name: "malformed", status: http.StatusOK, body: `not json`, wantTransient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			gen, err := openai.New(openai.Config{APIKey: "k", Model: "m", BaseURL: srv.URL})
			require.NoError(t, err)

			_, err = gen.Generate(context.Background(), enrich.Request{Prompt: "p"})
			var ge *enrich.GenerationError
			require.True(t, errors.As(err, &ge), "got %T %v", err, err)
			assert.Equal(t, tt.wantTransient, ge.Transient)
			assert.Equal(t, tt.status, ge.Code)
		})
	}
}

func TestNewValidates(t *testing.T) {
	_, err := openai.New(openai.Config{Model: "m"})
	require.Error(t, err)
	_, err = openai.New(openai.Config{APIKey: "k"})
	require.Error(t, err)
}
