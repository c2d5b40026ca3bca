package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-backend/internal/config"
	"rag-backend/internal/domain"
)

func TestNewSelectsOllama(t *testing.T) {
	cfg := config.Default().LLM
	cfg.Provider = "OLLAMA"
	g, err := New(cfg)
	require.NoError(t, err)
	o, ok := g.(*Ollama)
	require.True(t, ok)
	assert.Equal(t, "llama3", o.Model())
	assert.Equal(t, "http://ollama:11434", o.BaseURL())
}

func TestNewSelectsGemini(t *testing.T) {
	cfg := config.Default().LLM
	cfg.Provider = " gemini "
	cfg.Gemini.APIKey = "key"
	g, err := New(cfg)
	require.NoError(t, err)
	gm, ok := g.(*Gemini)
	require.True(t, ok)
	assert.Equal(t, "gemini-1.5-flash", gm.Model())
}

func TestNewGeminiWithoutKey(t *testing.T) {
	cfg := config.Default().LLM
	cfg.Provider = "gemini"
	_, err := New(cfg)
	require.ErrorIs(t, err, domain.ErrMissingCredential)
	assert.Contains(t, err.Error(), "GOOGLE_API_KEY")
}

func TestNewUnsupportedProvider(t *testing.T) {
	cfg := config.Default().LLM
	cfg.Provider = "openai"
	_, err := New(cfg)
	require.ErrorIs(t, err, domain.ErrUnsupportedProvider)
	assert.Equal(t, `unsupported LLM provider: "openai" (supported: gemini, ollama)`, err.Error())
	assert.Equal(t, []string{"gemini", "ollama"}, Providers())
}

func TestOllamaGenerate(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"model":"llama3","response":"  Paris.  ","done":true}`))
	}))
	defer srv.Close()

	o := NewOllama(OllamaConfig{BaseURL: srv.URL, Model: "llama3"})
	out, err := o.Generate(context.Background(), "capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "  Paris.  ", out)
	assert.False(t, got.Stream)
	assert.Equal(t, "capital of France?", got.Prompt)
	assert.Equal(t, 0.0, got.Options["temperature"])
}

func TestOllamaGenerateError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllama(OllamaConfig{BaseURL: srv.URL}).Generate(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}

func TestGeminiGenerate(t *testing.T) {
	var got geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-1.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "k", r.URL.Query().Get("key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Bon"},{"text":"jour"}]}}]}`))
	}))
	defer srv.Close()

	g, err := NewGemini(GeminiConfig{APIKey: "k", BaseURL: srv.URL, Temperature: 0.2})
	require.NoError(t, err)
	out, err := g.Generate(context.Background(), "salut")
	require.NoError(t, err)
	assert.Equal(t, "Bonjour", out)
	require.Len(t, got.Contents, 1)
	assert.Equal(t, "salut", got.Contents[0].Parts[0].Text)
	assert.Equal(t, 0.2, got.GenerationConfig.Temperature)
}

func TestGeminiGenerateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid"}}`))
	}))
	defer srv.Close()

	g, err := NewGemini(GeminiConfig{APIKey: "bad", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key not valid")
	assert.NotContains(t, err.Error(), "key=bad")
}
