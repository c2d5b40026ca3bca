package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-backend/internal/config"
	"rag-backend/internal/domain"
)

func TestNewSelectsImplementation(t *testing.T) {
	e, err := New(config.EmbedderConfig{Type: "hashing", Dimension: 32})
	require.NoError(t, err)
	assert.Equal(t, "hashing", e.Name())
	assert.Equal(t, 32, e.Dimension())

	e, err = New(config.EmbedderConfig{Type: "ollama", Model: "nomic-embed-text"})
	require.NoError(t, err)
	assert.Equal(t, "ollama", e.Name())
}

func TestNewOpenAIWithoutKeyIsCredentialError(t *testing.T) {
	t.Setenv("RAG_TEST_MISSING_KEY", "")
	_, err := New(config.EmbedderConfig{
		Type:   "openai",
		OpenAI: &config.OpenAIEmbedderConfig{APIKeyEnv: "RAG_TEST_MISSING_KEY"},
	})
	require.ErrorIs(t, err, domain.ErrMissingCredential)
}

func TestNewRejectsUnknownType(t *testing.T) {
	_, err := New(config.EmbedderConfig{Type: "word2vec"})
	require.Error(t, err)
}
