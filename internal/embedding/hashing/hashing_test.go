package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestEmbedderProducesNormalizedFixedDimension(t *testing.T) {
	e := NewEmbedder(64)
	assert.Equal(t, 64, e.Dimension())
	assert.Equal(t, "hashing", e.Name())

	vecs, err := e.EmbedDocuments(context.Background(), []string{"Qdrant stores vectors", ""})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Len(t, vecs[0], 64)
	assert.InDelta(t, 1.0, math.Sqrt(cosine(vecs[0], vecs[0])), 1e-5)
	assert.Equal(t, make([]float32, 64), vecs[1])
}

func TestEmbedderIsDeterministicAndRanksOverlap(t *testing.T) {
	e := NewEmbedder(0)
	assert.Equal(t, DefaultDimension, e.Dimension())
	ctx := context.Background()

	q1, err := e.EmbedQuery(ctx, "refund policy for damaged goods")
	require.NoError(t, err)
	q2, err := e.EmbedQuery(ctx, "refund policy for damaged goods")
	require.NoError(t, err)
	assert.Equal(t, q1, q2)

	docs, err := e.EmbedDocuments(ctx, []string{
		"Our refund policy covers damaged goods within thirty days.",
		"The cafeteria opens at nine and serves breakfast.",
	})
	require.NoError(t, err)
	assert.Greater(t, cosine(q1, docs[0]), cosine(q1, docs[1]))
}

func TestEmbedQueryStopwordOnlyTextIsZero(t *testing.T) {
	vec, err := NewEmbedder(8).EmbedQuery(context.Background(), "What is this?")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 8), vec)
}

func TestEmbedDocumentsHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEmbedder(8).EmbedDocuments(ctx, []string{"x"})
	require.ErrorIs(t, err, context.Canceled)
}
