package vector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashingEmbedderDeterministic(t *testing.T) {
	e := NewHashingEmbedder(384)
	a := e.Embed("sulfuric acid is corrosive")
	b := e.Embed("sulfuric acid is corrosive")
	assert.Equal(t, a, b)
	assert.Len(t, a, 384)
}

func TestHashingEmbedderNormalized(t *testing.T) {
	e := NewHashingEmbedder(64)
	v := e.Embed("flammable solvent stored in a steel drum")

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestHashingEmbedderEmptyText(t *testing.T) {
	e := NewHashingEmbedder(16)
	v := e.Embed("")
	require.Len(t, v, 16)
	for _, x := range v {
		assert.Zero(t, x)
	}
}

func TestHashingEmbedderDefaultDim(t *testing.T) {
	e := NewHashingEmbedder(0)
	assert.Equal(t, 384, e.Dim())
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, Cosine([]float32{1}, []float32{1, 2}))
	assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestSimilarTextScoresHigher(t *testing.T) {
	e := NewHashingEmbedder(384)
	query := e.Embed("corrosive acid storage")
	near := e.Embed("storage of corrosive acid in glass")
	far := e.Embed("quarterly financial projections for the sales team")

	assert.Greater(t, Cosine(query, near), Cosine(query, far))
	assert.False(t, math.IsNaN(Cosine(query, near)))
}
