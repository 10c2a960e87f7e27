package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/raphaelgruber/fsechat/internal/config"
	"github.com/raphaelgruber/fsechat/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedEmbedder struct {
	dim int
	err error
}

func (f fixedEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
		out[i][0] = float32(len(texts[i]))
	}
	return out, nil
}

func (f fixedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vs, err := f.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func TestEmbed(t *testing.T) {
	mc := metrics.NewCollector()
	e := NewEmbedderWithModel(fixedEmbedder{dim: 4}, "test", 4, nil, mc)

	v, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 0, 0, 0}, v)
	assert.Equal(t, int64(1), mc.Snapshot().Get(metrics.OpEmbedding).Count)
}

func TestEmbedDimensionMismatch(t *testing.T) {
	e := NewEmbedderWithModel(fixedEmbedder{dim: 3}, "test", 4, nil, nil)

	_, err := e.Embed(context.Background(), "hello")
	assert.ErrorContains(t, err, "dimension mismatch")
}

func TestEmbedBatch(t *testing.T) {
	e := NewEmbedderWithModel(fixedEmbedder{dim: 2}, "test", 2, nil, nil)

	vs, err := e.EmbedBatch(context.Background(), []string{"a", "bb"})
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.Equal(t, float32(2), vs[1][0])

	empty, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestEmbedFatal(t *testing.T) {
	e := NewEmbedderWithModel(fixedEmbedder{err: errors.New("quota exceeded")}, "test", 2, nil, nil)

	_, err := e.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrFatalAPI)
}

func TestNewEmbedderUnsupported(t *testing.T) {
	_, err := NewEmbedder(config.Config{EmbedProvider: "vertex"}, nil, nil)
	assert.ErrorContains(t, err, "unsupported embedding provider")
}
