package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docforge/rag-pipeline/pkg/metrics"
)

type fakeProvider struct {
	dims  int
	err   error
	calls int
}

func (f *fakeProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	v := make([]float32, f.dims)
	for i := range v {
		v[i] = float32(i) * 0.001
	}
	return v, nil
}

func TestEmbedAlwaysReturns384(t *testing.T) {
	for _, dims := range []int{100, 384, 1600} {
		g := NewGenerator(&fakeProvider{dims: dims}, nil, 2)
		v := g.Embed(context.Background(), "some text")
		assert.Len(t, v, Dimensions, "provider dims=%d", dims)
	}
}

func TestEmbedZeroPadsShortProviderVector(t *testing.T) {
	g := NewGenerator(&fakeProvider{dims: 100}, nil, 2)
	v := g.Embed(context.Background(), "some text")
	require.Len(t, v, Dimensions)
	for i := 100; i < Dimensions; i++ {
		assert.Zero(t, v[i])
	}
	assert.NotZero(t, v[99])
}

func TestEmbedTruncatesLongProviderVector(t *testing.T) {
	g := NewGenerator(&fakeProvider{dims: 1600}, nil, 2)
	v := g.Embed(context.Background(), "some text")
	require.Len(t, v, Dimensions)
	assert.InDelta(t, 0.383, v[383], 1e-6)
}

func TestEmbedFallsBackOnProviderError(t *testing.T) {
	g := NewGenerator(&fakeProvider{err: errors.New("quota exceeded")}, nil, 2)
	v := g.Embed(context.Background(), "fallback text")
	assert.Len(t, v, Dimensions)
}

func TestEmbedCountsSourceLabels(t *testing.T) {
	m := metrics.New()

	ok := NewGenerator(&fakeProvider{dims: 384}, m, 1)
	ok.Embed(context.Background(), "counted text")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmbeddingSourceTotal.WithLabelValues("provider")))
	assert.Zero(t, testutil.ToFloat64(m.EmbeddingSourceTotal.WithLabelValues("hash")))

	failing := NewGenerator(&fakeProvider{err: errors.New("quota exceeded")}, m, 1)
	failing.Embed(context.Background(), "counted text")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmbeddingSourceTotal.WithLabelValues("hash")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmbeddingSourceTotal.WithLabelValues("provider")))
}

func TestEmbedWithoutProvider(t *testing.T) {
	g := NewGenerator(nil, nil, 2)
	v := g.Embed(context.Background(), "no provider configured")
	assert.Len(t, v, Dimensions)
}

func TestHashEmbeddingSignsDeterministic(t *testing.T) {
	a := hashEmbedding("identical input")
	b := hashEmbedding("identical input")
	require.Len(t, a, Dimensions)
	require.Len(t, b, Dimensions)
	for i := range a {
		if a[i] != 0 && b[i] != 0 {
			assert.Equal(t, a[i] > 0, b[i] > 0, "sign mismatch at dim %d", i)
		}
		assert.Less(t, float64(a[i]), 0.5)
		assert.Greater(t, float64(a[i]), -0.5)
	}
}

func TestHashEmbeddingDiffersBetweenTexts(t *testing.T) {
	a := hashEmbedding("first document")
	b := hashEmbedding("second document")
	sameSign := 0
	for i := range a {
		if (a[i] >= 0) == (b[i] >= 0) {
			sameSign++
		}
	}
	// Different digests should disagree on a large share of signs.
	assert.Less(t, sameSign, 330)
}

func TestEmbedBatchPreservesOrder(t *testing.T) {
	g := NewGenerator(&fakeProvider{dims: 384}, nil, 3)
	texts := []string{"one", "two", "three", "four", "five"}
	vectors, err := g.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	for i, v := range vectors {
		assert.Len(t, v, Dimensions, "index %d", i)
	}
}

func TestEmbedBatchCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := NewGenerator(nil, nil, 2)
	_, err := g.EmbedBatch(ctx, []string{"a", "b", "c"})
	assert.Error(t, err)
}

func TestRandomEmbeddingInRange(t *testing.T) {
	v := randomEmbedding()
	require.Len(t, v, Dimensions)
	for _, x := range v {
		assert.Less(t, float64(x), 0.5)
		assert.GreaterOrEqual(t, float64(x), -0.5)
	}
}
