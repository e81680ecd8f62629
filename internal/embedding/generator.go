// Package embedding converts text into fixed-dimension vectors. A configured
// provider is preferred; on any provider failure the generator degrades to a
// hash-derived pseudo-embedding, and in the last resort to uniform noise.
// Embed never returns an error.
package embedding

import (
	"context"
	"crypto/sha256"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"github.com/docforge/rag-pipeline/pkg/logger"
	"github.com/docforge/rag-pipeline/pkg/metrics"
)

// Dimensions is the storage dimensionality every vector is fitted to,
// regardless of the provider's native output size.
const Dimensions = 384

// Generator produces Dimensions-length vectors for chunk and query text.
type Generator struct {
	provider    Provider
	metrics     *metrics.Metrics
	concurrency int
}

// NewGenerator creates a Generator. provider may be nil (hash fallback
// only); m may be nil in tests.
func NewGenerator(provider Provider, m *metrics.Metrics, concurrency int) *Generator {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Generator{provider: provider, metrics: m, concurrency: concurrency}
}

// Embed returns a vector of exactly Dimensions values. It never fails: a
// provider error falls back to the hash embedding, and the terminal path is
// uniform random noise.
func (g *Generator) Embed(ctx context.Context, text string) []float32 {
	if g.provider != nil {
		vector, err := g.provider.EmbedQuery(ctx, text)
		if err == nil && len(vector) > 0 {
			g.countSource("provider")
			return fitDimensions(vector)
		}
		logger.FromContext(ctx).Warn("embedding provider failed, using hash fallback", "error", err)
	}
	if vector := hashEmbedding(text); vector != nil {
		g.countSource("hash")
		return vector
	}
	g.countSource("random")
	return randomEmbedding()
}

// EmbedBatch embeds each text concurrently with bounded parallelism. Results
// are written by index, so completion order does not matter. The only error
// source is context cancellation; embedding itself never fails.
func (g *Generator) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for i, text := range texts {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			vectors[i] = g.Embed(ctx, text)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (g *Generator) countSource(source string) {
	if g.metrics != nil {
		g.metrics.EmbeddingSourceTotal.WithLabelValues(source).Inc()
	}
}

// fitDimensions truncates or zero-pads a provider vector to Dimensions.
func fitDimensions(v []float32) []float32 {
	switch {
	case len(v) == Dimensions:
		return v
	case len(v) > Dimensions:
		return v[:Dimensions]
	default:
		out := make([]float32, Dimensions)
		copy(out, v)
		return out
	}
}

// hashEmbedding derives a pseudo-embedding from the SHA-256 digest of the
// text. Dimension i takes its sign from bit (i mod 8) of digest byte
// (i mod 32); the magnitude is drawn fresh in (0, 0.5) on every call, so
// repeated calls on identical text agree in sign pattern but not in value.
func hashEmbedding(text string) []float32 {
	digest := sha256.Sum256([]byte(text))
	out := make([]float32, Dimensions)
	for i := 0; i < Dimensions; i++ {
		bit := (digest[i%32] >> (i % 8)) & 1
		magnitude := rand.Float32() * 0.5
		if bit == 1 {
			out[i] = magnitude
		} else {
			out[i] = -magnitude
		}
	}
	return out
}

// randomEmbedding is the terminal fallback: uniform values in (-0.5, 0.5).
func randomEmbedding() []float32 {
	out := make([]float32, Dimensions)
	for i := range out {
		out[i] = rand.Float32() - 0.5
	}
	return out
}
