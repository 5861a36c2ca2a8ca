// Package embedding defines the provider contract for turning text
// into fixed-dimension vectors, plus the vector hygiene shared by every
// provider: dimension checks and cosine normalization.
package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/akolanti/docproc/internal/config"
)

type Embedder interface {
	// GetEmbedding embeds a single retrieval query.
	GetEmbedding(ctx context.Context, query string) ([]float32, error)
	// BatchEmbedding embeds one batch of document chunks in a single
	// provider call. Callers slice their input to the configured batch
	// size; order of the returned vectors matches the input order.
	BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error)
	// ModelID names the model the vectors came from.
	ModelID() string
}

// Validate rejects vectors that cannot be persisted: wrong dimension or
// components that are not finite numbers.
func Validate(vec []float32) error {
	want := int(config.EmbeddingOutputDimensionality)
	if len(vec) != want {
		return fmt.Errorf("embedding dimension %d, want %d", len(vec), want)
	}
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("embedding component %d is not finite", i)
		}
	}
	return nil
}

// Normalize scales a vector to unit length so stored vectors always
// carry cosine semantics, whatever the provider returned. Zero vectors
// are returned unchanged.
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := math.Sqrt(sum)
	if math.Abs(norm-1) < 1e-6 {
		return vec
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
