// Package embed defines the embedding boundary: how transcript text
// becomes state vectors. The core never imports a concrete model; callers
// inject an Embedder. HashProvider is the deterministic reference
// implementation used by the harness and tests.
package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
)

// #region interface

// Embedder maps one text to a fixed-dimension numeric vector. The only
// requirement on implementations is consistent dimensionality within one
// trajectory.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// #endregion interface

// #region hash-provider

// HashProvider is a deterministic pseudo-random embedder: each text hashes
// to a seed which generates a unit vector of the configured dimension.
// Identical text always embeds identically; there is no semantic content.
// It gives the pipeline a reproducible, dependency-free vector source.
type HashProvider struct {
	dim int
}

// NewHashProvider creates a provider emitting vectors of the given
// dimension. Dimensions below 1 fall back to 384.
func NewHashProvider(dim int) *HashProvider {
	if dim < 1 {
		dim = 384
	}
	return &HashProvider{dim: dim}
}

// Dim returns the embedding dimensionality.
func (p *HashProvider) Dim() int { return p.dim }

// Embed returns the deterministic unit vector for text.
func (p *HashProvider) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	vec := make([]float32, p.dim)
	var norm float64
	for i := range vec {
		v := rng.NormFloat64()
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec, nil
}

// #endregion hash-provider

// #region trajectory

// Trajectory embeds transcript lines in order into a Ψ trajectory ready
// for the drift metric. Fails on the first embedding error.
func Trajectory(ctx context.Context, e Embedder, lines []string) ([][]float64, error) {
	psi := make([][]float64, 0, len(lines))
	for i, line := range lines {
		vec, err := e.Embed(ctx, line)
		if err != nil {
			return nil, fmt.Errorf("embed line %d: %w", i, err)
		}
		row := make([]float64, len(vec))
		for j, v := range vec {
			row[j] = float64(v)
		}
		psi = append(psi, row)
	}
	return psi, nil
}

// #endregion trajectory

// #region vector-math

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when the lengths differ or either vector has zero magnitude.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// MeanVector averages vectors element-wise. All vectors must share a
// dimension; returns nil on empty input or mismatched dimensions.
func MeanVector(vecs [][]float64) []float64 {
	if len(vecs) == 0 {
		return nil
	}
	dim := len(vecs[0])
	out := make([]float64, dim)
	for _, v := range vecs {
		if len(v) != dim {
			return nil
		}
		for i, x := range v {
			out[i] += x
		}
	}
	for i := range out {
		out[i] /= float64(len(vecs))
	}
	return out
}

// #endregion vector-math
