package fake

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strings"
	"unicode"

	"github.com/wilhg/kit/pkg/adapters/embedding"
)

// Embedder is a deterministic bag-of-words embedder for tests and offline
// runs. Each lowercased word is hashed into one dimension, so texts that
// share words point in similar directions.
type Embedder struct {
	dim  int
	name string
}

// New returns a new fake embedder with the given dimension (>= 4).
func New(dim int) *Embedder {
	if dim < 4 {
		dim = 4
	}
	return &Embedder{dim: dim, name: "fake"}
}

func (e *Embedder) Name() string { return e.name }

func (e *Embedder) Embed(ctx context.Context, inputs []string, opts map[string]any) ([]embedding.Vector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]embedding.Vector, len(inputs))
	for i, s := range inputs {
		vec := make(embedding.Vector, e.dim)
		words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, w := range words {
			h := sha256.Sum256([]byte(w))
			vec[binary.LittleEndian.Uint32(h[:4])%uint32(e.dim)]++
		}
		// Empty text still needs a non-zero vector for cosine queries.
		if len(words) == 0 {
			vec[0] = 1
		}
		out[i] = vec
	}
	return out, nil
}

// Factory builds a fake embedder: cfg keys: dim
func Factory(ctx context.Context, cfg map[string]any) (embedding.Embedder, error) { // nolint: revive
	_ = ctx
	dim := 64
	switch v := cfg["dim"].(type) {
	case int:
		dim = v
	case float64:
		dim = int(v)
	}
	return New(dim), nil
}

func init() {
	_ = embedding.Register("fake", Factory)
}
