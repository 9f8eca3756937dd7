package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Hashing is a deterministic, offline embedder. Each lower-cased word is
// hashed into one of Dim buckets with a sign bit; the result is L2-normalised.
// Equal text always yields an equal vector.
type Hashing struct {
	Dim int
}

func NewHashing(dim int) *Hashing {
	if dim <= 0 {
		dim = 256
	}
	return &Hashing{Dim: dim}
}

func (h *Hashing) Name() string { return "hashing" }

func (h *Hashing) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Provider: h.Name(), Err: err}
	}
	vec := make([]float64, h.Dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		hs := fnv.New64a()
		_, _ = hs.Write([]byte(w))
		sum := hs.Sum64()
		idx := int(sum % uint64(h.Dim))
		if sum&(1<<63) != 0 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		inv := 1 / math.Sqrt(norm)
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

// Static returns fixed vectors per text. Unknown text is an *Error.
type Static map[string][]float64

func (s Static) Embed(_ context.Context, text string) ([]float64, error) {
	vec, ok := s[text]
	if !ok {
		return nil, &Error{Provider: "static", Err: ErrNoEmbeddings}
	}
	out := make([]float64, len(vec))
	copy(out, vec)
	return out, nil
}
