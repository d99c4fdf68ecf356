package embeddings

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashEmbedder is an offline embedder using signed feature hashing of words
// and character trigrams. Similar wording gives nearby vectors, which is
// enough for local development and tests; it has no semantic knowledge.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder creates a hashing embedder producing dimensions-sized vectors
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 256
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed hashes text into a unit-length vector
func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	acc := make([]float64, h.dimensions)
	for _, feature := range hashFeatures(text) {
		f := fnv.New64a()
		_, _ = f.Write([]byte(feature))
		sum := f.Sum64()
		idx := int(sum % uint64(h.dimensions))
		if sum&(1<<63) != 0 {
			acc[idx]--
		} else {
			acc[idx]++
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, h.dimensions)
	if norm == 0 {
		// every feature cancelled out; keep a valid direction
		out[0] = 1
		return out, nil
	}
	for i, v := range acc {
		out[i] = float32(v / norm)
	}
	return out, nil
}

// EmbedBatch embeds each text in order
func (h *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := h.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Dimensions returns the vector size
func (h *HashEmbedder) Dimensions() int { return h.dimensions }

// Model names the hashing scheme
func (h *HashEmbedder) Model() string { return "hash-trigram-v1" }

func hashFeatures(text string) []string {
	lower := strings.ToLower(text)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	features := make([]string, 0, len(words)*4)
	for _, w := range words {
		features = append(features, "w:"+w)
		features = append(features, trigrams(w)...)
	}
	if len(features) == 0 {
		// punctuation only
		features = append(features, trigrams(strings.TrimSpace(lower))...)
	}
	return features
}

func trigrams(word string) []string {
	runes := []rune("^" + word + "$")
	if len(runes) <= 3 {
		return []string{"t:" + string(runes)}
	}
	out := make([]string, 0, len(runes)-2)
	for i := 0; i+3 <= len(runes); i++ {
		out = append(out, "t:"+string(runes[i:i+3]))
	}
	return out
}
