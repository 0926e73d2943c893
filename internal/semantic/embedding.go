package semantic

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/sha3"

	"github.com/skinclarityclub/insight-engine/pkg/similarity"
)

const (
	// EmbeddingDim is the fixed dimensionality of query embeddings.
	EmbeddingDim = 64

	embeddingTTL = 10 * time.Minute
)

// Embedding is a dense vector representation of a query plus the
// generator's confidence in it.
type Embedding struct {
	Vector     []float64 `json:"vector"`
	Confidence float64   `json:"confidence"`
}

// Embedder turns query text into a vector. Implementations must be
// deterministic for identical inputs so that cached results stay valid.
type Embedder interface {
	Embed(ctx context.Context, text, language string, historyLen int) (*Embedding, error)
}

// HashingEmbedder is the default Embedder: a deterministic feature-hashing
// projection of query terms onto a fixed-size vector. It needs no external
// model service and is stable across restarts.
type HashingEmbedder struct{}

func (HashingEmbedder) Embed(_ context.Context, text, language string, historyLen int) (*Embedding, error) {
	terms := similarity.Terms(text)
	vec := make([]float64, EmbeddingDim)
	for term := range terms {
		h := fnv.New64a()
		h.Write([]byte(term))
		sum := h.Sum64()
		idx := int(sum % EmbeddingDim)
		sign := 1.0
		if (sum>>32)&1 == 1 {
			sign = -1.0
		}
		vec[idx] += sign
	}
	// history presence nudges a reserved dimension so follow-ups embed
	// apart from cold-start queries with identical wording
	if historyLen > 0 {
		vec[EmbeddingDim-1] += math.Min(float64(historyLen), 8) / 8
	}
	if language != "" && language != "en" {
		h := fnv.New64a()
		h.Write([]byte("lang:" + language))
		vec[int(h.Sum64()%(EmbeddingDim-1))] += 0.5
	}
	normalize(vec)

	conf := 0.5
	if len(terms) >= 3 {
		conf = 0.85
	} else if len(terms) > 0 {
		conf = 0.65
	}
	return &Embedding{Vector: vec, Confidence: conf}, nil
}

func normalize(vec []float64) {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
}

// cachedEmbed wraps the embedder with a TTL cache keyed on the full input.
func (a *Analyzer) cachedEmbed(ctx context.Context, text, language string, historyLen int) (*Embedding, error) {
	key := embeddingKey(text, language, historyLen)
	var emb Embedding
	if hit, err := a.cache.Get(ctx, key, &emb); err == nil && hit {
		a.cacheHits.Add(ctx, 1)
		return &emb, nil
	}
	out, err := a.embedder.Embed(ctx, text, language, historyLen)
	if err != nil {
		return nil, err
	}
	if err := a.cache.Set(ctx, key, out, embeddingTTL); err != nil {
		log.Debug().Err(err).Msg("embedding cache write failed")
	}
	return out, nil
}

func embeddingKey(text, language string, historyLen int) string {
	sum := sha3.Sum256([]byte(fmt.Sprintf("%s|%s|%d", strings.ToLower(strings.TrimSpace(text)), language, historyLen)))
	return fmt.Sprintf("emb:%x", sum[:12])
}

var _ Embedder = HashingEmbedder{}
