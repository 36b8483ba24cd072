package knowledge

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// LocalStore is the in-memory fallback Retriever. With an Embedder it ranks
// chunks by cosine similarity of their embeddings; without one it falls
// back to token overlap between query and chunk text.
type LocalStore struct {
	embedder Embedder

	mu     sync.RWMutex
	chunks []storedChunk
}

type storedChunk struct {
	chunk     Chunk
	embedding []float64
	tokens    map[string]bool
}

// NewLocalStore creates a LocalStore. embedder may be nil.
func NewLocalStore(embedder Embedder) *LocalStore {
	return &LocalStore{embedder: embedder}
}

// Add ingests one chunk into the corpus.
func (s *LocalStore) Add(ctx context.Context, content, category, source string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("chunk content is empty")
	}

	sc := storedChunk{
		chunk: Chunk{
			ID:       uuid.NewString(),
			Content:  content,
			Category: category,
			Source:   source,
		},
		tokens: tokenize(content),
	}

	if s.embedder != nil {
		embedding, err := s.embedder.Embed(ctx, content)
		if err != nil {
			return fmt.Errorf("failed to embed chunk: %w", err)
		}
		sc.embedding = embedding
	}

	s.mu.Lock()
	s.chunks = append(s.chunks, sc)
	s.mu.Unlock()
	return nil
}

// Len returns the corpus size.
func (s *LocalStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Retrieve returns up to limit chunks scored against the query, best first.
// Chunks with zero relevance are omitted.
func (s *LocalStore) Retrieve(ctx context.Context, query string, limit int) ([]Chunk, error) {
	if limit <= 0 {
		limit = 5
	}

	var queryEmbedding []float64
	if s.embedder != nil {
		embedding, err := s.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}
		queryEmbedding = embedding
	}
	queryTokens := tokenize(query)

	s.mu.RLock()
	scored := make([]Chunk, 0, len(s.chunks))
	for _, sc := range s.chunks {
		var score float64
		if queryEmbedding != nil && sc.embedding != nil {
			score = cosine(queryEmbedding, sc.embedding)
		} else {
			score = overlap(queryTokens, sc.tokens)
		}
		if score <= 0 {
			continue
		}
		c := sc.chunk
		c.Score = score
		scored = append(scored, c)
	}
	s.mu.RUnlock()

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// tokenize lowercases and splits text into a token set, stripping
// punctuation at the token edges.
func tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, field := range strings.Fields(strings.ToLower(text)) {
		token := strings.Trim(field, ".,!?;:\"'()[]")
		if len(token) > 1 {
			tokens[token] = true
		}
	}
	return tokens
}

// overlap is the fraction of query tokens present in the chunk.
func overlap(query, chunk map[string]bool) float64 {
	if len(query) == 0 {
		return 0
	}
	matched := 0
	for token := range query {
		if chunk[token] {
			matched++
		}
	}
	return float64(matched) / float64(len(query))
}

// cosine computes cosine similarity between two vectors. Zero when the
// dimensions disagree or either vector is zero.
func cosine(a, b []float64) float64 {
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
