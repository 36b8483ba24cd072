// Package knowledge answers natural-language questions about the city from
// a small curated corpus. It is a sibling of the progression engine: its
// only coupling is a read-only view of the user's visited locations.
package knowledge

import "context"

// Chunk is one retrievable snippet of the corpus.
type Chunk struct {
	ID       string  `json:"id"`
	Content  string  `json:"content"`
	Category string  `json:"category"`
	Source   string  `json:"source,omitempty"`
	Score    float64 `json:"score"`
}

// Retriever returns the chunks most relevant to a query, best first. A
// managed vector-search service and the local fallback store both satisfy
// this contract.
type Retriever interface {
	Retrieve(ctx context.Context, query string, limit int) ([]Chunk, error)
}

// Embedder produces an embedding vector for a piece of text. Embedding
// generation itself is an external service.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}
