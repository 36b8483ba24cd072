package knowledge

import (
	"context"
	"fmt"
	"strings"
)

// ProgressReader is the read-only slice of the progress store this
// subsystem consumes.
type ProgressReader interface {
	VisitedLocationNames(ctx context.Context, userID string) ([]string, error)
}

// Answer bundles the retrieved context for a question.
type Answer struct {
	Question         string   `json:"question"`
	Chunks           []Chunk  `json:"chunks"`
	VisitedLocations []string `json:"visited_locations,omitempty"`
}

// Service answers questions by retrieving corpus chunks and, when a user is
// known, augmenting them with the locations that user has already visited.
type Service struct {
	retriever Retriever
	progress  ProgressReader
	topK      int
}

// NewService creates a knowledge Service. progress may be nil for anonymous
// question answering.
func NewService(retriever Retriever, progress ProgressReader, topK int) *Service {
	if topK <= 0 {
		topK = 5
	}
	return &Service{retriever: retriever, progress: progress, topK: topK}
}

// Ask retrieves the context for a question. userID may be empty.
func (s *Service) Ask(ctx context.Context, userID, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question is empty")
	}

	chunks, err := s.retriever.Retrieve(ctx, question, s.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}

	answer := &Answer{Question: question, Chunks: chunks}

	if userID != "" && s.progress != nil {
		visited, err := s.progress.VisitedLocationNames(ctx, userID)
		if err != nil {
			// Visited context is best-effort; the retrieval result stands.
			return answer, nil
		}
		answer.VisitedLocations = visited
	}

	return answer, nil
}
