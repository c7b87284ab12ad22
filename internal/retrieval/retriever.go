// Package retrieval stores embedded document chunks and finds the ones most
// similar to a query.
package retrieval

import (
	"context"
	"fmt"
)

// Match is one retrieved chunk relevant to a query.
type Match struct {
	Content      string
	DocumentID   string
	DocumentName string
	FileType     string
	Similarity   float32
	SourceLink   string
}

// Embedder turns texts into vectors. Satisfied by llm.Client.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever combines query embedding and vector search.
type Retriever struct {
	embedder Embedder
	store    *ChunkStore
	topK     int
	cutoff   float32
}

// NewRetriever creates a Retriever. Matches scoring below cutoff are dropped
// even when they land in the top-K.
func NewRetriever(embedder Embedder, store *ChunkStore, topK int, cutoff float32) *Retriever {
	return &Retriever{embedder: embedder, store: store, topK: topK, cutoff: cutoff}
}

// Retrieve embeds the query and returns the most similar chunks, best first.
// An empty result is a normal outcome, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]Match, error) {
	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("got %d query embeddings, want 1", len(vectors))
	}

	scored, err := r.store.Search(ctx, vectors[0], r.topK)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}

	var matches []Match
	for _, c := range scored {
		if c.Score < r.cutoff {
			continue
		}
		matches = append(matches, Match{
			Content:      c.Content,
			DocumentID:   c.DocumentID,
			DocumentName: c.DocumentName,
			FileType:     c.FileType,
			Similarity:   c.Score,
			SourceLink:   "/documents/" + c.DocumentID,
		})
	}
	return matches, nil
}
