package retrieval

import (
	"container/heap"
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/oselz/docchat/internal/storage"
)

// ChunkStore provides chunk persistence and brute-force cosine similarity
// search over the document_chunks table.
//
// Brute force is fine at this scale; when the chunk count grows past ~100K
// and query latency becomes noticeable, swap in a backend with ANN indexes.
type ChunkStore struct {
	db *sql.DB
}

// NewChunkStore wraps an existing *sql.DB for chunk operations. The
// document_chunks table must already exist (created via migrations).
func NewChunkStore(db *sql.DB) *ChunkStore {
	return &ChunkStore{db: db}
}

// InsertChunks stores all chunks in a single transaction. A failure rolls
// back the whole batch so a document is never half-indexed.
func (s *ChunkStore) InsertChunks(ctx context.Context, chunks []storage.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO document_chunks (id, document_id, chunk_index, content, embedding)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		blob := encodeFloat32s(c.Embedding)
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.Index, c.Content, blob); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// CountChunks returns the number of stored chunks, optionally scoped to one
// document. documentID == "" counts everything.
func (s *ChunkStore) CountChunks(ctx context.Context, documentID string) (int, error) {
	var count int
	var err error
	if documentID == "" {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM document_chunks").Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM document_chunks WHERE document_id = ?", documentID).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

// ScoredChunk is a chunk with its cosine similarity to a query vector,
// joined with the owning document's name and type.
type ScoredChunk struct {
	ID           string
	DocumentID   string
	DocumentName string
	FileType     string
	Index        int
	Content      string
	Score        float32
}

// Search returns the topK chunks most similar to vector, best first.
func (s *ChunkStore) Search(ctx context.Context, vector []float32, topK int) ([]ScoredChunk, error) {
	if topK <= 0 {
		return nil, nil
	}

	queryNorm := norm(vector)
	if queryNorm == 0 {
		return nil, nil
	}

	// Phase 1: scan only id + embedding to find top-K candidates.
	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding FROM document_chunks`)
	if err != nil {
		return nil, fmt.Errorf("querying chunk vectors: %w", err)
	}
	defer rows.Close()

	h := &idScoreHeap{}
	heap.Init(h)

	// Reusable buffer for decoding embeddings to avoid per-row allocations.
	var buf []float32

	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", id, err)
		}

		score := cosine(vector, buf, queryNorm)
		if h.Len() < topK {
			heap.Push(h, idScore{ID: id, Score: score})
		} else if score > (*h)[0].Score {
			(*h)[0] = idScore{ID: id, Score: score}
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	if h.Len() == 0 {
		return nil, nil
	}

	// Phase 2: fetch chunk bodies and document metadata only for the winners.
	topIDs := make([]string, h.Len())
	scores := make(map[string]float32, h.Len())
	for i := len(topIDs) - 1; i >= 0; i-- {
		item := heap.Pop(h).(idScore)
		topIDs[i] = item.ID
		scores[item.ID] = item.Score
	}

	queryArgs := make([]interface{}, len(topIDs))
	for i, id := range topIDs {
		queryArgs[i] = id
	}
	fullQuery := `
		SELECT c.id, c.document_id, c.chunk_index, c.content, d.name, d.file_type
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.id IN (?` + strings.Repeat(",?", len(topIDs)-1) + `)`

	fullRows, err := s.db.QueryContext(ctx, fullQuery, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("fetching top-K chunks: %w", err)
	}
	defer fullRows.Close()

	var results []ScoredChunk
	for fullRows.Next() {
		var c ScoredChunk
		if err := fullRows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Content, &c.DocumentName, &c.FileType); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.Score = scores[c.ID]
		results = append(results, c)
	}
	if err := fullRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	// Sort by score descending (the IN query does not preserve order).
	sortByScore(results)

	return results, nil
}

// sortByScore sorts ScoredChunks by Score descending. Used for small slices (topK).
func sortByScore(results []ScoredChunk) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Score > results[j-1].Score; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}
