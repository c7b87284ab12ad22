package retrieval

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/oselz/docchat/internal/storage"
)

func openTestDB(t *testing.T) *storage.Store {
	t.Helper()
	st, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func createTestDocument(t *testing.T, st *storage.Store, id string) {
	t.Helper()
	now := time.Now().UTC()
	err := st.CreateDocument(storage.Document{
		ID:           id,
		Name:         "doc-" + id,
		OriginalName: "doc-" + id + ".txt",
		FilePath:     id + "_doc.txt",
		FileSize:     10,
		FileType:     "TXT",
		Status:       storage.StatusProcessed,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("creating document %s: %v", id, err)
	}
}

// unitVec returns a 3-dim unit vector whose cosine similarity against
// [1, 0, 0] equals c.
func unitVec(c float64) []float32 {
	s := math.Sqrt(1 - c*c)
	return []float32{float32(c), float32(s), 0}
}

func TestInsertAndSearch(t *testing.T) {
	st := openTestDB(t)
	store := NewChunkStore(st.DB())
	createTestDocument(t, st, "doc1")

	chunks := []storage.Chunk{
		{ID: "c1", DocumentID: "doc1", Index: 0, Content: "close match", Embedding: unitVec(0.95)},
		{ID: "c2", DocumentID: "doc1", Index: 1, Content: "medium match", Embedding: unitVec(0.5)},
		{ID: "c3", DocumentID: "doc1", Index: 2, Content: "far match", Embedding: unitVec(0.1)},
	}
	if err := store.InsertChunks(context.Background(), chunks); err != nil {
		t.Fatalf("InsertChunks: %v", err)
	}

	results, err := store.Search(context.Background(), []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ID != "c1" || results[1].ID != "c2" {
		t.Errorf("got order %s, %s", results[0].ID, results[1].ID)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("scores not descending: %v, %v", results[0].Score, results[1].Score)
	}
	if results[0].DocumentName != "doc-doc1" || results[0].FileType != "TXT" {
		t.Errorf("document metadata not joined: %+v", results[0])
	}
}

func TestSearch_TopKLargerThanTable(t *testing.T) {
	st := openTestDB(t)
	store := NewChunkStore(st.DB())
	createTestDocument(t, st, "doc1")

	chunks := []storage.Chunk{
		{ID: "c1", DocumentID: "doc1", Index: 0, Content: "a", Embedding: unitVec(0.9)},
		{ID: "c2", DocumentID: "doc1", Index: 1, Content: "b", Embedding: unitVec(0.2)},
	}
	if err := store.InsertChunks(context.Background(), chunks); err != nil {
		t.Fatalf("InsertChunks: %v", err)
	}

	results, err := store.Search(context.Background(), []float32{1, 0, 0}, 50)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want 2", len(results))
	}
}

func TestSearch_EmptyTable(t *testing.T) {
	st := openTestDB(t)
	store := NewChunkStore(st.DB())

	results, err := store.Search(context.Background(), []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results from empty table", len(results))
	}
}

func TestSearch_ZeroQueryVector(t *testing.T) {
	st := openTestDB(t)
	store := NewChunkStore(st.DB())
	createTestDocument(t, st, "doc1")
	chunks := []storage.Chunk{
		{ID: "c1", DocumentID: "doc1", Index: 0, Content: "a", Embedding: unitVec(0.9)},
	}
	if err := store.InsertChunks(context.Background(), chunks); err != nil {
		t.Fatalf("InsertChunks: %v", err)
	}

	results, err := store.Search(context.Background(), []float32{0, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results != nil {
		t.Errorf("got %v for zero query vector", results)
	}
}

func TestInsertChunks_RollsBackOnFailure(t *testing.T) {
	st := openTestDB(t)
	store := NewChunkStore(st.DB())
	createTestDocument(t, st, "doc1")

	// The second chunk violates the unique (document_id, chunk_index)
	// constraint, which must undo the first insert too.
	chunks := []storage.Chunk{
		{ID: "c1", DocumentID: "doc1", Index: 0, Content: "a", Embedding: unitVec(0.9)},
		{ID: "c2", DocumentID: "doc1", Index: 0, Content: "b", Embedding: unitVec(0.8)},
	}
	if err := store.InsertChunks(context.Background(), chunks); err == nil {
		t.Fatal("expected constraint violation")
	}

	n, err := store.CountChunks(context.Background(), "doc1")
	if err != nil {
		t.Fatalf("CountChunks: %v", err)
	}
	if n != 0 {
		t.Errorf("got %d chunks after rollback, want 0", n)
	}
}

func TestCountChunks(t *testing.T) {
	st := openTestDB(t)
	store := NewChunkStore(st.DB())
	createTestDocument(t, st, "doc1")
	createTestDocument(t, st, "doc2")

	var chunks []storage.Chunk
	for i := range 3 {
		chunks = append(chunks, storage.Chunk{
			ID: fmt.Sprintf("a%d", i), DocumentID: "doc1", Index: i,
			Content: "x", Embedding: unitVec(0.5),
		})
	}
	chunks = append(chunks, storage.Chunk{
		ID: "b0", DocumentID: "doc2", Index: 0, Content: "y", Embedding: unitVec(0.5),
	})
	if err := store.InsertChunks(context.Background(), chunks); err != nil {
		t.Fatalf("InsertChunks: %v", err)
	}

	total, err := store.CountChunks(context.Background(), "")
	if err != nil {
		t.Fatalf("CountChunks: %v", err)
	}
	if total != 4 {
		t.Errorf("total = %d, want 4", total)
	}
	perDoc, err := store.CountChunks(context.Background(), "doc1")
	if err != nil {
		t.Fatalf("CountChunks(doc1): %v", err)
	}
	if perDoc != 3 {
		t.Errorf("doc1 count = %d, want 3", perDoc)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3.14159, -0.0001}
	out, err := decodeFloat32s(encodeFloat32s(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("got %d values, want %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("value %d: got %v, want %v", i, out[i], in[i])
		}
	}
}

func TestDecodeFloat32s_CorruptLength(t *testing.T) {
	if _, err := decodeFloat32s([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for length not divisible by 4")
	}
}
