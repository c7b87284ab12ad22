package storage

import (
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:): %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testDocument(id string) Document {
	now := time.Now().UTC().Truncate(time.Second)
	return Document{
		ID:           id,
		Name:         "report.pdf",
		OriginalName: "report.pdf",
		FilePath:     "uploads/" + id + "_report.pdf",
		FileSize:     2048,
		FileType:     "PDF",
		Status:       StatusUploaded,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestCreateAndGetDocument(t *testing.T) {
	s := openTestStore(t)

	doc := testDocument("d1")
	if err := s.CreateDocument(doc); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}

	got, err := s.GetDocument("d1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.Name != doc.Name || got.FileType != "PDF" || got.Status != StatusUploaded {
		t.Errorf("got %+v, want %+v", got, doc)
	}
	if !got.CreatedAt.Equal(doc.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, doc.CreatedAt)
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetDocument("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateDocumentStatus(t *testing.T) {
	s := openTestStore(t)

	if err := s.CreateDocument(testDocument("d1")); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if err := s.UpdateDocumentStatus("d1", StatusProcessed); err != nil {
		t.Fatalf("UpdateDocumentStatus: %v", err)
	}

	got, err := s.GetDocument("d1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.Status != StatusProcessed {
		t.Errorf("Status = %q, want %q", got.Status, StatusProcessed)
	}

	if err := s.UpdateDocumentStatus("missing", StatusProcessed); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListDocuments_Pagination(t *testing.T) {
	s := openTestStore(t)

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		doc := testDocument(string(rune('a' + i)))
		doc.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		doc.UpdatedAt = doc.CreatedAt
		if err := s.CreateDocument(doc); err != nil {
			t.Fatalf("CreateDocument: %v", err)
		}
	}

	docs, err := s.ListDocuments(2, 0)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2", len(docs))
	}
	// Newest first.
	if docs[0].ID != "e" || docs[1].ID != "d" {
		t.Errorf("order = %s, %s; want e, d", docs[0].ID, docs[1].ID)
	}

	total, err := s.CountDocuments()
	if err != nil {
		t.Fatalf("CountDocuments: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
}

func TestDeleteDocuments_Idempotent(t *testing.T) {
	s := openTestStore(t)

	if err := s.CreateDocument(testDocument("d1")); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}

	n, err := s.DeleteDocuments([]string{"d1"})
	if err != nil {
		t.Fatalf("DeleteDocuments: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}

	// Second delete of the same id must not fail.
	n, err = s.DeleteDocuments([]string{"d1"})
	if err != nil {
		t.Fatalf("DeleteDocuments (second): %v", err)
	}
	if n != 0 {
		t.Errorf("deleted = %d, want 0", n)
	}
}

func TestDeleteDocuments_CascadesChunks(t *testing.T) {
	s := openTestStore(t)

	if err := s.CreateDocument(testDocument("d1")); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	_, err := s.DB().Exec(`INSERT INTO document_chunks (id, document_id, chunk_index, content, embedding)
		VALUES ('c1', 'd1', 0, 'hello', X'00000000')`)
	if err != nil {
		t.Fatalf("inserting chunk: %v", err)
	}

	if _, err := s.DeleteDocuments([]string{"d1"}); err != nil {
		t.Fatalf("DeleteDocuments: %v", err)
	}

	var n int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM document_chunks").Scan(&n); err != nil {
		t.Fatalf("counting chunks: %v", err)
	}
	if n != 0 {
		t.Errorf("chunks remaining = %d, want 0", n)
	}
}

func TestDeleteAllDocuments(t *testing.T) {
	s := openTestStore(t)

	for _, id := range []string{"d1", "d2"} {
		if err := s.CreateDocument(testDocument(id)); err != nil {
			t.Fatalf("CreateDocument: %v", err)
		}
	}
	_, err := s.DB().Exec(`INSERT INTO document_chunks (id, document_id, chunk_index, content, embedding)
		VALUES ('c1', 'd1', 0, 'hello', X'00000000')`)
	if err != nil {
		t.Fatalf("inserting chunk: %v", err)
	}

	docs, chunks, err := s.DeleteAllDocuments()
	if err != nil {
		t.Fatalf("DeleteAllDocuments: %v", err)
	}
	if docs != 2 || chunks != 1 {
		t.Errorf("deleted %d docs, %d chunks; want 2, 1", docs, chunks)
	}
}

func TestGetDocumentsByIDs(t *testing.T) {
	s := openTestStore(t)

	for _, id := range []string{"d1", "d2", "d3"} {
		if err := s.CreateDocument(testDocument(id)); err != nil {
			t.Fatalf("CreateDocument: %v", err)
		}
	}

	docs, err := s.GetDocumentsByIDs([]string{"d1", "d3", "missing"})
	if err != nil {
		t.Fatalf("GetDocumentsByIDs: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("got %d docs, want 2", len(docs))
	}
}
