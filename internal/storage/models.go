package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Document lifecycle statuses.
const (
	StatusUploaded         = "uploaded"
	StatusProcessed        = "processed"
	StatusProcessingFailed = "processing_failed"
)

// Document is the metadata record for one uploaded file.
type Document struct {
	ID           string
	Name         string
	OriginalName string
	FilePath     string
	FileSize     int64
	FileType     string // uppercased extension, e.g. "PDF"
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Chunk is one contiguous slice of a document's extracted text together
// with its embedding. Index is zero-based and gap-free per document.
type Chunk struct {
	ID         string
	DocumentID string
	Index      int
	Content    string
	Embedding  []float32
}
