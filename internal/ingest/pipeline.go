// Package ingest runs the upload pipeline: extract text, chunk it, embed the
// chunks, and store them for retrieval.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/oselz/docchat/internal/chunk"
	"github.com/oselz/docchat/internal/extract"
	"github.com/oselz/docchat/internal/storage"
)

// Extractor turns file bytes into plain text. Satisfied by extract.Extractor.
type Extractor interface {
	Extract(ctx context.Context, data []byte, fileType string) extract.Result
}

// Embedder turns chunk texts into vectors. Satisfied by llm.Client.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkInserter persists embedded chunks. Satisfied by retrieval.ChunkStore.
type ChunkInserter interface {
	InsertChunks(ctx context.Context, chunks []storage.Chunk) error
}

// StatusUpdater records the processing outcome on the document row.
// Satisfied by storage.Store.
type StatusUpdater interface {
	UpdateDocumentStatus(id, status string) error
}

// Pipeline processes one uploaded document end to end.
type Pipeline struct {
	extractor Extractor
	embedder  Embedder
	chunks    ChunkInserter
	docs      StatusUpdater

	maxChunkChars int
	chunkOverlap  int
	logger        *slog.Logger
}

// New creates a Pipeline with the given chunking parameters.
func New(extractor Extractor, embedder Embedder, chunks ChunkInserter, docs StatusUpdater, maxChunkChars, chunkOverlap int) *Pipeline {
	return &Pipeline{
		extractor:     extractor,
		embedder:      embedder,
		chunks:        chunks,
		docs:          docs,
		maxChunkChars: maxChunkChars,
		chunkOverlap:  chunkOverlap,
		logger:        slog.Default(),
	}
}

// Process extracts, chunks, embeds, and stores doc's content, then marks the
// document processed. On failure the document row is kept and marked
// processing_failed so the upload remains listable and deletable; the
// returned error describes the failing stage.
func (p *Pipeline) Process(ctx context.Context, doc storage.Document, data []byte) error {
	res := p.extractor.Extract(ctx, data, doc.FileType)
	if res.Failure != nil {
		p.markFailed(doc.ID)
		return fmt.Errorf("extracting text: %w", res.Failure)
	}
	if res.OCRUsed {
		p.logger.Info("recovered text via ocr", "document_id", doc.ID, "chars", len(res.Text))
	}

	contents := p.splitClean(res.Text)
	if len(contents) == 0 {
		// An empty document is a valid document. Nothing to index.
		if err := p.docs.UpdateDocumentStatus(doc.ID, storage.StatusProcessed); err != nil {
			return fmt.Errorf("marking document processed: %w", err)
		}
		p.logger.Info("document has no indexable text", "document_id", doc.ID)
		return nil
	}

	vectors, err := p.embedder.Embed(ctx, contents)
	if err != nil {
		p.markFailed(doc.ID)
		return fmt.Errorf("embedding %d chunks: %w", len(contents), err)
	}

	rows := make([]storage.Chunk, len(contents))
	for i, content := range contents {
		rows[i] = storage.Chunk{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			Index:      i,
			Content:    content,
			Embedding:  vectors[i],
		}
	}
	if err := p.chunks.InsertChunks(ctx, rows); err != nil {
		p.markFailed(doc.ID)
		return fmt.Errorf("storing chunks: %w", err)
	}

	if err := p.docs.UpdateDocumentStatus(doc.ID, storage.StatusProcessed); err != nil {
		return fmt.Errorf("marking document processed: %w", err)
	}
	p.logger.Info("document processed", "document_id", doc.ID, "chunks", len(rows))
	return nil
}

// splitClean chunks the text and sanitizes each chunk, dropping any that end
// up empty after control characters are stripped.
func (p *Pipeline) splitClean(text string) []string {
	var contents []string
	for _, c := range chunk.Split(text, p.maxChunkChars, p.chunkOverlap) {
		if cleaned := chunk.Clean(c); cleaned != "" {
			contents = append(contents, cleaned)
		}
	}
	return contents
}

func (p *Pipeline) markFailed(id string) {
	if err := p.docs.UpdateDocumentStatus(id, storage.StatusProcessingFailed); err != nil {
		p.logger.Warn("marking document failed", "document_id", id, "error", err)
	}
}
