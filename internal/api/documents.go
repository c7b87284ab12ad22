package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/oselz/docchat/internal/storage"
)

// allowedExtensions lists the upload types the extraction pipeline accepts.
var allowedExtensions = map[string]bool{
	"txt": true, "pdf": true, "doc": true, "docx": true, "md": true,
	"js": true, "sql": true, "yaml": true, "yml": true,
	"pptx": true, "ppt": true, "xlsx": true, "xls": true, "csv": true,
}

// documentResponse is the wire form of a document record.
type documentResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	OriginalName string `json:"original_name"`
	FileSize     int64  `json:"file_size"`
	FileType     string `json:"file_type"`
	Status       string `json:"status"`
	UploadDate   string `json:"upload_date"`
	CreatedAt    string `json:"created_at"`
}

func toDocumentResponse(d storage.Document) documentResponse {
	return documentResponse{
		ID:           d.ID,
		Name:         d.Name,
		OriginalName: d.OriginalName,
		FileSize:     d.FileSize,
		FileType:     d.FileType,
		Status:       d.Status,
		UploadDate:   d.CreatedAt.UTC().Format("2006-01-02"),
		CreatedAt:    d.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func handleUpload(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Allow some slack over the document limit for multipart framing.
		r.Body = http.MaxBytesReader(w, r.Body, deps.MaxUploadBytes+1<<20)
		defer r.Body.Close()

		file, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "no file provided")
			return
		}
		defer file.Close()

		if header.Filename == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "no file selected")
			return
		}

		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(header.Filename), "."))
		if ext == "" || !allowedExtensions[ext] {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "file type not allowed")
			return
		}

		data, err := io.ReadAll(io.LimitReader(file, deps.MaxUploadBytes+1))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to read file: %v", err)
			return
		}
		if int64(len(data)) > deps.MaxUploadBytes {
			httpError(w, http.StatusBadRequest, "invalid_request_error",
				"file too large, maximum size is %dMB", deps.MaxUploadBytes>>20)
			return
		}

		storedName, err := deps.Files.Save(header.Filename, data)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save file: %v", err)
			return
		}

		now := time.Now().UTC()
		doc := storage.Document{
			ID:           uuid.New().String(),
			Name:         header.Filename,
			OriginalName: header.Filename,
			FilePath:     storedName,
			FileSize:     int64(len(data)),
			FileType:     strings.ToUpper(ext),
			Status:       storage.StatusUploaded,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := deps.Store.CreateDocument(doc); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save document: %v", err)
			return
		}

		// A pipeline failure does not fail the upload. The record stays
		// listable and deletable; the response carries the processing error.
		if err := deps.Pipeline.Process(r.Context(), doc, data); err != nil {
			writeJSON(w, http.StatusOK, map[string]any{
				"message":          "file uploaded, processing had issues",
				"document":         toDocumentResponse(reloadDocument(deps, doc)),
				"processing_error": err.Error(),
			})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"message":  "file uploaded successfully",
			"document": toDocumentResponse(reloadDocument(deps, doc)),
		})
	}
}

// reloadDocument refetches doc so the response reflects the status the
// pipeline just wrote. Falls back to the in-memory copy on error.
func reloadDocument(deps AppDeps, doc storage.Document) storage.Document {
	fresh, err := deps.Store.GetDocument(doc.ID)
	if err != nil {
		return doc
	}
	return fresh
}

func handleListDocuments(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		docs, err := deps.Store.ListDocuments(limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list documents: %v", err)
			return
		}
		total, err := deps.Store.CountDocuments()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to count documents: %v", err)
			return
		}

		responses := make([]documentResponse, len(docs))
		for i, d := range docs {
			responses[i] = toDocumentResponse(d)
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"documents": responses,
			"total":     total,
		})
	}
}

func handleGetDocument(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		doc, err := deps.Store.GetDocument(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "document not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get document: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, toDocumentResponse(doc))
	}
}

func handleDownload(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		doc, err := deps.Store.GetDocument(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "document not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get document: %v", err)
			return
		}

		data, err := deps.Files.Read(doc.FilePath)
		if err != nil {
			httpError(w, http.StatusNotFound, "not_found", "file not found on server")
			return
		}

		name := doc.OriginalName
		if name == "" {
			name = doc.Name
		}
		mimeType := mime.TypeByExtension(filepath.Ext(name))
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}

		w.Header().Set("Content-Type", mimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		w.Write(data)
	}
}

func handleDeleteDocument(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		doc, err := deps.Store.GetDocument(id)
		if errors.Is(err, storage.ErrNotFound) {
			// Already gone. Deleting is idempotent.
			writeJSON(w, http.StatusOK, map[string]string{"message": "document deleted successfully"})
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get document: %v", err)
			return
		}

		// Blob removal is best-effort; the row and chunks are authoritative.
		_ = deps.Files.Delete(doc.FilePath)

		if _, err := deps.Store.DeleteDocuments([]string{id}); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete document: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"message": "document deleted successfully"})
	}
}

func handleDeleteMultiple(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			DocumentIDs []string `json:"document_ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if len(req.DocumentIDs) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "no document ids provided")
			return
		}

		docs, err := deps.Store.GetDocumentsByIDs(req.DocumentIDs)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to resolve documents: %v", err)
			return
		}
		for _, d := range docs {
			_ = deps.Files.Delete(d.FilePath)
		}

		deleted, err := deps.Store.DeleteDocuments(req.DocumentIDs)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete documents: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"message":       fmt.Sprintf("deleted %d documents successfully", deleted),
			"deleted_count": deleted,
		})
	}
}

func handleDeleteAll(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		total, err := deps.Store.CountDocuments()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to count documents: %v", err)
			return
		}
		docs, err := deps.Store.ListDocuments(total, 0)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list documents: %v", err)
			return
		}
		for _, d := range docs {
			_ = deps.Files.Delete(d.FilePath)
		}

		deletedDocs, deletedChunks, err := deps.Store.DeleteAllDocuments()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete documents: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"message":           fmt.Sprintf("deleted %d documents and %d chunks", deletedDocs, deletedChunks),
			"deleted_documents": deletedDocs,
			"deleted_chunks":    deletedChunks,
		})
	}
}
