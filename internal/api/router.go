// Package api exposes the document and chat endpoints over HTTP, plus an MCP
// server for tool-based access.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/oselz/docchat/internal/chat"
	"github.com/oselz/docchat/internal/files"
	"github.com/oselz/docchat/internal/llm"
	"github.com/oselz/docchat/internal/storage"
)

// Pipeline processes an uploaded document. Satisfied by ingest.Pipeline.
type Pipeline interface {
	Process(ctx context.Context, doc storage.Document, data []byte) error
}

// ChatService answers a chat message. Satisfied by chat.Service.
type ChatService interface {
	Answer(ctx context.Context, message string, history []llm.Message) (chat.Answer, error)
}

// AppDeps holds the dependencies of the HTTP handlers.
type AppDeps struct {
	Store          *storage.Store
	Files          *files.Store
	Pipeline       Pipeline
	Chat           ChatService
	MaxUploadBytes int64
}

// NewAppHandler builds the application router.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Post("/documents/upload", handleUpload(deps))
	r.Get("/documents", handleListDocuments(deps))
	r.Get("/documents/{id}", handleGetDocument(deps))
	r.Get("/documents/{id}/download", handleDownload(deps))
	r.Delete("/documents/all", handleDeleteAll(deps))
	r.Delete("/documents/{id}", handleDeleteDocument(deps))
	r.Delete("/documents", handleDeleteMultiple(deps))

	r.Post("/chat", handleChat(deps))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
