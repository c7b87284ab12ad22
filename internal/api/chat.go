package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/oselz/docchat/internal/llm"
)

const maxChatBodySize = 1 << 20 // 1MB

type chatRequest struct {
	Message     string        `json:"message"`
	ChatHistory []llm.Message `json:"chat_history"`
}

func handleChat(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxChatBodySize)
		defer r.Body.Close()

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message cannot be empty")
			return
		}

		answer, err := deps.Chat.Answer(r.Context(), req.Message, req.ChatHistory)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "chat failed: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, answer)
	}
}
