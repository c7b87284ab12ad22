// Package chat answers user questions grounded in retrieved document chunks.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/oselz/docchat/internal/llm"
	"github.com/oselz/docchat/internal/retrieval"
)

// Retriever finds document chunks relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]retrieval.Match, error)
}

// Completer produces a chat completion. Satisfied by llm.Client.
type Completer interface {
	ChatCompletion(ctx context.Context, messages []llm.Message) (string, error)
}

// Source identifies the document a piece of supporting context came from.
type Source struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	DocumentType string  `json:"document_type"`
	Similarity   float32 `json:"similarity"`
	SourceLink   string  `json:"source_link"`
}

// Answer is the reply to one chat message with its supporting sources.
type Answer struct {
	Response string   `json:"response"`
	Sources  []Source `json:"sources"`
}

// Service ties retrieval and completion together.
type Service struct {
	retriever Retriever
	completer Completer
	logger    *slog.Logger
}

// NewService creates a chat Service.
func NewService(retriever Retriever, completer Completer) *Service {
	return &Service{retriever: retriever, completer: completer, logger: slog.Default()}
}

// Answer retrieves context for message, sends it with the prior history to
// the model, and returns the reply. A retrieval failure degrades to a
// context-free answer instead of failing the request.
func (s *Service) Answer(ctx context.Context, message string, history []llm.Message) (Answer, error) {
	matches, err := s.retriever.Retrieve(ctx, message)
	if err != nil {
		s.logger.Warn("retrieval failed, answering without context", "error", err)
		matches = nil
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: systemPrompt(matches)})
	for _, m := range history {
		role := m.Role
		if role == "" {
			role = "user"
		}
		messages = append(messages, llm.Message{Role: role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: message})

	response, err := s.completer.ChatCompletion(ctx, messages)
	if err != nil {
		return Answer{}, fmt.Errorf("completing chat: %w", err)
	}

	sources := make([]Source, len(matches))
	for i, m := range matches {
		sources[i] = Source{
			DocumentID:   m.DocumentID,
			DocumentName: m.DocumentName,
			DocumentType: m.FileType,
			Similarity:   m.Similarity,
			SourceLink:   m.SourceLink,
		}
	}

	return Answer{Response: response, Sources: sources}, nil
}

// systemPrompt embeds the retrieved chunks into the instruction the model
// answers under. With no matches the context section is left empty so the
// model falls back to a general answer.
func systemPrompt(matches []retrieval.Match) string {
	var contexts []string
	for _, m := range matches {
		contexts = append(contexts, m.Content)
	}

	return fmt.Sprintf(`You are a helpful AI assistant with access to a knowledge base.
Use the following context to answer the user's question. If the context doesn't contain relevant information,
say so and provide a general helpful response.

Context:
%s

Please provide a helpful and accurate response based on the available information.`,
		strings.Join(contexts, "\n\n"))
}
