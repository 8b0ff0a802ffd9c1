package services

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Novakiki/kindredbackend/models"
	"github.com/Novakiki/kindredbackend/visibility"
)

// completionAPI is the slice of the OpenAI client the chat service uses;
// tests substitute a stub.
type completionAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ChatService answers questions about a note. The prompt it builds only ever
// contains redacted content: the masker runs over the prose and references
// are described by their render labels, so un-consented names cannot leak
// into the LLM conversation.
type ChatService struct {
	client completionAPI
	model  string
}

// NewChatService creates a chat service. With an empty API key the service is
// disabled and Answer returns an error.
func NewChatService(apiKey, model string) *ChatService {
	s := &ChatService{model: model}
	if apiKey != "" {
		s.client = openai.NewClient(apiKey)
	}
	return s
}

// newChatServiceWithClient is used by tests to inject a stub client.
func newChatServiceWithClient(client completionAPI, model string) *ChatService {
	return &ChatService{client: client, model: model}
}

// Enabled reports whether an LLM backend is configured.
func (s *ChatService) Enabled() bool {
	return s.client != nil
}

// BuildContext renders the note into prompt text using only render-safe
// labels and masked prose.
func (s *ChatService) BuildContext(note *models.Note, projected []visibility.ProjectedReference) string {
	var b strings.Builder
	b.WriteString("Memory note: ")
	b.WriteString(note.Title)
	b.WriteString("\n\n")
	b.WriteString(visibility.MaskContent(note.Content, projected))
	b.WriteString("\n\nPeople and sources mentioned:\n")
	for _, ref := range projected {
		if ref.RenderLabel == "" {
			continue
		}
		if ref.Role != "" {
			fmt.Fprintf(&b, "- %s (%s)\n", ref.RenderLabel, ref.Role)
		} else {
			fmt.Fprintf(&b, "- %s\n", ref.RenderLabel)
		}
	}
	return b.String()
}

// Answer asks the configured model a question about the note, grounded only
// in the redacted context.
func (s *ChatService) Answer(ctx context.Context, note *models.Note, projected []visibility.ProjectedReference, question string) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("chat service is not configured")
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "You answer questions about a family memory note. Use only the provided " +
					"context. Some people are shown by initials or relationship only; never guess " +
					"or reconstruct their real names.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: s.BuildContext(note, projected) + "\nQuestion: " + question,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
