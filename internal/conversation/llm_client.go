package conversation

import (
	"context"

	"github.com/wolfman30/clinic-concierge/internal/customers"
)

// Chat roles understood by every completion backend. The system prompt travels in LLMRequest.System,
// so a rendered conversation only ever alternates user and assistant.
const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatMessages renders stored turns followed by the new customer text.
func chatMessages(history []customers.Turn, text string) []ChatMessage {
	messages := make([]ChatMessage, 0, len(history)+1)
	for _, turn := range history {
		role := ChatRoleUser
		if turn.Role == customers.RoleAssistant {
			role = ChatRoleAssistant
		}
		messages = append(messages, ChatMessage{Role: role, Content: turn.Content})
	}
	return append(messages, ChatMessage{Role: ChatRoleUser, Content: text})
}

// TokenUsage is reported per completion and exported as clinic_concierge_completion_tokens_total.
type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// LLMRequest is one concierge completion: persona, customer name, shift hint and reference data as
// System blocks, then the bounded history.
type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
}

type LLMResponse struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// LLMClient is implemented by the Gemini and Bedrock backends. Complete must return once ctx is done.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}
