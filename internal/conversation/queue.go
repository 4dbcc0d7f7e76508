package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Queue is the job transport between the webhook and the workers.
type Queue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// InboundMessage is a text message already extracted from the platform payload.
type InboundMessage struct {
	JobID      string    `json:"job_id"`
	MessageID  string    `json:"message_id,omitempty"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name,omitempty"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

func encodeInbound(msg InboundMessage) (InboundMessage, string, error) {
	if msg.JobID == "" {
		msg.JobID = uuid.NewString()
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now().UTC()
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return InboundMessage{}, "", fmt.Errorf("conversation: failed to encode inbound message: %w", err)
	}
	return msg, string(body), nil
}

func decodeInbound(body string) (InboundMessage, error) {
	var msg InboundMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return InboundMessage{}, fmt.Errorf("conversation: failed to decode inbound message: %w", err)
	}
	if msg.SenderID == "" {
		return InboundMessage{}, fmt.Errorf("conversation: inbound message %s has no sender", msg.JobID)
	}
	return msg, nil
}
