package conversation

import (
	"context"
	"fmt"

	"github.com/wolfman30/clinic-concierge/pkg/logging"
)

// Publisher enqueues inbound messages for asynchronous processing.
type Publisher struct {
	queue  Queue
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue Queue, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{
		queue:  queue,
		logger: logger,
	}
}

// Enqueue publishes msg and returns the job ID assigned to it.
func (p *Publisher) Enqueue(ctx context.Context, msg InboundMessage) (string, error) {
	msg, body, err := encodeInbound(msg)
	if err != nil {
		return "", err
	}
	if err := p.queue.Send(ctx, body); err != nil {
		return "", fmt.Errorf("conversation: failed to enqueue message: %w", err)
	}

	p.logger.Debug("inbound message enqueued", "job_id", msg.JobID, "sender_id", msg.SenderID, "message_id", msg.MessageID)
	return msg.JobID, nil
}
