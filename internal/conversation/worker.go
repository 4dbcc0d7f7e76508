package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/clinic-concierge/internal/events"
	"github.com/wolfman30/clinic-concierge/pkg/logging"
)

// DedupProvider namespaces platform message ids in the processed store.
const DedupProvider = "whatsapp"

// MessageHandler turns one inbound message into a reply. *Orchestrator satisfies it.
type MessageHandler interface {
	Handle(ctx context.Context, senderID, text string) Reply
}

// Worker consumes inbound messages from the queue, runs them through the handler and sends the reply.
type Worker struct {
	handler   MessageHandler
	queue     Queue
	messenger ReplyMessenger
	processed events.ProcessedStore
	logger    *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	sendTimeout      time.Duration
	processed        events.ProcessedStore
}

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
	defaultSendTimeout   = 10 * time.Second
)

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithSendTimeout bounds each outbound reply call.
func WithSendTimeout(d time.Duration) WorkerOption {
	return func(cfg *workerConfig) {
		if d > 0 {
			cfg.sendTimeout = d
		}
	}
}

// WithProcessedStore skips messages whose platform message id was already handled.
func WithProcessedStore(store events.ProcessedStore) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.processed = store
	}
}

func NewWorker(handler MessageHandler, queue Queue, messenger ReplyMessenger, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if handler == nil {
		panic("conversation: handler cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
		sendTimeout:      defaultSendTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		handler:   handler,
		queue:     queue,
		messenger: messenger,
		processed: cfg.processed,
		logger:    logger,
		cfg:       cfg,
	}
}

// Start launches the consumer goroutines. They stop when ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("conversation worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("conversation worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive inbound messages", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if len(messages) == 0 && w.cfg.receiveWaitSecs == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(50 * time.Millisecond):
			}
			continue
		}

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

// handleMessage deletes the queue message whatever the outcome.
func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	defer w.deleteMessage(context.Background(), msg.ReceiptHandle)

	inbound, err := decodeInbound(msg.Body)
	if err != nil {
		w.logger.Error("dropping undecodable inbound message", "error", err, "queue_message_id", msg.ID)
		return
	}

	if w.isDuplicate(ctx, inbound) {
		w.logger.Info("skipping duplicate delivery", "job_id", inbound.JobID, "message_id", inbound.MessageID)
		return
	}

	w.logger.Info("worker processing message", "job_id", inbound.JobID, "sender_id", inbound.SenderID, "message_id", inbound.MessageID)
	reply := w.handler.Handle(ctx, inbound.SenderID, inbound.Text)

	if w.messenger == nil {
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, w.cfg.sendTimeout)
	defer cancel()
	if err := w.messenger.SendReply(sendCtx, OutboundReply{
		To:        inbound.SenderID,
		Body:      reply.Text,
		ReplyToID: inbound.MessageID,
		JobID:     inbound.JobID,
	}); err != nil {
		w.logger.Error("failed to send reply", "error", err, "job_id", inbound.JobID, "sender_id", inbound.SenderID)
	}
}

// isDuplicate reports false when the store errors.
func (w *Worker) isDuplicate(ctx context.Context, inbound InboundMessage) bool {
	if w.processed == nil || inbound.MessageID == "" {
		return false
	}
	fresh, err := w.processed.MarkProcessed(ctx, DedupProvider, inbound.MessageID)
	if err != nil {
		w.logger.Warn("dedup check failed, processing anyway", "error", err, "message_id", inbound.MessageID)
		return false
	}
	return !fresh
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}

	deleteCtx, cancel := context.WithTimeout(ctx, deleteTimeoutSeconds*time.Second)
	defer cancel()

	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete inbound message", "error", err)
	}
}
