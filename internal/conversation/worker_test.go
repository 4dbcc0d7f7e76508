package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-concierge/internal/customers"
	"github.com/wolfman30/clinic-concierge/internal/events"
	"github.com/wolfman30/clinic-concierge/pkg/logging"
)

type stubMessenger struct {
	mu      sync.Mutex
	replies []OutboundReply
	err     error
}

func (s *stubMessenger) SendReply(_ context.Context, reply OutboundReply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, reply)
	return s.err
}

func (s *stubMessenger) sent() []OutboundReply {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]OutboundReply(nil), s.replies...)
}

type echoHandler struct {
	mu    sync.Mutex
	calls []string
}

func (h *echoHandler) Handle(_ context.Context, senderID, text string) Reply {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, senderID+":"+text)
	return Reply{Text: "echo " + text, Source: SourceModel}
}

func (h *echoHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

type countingQueue struct {
	*MemoryQueue
	mu      sync.Mutex
	deleted []string
}

func (q *countingQueue) Delete(ctx context.Context, receiptHandle string) error {
	q.mu.Lock()
	q.deleted = append(q.deleted, receiptHandle)
	q.mu.Unlock()
	return q.MemoryQueue.Delete(ctx, receiptHandle)
}

func (q *countingQueue) deleteCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.deleted)
}

func TestWorkerHandlesQueuedMessagesAndReplies(t *testing.T) {
	queue := &countingQueue{MemoryQueue: NewMemoryQueue(10)}
	publisher := NewPublisher(queue, logging.Default())
	handler := &echoHandler{}
	messenger := &stubMessenger{}
	worker := NewWorker(handler, queue, messenger, logging.Default(),
		WithWorkerCount(1), WithReceiveBatchSize(1), WithReceiveWaitSeconds(0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker.Start(ctx)

	jobID, err := publisher.Enqueue(ctx, InboundMessage{MessageID: "wamid.1", SenderID: "9665", Text: "hello"})
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	waitFor(func() bool { return len(messenger.sent()) == 1 }, time.Second, t)
	cancel()
	worker.Wait()

	sent := messenger.sent()[0]
	assert.Equal(t, OutboundReply{To: "9665", Body: "echo hello", ReplyToID: "wamid.1", JobID: jobID}, sent)
	assert.Equal(t, 1, queue.deleteCount())
}

func TestWorkerDropsUndecodableMessages(t *testing.T) {
	queue := &countingQueue{MemoryQueue: NewMemoryQueue(10)}
	handler := &echoHandler{}
	worker := NewWorker(handler, queue, nil, logging.Default(),
		WithWorkerCount(1), WithReceiveWaitSeconds(0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, queue.Send(ctx, "{not json"))
	require.NoError(t, queue.Send(ctx, `{"job_id":"j","text":"no sender"}`))
	worker.Start(ctx)

	waitFor(func() bool { return queue.deleteCount() == 2 }, time.Second, t)
	cancel()
	worker.Wait()

	assert.Zero(t, handler.count())
}

func TestWorkerKeepsGoingWhenSendFails(t *testing.T) {
	queue := &countingQueue{MemoryQueue: NewMemoryQueue(10)}
	publisher := NewPublisher(queue, nil)
	handler := &echoHandler{}
	messenger := &stubMessenger{err: errors.New("graph api down")}
	worker := NewWorker(handler, queue, messenger, nil, WithWorkerCount(2), WithReceiveWaitSeconds(0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for _, text := range []string{"a", "b", "c"} {
		_, err := publisher.Enqueue(ctx, InboundMessage{SenderID: "1", Text: text})
		require.NoError(t, err)
	}
	worker.Start(ctx)

	waitFor(func() bool { return queue.deleteCount() == 3 }, time.Second, t)
	cancel()
	worker.Wait()

	assert.Equal(t, 3, handler.count())
	assert.Len(t, messenger.sent(), 3)
}

func TestWorkerSkipsDuplicateDeliveries(t *testing.T) {
	queue := &countingQueue{MemoryQueue: NewMemoryQueue(10)}
	publisher := NewPublisher(queue, nil)
	handler := &echoHandler{}
	worker := NewWorker(handler, queue, &stubMessenger{}, nil,
		WithWorkerCount(1), WithReceiveWaitSeconds(0),
		WithProcessedStore(events.NewMemoryProcessedStore(time.Hour)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for i := 0; i < 3; i++ {
		_, err := publisher.Enqueue(ctx, InboundMessage{MessageID: "wamid.dup", SenderID: "1", Text: "hi"})
		require.NoError(t, err)
	}
	_, err := publisher.Enqueue(ctx, InboundMessage{SenderID: "1", Text: "no id"})
	require.NoError(t, err)
	worker.Start(ctx)

	waitFor(func() bool { return queue.deleteCount() == 4 }, time.Second, t)
	cancel()
	worker.Wait()

	assert.Equal(t, 2, handler.count())
}

func TestWorkerWithOrchestratorEndToEnd(t *testing.T) {
	store := customers.NewInMemoryRepository(10)
	orchestrator := NewOrchestrator(store, testBundle(t), nil, testSettings(), nil)
	queue := NewMemoryQueue(10)
	publisher := NewPublisher(queue, nil)
	messenger := &stubMessenger{}
	worker := NewWorker(orchestrator, queue, messenger, nil, WithWorkerCount(1), WithReceiveWaitSeconds(0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker.Start(ctx)

	_, err := publisher.Enqueue(ctx, InboundMessage{SenderID: "9665", Text: "hi"})
	require.NoError(t, err)
	waitFor(func() bool { return len(messenger.sent()) == 1 }, time.Second, t)
	cancel()
	worker.Wait()

	profile, err := store.Get(context.Background(), "9665")
	require.NoError(t, err)
	assert.Equal(t, customers.StateAwaitingLanguageSelection, profile.State)
	assert.NotEmpty(t, messenger.sent()[0].Body)
}

func TestWorkerOptionsClamp(t *testing.T) {
	w := NewWorker(&echoHandler{}, NewMemoryQueue(1), nil, nil,
		WithWorkerCount(-1), WithReceiveWaitSeconds(60), WithReceiveBatchSize(50), WithSendTimeout(0))

	assert.Equal(t, defaultWorkerCount, w.cfg.workers)
	assert.Equal(t, maxWaitSeconds, w.cfg.receiveWaitSecs)
	assert.Equal(t, maxReceiveBatchSize, w.cfg.receiveBatchSize)
	assert.Equal(t, defaultSendTimeout, w.cfg.sendTimeout)
}
