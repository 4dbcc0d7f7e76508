package whatsapp

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/clinic-concierge/internal/conversation"
	observemetrics "github.com/wolfman30/clinic-concierge/internal/observability/metrics"
	"github.com/wolfman30/clinic-concierge/pkg/logging"
)

const (
	signatureHeader = "X-Hub-Signature-256"
	maxWebhookBody  = 1 << 20
)

// InboundSink accepts text messages extracted from webhook payloads.
type InboundSink interface {
	Enqueue(ctx context.Context, msg conversation.InboundMessage) (string, error)
}

type WebhookConfig struct {
	VerifyToken string
	AppSecret   string
	Sink        InboundSink
	Logger      *logging.Logger
	Metrics     *observemetrics.MessagingMetrics
}

// WebhookHandler serves the Meta verification handshake and inbound message notifications.
type WebhookHandler struct {
	verifyToken string
	appSecret   string
	sink        InboundSink
	logger      *logging.Logger
	metrics     *observemetrics.MessagingMetrics
}

func NewWebhookHandler(cfg WebhookConfig) *WebhookHandler {
	if cfg.Sink == nil {
		panic("whatsapp: inbound sink cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &WebhookHandler{
		verifyToken: cfg.VerifyToken,
		appSecret:   cfg.AppSecret,
		sink:        cfg.Sink,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
	}
}

// Verify answers the GET subscription handshake by echoing hub.challenge.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || h.verifyToken == "" ||
		!hmac.Equal([]byte(q.Get("hub.verify_token")), []byte(h.verifyToken)) {
		h.logger.Warn("whatsapp webhook verification rejected", "mode", q.Get("hub.mode"))
		http.Error(w, "verification failed", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, q.Get("hub.challenge"))
}

// Receive handles POSTed notifications. Accepted and ignored payloads both get 200.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		h.metrics.ObserveWebhookLatency("messages", time.Since(start).Seconds())
	}()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if h.appSecret != "" {
		if err := VerifySignature(h.appSecret, r.Header.Get(signatureHeader), body); err != nil {
			h.logger.Warn("whatsapp webhook signature rejected", "error", err)
			h.metrics.ObserveInbound("webhook", "invalid_signature")
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.metrics.ObserveInbound("webhook", "invalid_payload")
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	for _, msg := range ExtractTextMessages(payload) {
		jobID, err := h.sink.Enqueue(r.Context(), msg)
		if err != nil {
			h.logger.Error("failed to enqueue inbound message", "error", err, "message_id", msg.MessageID, "sender_id", msg.SenderID)
			h.metrics.ObserveInbound("text", "enqueue_failed")
			continue
		}
		h.metrics.ObserveInbound("text", "enqueued")
		h.logger.Info("whatsapp message accepted", "job_id", jobID, "message_id", msg.MessageID, "sender_id", msg.SenderID)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, `{"status":"ok"}`)
}

// ExtractTextMessages returns every text message in the payload. Other message types are skipped.
func ExtractTextMessages(payload WebhookPayload) []conversation.InboundMessage {
	var out []conversation.InboundMessage
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			names := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, m := range change.Value.Messages {
				if m.Type != "text" || m.Text == nil || strings.TrimSpace(m.From) == "" {
					continue
				}
				out = append(out, conversation.InboundMessage{
					MessageID:  m.ID,
					SenderID:   m.From,
					SenderName: names[m.From],
					Text:       m.Text.Body,
					ReceivedAt: parseUnix(m.Timestamp),
				})
			}
		}
	}
	return out
}

// VerifySignature checks the sha256=<hex> HMAC of payload against the app secret.
func VerifySignature(appSecret, header string, payload []byte) error {
	header = strings.TrimSpace(header)
	if header == "" {
		return errors.New("whatsapp: missing signature header")
	}
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return errors.New("whatsapp: unsupported signature scheme")
	}
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(sig))) {
		return errors.New("whatsapp: signature mismatch")
	}
	return nil
}

func parseUnix(ts string) time.Time {
	sec, err := strconv.ParseInt(strings.TrimSpace(ts), 10, 64)
	if err != nil || sec <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(sec, 0).UTC()
}
