package whatsapp

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-concierge/internal/conversation"
)

const samplePayload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "WABA",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "contacts": [{"wa_id": "966500000001", "profile": {"name": "Omar"}}],
        "messages": [
          {"id": "wamid.text", "from": "966500000001", "timestamp": "1718000000", "type": "text", "text": {"body": "مرحبا"}},
          {"id": "wamid.image", "from": "966500000001", "timestamp": "1718000001", "type": "image"}
        ]
      }
    }]
  }]
}`

type recordingSink struct {
	mu   sync.Mutex
	msgs []conversation.InboundMessage
	err  error
}

func (s *recordingSink) Enqueue(_ context.Context, msg conversation.InboundMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.msgs = append(s.msgs, msg)
	return "job-1", nil
}

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookVerify(t *testing.T) {
	h := NewWebhookHandler(WebhookConfig{VerifyToken: "secret-token", Sink: &recordingSink{}})

	rec := httptest.NewRecorder()
	h.Verify(rec, httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=secret-token&hub.challenge=42", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", rec.Body.String())

	rec = httptest.NewRecorder()
	h.Verify(rec, httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=42", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.Verify(rec, httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?hub.mode=unsubscribe&hub.verify_token=secret-token", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWebhookReceiveEnqueuesTextMessages(t *testing.T) {
	sink := &recordingSink{}
	h := NewWebhookHandler(WebhookConfig{AppSecret: "app-secret", Sink: sink})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(samplePayload))
	req.Header.Set(signatureHeader, sign("app-secret", samplePayload))
	rec := httptest.NewRecorder()
	h.Receive(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.Len(t, sink.msgs, 1)
	msg := sink.msgs[0]
	assert.Equal(t, "wamid.text", msg.MessageID)
	assert.Equal(t, "966500000001", msg.SenderID)
	assert.Equal(t, "Omar", msg.SenderName)
	assert.Equal(t, "مرحبا", msg.Text)
	assert.Equal(t, int64(1718000000), msg.ReceivedAt.Unix())
}

func TestWebhookReceiveRejectsBadSignature(t *testing.T) {
	sink := &recordingSink{}
	h := NewWebhookHandler(WebhookConfig{AppSecret: "app-secret", Sink: sink})

	for _, header := range []string{"", "sha256=deadbeef", sign("other-secret", samplePayload), "md5=abc"} {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(samplePayload))
		req.Header.Set(signatureHeader, header)
		rec := httptest.NewRecorder()
		h.Receive(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
	assert.Empty(t, sink.msgs)
}

func TestWebhookReceiveBadJSON(t *testing.T) {
	h := NewWebhookHandler(WebhookConfig{Sink: &recordingSink{}})

	rec := httptest.NewRecorder()
	h.Receive(rec, httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader("{oops")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookReceiveSwallowsEnqueueFailures(t *testing.T) {
	h := NewWebhookHandler(WebhookConfig{Sink: &recordingSink{err: errors.New("queue full")}})

	rec := httptest.NewRecorder()
	h.Receive(rec, httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(samplePayload)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExtractTextMessagesIgnoresStatusUpdates(t *testing.T) {
	payload := WebhookPayload{Entry: []WebhookEntry{{Changes: []WebhookChange{{Value: WebhookValue{}}}}}}
	assert.Empty(t, ExtractTextMessages(payload))
}
