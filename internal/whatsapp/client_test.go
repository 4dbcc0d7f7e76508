package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/wolfman30/clinic-concierge/internal/conversation"
	observemetrics "github.com/wolfman30/clinic-concierge/internal/observability/metrics"
)

func newTestClient(t *testing.T, server *httptest.Server, cfg Config) *Client {
	t.Helper()
	cfg.BaseURL = server.URL
	cfg.HTTPClient = server.Client()
	if cfg.AccessToken == "" {
		cfg.AccessToken = "token"
	}
	if cfg.PhoneNumberID == "" {
		cfg.PhoneNumberID = "1234"
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = time.Millisecond
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observemetrics.NewMessagingMetrics(prometheus.NewRegistry())
	}
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestSendText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/1234/messages" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Fatalf("unexpected auth header %q", got)
		}
		var body TextMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.MessagingProduct != "whatsapp" || body.To != "9665" || body.Text.Body != "hello" {
			t.Fatalf("unexpected body %#v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"messaging_product":"whatsapp","contacts":[{"input":"9665","wa_id":"9665"}],"messages":[{"id":"wamid.out"}]}`)
	}))
	defer server.Close()

	resp, err := newTestClient(t, server, Config{}).SendText(context.Background(), "9665", "hello")
	if err != nil {
		t.Fatalf("send text: %v", err)
	}
	if resp.MessageID() != "wamid.out" {
		t.Fatalf("unexpected message id %q", resp.MessageID())
	}
}

func TestSendTextRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"messages":[{"id":"wamid.retry"}]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{MaxRetries: 2})
	if err := client.SendReply(context.Background(), conversation.OutboundReply{To: "9665", Body: "hi"}); err != nil {
		t.Fatalf("send reply: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestSendTextDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"Invalid parameter","type":"OAuthException","code":100,"fbtrace_id":"abc"}}`)
	}))
	defer server.Close()

	_, err := newTestClient(t, server, Config{MaxRetries: 3}).SendText(context.Background(), "9665", "hi")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Code != 100 || apiErr.Message != "Invalid parameter" {
		t.Fatalf("unexpected api error %#v", apiErr)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestSendTextValidation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("no request expected")
	}))
	defer server.Close()
	client := newTestClient(t, server, Config{})

	if _, err := client.SendText(context.Background(), "", "hi"); err == nil {
		t.Fatalf("expected missing recipient error")
	}
	if _, err := client.SendText(context.Background(), "9665", "  "); err == nil {
		t.Fatalf("expected missing body error")
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(Config{PhoneNumberID: "1"}); err == nil {
		t.Fatalf("expected access token error")
	}
	if _, err := New(Config{AccessToken: "t"}); err == nil {
		t.Fatalf("expected phone number id error")
	}
}

func TestDecodeAPIErrorFallsBackToBody(t *testing.T) {
	err := decodeAPIError(http.StatusBadGateway, []byte("upstream exploded"))
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "upstream exploded" || apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("unexpected error %#v", err)
	}
}

func TestFailureReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"outside window", &APIError{StatusCode: 400, Code: 131047}, "outside_window"},
		{"invalid recipient", &APIError{StatusCode: 400, Code: 131026}, "invalid_recipient"},
		{"throttled status", &APIError{StatusCode: 429}, "rate_limited"},
		{"throttled code", &APIError{StatusCode: 400, Code: 130429}, "rate_limited"},
		{"pair rate limit", &APIError{StatusCode: 400, Code: 131056}, "rate_limited"},
		{"expired token", &APIError{StatusCode: 401, Code: 190}, "auth"},
		{"server", &APIError{StatusCode: 503}, "server"},
		{"bad parameter", &APIError{StatusCode: 400, Code: 100}, "rejected"},
		{"wrapped canceled", errors.Join(errors.New("send"), context.Canceled), "canceled"},
		{"transport", errors.New("whatsapp: http error: connection refused"), "network"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := FailureReason(tc.err); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestSendTextRecordsFailureReason(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"Re-engagement message","code":131047}}`)
	}))
	defer server.Close()

	reg := prometheus.NewRegistry()
	client := newTestClient(t, server, Config{Metrics: observemetrics.NewMessagingMetrics(reg)})
	if _, err := client.SendText(context.Background(), "9665", "hi"); err == nil {
		t.Fatalf("expected send error")
	}

	expected := `
# HELP clinic_concierge_cloud_api_sends_total Cloud API text sends by status and failure reason
# TYPE clinic_concierge_cloud_api_sends_total counter
clinic_concierge_cloud_api_sends_total{reason="outside_window",status="failed"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "clinic_concierge_cloud_api_sends_total"); err != nil {
		t.Fatal(err)
	}
}
