package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wolfman30/clinic-concierge/internal/catalog"
	"github.com/wolfman30/clinic-concierge/internal/customers"
)

type stubLLMClient struct {
	mu        sync.Mutex
	response  LLMResponse
	err       error
	requests  []LLMRequest
	responses []LLMResponse
	errs      []error
	calls     int
	hook      func(ctx context.Context) error
}

func (s *stubLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	call := s.calls
	s.calls++
	hook := s.hook
	s.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return LLMResponse{}, err
		}
	}
	if call < len(s.errs) && s.errs[call] != nil {
		return LLMResponse{}, s.errs[call]
	}
	if len(s.responses) > 0 {
		if call >= len(s.responses) {
			return LLMResponse{}, errors.New("no scripted response")
		}
		return s.responses[call], nil
	}
	if s.err != nil {
		return LLMResponse{}, s.err
	}
	return s.response, nil
}

func (s *stubLLMClient) lastRequest() LLMRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return LLMRequest{}
	}
	return s.requests[len(s.requests)-1]
}

func (s *stubLLMClient) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testBundle(t *testing.T) *catalog.Bundle {
	t.Helper()
	bundle, err := catalog.Load(context.Background(), catalog.EmbeddedSource(), "en")
	if err != nil {
		t.Fatalf("load embedded catalog: %v", err)
	}
	return bundle
}

func testSettings() Settings {
	s := DefaultSettings()
	s.Model = "test-model"
	s.CompletionTimeout = 200 * time.Millisecond
	return s
}

func completedProfile(id, lang, name string) *customers.Profile {
	p := customers.NewProfile(id)
	p.Apply(customers.ProfileUpdate{
		Language:        customers.Ptr(lang),
		Name:            customers.Ptr(name),
		ServiceInterest: customers.Ptr("dental"),
		State:           customers.Ptr(customers.StateCompleted),
	})
	return p
}

func waitFor(cond func() bool, timeout time.Duration, t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
