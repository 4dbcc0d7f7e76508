package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/wolfman30/clinic-concierge/internal/conversation"
)

type recordingHandler struct {
	seen []string
}

func (h *recordingHandler) Handle(_ context.Context, senderID, text string) conversation.Reply {
	h.seen = append(h.seen, senderID+":"+text)
	return conversation.Reply{Text: "ok " + text, Source: conversation.SourceFAQ}
}

func TestChatSkipsBlankLinesAndPrintsReplies(t *testing.T) {
	h := &recordingHandler{}
	var out bytes.Buffer

	err := chat(context.Background(), h, "9665", strings.NewReader("hello\n\n  \nprices\n"), &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.seen) != 2 || h.seen[0] != "9665:hello" || h.seen[1] != "9665:prices" {
		t.Fatalf("unexpected handled messages %v", h.seen)
	}
	if !strings.Contains(out.String(), "[faq] ok prices") {
		t.Fatalf("expected reply in output, got %q", out.String())
	}
}

func TestEchoClientRepeatsLastMessage(t *testing.T) {
	resp, err := echoClient{}.Complete(context.Background(), conversation.LLMRequest{
		Messages: []conversation.ChatMessage{
			{Role: conversation.ChatRoleUser, Content: "first"},
			{Role: conversation.ChatRoleUser, Content: "second"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "echo: second" {
		t.Fatalf("unexpected text %q", resp.Text)
	}
}
