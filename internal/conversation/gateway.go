package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/clinic-concierge/internal/catalog"
	"github.com/wolfman30/clinic-concierge/internal/customers"
	"github.com/wolfman30/clinic-concierge/pkg/logging"
)

var languageNames = map[string]string{
	"en": "English",
	"ar": "Arabic",
}

// CompletionRequest is one call into the gateway.
type CompletionRequest struct {
	SenderID    string
	Text        string
	Language    string
	DisplayName string
	History     []customers.Turn
}

// Completion is the gateway result. On failure Text holds the canned apology for Failure.
type Completion struct {
	Text    string
	Failure FailureCategory
	Err     error
	Usage   TokenUsage
}

// Failed reports whether Text is an apology rather than model output.
func (c Completion) Failed() bool {
	return c.Failure != ""
}

// Gateway assembles the system context, calls the completion backend and converts every failure into a
// localized apology.
type Gateway struct {
	client    LLMClient
	persona   string
	reference string
	replies   *catalog.Replies
	settings  Settings
	recorder  customers.HistoryRepository
	now       func() time.Time
	logger    *logging.Logger
}

// GatewayOption customizes a Gateway.
type GatewayOption func(*Gateway)

// WithHistoryRecorder makes the gateway append the user and assistant turns after a successful completion.
// Leave unset when the caller records turns itself.
func WithHistoryRecorder(repo customers.HistoryRepository) GatewayOption {
	return func(g *Gateway) {
		g.recorder = repo
	}
}

// WithClock overrides the wall clock used for the shift hint.
func WithClock(now func() time.Time) GatewayOption {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGateway builds a gateway. A nil client is allowed; every call then answers with the
// completion_unavailable reply.
func NewGateway(client LLMClient, bundle *catalog.Bundle, settings Settings, logger *logging.Logger, opts ...GatewayOption) *Gateway {
	if bundle == nil || bundle.Replies == nil {
		panic("conversation: catalog bundle cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	g := &Gateway{
		client:    client,
		persona:   bundle.Persona,
		reference: bundle.Reference,
		replies:   bundle.Replies,
		settings:  settings.withDefaults(),
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SystemContext returns the system blocks in order: persona, identity clause, shift hint, reference data.
func (g *Gateway) SystemContext(displayName, language string, now time.Time) []string {
	blocks := make([]string, 0, 4)

	persona := g.persona
	if name, ok := languageNames[language]; ok {
		persona = strings.TrimSpace(persona + "\nAlways reply in " + name + ".")
	}
	if persona != "" {
		blocks = append(blocks, persona)
	}
	if name := strings.TrimSpace(displayName); name != "" {
		blocks = append(blocks, fmt.Sprintf(
			"The customer's name is %s. Address them by name and do not ask for their name again.", name))
	}
	blocks = append(blocks, g.settings.Shifts.Hint(now))
	if g.reference != "" {
		blocks = append(blocks, "Reference data:\n"+g.reference)
	}
	return blocks
}

// Messages converts the trimmed history plus the new user text into chat messages.
func (g *Gateway) Messages(history []customers.Turn, text string) []ChatMessage {
	if limit := g.settings.HistoryLimit; len(history) > limit {
		history = history[len(history)-limit:]
	}
	return chatMessages(history, text)
}

// Respond runs one completion under the configured timeout. It never returns an error; failures are
// reported through Completion.Failure with an apology in Text.
func (g *Gateway) Respond(ctx context.Context, req CompletionRequest) Completion {
	lang := g.settings.ResolveLanguage(req.Language)
	if g.client == nil {
		return g.fail(lang, FailureUnavailable, nil)
	}

	llmReq := LLMRequest{
		Model:       g.settings.Model,
		System:      g.SystemContext(req.DisplayName, lang, g.now()),
		Messages:    g.Messages(req.History, req.Text),
		MaxTokens:   g.settings.MaxTokens,
		Temperature: g.settings.Temperature,
	}

	callCtx, cancel := context.WithTimeout(ctx, g.settings.CompletionTimeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.Complete(callCtx, llmReq)
	if err == nil && strings.TrimSpace(resp.Text) == "" {
		err = ErrEmptyCompletion
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	completionLatency.WithLabelValues(g.settings.Model, status).Observe(time.Since(start).Seconds())

	if err != nil {
		category := ClassifyCompletionError(err)
		if callCtx.Err() == context.DeadlineExceeded {
			category = FailureTimeout
		}
		g.logger.Error("completion failed",
			"sender_id", req.SenderID,
			"category", category,
			"error", err,
			"latency_ms", time.Since(start).Milliseconds(),
		)
		return g.fail(lang, category, err)
	}

	completionTokensTotal.WithLabelValues(g.settings.Model, "input").Add(float64(resp.Usage.InputTokens))
	completionTokensTotal.WithLabelValues(g.settings.Model, "output").Add(float64(resp.Usage.OutputTokens))
	completionTokensTotal.WithLabelValues(g.settings.Model, "total").Add(float64(resp.Usage.TotalTokens))

	if g.recorder != nil {
		if err := g.recorder.Append(ctx, req.SenderID,
			customers.NewTurn(customers.RoleUser, req.Text),
			customers.NewTurn(customers.RoleAssistant, resp.Text),
		); err != nil {
			g.logger.Error("failed to record completion turns", "sender_id", req.SenderID, "error", err, "data_loss", true)
		}
	}

	return Completion{Text: resp.Text, Usage: resp.Usage}
}

func (g *Gateway) fail(lang string, category FailureCategory, err error) Completion {
	return Completion{
		Text:    g.replies.Render(apologyKey(category), lang, nil),
		Failure: category,
		Err:     err,
	}
}

func apologyKey(category FailureCategory) string {
	switch category {
	case FailureConnectivity:
		return catalog.KeyApologyConnectivity
	case FailureAuth:
		return catalog.KeyApologyAuth
	case FailureRateLimit:
		return catalog.KeyApologyRateLimit
	case FailureTimeout:
		return catalog.KeyApologyTimeout
	case FailureUnavailable:
		return catalog.KeyCompletionUnavailable
	case FailureAPI:
		return catalog.KeyApologyAPI
	default:
		return catalog.KeyGenericApology
	}
}
