package conversation

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/wolfman30/clinic-concierge/internal/catalog"
	"github.com/wolfman30/clinic-concierge/internal/customers"
	"github.com/wolfman30/clinic-concierge/internal/faq"
	"github.com/wolfman30/clinic-concierge/pkg/logging"
)

// ReplySource identifies which component produced a reply.
type ReplySource string

const (
	SourceOnboarding ReplySource = "onboarding"
	SourceFAQ        ReplySource = "faq"
	SourceModel      ReplySource = "model"
	SourceApology    ReplySource = "apology"
)

// Reply is the outcome of handling one inbound message.
type Reply struct {
	Text     string
	Source   ReplySource
	Language string
	State    customers.OnboardingState
	FAQKey   string
	Booking  *customers.BookingRecord
	Failure  FailureCategory
}

// Orchestrator routes each inbound message through onboarding, the FAQ matcher or the completion gateway
// and owns every profile and history write.
type Orchestrator struct {
	store      customers.Store
	replies    *catalog.Replies
	matcher    *faq.Matcher
	gateway    *Gateway
	onboarding *Onboarding
	extractor  *BookingExtractor
	settings   Settings
	locks      *senderLocks
	logger     *logging.Logger
}

type orchestratorConfig struct {
	gatewayOpts []GatewayOption
}

// OrchestratorOption customizes an Orchestrator.
type OrchestratorOption func(*orchestratorConfig)

// WithGatewayOptions forwards options to the embedded completion gateway.
func WithGatewayOptions(opts ...GatewayOption) OrchestratorOption {
	return func(cfg *orchestratorConfig) {
		cfg.gatewayOpts = append(cfg.gatewayOpts, opts...)
	}
}

// NewOrchestrator wires the conversation core. client may be nil, in which case non-FAQ questions get the
// completion_unavailable reply.
func NewOrchestrator(store customers.Store, bundle *catalog.Bundle, client LLMClient, settings Settings, logger *logging.Logger, opts ...OrchestratorOption) *Orchestrator {
	if store == nil {
		panic("conversation: customer store cannot be nil")
	}
	if bundle == nil || bundle.Replies == nil {
		panic("conversation: catalog bundle cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := orchestratorConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	settings = settings.withDefaults()
	return &Orchestrator{
		store:      store,
		replies:    bundle.Replies,
		matcher:    faq.NewMatcher(bundle.FAQ, settings.FAQThreshold),
		gateway:    NewGateway(client, bundle, settings, logger, cfg.gatewayOpts...),
		onboarding: NewOnboarding(bundle.Replies, settings),
		extractor:  NewBookingExtractor(settings.BookingTag, logger),
		settings:   settings,
		locks:      newSenderLocks(),
		logger:     logger,
	}
}

// Handle processes one inbound message and always returns a reply. Messages from the same sender are
// processed one at a time; different senders run concurrently.
func (o *Orchestrator) Handle(ctx context.Context, senderID, text string) Reply {
	start := time.Now()
	unlock := o.locks.Lock(senderID)
	defer unlock()

	// Read before the inbound append so prior holds up to HistoryLimit earlier turns.
	prior, err := o.store.History(ctx, senderID)
	if err != nil {
		o.logger.Warn("failed to load history, continuing without it", "sender_id", senderID, "error", err)
		prior = nil
	}

	o.appendTurn(ctx, senderID, customers.RoleUser, text)

	reply := o.safeRoute(ctx, senderID, text, prior)

	o.appendTurn(ctx, senderID, customers.RoleAssistant, reply.Text)

	repliesTotal.WithLabelValues(string(reply.Source)).Inc()
	handleLatency.WithLabelValues(string(reply.Source)).Observe(time.Since(start).Seconds())
	o.logger.Info("message handled",
		"sender_id", senderID,
		"source", reply.Source,
		"state", reply.State,
		"language", reply.Language,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return reply
}

func (o *Orchestrator) safeRoute(ctx context.Context, senderID, text string, prior []customers.Turn) (reply Reply) {
	lang := o.settings.DefaultLanguage
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("conversation handler panicked",
				"sender_id", senderID,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			reply = o.apology(lang)
		}
	}()

	reply, err := o.route(ctx, senderID, text, prior, &lang)
	if err != nil {
		o.logger.Error("conversation handler failed", "sender_id", senderID, "error", err)
		return o.apology(lang)
	}
	return reply
}

func (o *Orchestrator) route(ctx context.Context, senderID, text string, prior []customers.Turn, lang *string) (Reply, error) {
	profile, isNew, err := o.loadProfile(ctx, senderID)
	if err != nil {
		return Reply{}, err
	}
	*lang = o.settings.ResolveLanguage(profile.Language)

	if o.onboarding.IsChangeLanguage(text) {
		t := o.onboarding.ChangeLanguage(profile)
		o.commit(ctx, profile, t.Update, isNew)
		return o.onboardingReply(profile, t), nil
	}

	if profile.State != customers.StateCompleted {
		t := o.onboarding.Step(profile, text)
		o.commit(ctx, profile, t.Update, isNew)
		*lang = o.settings.ResolveLanguage(profile.Language)
		return o.onboardingReply(profile, t), nil
	}

	if match, ok := o.matcher.Match(text, *lang); ok {
		return Reply{
			Text:     o.sign(match.Entry.Answer, catalog.KeyStaticSignature, *lang),
			Source:   SourceFAQ,
			Language: *lang,
			State:    profile.State,
			FAQKey:   match.Entry.Key,
		}, nil
	}

	completion := o.gateway.Respond(ctx, CompletionRequest{
		SenderID:    senderID,
		Text:        text,
		Language:    *lang,
		DisplayName: profile.Name,
		History:     prior,
	})
	if completion.Failed() {
		return Reply{
			Text:     completion.Text,
			Source:   SourceApology,
			Language: *lang,
			State:    profile.State,
			Failure:  completion.Failure,
		}, nil
	}

	update := o.extractor.Extract(completion.Text).Update()
	if profile.Name == "" && update.Name == nil {
		if name := CaptureName(completion.Text); name != "" {
			update.Name = customers.Ptr(name)
		}
	}
	o.commit(ctx, profile, update, isNew)

	reply := Reply{
		Text:     o.sign(o.extractor.StripTag(completion.Text), catalog.KeyModelSignature, *lang),
		Source:   SourceModel,
		Language: *lang,
		State:    profile.State,
	}
	if update.AddBooking != nil {
		reply.Booking = update.AddBooking
		bookingExtractionsTotal.WithLabelValues("recorded").Inc()
	}
	return reply, nil
}

func (o *Orchestrator) loadProfile(ctx context.Context, senderID string) (*customers.Profile, bool, error) {
	profile, err := o.store.Get(ctx, senderID)
	if errors.Is(err, customers.ErrProfileNotFound) {
		return customers.NewProfile(senderID), true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("conversation: load profile: %w", err)
	}
	return profile, false, nil
}

// commit applies update and persists the profile. Write failures are logged and swallowed so the customer
// still gets a reply.
func (o *Orchestrator) commit(ctx context.Context, profile *customers.Profile, update customers.ProfileUpdate, isNew bool) {
	if !profile.Apply(update) && !isNew {
		return
	}
	if err := o.store.Upsert(ctx, profile); err != nil {
		persistenceFailuresTotal.WithLabelValues("profile").Inc()
		o.logger.Error("failed to persist profile", "sender_id", profile.ID, "error", err, "data_loss", true)
	}
}

func (o *Orchestrator) appendTurn(ctx context.Context, senderID string, role customers.Role, content string) {
	if err := o.store.Append(ctx, senderID, customers.NewTurn(role, content)); err != nil {
		persistenceFailuresTotal.WithLabelValues("history").Inc()
		o.logger.Error("failed to append history", "sender_id", senderID, "role", role, "error", err, "data_loss", true)
	}
}

func (o *Orchestrator) onboardingReply(profile *customers.Profile, t Transition) Reply {
	return Reply{
		Text:     t.Reply,
		Source:   SourceOnboarding,
		Language: o.settings.ResolveLanguage(profile.Language),
		State:    profile.State,
	}
}

func (o *Orchestrator) apology(lang string) Reply {
	return Reply{
		Text:     o.replies.Render(catalog.KeyGenericApology, lang, nil),
		Source:   SourceApology,
		Language: lang,
	}
}

func (o *Orchestrator) sign(text, signatureKey, lang string) string {
	signature := o.replies.Render(signatureKey, lang, nil)
	if strings.TrimSpace(signature) == "" {
		return text
	}
	return text + "\n\n" + signature
}
