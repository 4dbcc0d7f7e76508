package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/clinic-concierge/internal/config"
	"github.com/wolfman30/clinic-concierge/internal/conversation"
	"github.com/wolfman30/clinic-concierge/pkg/logging"
)

const (
	providerBedrock = "bedrock"
	providerGemini  = "gemini"
	providerNone    = "none"
)

// BuildLLMClient wires the configured completion provider, wrapped with the fallback provider when one is
// set. A nil client with a nil error means completions are disabled. The returned func releases
// provider resources.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (conversation.LLMClient, func(), error) {
	if cfg == nil {
		return nil, func() {}, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	primary, closePrimary, err := buildProvider(ctx, cfg.LLMProvider, cfg, awsCfg)
	if err != nil {
		return nil, func() {}, err
	}
	if primary == nil {
		logger.Warn("no completion provider configured; non-FAQ questions will get the unavailable reply")
		return nil, func() {}, nil
	}

	fallbackName := strings.TrimSpace(cfg.LLMFallbackProvider)
	if fallbackName == "" || fallbackName == cfg.LLMProvider || fallbackName == providerNone {
		logger.Info("completion provider ready", "provider", cfg.LLMProvider, "model", completionModel(cfg))
		return primary, closePrimary, nil
	}

	fallback, closeFallback, err := buildProvider(ctx, fallbackName, cfg, awsCfg)
	if err != nil {
		closePrimary()
		return nil, func() {}, fmt.Errorf("bootstrap: fallback provider: %w", err)
	}
	logger.Info("completion provider ready", "provider", cfg.LLMProvider, "fallback", fallbackName)
	return conversation.NewFallbackLLMClient(primary, fallback, logger), func() {
		closePrimary()
		closeFallback()
	}, nil
}

func buildProvider(ctx context.Context, name string, cfg *appconfig.Config, awsCfg aws.Config) (conversation.LLMClient, func(), error) {
	noop := func() {}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", providerNone:
		return nil, noop, nil
	case providerBedrock:
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			return nil, noop, fmt.Errorf("bootstrap: BEDROCK_MODEL_ID is required for the bedrock provider")
		}
		return conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg)).WithModel(cfg.BedrockModelID), noop, nil
	case providerGemini:
		client, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, noop, fmt.Errorf("bootstrap: gemini provider: %w", err)
		}
		return client, func() { _ = client.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("bootstrap: unknown llm provider %q", name)
	}
}
