package bootstrap

import (
	"fmt"
	"slices"
	"strings"
	"time"

	appconfig "github.com/wolfman30/clinic-concierge/internal/config"
	"github.com/wolfman30/clinic-concierge/internal/conversation"
)

// ConversationSettings projects the environment config onto the conversation core's tunables.
func ConversationSettings(cfg *appconfig.Config) (conversation.Settings, error) {
	if cfg == nil {
		return conversation.Settings{}, fmt.Errorf("bootstrap: config is required")
	}

	settings := conversation.DefaultSettings()
	if len(cfg.SupportedLanguages) > 0 {
		settings.SupportedLanguages = slices.Clone(cfg.SupportedLanguages)
	}
	if lang := strings.TrimSpace(cfg.DefaultLanguage); lang != "" {
		settings.DefaultLanguage = lang
	}
	if !settings.Supports(settings.DefaultLanguage) {
		return conversation.Settings{}, fmt.Errorf("bootstrap: default language %q is not in supported languages %v",
			settings.DefaultLanguage, settings.SupportedLanguages)
	}

	if cfg.FAQThreshold > 0 {
		if cfg.FAQThreshold > 100 {
			return conversation.Settings{}, fmt.Errorf("bootstrap: faq threshold %d must be between 1 and 100", cfg.FAQThreshold)
		}
		settings.FAQThreshold = cfg.FAQThreshold
	}
	if cfg.HistoryLimit > 0 {
		settings.HistoryLimit = cfg.HistoryLimit
	}
	if cfg.LLMTemperature >= 0 {
		settings.Temperature = float32(cfg.LLMTemperature)
	}
	if cfg.LLMMaxTokens > 0 {
		settings.MaxTokens = int32(cfg.LLMMaxTokens)
	}
	if cfg.LLMTimeout > 0 {
		settings.CompletionTimeout = cfg.LLMTimeout
	}
	settings.Model = completionModel(cfg)

	shifts, err := shiftSchedule(cfg)
	if err != nil {
		return conversation.Settings{}, err
	}
	settings.Shifts = shifts
	return settings, nil
}

func completionModel(cfg *appconfig.Config) string {
	if cfg.LLMProvider == providerGemini {
		return cfg.GeminiModelID
	}
	return cfg.BedrockModelID
}

func shiftSchedule(cfg *appconfig.Config) (conversation.ShiftSchedule, error) {
	morning, evening := cfg.ShiftMorningStart, cfg.ShiftEveningStart
	if morning < 0 || evening > 24 || morning >= evening {
		return conversation.ShiftSchedule{}, fmt.Errorf("bootstrap: invalid shift boundaries morning=%d evening=%d", morning, evening)
	}
	loc := time.UTC
	if tz := strings.TrimSpace(cfg.ShiftTimezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return conversation.ShiftSchedule{}, fmt.Errorf("bootstrap: load shift timezone %q: %w", tz, err)
		}
		loc = l
	}
	return conversation.ShiftSchedule{MorningStart: morning, EveningStart: evening, Location: loc}, nil
}
