package conversation

import (
	"slices"
	"strings"
	"time"

	"github.com/wolfman30/clinic-concierge/internal/faq"
)

// DefaultBookingTag marks the start of the structured booking block in a completion.
const DefaultBookingTag = "##بيانات_الحجز##"

// Settings are the tunables consumed by the conversation core.
type Settings struct {
	SupportedLanguages []string
	DefaultLanguage    string
	FAQThreshold       int
	HistoryLimit       int
	Model              string
	Temperature        float32
	MaxTokens          int32
	CompletionTimeout  time.Duration
	Shifts             ShiftSchedule
	BookingTag         string
}

// DefaultSettings returns the values used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		SupportedLanguages: []string{"en", "ar"},
		DefaultLanguage:    "en",
		FAQThreshold:       faq.DefaultThreshold,
		HistoryLimit:       10,
		Temperature:        0.5,
		MaxTokens:          450,
		CompletionTimeout:  20 * time.Second,
		Shifts:             DefaultShiftSchedule(),
		BookingTag:         DefaultBookingTag,
	}
}

// withDefaults fills zero values from DefaultSettings.
func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if len(s.SupportedLanguages) == 0 {
		s.SupportedLanguages = d.SupportedLanguages
	}
	if s.DefaultLanguage == "" {
		s.DefaultLanguage = s.SupportedLanguages[0]
	}
	if s.FAQThreshold <= 0 {
		s.FAQThreshold = d.FAQThreshold
	}
	if s.HistoryLimit <= 0 {
		s.HistoryLimit = d.HistoryLimit
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = d.MaxTokens
	}
	if s.CompletionTimeout <= 0 {
		s.CompletionTimeout = d.CompletionTimeout
	}
	if s.Shifts.Location == nil && s.Shifts.MorningStart == 0 && s.Shifts.EveningStart == 0 {
		s.Shifts = d.Shifts
	}
	if strings.TrimSpace(s.BookingTag) == "" {
		s.BookingTag = d.BookingTag
	}
	return s
}

// Supports reports whether lang is one of the configured languages.
func (s Settings) Supports(lang string) bool {
	return slices.Contains(s.SupportedLanguages, lang)
}

// ResolveLanguage returns lang when supported, otherwise the default language.
func (s Settings) ResolveLanguage(lang string) string {
	if lang != "" && s.Supports(lang) {
		return lang
	}
	return s.DefaultLanguage
}
