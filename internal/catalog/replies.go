package catalog

import (
	"fmt"
	"strings"
)

// Reply keys used by the conversation flow.
const (
	KeyWelcomeMenu           = "welcome_menu"
	KeyInvalidLanguageChoice = "invalid_language_choice"
	KeyAskName               = "ask_name"
	KeyAskServiceInterest    = "ask_service_interest"
	KeyOnboardingComplete    = "onboarding_complete"
	KeyLanguageMenu          = "language_menu"
	KeyStaticSignature       = "static_signature"
	KeyModelSignature        = "model_signature"
	KeyGenericApology        = "generic_apology"
	KeyApologyConnectivity   = "apology_connectivity"
	KeyApologyAuth           = "apology_auth"
	KeyApologyRateLimit      = "apology_rate_limit"
	KeyApologyTimeout        = "apology_timeout"
	KeyApologyAPI            = "apology_api"
	KeyCompletionUnavailable = "completion_unavailable"
)

// Replies is an immutable set of templates indexed by key then language.
type Replies struct {
	templates       map[string]map[string]string
	defaultLanguage string
}

// NewReplies copies templates so later mutation of the input has no effect.
func NewReplies(templates map[string]map[string]string, defaultLanguage string) *Replies {
	cp := make(map[string]map[string]string, len(templates))
	for key, byLang := range templates {
		inner := make(map[string]string, len(byLang))
		for lang, text := range byLang {
			inner[lang] = text
		}
		cp[key] = inner
	}
	return &Replies{templates: cp, defaultLanguage: defaultLanguage}
}

// Has reports whether any language carries key.
func (r *Replies) Has(key string) bool {
	return len(r.templates[key]) > 0
}

// Lookup returns the raw template for key in lang, falling back to the default language.
func (r *Replies) Lookup(key, lang string) (string, bool) {
	byLang, ok := r.templates[key]
	if !ok {
		return "", false
	}
	if text, ok := byLang[lang]; ok {
		return text, true
	}
	text, ok := byLang[r.defaultLanguage]
	return text, ok
}

// Render fills {placeholder} tokens from vars. Unknown placeholders are left as written and a missing key
// yields a visible error string instead of failing.
func (r *Replies) Render(key, lang string, vars map[string]string) string {
	text, ok := r.Lookup(key, lang)
	if !ok {
		return fmt.Sprintf("Error: Reply key '%s' not found for lang '%s'.", key, lang)
	}
	if len(vars) == 0 {
		return text
	}
	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// Missing lists required keys that have no template in any language.
func (r *Replies) Missing(keys ...string) []string {
	var missing []string
	for _, key := range keys {
		if !r.Has(key) {
			missing = append(missing, key)
		}
	}
	return missing
}

// RequiredKeys are the templates the conversation flow renders.
var RequiredKeys = []string{
	KeyWelcomeMenu, KeyInvalidLanguageChoice, KeyAskName, KeyAskServiceInterest, KeyOnboardingComplete,
	KeyLanguageMenu, KeyStaticSignature, KeyModelSignature, KeyGenericApology, KeyApologyConnectivity,
	KeyApologyAuth, KeyApologyRateLimit, KeyApologyTimeout, KeyApologyAPI, KeyCompletionUnavailable,
}
