package conversation

import (
	"strings"

	"github.com/wolfman30/clinic-concierge/internal/catalog"
	"github.com/wolfman30/clinic-concierge/internal/customers"
	"github.com/wolfman30/clinic-concierge/internal/faq"
)

var changeLanguagePhrases = []string{
	"change language",
	"switch language",
	"تغيير اللغة",
	"غير اللغة",
}

// Transition is the outcome of one onboarding step. Update already carries the new state.
type Transition struct {
	State  customers.OnboardingState
	Update customers.ProfileUpdate
	Reply  string
}

// Onboarding is the first-contact state machine. It never mutates the profile it is given.
type Onboarding struct {
	replies  *catalog.Replies
	settings Settings
}

func NewOnboarding(replies *catalog.Replies, settings Settings) *Onboarding {
	if replies == nil {
		panic("conversation: replies cannot be nil")
	}
	return &Onboarding{replies: replies, settings: settings.withDefaults()}
}

// IsChangeLanguage reports whether input is the explicit language reset command.
func (o *Onboarding) IsChangeLanguage(input string) bool {
	normalized := faq.Normalize(input)
	if normalized == "" {
		return false
	}
	for _, phrase := range changeLanguagePhrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}

// ChangeLanguage resets to language selection without touching name, interest or bookings.
func (o *Onboarding) ChangeLanguage(profile *customers.Profile) Transition {
	lang := o.settings.ResolveLanguage(profile.Language)
	return o.transition(customers.StateAwaitingLanguageSelection, customers.ProfileUpdate{},
		o.replies.Render(catalog.KeyLanguageMenu, lang, nil))
}

// Step advances the machine by one inbound message. A completed profile yields a zero Transition. A state
// outside the known set restarts onboarding at the welcome menu.
func (o *Onboarding) Step(profile *customers.Profile, input string) Transition {
	input = strings.TrimSpace(input)
	lang := o.settings.ResolveLanguage(profile.Language)

	switch profile.State {
	case customers.StateCompleted:
		return Transition{State: profile.State}

	case customers.StateAwaitingLanguageSelection:
		chosen, ok := o.selectLanguage(input)
		if !ok {
			return Transition{
				State: customers.StateAwaitingLanguageSelection,
				Reply: o.replies.Render(catalog.KeyInvalidLanguageChoice, lang, nil) + "\n\n" +
					o.replies.Render(catalog.KeyWelcomeMenu, lang, nil),
			}
		}
		return o.transition(customers.StateAwaitingName,
			customers.ProfileUpdate{Language: customers.Ptr(chosen)},
			o.replies.Render(catalog.KeyAskName, chosen, nil))

	case customers.StateAwaitingName:
		if input == "" {
			return Transition{State: profile.State, Reply: o.replies.Render(catalog.KeyAskName, lang, nil)}
		}
		return o.transition(customers.StateAwaitingServiceInterest,
			customers.ProfileUpdate{Name: customers.Ptr(input)},
			o.replies.Render(catalog.KeyAskServiceInterest, lang, map[string]string{"name": input}))

	case customers.StateAwaitingServiceInterest:
		if input == "" {
			return Transition{State: profile.State, Reply: o.replies.Render(catalog.KeyAskServiceInterest, lang,
				map[string]string{"name": profile.Name})}
		}
		update := customers.ProfileUpdate{ServiceInterest: customers.Ptr(input)}
		if profile.Language == "" {
			update.Language = customers.Ptr(lang)
		}
		return o.transition(customers.StateCompleted, update,
			o.replies.Render(catalog.KeyOnboardingComplete, lang, map[string]string{"name": profile.Name}))

	default:
		return o.transition(customers.StateAwaitingLanguageSelection, customers.ProfileUpdate{},
			o.replies.Render(catalog.KeyWelcomeMenu, lang, nil))
	}
}

// selectLanguage maps a menu answer to a supported language code.
func (o *Onboarding) selectLanguage(input string) (string, bool) {
	normalized := faq.Normalize(input)
	var lang string
	switch {
	case normalized == "1" || normalized == "١" || strings.Contains(normalized, "english") || strings.Contains(normalized, "انجليزي") ||
		strings.Contains(normalized, "الإنجليزية"):
		lang = "en"
	case normalized == "2" || normalized == "٢" || strings.Contains(normalized, "arabic") || strings.Contains(normalized, "عربي") ||
		strings.Contains(normalized, "العربية"):
		lang = "ar"
	default:
		return "", false
	}
	if !o.settings.Supports(lang) {
		return "", false
	}
	return lang, true
}

func (o *Onboarding) transition(next customers.OnboardingState, update customers.ProfileUpdate, reply string) Transition {
	update.State = customers.Ptr(next)
	return Transition{State: next, Update: update, Reply: reply}
}
