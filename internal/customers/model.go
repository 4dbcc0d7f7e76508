package customers

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// OnboardingState tracks how far a customer has progressed through first-contact onboarding.
type OnboardingState string

const (
	StateAwaitingLanguage          OnboardingState = "awaiting_language"
	StateAwaitingLanguageSelection OnboardingState = "awaiting_language_selection"
	StateAwaitingName              OnboardingState = "awaiting_name"
	StateAwaitingServiceInterest   OnboardingState = "awaiting_service_interest"
	StateCompleted                 OnboardingState = "completed"
)

// Valid reports whether s is one of the known onboarding states.
func (s OnboardingState) Valid() bool {
	switch s {
	case StateAwaitingLanguage, StateAwaitingLanguageSelection, StateAwaitingName,
		StateAwaitingServiceInterest, StateCompleted:
		return true
	}
	return false
}

// Unspecified is stored for booking fields the customer never provided.
const Unspecified = "unspecified"

// IsUnspecified reports whether a value carries no usable information.
func IsUnspecified(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, Unspecified)
}

// BookingRecord is a structured booking summary extracted from a completion.
type BookingRecord struct {
	ID          string    `json:"id"`
	Specialty   string    `json:"specialty"`
	ServiceType string    `json:"service_type"`
	Assignee    string    `json:"assignee"`
	DateTime    string    `json:"datetime"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewBookingRecord returns a record with a fresh ID and every field unspecified.
func NewBookingRecord() BookingRecord {
	return BookingRecord{
		ID:          uuid.New().String(),
		Specialty:   Unspecified,
		ServiceType: Unspecified,
		Assignee:    Unspecified,
		DateTime:    Unspecified,
		Notes:       Unspecified,
		CreatedAt:   time.Now().UTC(),
	}
}

// IsEmpty reports whether every field of the record is unspecified.
func (b BookingRecord) IsEmpty() bool {
	return IsUnspecified(b.Specialty) &&
		IsUnspecified(b.ServiceType) &&
		IsUnspecified(b.Assignee) &&
		IsUnspecified(b.DateTime) &&
		IsUnspecified(b.Notes)
}

// Profile is the per-sender customer record.
type Profile struct {
	ID              string          `json:"id"`
	Name            string          `json:"name,omitempty"`
	Language        string          `json:"language,omitempty"`
	State           OnboardingState `json:"onboarding_state"`
	ServiceInterest string          `json:"service_interest,omitempty"`
	Bookings        []BookingRecord `json:"bookings,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewProfile builds the profile used for a sender seen for the first time.
func NewProfile(id string) *Profile {
	now := time.Now().UTC()
	return &Profile{
		ID:        id,
		State:     StateAwaitingLanguage,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Bookings != nil {
		cp.Bookings = append([]BookingRecord(nil), p.Bookings...)
	}
	return &cp
}

// ProfileUpdate describes an intended change to a profile. Components that decide on changes return
// one of these and the caller applies it together with the state transition in a single write.
type ProfileUpdate struct {
	State           *OnboardingState
	Language        *string
	Name            *string
	ServiceInterest *string
	AddBooking      *BookingRecord
}

// IsEmpty reports whether the update would change nothing.
func (u ProfileUpdate) IsEmpty() bool {
	return u.State == nil && u.Language == nil && u.Name == nil && u.ServiceInterest == nil && u.AddBooking == nil
}

// Merge overlays other on top of u; set fields in other win.
func (u ProfileUpdate) Merge(other ProfileUpdate) ProfileUpdate {
	if other.State != nil {
		u.State = other.State
	}
	if other.Language != nil {
		u.Language = other.Language
	}
	if other.Name != nil {
		u.Name = other.Name
	}
	if other.ServiceInterest != nil {
		u.ServiceInterest = other.ServiceInterest
	}
	if other.AddBooking != nil {
		u.AddBooking = other.AddBooking
	}
	return u
}

// Apply mutates p according to u and reports whether anything changed. Blank or unspecified names are
// ignored, bookings are only ever appended, and a completed state is refused while no language is set.
func (p *Profile) Apply(u ProfileUpdate) bool {
	changed := false
	if u.Language != nil {
		if lang := strings.TrimSpace(*u.Language); lang != "" && lang != p.Language {
			p.Language = lang
			changed = true
		}
	}
	if u.Name != nil {
		if name := strings.TrimSpace(*u.Name); !IsUnspecified(name) && name != p.Name {
			p.Name = name
			changed = true
		}
	}
	if u.ServiceInterest != nil {
		if interest := strings.TrimSpace(*u.ServiceInterest); interest != "" && interest != p.ServiceInterest {
			p.ServiceInterest = interest
			changed = true
		}
	}
	if u.State != nil && u.State.Valid() && *u.State != p.State {
		if *u.State != StateCompleted || p.Language != "" {
			p.State = *u.State
			changed = true
		}
	}
	if u.AddBooking != nil && !u.AddBooking.IsEmpty() {
		p.Bookings = append(p.Bookings, *u.AddBooking)
		changed = true
	}
	if changed {
		p.UpdatedAt = time.Now().UTC()
	}
	return changed
}

// Role identifies who authored a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of the rolling conversation history.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTurn stamps a turn with the current time.
func NewTurn(role Role, content string) Turn {
	return Turn{Role: role, Content: content, Timestamp: time.Now().UTC()}
}

// Ptr is a small helper for building ProfileUpdate values.
func Ptr[T any](v T) *T {
	return &v
}
