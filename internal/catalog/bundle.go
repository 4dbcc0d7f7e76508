package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/clinic-concierge/internal/faq"
)

// Bundle is the read-only content loaded once at startup and shared by every request.
type Bundle struct {
	Replies   *Replies
	FAQ       faq.Catalog
	Persona   string
	Reference string
	Source    string
}

// Load reads every bundle file from src. Files missing from src are taken from the embedded defaults so a
// deployment can override only what it needs.
func Load(ctx context.Context, src Source, defaultLanguage string) (*Bundle, error) {
	if src == nil {
		src = EmbeddedSource()
	}
	fallback := EmbeddedSource()

	read := func(name string) ([]byte, error) {
		data, err := src.ReadFile(ctx, name)
		if errors.Is(err, ErrFileNotFound) && src.String() != fallback.String() {
			return fallback.ReadFile(ctx, name)
		}
		return data, err
	}

	rawReplies, err := read(RepliesFile)
	if err != nil {
		return nil, err
	}
	var templates map[string]map[string]string
	if err := json.Unmarshal(rawReplies, &templates); err != nil {
		return nil, fmt.Errorf("catalog: decode %s: %w", RepliesFile, err)
	}
	replies := NewReplies(templates, defaultLanguage)
	if missing := replies.Missing(RequiredKeys...); len(missing) > 0 {
		return nil, fmt.Errorf("catalog: %s missing keys %s", RepliesFile, strings.Join(missing, ", "))
	}

	rawFAQ, err := read(FAQFile)
	if err != nil {
		return nil, err
	}
	var entries faq.Catalog
	if err := json.Unmarshal(rawFAQ, &entries); err != nil {
		return nil, fmt.Errorf("catalog: decode %s: %w", FAQFile, err)
	}

	persona, err := read(PersonaFile)
	if err != nil {
		return nil, err
	}
	reference, err := read(ReferenceFile)
	if err != nil {
		return nil, err
	}

	return &Bundle{
		Replies:   replies,
		FAQ:       entries,
		Persona:   strings.TrimSpace(string(persona)),
		Reference: strings.TrimSpace(string(reference)),
		Source:    src.String(),
	}, nil
}
