package faq

import "strings"

// DefaultThreshold is the minimum similarity score for a static answer to be used.
const DefaultThreshold = 75

// Entry is one question/answer pair. Any keyword reaching the threshold selects the answer.
type Entry struct {
	Key      string   `json:"key"`
	Keywords []string `json:"keywords"`
	Answer   string   `json:"answer"`
}

// Catalog maps a language code to its ordered entries.
type Catalog map[string][]Entry

// Match is the best scoring entry for a message.
type Match struct {
	Entry   Entry
	Keyword string
	Score   int
}

// Matcher selects static answers by fuzzy keyword similarity.
type Matcher struct {
	catalog   Catalog
	threshold int
}

// NewMatcher builds a matcher; a threshold outside 1..100 falls back to DefaultThreshold.
func NewMatcher(catalog Catalog, threshold int) *Matcher {
	if threshold <= 0 || threshold > 100 {
		threshold = DefaultThreshold
	}
	if catalog == nil {
		catalog = Catalog{}
	}
	return &Matcher{catalog: catalog, threshold: threshold}
}

// Threshold returns the configured minimum score.
func (m *Matcher) Threshold() int {
	return m.threshold
}

// Best returns the highest scoring entry for lang regardless of threshold. Ties keep the entry that
// appears first in catalog order.
func (m *Matcher) Best(text, lang string) (Match, bool) {
	if strings.TrimSpace(text) == "" {
		return Match{}, false
	}
	var best Match
	found := false
	for _, entry := range m.catalog[lang] {
		for _, kw := range entry.Keywords {
			score := TokenSetRatio(text, kw)
			if !found || score > best.Score {
				best = Match{Entry: entry, Keyword: kw, Score: score}
				found = true
			}
		}
	}
	return best, found
}

// Match returns the best entry when its score reaches the threshold.
func (m *Matcher) Match(text, lang string) (Match, bool) {
	best, ok := m.Best(text, lang)
	if !ok || best.Score < m.threshold {
		return Match{}, false
	}
	return best, true
}
