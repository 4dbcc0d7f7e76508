package conversation

import (
	"regexp"
	"strings"
)

// Honorifics used when the assistant addresses the customer. "Dr" is left out because completions
// routinely mention clinic doctors.
var (
	englishHonorificRE = regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Miss)\.?\s+([A-Z][A-Za-z'-]+)`)
	arabicHonorificRE  = regexp.MustCompile(`(?:الأستاذة|الأستاذ|أستاذة|أستاذ|السيدة|السيد)\s+(\p{Arabic}+)`)
)

// CaptureName scans assistant text for an honorific followed by a name. It is a best-effort enrichment
// and returns "" when nothing plausible is found.
func CaptureName(text string) string {
	for _, re := range []*regexp.Regexp{englishHonorificRE, arabicHonorificRE} {
		if m := re.FindStringSubmatch(text); len(m) == 2 {
			if name := strings.TrimSpace(m[1]); len([]rune(name)) >= 2 {
				return name
			}
		}
	}
	return ""
}
