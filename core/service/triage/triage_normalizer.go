// Package triage classifies inbound email into priority tiers, extracts
// action items and due dates, and paces calls to the completion endpoint.
package triage

import (
	"regexp"
	"strings"

	"triage_server/core/domain"
)

var (
	styleBlockRe  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	scriptBlockRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	tagRe         = regexp.MustCompile(`<[^>]+>`)
	namedEntityRe = regexp.MustCompile(`(?i)&[a-z]+;`)
	whitespaceRe  = regexp.MustCompile(`\s+`)

	// applied in order; &amp; first so "&amp;lt;" becomes "<"
	entityReplacer = []struct{ from, to string }{
		{"&nbsp;", " "},
		{"&amp;", "&"},
		{"&lt;", "<"},
		{"&gt;", ">"},
		{"&quot;", `"`},
		{"&#39;", "'"},
	}
)

// NormalizeContent turns raw (possibly HTML) body text into plain text of at
// most limit runes. A limit <= 0 uses domain.PromptContentLimit.
func NormalizeContent(raw string, limit int) (out string) {
	if limit <= 0 {
		limit = domain.PromptContentLimit
	}
	defer func() {
		if r := recover(); r != nil {
			out = truncateRunes(raw, limit)
		}
	}()

	cleaned := styleBlockRe.ReplaceAllString(raw, "")
	cleaned = scriptBlockRe.ReplaceAllString(cleaned, "")
	cleaned = tagRe.ReplaceAllString(cleaned, " ")
	for _, e := range entityReplacer {
		cleaned = strings.ReplaceAll(cleaned, e.from, e.to)
	}
	cleaned = namedEntityRe.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(whitespaceRe.ReplaceAllString(cleaned, " "))

	return truncateRunes(cleaned, limit)
}

// truncateRunes cuts s to at most n runes without splitting a code point.
func truncateRunes(s string, n int) string {
	if n < 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func runeLen(s string) int {
	return len([]rune(s))
}
