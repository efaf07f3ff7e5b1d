package news

import (
	"regexp"
	"strings"
)

// DefaultExcerptLength is the maximum rune count of a derived excerpt.
const DefaultExcerptLength = 220

var (
	imagePattern      = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	linkPattern       = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	markupPattern     = regexp.MustCompile("[#*_>`-]+")
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Excerpt derives a plain-text teaser from markdown content. Images are
// dropped, links keep their text, remaining markup runs become a single
// space and whitespace collapses. Output longer than maxLen is cut at the
// last word boundary and marked with an ellipsis.
//
// The derivation is deterministic: equal content always yields an equal
// excerpt, so cached copies never disagree with fresh ones.
func Excerpt(content string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultExcerptLength
	}

	text := imagePattern.ReplaceAllString(content, "")
	text = linkPattern.ReplaceAllString(text, "$1")
	text = markupPattern.ReplaceAllString(text, " ")
	text = whitespacePattern.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}

	cut := string(runes[:maxLen])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "…"
}
