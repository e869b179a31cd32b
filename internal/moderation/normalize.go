package moderation

import (
	"strings"
	"unicode"
)

// Common leetspeak substitutions folded before word matching.
var leetFold = strings.NewReplacer(
	"0", "o",
	"1", "l",
	"3", "e",
	"4", "a",
	"5", "s",
)

// NormalizeText lowercases, folds leetspeak digits and collapses
// punctuation runs into single spaces. The result is stable:
// normalizing an already-normalized string returns it unchanged.
func NormalizeText(text string) string {
	folded := leetFold.Replace(strings.ToLower(text))

	var builder strings.Builder
	builder.Grow(len(folded))
	pendingSpace := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && builder.Len() > 0 {
				builder.WriteRune(' ')
			}
			pendingSpace = false
			builder.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return builder.String()
}
