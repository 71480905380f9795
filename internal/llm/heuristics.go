package llm

import (
	"strings"
	"unicode"
)

var incompletePrefixes = []string{
	"referen", "inte", "proces", "analy", "deve", "imple", "execu",
}

var commonSuffixes = []string{
	"ing", "ed", "ly", "er", "est", "tion", "ment", "ness", "ity", "ous", "ive", "able", "ible",
}

// looksTruncated implements §4.6.1's truncation heuristic over a response's
// combined assistant text.
func looksTruncated(text string) bool {
	trimmed := strings.TrimRight(text, " \t\n")
	if trimmed == "" {
		return false
	}

	if endsWithSingleEllipsis(trimmed) {
		return true
	}
	if endsWithIncompleteWord(trimmed) {
		return true
	}
	if strings.Count(trimmed, "```")%2 != 0 {
		return true
	}
	opens := strings.Count(trimmed, "[") + strings.Count(trimmed, "(") + strings.Count(trimmed, "{")
	closes := strings.Count(trimmed, "]") + strings.Count(trimmed, ")") + strings.Count(trimmed, "}")
	if opens > closes {
		return true
	}
	return false
}

func endsWithSingleEllipsis(s string) bool {
	if strings.HasSuffix(s, "....") || strings.HasSuffix(s, "……") {
		return false
	}
	return strings.HasSuffix(s, "...") || strings.HasSuffix(s, "…")
}

func endsWithIncompleteWord(s string) bool {
	last := lastWord(s)
	if last == "" {
		return false
	}
	lower := strings.ToLower(last)
	for _, prefix := range incompletePrefixes {
		if lower == prefix {
			return true
		}
	}
	if len(lower) <= 2 {
		return false
	}
	for _, suffix := range commonSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return false
		}
	}
	// Ends on a bare alphabetic run with no recognized suffix: treat as an
	// incomplete word only when the original text did not end on
	// terminal punctuation.
	r := rune(s[len(s)-1])
	if !unicode.IsLetter(r) {
		return false
	}
	return true
}

func lastWord(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// detectAndStripCompletion scans assistant-text parts for a case-insensitive
// completion marker (allowing a leading optional colon/whitespace) and
// returns whether one was found plus a copy of parts with the marker
// stripped from its owning part.
func detectAndStripCompletion(parts []Part) (bool, []Part) {
	detected := false
	out := make([]Part, len(parts))
	copy(out, parts)
	for i, part := range out {
		if part.Type != PartAssistantText {
			continue
		}
		stripped, found := stripMarker(part.Content)
		if found {
			detected = true
			out[i].Content = stripped
		}
	}
	return detected, out
}

func stripMarker(content string) (string, bool) {
	trimmed := strings.TrimLeft(content, " \t:")
	lower := strings.ToLower(trimmed)
	for _, marker := range []string{markerDone, markerTaskComplete} {
		if strings.HasPrefix(lower, marker) {
			return strings.TrimSpace(trimmed[len(marker):]), true
		}
	}
	return content, false
}

// suspiciousCompletion reports whether text still reads as in-progress
// despite carrying a completion marker: contains an intention phrase or
// ends on an action gerund.
func suspiciousCompletion(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range intentionPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	trimmed := strings.TrimRight(lower, " \t\n.")
	for _, suffix := range actionGerundSuffixes {
		if strings.HasSuffix(trimmed, suffix) {
			return true
		}
	}
	return false
}
