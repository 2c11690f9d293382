package markdown

import (
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// TelegramMessageMaxLength is the longest message text the Bot API accepts,
// counted in UTF-16 code units.
const TelegramMessageMaxLength = 4096

const ellipsis = "…"

// Taken from https://core.telegram.org/bots/api#markdownv2-style.
const (
	mdV2SpecialChars  = `\_*[]()~` + "`" + `>#+-=|{}.!`
	mdV2LinkURLChars  = `\)`
	mdV2CodeSpanChars = `\` + "`"
)

// EscapeV2 escapes text placed anywhere outside of links and code.
func EscapeV2(input string) string {
	return escape(input, mdV2SpecialChars)
}

// EscapeLinkURL escapes the URL part of an inline link, i.e. the text
// between the parentheses of [label](url).
func EscapeLinkURL(input string) string {
	return escape(input, mdV2LinkURLChars)
}

// EscapeCode escapes text placed inside `code` spans.
func EscapeCode(input string) string {
	return escape(input, mdV2CodeSpanChars)
}

// Link renders an inline link with both parts escaped.
func Link(label string, url string) string {
	return "[" + EscapeV2(label) + "](" + EscapeLinkURL(url) + ")"
}

// EscapeV2Truncated is EscapeV2 cut on a rune boundary so that the escaped
// result is at most maxLength long, ending with an ellipsis when cut.
func EscapeV2Truncated(input string, maxLength int) string {
	escaped := EscapeV2(input)
	if Length(escaped) <= maxLength {
		return escaped
	}

	budget := maxLength - Length(ellipsis)
	if budget < 0 {
		return ""
	}

	lookup := specialCharLookup(mdV2SpecialChars)

	var b strings.Builder
	used := 0

	for _, r := range input {
		special := r < utf8.RuneSelf && lookup[r]

		cost := utf16.RuneLen(r)
		if special {
			cost++
		}

		if used+cost > budget {
			break
		}

		if special {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
		used += cost
	}

	b.WriteString(ellipsis)

	return b.String()
}

// Length measures s the way Telegram does, in UTF-16 code units. Escape
// backslashes are counted too, so the result never underestimates.
func Length(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

func escape(input string, special string) string {
	lookup := specialCharLookup(special)
	charsToEscape := 0

	for i := range len(input) {
		if lookup[input[i]] {
			charsToEscape++
		}
	}
	if charsToEscape == 0 {
		return input
	}

	var b strings.Builder
	b.Grow(len(input) + charsToEscape)

	for i := range len(input) {
		c := input[i]
		if lookup[c] {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}

	return b.String()
}

func specialCharLookup(special string) [256]bool {
	var m [256]bool
	for _, c := range []byte(special) {
		m[c] = true
	}
	return m
}
