// Package sanitize cleans untrusted free text before it is stored or
// embedded in an evaluation request. Stripping directive-like blocks is
// a best-effort mitigation against prompt injection, not a guarantee;
// the oracle's policy channel carries the real instruction boundary.
package sanitize

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxInputLen = 10000

var (
	controlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	// Blocks like "--- SYSTEM ... ---" that try to smuggle instructions.
	injectionBlock = regexp.MustCompile(`(?is)---\s*(SYSTEM|OVERRIDE|IMPORTANT|IGNORE|ADMIN|INSTRUCTION).*?---`)
	// XML-ish tags that could be read as a policy channel.
	injectionTag = regexp.MustCompile(`(?i)</?(?:system|instruction|override|admin|ignore)[^>]*>`)
)

// Input strips control characters and anything resembling an embedded
// instruction block, and bounds the length.
func Input(text string) string {
	if text == "" {
		return ""
	}
	text = controlChars.ReplaceAllString(text, "")
	text = injectionBlock.ReplaceAllString(text, "[REDACTED]")
	text = injectionTag.ReplaceAllString(text, "[REDACTED]")
	text = Truncate(text, maxInputLen)
	return strings.TrimSpace(text)
}

// Truncate cuts s to at most n bytes without splitting a rune.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

var tagChars = regexp.MustCompile(`[^a-z0-9-]`)

// Tag normalizes a user-supplied tag to lowercase slug characters.
func Tag(tag string) string {
	tag = strings.ToLower(Input(tag))
	tag = strings.ReplaceAll(tag, " ", "-")
	tag = tagChars.ReplaceAllString(tag, "")
	tag = strings.Trim(tag, "-")
	if len(tag) > 50 {
		tag = tag[:50]
	}
	return tag
}

// URL keeps only http/https URLs; anything else returns "".
func URL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}
