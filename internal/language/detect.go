// Package language wraps best-effort detection of the locale of free text.
package language

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

const fallback = "en"

// Detect returns the ISO 639-1 code of the text's language, or "en" when
// detection is unreliable or the text is too short to judge.
func Detect(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return fallback
	}

	info := whatlanggo.Detect(text)
	code := info.Lang.Iso6391()
	if code == "" || !info.IsReliable() {
		return fallback
	}
	return code
}
