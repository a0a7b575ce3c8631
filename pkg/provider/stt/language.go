package stt

import "strings"

// languageNames maps full language names, as reported by whisper-based
// engines, to ISO 639-1 codes for the languages candidates most commonly
// answer in.
var languageNames = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"portuguese": "pt",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"dutch":      "nl",
	"polish":     "pl",
	"russian":    "ru",
	"ukrainian":  "uk",
	"chinese":    "zh",
	"japanese":   "ja",
	"korean":     "ko",
	"vietnamese": "vi",
	"tagalog":    "tl",
	"arabic":     "ar",
	"hindi":      "hi",
	"turkish":    "tr",
	"galician":   "gl",
	"catalan":    "ca",
}

// LanguageCode normalises a language label to an ISO 639-1 code. Two-letter
// inputs are returned lower-cased; unknown names are returned lower-cased
// as-is so callers still see that detection happened.
func LanguageCode(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if i := strings.IndexAny(n, "-_"); i == 2 {
		// BCP-47 tags such as "en-US".
		n = n[:2]
	}
	if n == "" || len(n) == 2 {
		return n
	}
	if code, ok := languageNames[n]; ok {
		return code
	}
	return n
}
