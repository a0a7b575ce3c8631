package skill

import (
	"encoding/json"
	"regexp"
	"strings"
)

// fencePatterns are tried in order before falling back to a bracket scan.
var fencePatterns = []*regexp.Regexp{
	regexp.MustCompile("(?s)```json\\s*(\\[.*?\\])\\s*```"),
	regexp.MustCompile("(?s)```\\s*(\\[.*?\\])\\s*```"),
	regexp.MustCompile("(?s)`(\\[.*?\\])`"),
}

// ExtractJSON pulls a JSON array out of a free-form model reply. A fenced
// code block wins; otherwise the first balanced [...] is returned, where
// brackets inside string literals and escaped characters are ignored.
// It reports false when no array can be found.
func ExtractJSON(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}

	for _, re := range fencePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	}

	start := strings.IndexByte(text, '[')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case '"':
			inString = !inString
		case '[':
			if !inString {
				depth++
			}
		case ']':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1], true
				}
			}
		}
	}
	return "", false
}

// ParseStrings extracts a JSON array of strings from a model reply. Anything
// else (no array, invalid JSON, non-string items) yields nil.
func ParseStrings(reply string) []string {
	js, ok := ExtractJSON(reply)
	if !ok {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(js), &out); err != nil {
		return nil
	}
	return out
}

// ParseSkills extracts skills from a model reply. Items that are neither a
// string nor an object with a name are dropped individually; the result is
// normalized. An unusable reply yields nil.
func ParseSkills(reply string) []Skill {
	js, ok := ExtractJSON(reply)
	if !ok {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(js), &items); err != nil {
		return nil
	}
	skills := make([]Skill, 0, len(items))
	for _, it := range items {
		var s Skill
		if err := json.Unmarshal(it, &s); err != nil {
			continue
		}
		skills = append(skills, s)
	}
	if out := Normalize(skills); len(out) > 0 {
		return out
	}
	return nil
}
