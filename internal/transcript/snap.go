package transcript

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MrWong99/skillprobe/internal/transcript/phonetic"
)

// Snap replaces phrases in text that sound like a vocabulary term with the
// term itself and returns the new text and the substitutions applied.
//
// At each token position windows of one word up to one more than the longest
// term are tried, so a term split by the recogniser ("blue print reading")
// is still found. The best-scoring window wins; on a tie the longer window
// wins so multi-word terms take precedence over partial matches. Trailing
// punctuation of a replaced window is kept, and a match that differs only
// in case leaves the original tokens alone.
func Snap(m PhoneticMatcher, text string, vocabulary []string) (string, []Correction) {
	tokens := strings.Fields(text)
	if m == nil || len(tokens) == 0 || len(vocabulary) == 0 {
		return text, nil
	}

	var matchFn func(string) (string, float64, bool)
	var maxWords int
	if pm, ok := m.(*phonetic.Matcher); ok {
		v := phonetic.Prepare(vocabulary)
		maxWords = v.MaxWords()
		matchFn = func(w string) (string, float64, bool) { return pm.MatchPrepared(w, v) }
	} else {
		maxWords = maxWordCount(vocabulary)
		matchFn = func(w string) (string, float64, bool) { return m.Match(w, vocabulary) }
	}
	if maxWords == 0 {
		return text, nil
	}

	var output []string
	var corrections []Correction
	changed := false

	i := 0
	for i < len(tokens) {
		maxN := min(maxWords+1, len(tokens)-i)

		var (
			bestN      int
			bestTerm   string
			bestWindow string
			bestConf   float64
		)
		for n := maxN; n >= 1; n-- {
			words := make([]string, n)
			for k := range n {
				words[k] = trimPunct(tokens[i+k])
			}
			window := strings.Join(words, " ")
			if strings.TrimSpace(window) == "" {
				continue
			}
			term, conf, ok := matchFn(window)
			if ok && conf > bestConf {
				bestN, bestTerm, bestWindow, bestConf = n, term, window, conf
			}
		}

		switch {
		case bestN == 0:
			output = append(output, tokens[i])
			i++
			continue
		case strings.EqualFold(bestTerm, bestWindow):
			output = append(output, tokens[i:i+bestN]...)
		default:
			_, suffix := splitTrailingPunct(tokens[i+bestN-1])
			output = append(output, bestTerm+suffix)
			changed = true
			corrections = append(corrections, Correction{
				Original:   bestWindow,
				Corrected:  bestTerm,
				Confidence: bestConf,
				Method:     "phonetic",
			})
		}
		i += bestN
	}

	if !changed {
		return text, nil
	}
	return strings.Join(output, " "), corrections
}

func isPunct(r rune) bool {
	return unicode.IsPunct(r) && r != '\'' && r != '-'
}

func trimPunct(tok string) string {
	return strings.TrimFunc(tok, isPunct)
}

// splitTrailingPunct splits "forklift," into "forklift" and ",".
func splitTrailingPunct(tok string) (string, string) {
	end := strings.LastIndexFunc(tok, func(r rune) bool { return !isPunct(r) })
	if end < 0 {
		return "", tok
	}
	_, size := utf8.DecodeRuneInString(tok[end:])
	return tok[:end+size], tok[end+size:]
}

// maxWordCount returns the maximum number of whitespace-separated words in
// any term.
func maxWordCount(terms []string) int {
	n := 0
	for _, t := range terms {
		n = max(n, len(strings.Fields(t)))
	}
	return n
}
