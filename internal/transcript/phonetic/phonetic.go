// Package phonetic snaps misheard phrases in a transcript to a known
// vocabulary (the interview's skill names) using Double Metaphone phonetic
// encoding combined with Jaro-Winkler string similarity.
//
// The algorithm proceeds in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     each token of the input window and of every vocabulary term. A term
//     whose codes overlap the window's codes is a phonetic candidate.
//
//  2. Jaro-Winkler ranking: among phonetic candidates the term with the
//     highest similarity wins, provided it clears the phonetic threshold.
//     Without a phonetic candidate, a term can still win on pure similarity
//     above the stricter fuzzy threshold.
//
// Similarity is measured on the whole window, both as written and with the
// spaces removed ("fork lift" vs "forklift"). Single tokens are never
// compared against one word of a multi-word term, so an ordinary word such
// as "operated" does not snap to "Forklift Operation". A window must also
// start with the same letter as the term and be of comparable length, which
// keeps neighbouring words ("a fork lift") from being swallowed.
package phonetic

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.88
	defaultFuzzyThreshold    = 0.93
	defaultMinLength         = 4
	minLengthRatio           = 0.75
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically matched term to be accepted. Default: 0.88.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic candidate exists. Default: 0.93.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// WithMinLength sets the minimum window length in runes (spaces excluded)
// considered for a match. Default: 4.
func WithMinLength(n int) Option {
	return func(m *Matcher) {
		m.minLength = n
	}
}

// Matcher is a phonetic vocabulary matcher. It is read-only after
// construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
	minLength         int
}

// New returns a new [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
		minLength:         defaultMinLength,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

type term struct {
	canonical string
	lower     string
	concat    string
	first     rune
	runes     int
	codes     map[string]struct{}
}

// Vocabulary is a precomputed set of terms. Build it once per transcript
// with [Prepare] and reuse it for every window.
type Vocabulary struct {
	terms    []term
	maxWords int
}

// Prepare computes phonetic codes for terms. Blank terms are skipped.
func Prepare(terms []string) *Vocabulary {
	v := &Vocabulary{}
	for _, t := range terms {
		lower := strings.ToLower(strings.TrimSpace(t))
		if lower == "" {
			continue
		}
		tokens := strings.Fields(lower)
		concat := strings.Join(tokens, "")
		first, _ := utf8.DecodeRuneInString(concat)
		v.terms = append(v.terms, term{
			canonical: strings.TrimSpace(t),
			lower:     strings.Join(tokens, " "),
			concat:    concat,
			first:     first,
			runes:     utf8.RuneCountInString(concat),
			codes:     codesForTokens(tokens),
		})
		v.maxWords = max(v.maxWords, len(tokens))
	}
	return v
}

// MaxWords returns the word count of the longest term.
func (v *Vocabulary) MaxWords() int { return v.maxWords }

// Len returns the number of terms.
func (v *Vocabulary) Len() int { return len(v.terms) }

// Match finds the term in terms most similar to window. When matched is
// false, corrected equals window and confidence is 0.
func (m *Matcher) Match(window string, terms []string) (corrected string, confidence float64, matched bool) {
	return m.MatchPrepared(window, Prepare(terms))
}

// MatchPrepared is [Matcher.Match] against a prepared vocabulary.
func (m *Matcher) MatchPrepared(window string, v *Vocabulary) (corrected string, confidence float64, matched bool) {
	tokens := strings.Fields(strings.ToLower(window))
	if v == nil || len(v.terms) == 0 || len(tokens) == 0 {
		return window, 0, false
	}
	lower := strings.Join(tokens, " ")
	concat := strings.Join(tokens, "")
	runes := utf8.RuneCountInString(concat)
	if runes < m.minLength {
		return window, 0, false
	}
	first, _ := utf8.DecodeRuneInString(concat)
	codes := codesForTokens(tokens)

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)
	for _, t := range v.terms {
		if t.first != first || float64(min(runes, t.runes))/float64(max(runes, t.runes)) < minLengthRatio {
			continue
		}
		score := matchr.JaroWinkler(lower, t.lower, false)
		if s := matchr.JaroWinkler(concat, t.concat, false); s > score {
			score = s
		}

		if codesOverlap(codes, t.codes) {
			if score >= m.phoneticThreshold && (!bestPhonetic || score > bestScore) {
				best, bestScore, bestPhonetic = t.canonical, score, true
			}
		} else if !bestPhonetic && score >= m.fuzzyThreshold && score > bestScore {
			best, bestScore = t.canonical, score
		}
	}

	if best == "" {
		return window, 0, false
	}
	return best, bestScore, true
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
