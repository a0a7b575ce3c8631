package llmcorrect

import (
	"strings"
	"unicode"
)

// indexPair maps a token index in the original sequence to the corresponding
// index in the corrected sequence.
type indexPair struct {
	origIdx int
	corrIdx int
}

// tokenLCS computes the longest common subsequence of two token slices and
// returns anchor pairs (indices into a and b) representing common tokens in
// order. Standard O(m×n) DP; answers are a few sentences long.
func tokenLCS(a, b []string) []indexPair {
	m, n := len(a), len(b)
	if m == 0 || n == 0 {
		return nil
	}

	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
	}
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if a[i-1] == b[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else if dp[i-1][j] >= dp[i][j-1] {
				dp[i][j] = dp[i-1][j]
			} else {
				dp[i][j] = dp[i][j-1]
			}
		}
	}

	lcsLen := dp[m][n]
	if lcsLen == 0 {
		return nil
	}

	anchors := make([]indexPair, lcsLen)
	i, j, k := m, n, lcsLen-1
	for i > 0 && j > 0 {
		if a[i-1] == b[j-1] {
			anchors[k] = indexPair{origIdx: i - 1, corrIdx: j - 1}
			i--
			j--
			k--
		} else if dp[i-1][j] >= dp[i][j-1] {
			i--
		} else {
			j--
		}
	}
	return anchors
}

// fold lowercases a token and strips surrounding punctuation so that
// "years" and "Years." compare equal.
func fold(tok string) string {
	return strings.ToLower(strings.TrimFunc(tok, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	}))
}

func foldAll(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = fold(t)
	}
	return out
}

// overlap returns the share of folded tokens common to both texts, relative
// to the longer one. An original of three tokens or fewer always scores 1,
// however long the correction.
func overlap(original, corrected string) float64 {
	a := foldAll(strings.Fields(original))
	if len(a) <= 3 {
		return 1
	}
	b := foldAll(strings.Fields(corrected))
	return float64(len(tokenLCS(a, b))) / float64(max(len(a), len(b)))
}

// diff lists the spans between LCS anchors where the raw tokens differ.
// Anchors are computed on folded tokens, so a pure case or punctuation change
// on an anchored token shows up as a one-token span.
func diff(original, corrected string) []Correction {
	orig := strings.Fields(original)
	corr := strings.Fields(corrected)
	anchors := tokenLCS(foldAll(orig), foldAll(corr))

	var out []Correction
	add := func(o, c []string) {
		os, cs := strings.Join(o, " "), strings.Join(c, " ")
		if os != cs {
			out = append(out, Correction{Original: os, Corrected: cs})
		}
	}

	oi, ci := 0, 0
	for _, a := range anchors {
		if oi < a.origIdx || ci < a.corrIdx {
			add(orig[oi:a.origIdx], corr[ci:a.corrIdx])
		}
		add(orig[a.origIdx:a.origIdx+1], corr[a.corrIdx:a.corrIdx+1])
		oi = a.origIdx + 1
		ci = a.corrIdx + 1
	}
	if oi < len(orig) || ci < len(corr) {
		add(orig[oi:], corr[ci:])
	}
	return out
}
