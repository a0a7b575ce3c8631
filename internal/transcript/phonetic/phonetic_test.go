package phonetic_test

import (
	"testing"

	"github.com/MrWong99/skillprobe/internal/transcript/phonetic"
)

var vocabulary = []string{"Forklift Operation", "Forklift", "Welding", "Blueprint Reading"}

func TestMatcher_SplitCompoundMatches(t *testing.T) {
	t.Parallel()

	m := phonetic.New()

	corrected, conf, matched := m.Match("fork lift", vocabulary)
	if !matched {
		t.Fatalf("Match(%q): matched=false, want true", "fork lift")
	}
	if corrected != "Forklift" {
		t.Errorf("Match(%q): corrected=%q, want %q", "fork lift", corrected, "Forklift")
	}
	if conf < 0.99 {
		t.Errorf("Match(%q): confidence=%f, want ~1", "fork lift", conf)
	}
}

func TestMatcher_MultiWordTerm(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	corrected, _, matched := m.Match("blue print reading", vocabulary)
	if !matched || corrected != "Blueprint Reading" {
		t.Errorf("Match = %q, %v; want Blueprint Reading", corrected, matched)
	}
}

func TestMatcher_Misspelling(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	corrected, _, matched := m.Match("wellding", vocabulary)
	if !matched || corrected != "Welding" {
		t.Errorf("Match = %q, %v; want Welding", corrected, matched)
	}
}

func TestMatcher_DoesNotSnapPartOfTerm(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	for _, w := range []string{"operated", "reading", "hello"} {
		corrected, conf, matched := m.Match(w, vocabulary)
		if matched {
			t.Errorf("Match(%q) snapped to %q", w, corrected)
		}
		if corrected != w || conf != 0 {
			t.Errorf("Match(%q) = %q, %f; want input unchanged with 0 confidence", w, corrected, conf)
		}
	}
}

func TestMatcher_CaseInsensitivity(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	corrected, _, matched := m.Match("WELDING", vocabulary)
	if !matched {
		t.Fatalf("Match(%q): matched=false, want true", "WELDING")
	}
	if corrected != "Welding" {
		t.Errorf("Match(%q): corrected=%q, want canonical casing", "WELDING", corrected)
	}
}

func TestMatcher_ThresholdFiltering(t *testing.T) {
	t.Parallel()

	m := phonetic.New(
		phonetic.WithPhoneticThreshold(0.99),
		phonetic.WithFuzzyThreshold(0.99),
	)
	if _, _, matched := m.Match("wellding", vocabulary); matched {
		t.Fatal("Match with threshold=0.99 should reject near-matches")
	}
}

func TestMatcher_MinLength(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	if _, _, matched := m.Match("saw", []string{"Saw"}); matched {
		t.Error("three-letter window matched with default min length")
	}

	m = phonetic.New(phonetic.WithMinLength(1))
	if corrected, _, matched := m.Match("saw", []string{"Saw"}); !matched || corrected != "Saw" {
		t.Errorf("Match with min length 1 = %q, %v", corrected, matched)
	}
}

func TestMatcher_EmptyInputs(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	if corrected, conf, matched := m.Match("welding", nil); matched || corrected != "welding" || conf != 0 {
		t.Errorf("nil vocabulary: got %q, %f, %v", corrected, conf, matched)
	}
	if corrected, conf, matched := m.Match("", vocabulary); matched || corrected != "" || conf != 0 {
		t.Errorf("empty window: got %q, %f, %v", corrected, conf, matched)
	}
}

func TestPrepare(t *testing.T) {
	t.Parallel()

	v := phonetic.Prepare([]string{"  ", "Welding", "Forklift Operation", "Blueprint Reading Skills"})
	if v.Len() != 3 {
		t.Errorf("Len() = %d, want 3", v.Len())
	}
	if v.MaxWords() != 3 {
		t.Errorf("MaxWords() = %d, want 3", v.MaxWords())
	}
}
