package transcript_test

import (
	"testing"

	"github.com/MrWong99/skillprobe/internal/transcript"
	"github.com/MrWong99/skillprobe/internal/transcript/phonetic"
)

// exactMatcher matches windows present in a fixed table.
type exactMatcher map[string]string

func (m exactMatcher) Match(window string, _ []string) (string, float64, bool) {
	if t, ok := m[window]; ok {
		return t, 1, true
	}
	return window, 0, false
}

func TestSnap_PhoneticMatcher(t *testing.T) {
	t.Parallel()

	vocab := []string{"Forklift", "Blueprint Reading"}
	got, corrections := transcript.Snap(phonetic.New(), "I drove a fork lift, and did blue print reading daily.", vocab)

	want := "I drove a Forklift, and did Blueprint Reading daily."
	if got != want {
		t.Errorf("Snap = %q, want %q", got, want)
	}
	if len(corrections) != 2 {
		t.Fatalf("corrections = %+v, want 2", corrections)
	}
	if corrections[0].Original != "fork lift" || corrections[0].Method != "phonetic" {
		t.Errorf("corrections[0] = %+v", corrections[0])
	}
}

func TestSnap_LongestWindowWins(t *testing.T) {
	t.Parallel()

	m := exactMatcher{"a b": "AB", "a": "Alpha"}
	got, corrections := transcript.Snap(m, "x a b a", []string{"AB", "Alpha"})
	if got != "x AB Alpha" {
		t.Errorf("Snap = %q, want %q", got, "x AB Alpha")
	}
	if len(corrections) != 2 {
		t.Errorf("corrections = %+v", corrections)
	}
}

func TestSnap_NoChangeKeepsTextVerbatim(t *testing.T) {
	t.Parallel()

	in := "I  weld   every day"
	got, corrections := transcript.Snap(phonetic.New(), in, []string{"welding", "Weld"})
	if got != in || corrections != nil {
		t.Errorf("Snap = %q, %v; want input unchanged", got, corrections)
	}

	got, _ = transcript.Snap(nil, in, []string{"Weld"})
	if got != in {
		t.Errorf("nil matcher changed text: %q", got)
	}
}
