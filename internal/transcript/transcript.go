// Package transcript turns finished audio chunks into cleaned answer text.
//
// Two stages live here:
//
//  1. [Coordinator] calls the ASR collaborator with automatic language
//     detection and, when the detected language is outside the supported
//     set, repeats the call with a fallback language. Failures are absorbed
//     and surface as an empty transcript.
//
//  2. [Cleaner] optionally snaps misheard phrases to the interview vocabulary
//     with a [PhoneticMatcher] and then asks an LLM to fix recognition
//     errors. Cleanup never fails: any problem leaves the text unchanged.
//
// Every substitution is recorded as a [Correction] so callers can audit or
// display what changed.
package transcript

// Correction captures a single substitution made during cleanup.
type Correction struct {
	// Original is the span as produced by the ASR provider.
	Original string

	// Corrected is the replacement.
	Corrected string

	// Confidence is the stage's confidence in this substitution (0.0–1.0).
	// The LLM stage does not report one and leaves it at 0.
	Confidence float64

	// Method names the stage that produced the substitution:
	//   "phonetic": produced by a [PhoneticMatcher].
	//   "llm": produced by the language-model cleanup pass.
	Method string
}

// PhoneticMatcher resolves a word or short phrase to a vocabulary term based
// on pronunciation similarity. It runs in-process with no network calls.
//
// Implementations must be safe for concurrent use.
type PhoneticMatcher interface {
	// Match returns the term from vocabulary most similar to window. When
	// matched is false, corrected must equal window and confidence must be 0.
	Match(window string, vocabulary []string) (corrected string, confidence float64, matched bool)
}
