// Package skill models the required job skills of an interview and decides,
// utterance by utterance, which of them a candidate has demonstrated.
//
// The package has three layers:
//
//   - [Skill], [Status] and [Detection] are the data model. A session's skill
//     list is fixed when the session is created.
//   - [Tracker] owns the per-session coverage state and merges detections
//     idempotently.
//   - [Detector] and [Analyzer] talk to an [llm.Provider]: the detector
//     decides which skills an utterance demonstrates, the analyzer extracts
//     skills from a job description and writes interview questions.
//
// Every JSON reply from the model goes through [ExtractJSON]. A reply that
// cannot be parsed is treated as an empty result, never as a best-effort guess.
package skill

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DefaultCategory is assigned to skills supplied without a category.
const DefaultCategory = "General"

// Categories lists the skill categories the analyzer asks the model to use.
var Categories = []string{
	"Trade Skill",
	"Equipment Operation",
	"Safety & Certification",
	"Technical Skill",
	"Physical Ability",
	"Soft Skill",
	"License/Credential",
	"Language",
}

// Skill is a single required job skill.
type Skill struct {
	Name     string `json:"skill"`
	Category string `json:"category"`
}

// UnmarshalJSON accepts either a bare string ("Welding") or an object
// ({"skill": "Welding", "category": "Trade Skill"}). The key "name" is
// accepted as an alias for "skill".
func (s *Skill) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*s = Skill{Name: name}
		return nil
	}

	var obj struct {
		Skill    string `json:"skill"`
		Name     string `json:"name"`
		Category string `json:"category"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("skill: want a string or an object: %w", err)
	}
	s.Name = obj.Skill
	if s.Name == "" {
		s.Name = obj.Name
	}
	s.Category = obj.Category
	return nil
}

// String renders the skill as "Name (Category)", the form used in prompts.
func (s Skill) String() string {
	if s.Category == "" {
		return s.Name
	}
	return s.Name + " (" + s.Category + ")"
}

// Detection is one piece of evidence for a skill.
type Detection struct {
	Timestamp  time.Time `json:"timestamp"`
	SourceText string    `json:"text"`
}

// Status is the detection state of one skill within a session. Has only ever
// moves from false to true and DetectedIn only grows.
type Status struct {
	Has        bool        `json:"has"`
	DetectedIn []Detection `json:"detected_in"`
	Category   string      `json:"category"`
}

// Names returns the skill names in order.
func Names(skills []Skill) []string {
	out := make([]string, len(skills))
	for i, s := range skills {
		out[i] = s.Name
	}
	return out
}

// key is the lookup key for a skill name: trimmed and case-folded.
func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
