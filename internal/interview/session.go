package interview

import (
	"sync"
	"time"

	"github.com/MrWong99/skillprobe/internal/skill"
)

// State is the lifecycle position of a [Session].
type State int

const (
	// StateCreated is a session that has not received an answer yet.
	StateCreated State = iota
	// StateActive is a session that has received at least one answer.
	StateActive
	// StateCompleted is terminal. It is set once and rejects further answers.
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateActive:
		return "active"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CompletionReason records why a session reached [StateCompleted].
type CompletionReason string

const (
	ReasonCoverage  CompletionReason = "coverage"
	ReasonQuestions CompletionReason = "questions"
	ReasonDeadline  CompletionReason = "deadline"
	ReasonManual    CompletionReason = "manual"
	ReasonExpired   CompletionReason = "expired"
)

// Answer is one processed response. It is immutable once appended.
type Answer struct {
	QuestionIndex     int       `json:"question_index"`
	Transcript        string    `json:"transcript"`
	CleanedTranscript string    `json:"cleaned_transcript"`
	DetectedSkills    []string  `json:"detected_skills"`
	Language          string    `json:"language"`
	Timestamp         time.Time `json:"timestamp"`
	Source            string    `json:"source"`
}

// Session is one interview. Skills and questions are fixed at creation;
// everything else is guarded by mu. work serializes pipeline runs so that
// answers are merged in arrival order without holding mu across network
// calls.
type Session struct {
	id        string
	skills    []skill.Skill
	questions []string
	tracker   *skill.Tracker
	startTime time.Time

	work sync.Mutex

	mu           sync.Mutex
	state        State
	answers      []Answer
	current      int
	lastActivity time.Time
	completedAt  time.Time
	reason       CompletionReason
}

func newSession(id string, skills []skill.Skill, questions []string, now time.Time) *Session {
	return &Session{
		id:           id,
		skills:       skills,
		questions:    questions,
		tracker:      skill.NewTracker(skills),
		startTime:    now,
		lastActivity: now,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Question returns the question at i, or "" when out of range.
func (s *Session) Question(i int) string {
	if i < 0 || i >= len(s.questions) {
		return ""
	}
	return s.questions[i]
}

// NumQuestions returns the length of the question list.
func (s *Session) NumQuestions() int { return len(s.questions) }

// Skills returns a copy of the skill list.
func (s *Session) Skills() []skill.Skill {
	out := make([]skill.Skill, len(s.skills))
	copy(out, s.skills)
	return out
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentQuestion returns the index of the question being asked.
func (s *Session) CurrentQuestion() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// completeLocked moves the session to StateCompleted. It reports false when
// the session was already completed. s.mu must be held.
func (s *Session) completeLocked(reason CompletionReason, now time.Time) bool {
	if s.state == StateCompleted {
		return false
	}
	s.state = StateCompleted
	s.reason = reason
	s.completedAt = now
	return true
}

func (s *Session) progress() Progress {
	detected, total := s.tracker.Counts()
	p := Progress{Detected: detected, Total: total}
	if total > 0 {
		p.Percentage = float64(detected) / float64(total) * 100
	}
	return p
}
