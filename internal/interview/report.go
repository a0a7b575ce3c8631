package interview

import (
	"context"
	"time"

	"github.com/MrWong99/skillprobe/internal/skill"
)

// Progress summarizes skill coverage for API responses.
type Progress struct {
	Detected   int     `json:"detected"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// AnswerResult is returned by [Manager.SubmitAnswer] and [Manager.Ingest].
type AnswerResult struct {
	QuestionIndex     int      `json:"question_index"`
	Transcript        string   `json:"transcript"`
	CleanedTranscript string   `json:"cleaned_transcript"`
	DetectedSkills    []string `json:"detected_skills"`
	NewlyConfirmed    []string `json:"newly_confirmed"`
	Language          string   `json:"language"`
	Message           string   `json:"message,omitempty"`
	Progress          Progress `json:"progress"`
	HasNextQuestion   bool     `json:"has_next_question"`
	NextQuestionIndex int      `json:"next_question_index"`
	NextQuestion      string   `json:"next_question,omitempty"`
	AllSkillsDetected bool     `json:"all_skills_detected"`
	Completed         bool     `json:"completed"`
}

// Snapshot is a read-only view of a live session.
type Snapshot struct {
	ID                 string                  `json:"id"`
	State              State                   `json:"state"`
	SkillsStatus       map[string]skill.Status `json:"skills_status"`
	DetectedCount      int                     `json:"detected_count"`
	TotalSkills        int                     `json:"total_skills"`
	ProgressPercentage float64                 `json:"progress_percentage"`
	Transcriptions     []string                `json:"transcriptions"`
	AnswersCount       int                     `json:"answers_count"`
	Questions          []string                `json:"questions"`
	CurrentQuestion    int                     `json:"current_question"`
	ElapsedSeconds     float64                 `json:"elapsed_seconds"`
}

// Report is the final outcome of a session, produced by [Manager.Complete].
type Report struct {
	SessionID       string           `json:"session_id"`
	Summary         skill.Report     `json:"report"`
	Answers         []Answer         `json:"answers"`
	Questions       []string         `json:"questions"`
	Reason          CompletionReason `json:"completed_reason"`
	StartedAt       time.Time        `json:"started_at"`
	CompletedAt     time.Time        `json:"completed_at"`
	DurationSeconds float64          `json:"duration_seconds"`
}

// ReportSink receives every final report. Store failures are logged and
// never fail completion.
type ReportSink interface {
	Store(ctx context.Context, r *Report) error
}
