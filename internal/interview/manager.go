// Package interview owns the lifecycle of skill interviews.
//
// A [Manager] keeps an in-memory registry of sessions. Each answer (an
// uploaded recording or a live segmenter chunk) runs through the same
// pipeline: transcribe, clean up, detect skills, merge into the session's
// [skill.Tracker]. A session completes when every skill is confirmed or the
// last question has been answered; [Manager.Complete] then produces the
// final [Report] and removes the session.
//
// Collaborator failures never fail an answer. A transcription or detection
// error degrades to an empty result and is logged and counted.
package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/skillprobe/internal/observe"
	"github.com/MrWong99/skillprobe/internal/skill"
	"github.com/MrWong99/skillprobe/internal/transcript"
	"github.com/MrWong99/skillprobe/pkg/audio"
	"github.com/MrWong99/skillprobe/pkg/provider/stt"
)

// Message texts returned on neutral results.
const (
	MessageNoAudio  = "no audio detected"
	MessageNoSpeech = "no speech detected"
)

const (
	sourceREST = "rest"
	sourceLive = "live"
)

// DefaultSweepInterval is how often [Manager.Run] looks for idle sessions.
const DefaultSweepInterval = time.Minute

// Transcriber turns audio into text. [transcript.Coordinator] implements it.
type Transcriber interface {
	Transcribe(ctx context.Context, req stt.Request) transcript.Transcription
}

// Cleaner fixes recognition errors. [transcript.Cleaner] implements it.
type Cleaner interface {
	Clean(ctx context.Context, text string, vocabulary []string) transcript.Cleaned
}

// Detector names the skills a statement demonstrates. [skill.Detector]
// implements it.
type Detector interface {
	Detect(ctx context.Context, text string, skills []skill.Skill) ([]string, error)
}

// ManagerConfig holds the dependencies for a [Manager].
type ManagerConfig struct {
	// Transcriber is required.
	Transcriber Transcriber

	// Detector is required.
	Detector Detector

	// Cleaner is optional; nil skips cleanup.
	Cleaner Cleaner

	// Vocabulary lists extra terms the cleaner may snap to, on top of each
	// session's skill names.
	Vocabulary []string

	// Archive receives final reports. Optional.
	Archive ReportSink

	// Metrics is optional.
	Metrics *observe.Metrics

	// SessionTTL evicts sessions idle for longer than this. Zero disables
	// eviction.
	SessionTTL time.Duration

	// SweepInterval overrides [DefaultSweepInterval].
	SweepInterval time.Duration

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Manager is the session registry. All methods are safe for concurrent use.
type Manager struct {
	transcriber Transcriber
	cleaner     Cleaner
	vocabulary  []string
	detector    Detector
	archive     ReportSink
	metrics     *observe.Metrics
	ttl         time.Duration
	sweep       time.Duration
	now         func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager validates cfg and returns a ready Manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	var errs []error
	if cfg.Transcriber == nil {
		errs = append(errs, fmt.Errorf("%w: transcriber is required", ErrConfiguration))
	}
	if cfg.Detector == nil {
		errs = append(errs, fmt.Errorf("%w: detector is required", ErrConfiguration))
	}
	if cfg.SessionTTL < 0 {
		errs = append(errs, fmt.Errorf("%w: session ttl must not be negative", ErrConfiguration))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	m := &Manager{
		transcriber: cfg.Transcriber,
		cleaner:     cfg.Cleaner,
		vocabulary:  cfg.Vocabulary,
		detector:    cfg.Detector,
		archive:     cfg.Archive,
		metrics:     cfg.Metrics,
		ttl:         cfg.SessionTTL,
		sweep:       cfg.SweepInterval,
		now:         cfg.Now,
		sessions:    make(map[string]*Session),
	}
	if m.sweep <= 0 {
		m.sweep = DefaultSweepInterval
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}

// Create registers a new session and returns its id. Skills are normalized
// (trimmed, deduplicated, default category) and blank questions dropped.
// It returns [ErrConfiguration] when either list ends up empty.
func (m *Manager) Create(ctx context.Context, skills []skill.Skill, questions []string) (string, error) {
	skills = skill.Normalize(skills)
	qs := make([]string, 0, len(questions))
	for _, q := range questions {
		if q = strings.TrimSpace(q); q != "" {
			qs = append(qs, q)
		}
	}

	var errs []error
	if len(skills) == 0 {
		errs = append(errs, fmt.Errorf("%w: at least one skill is required", ErrConfiguration))
	}
	if len(qs) == 0 {
		errs = append(errs, fmt.Errorf("%w: at least one question is required", ErrConfiguration))
	}
	if err := errors.Join(errs...); err != nil {
		return "", err
	}

	id := uuid.NewString()
	sess := newSession(id, skills, qs, m.now())

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ActiveSessions.Add(ctx, 1)
	}
	observe.Logger(ctx).Info("interview session created",
		"session_id", id,
		"skills", len(skills),
		"questions", len(qs),
	)
	return id, nil
}

// Session returns the registered session with id.
func (m *Manager) Session(id string) (*Session, error) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sess, nil
}

// Len returns the number of registered sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CheckAnswer reports whether an answer to question questionIndex of session
// id would be accepted right now, returning the session when it would. The
// errors match those of [Manager.SubmitAnswer] and are checked in the same
// order.
func (m *Manager) CheckAnswer(id string, questionIndex int) (*Session, error) {
	sess, err := m.Session(id)
	if err != nil {
		return nil, err
	}
	if questionIndex < 0 || questionIndex >= sess.NumQuestions() {
		return nil, fmt.Errorf("%w: question index %d outside [0, %d)", ErrInvalidArgument, questionIndex, sess.NumQuestions())
	}
	if sess.State() == StateCompleted {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyCompleted, id)
	}
	return sess, nil
}

// SubmitAnswer processes the recorded answer to question questionIndex.
// Empty audio yields a neutral result and leaves the session unchanged.
// The session completes when all skills are confirmed or questionIndex is
// the last question.
func (m *Manager) SubmitAnswer(ctx context.Context, id string, questionIndex int, req stt.Request) (*AnswerResult, error) {
	sess, err := m.CheckAnswer(id, questionIndex)
	if err != nil {
		return nil, err
	}
	if len(req.Audio) == 0 && len(req.Samples) == 0 {
		return m.neutral(sess, questionIndex, MessageNoAudio), nil
	}
	return m.answer(ctx, sess, questionIndex, req, sourceREST)
}

// Ingest processes one live segmenter chunk against the session's current
// question. Chunks without speech do not create an answer.
func (m *Manager) Ingest(ctx context.Context, id string, chunk audio.Chunk) (*AnswerResult, error) {
	sess, err := m.Session(id)
	if err != nil {
		return nil, err
	}
	if sess.State() == StateCompleted {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyCompleted, id)
	}
	idx := sess.CurrentQuestion()
	if len(chunk.Samples) == 0 {
		return m.neutral(sess, idx, MessageNoAudio), nil
	}
	req := stt.Request{Samples: chunk.Samples, SampleRate: chunk.SampleRate}
	return m.answer(ctx, sess, idx, req, sourceLive)
}

func (m *Manager) neutral(sess *Session, idx int, msg string) *AnswerResult {
	return &AnswerResult{
		QuestionIndex:     idx,
		DetectedSkills:    []string{},
		NewlyConfirmed:    []string{},
		Message:           msg,
		Progress:          sess.progress(),
		HasNextQuestion:   true,
		NextQuestionIndex: idx,
		NextQuestion:      sess.Question(idx),
		AllSkillsDetected: sess.tracker.AllDetected(),
	}
}

// answer runs the pipeline for one piece of audio. Network calls happen
// under sess.work only; sess.mu is taken for the final merge.
func (m *Manager) answer(ctx context.Context, sess *Session, idx int, req stt.Request, source string) (*AnswerResult, error) {
	sess.work.Lock()
	defer sess.work.Unlock()

	if sess.State() == StateCompleted {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyCompleted, sess.id)
	}

	ctx, span := observe.StartSpan(ctx, "interview.answer",
		observe.KeySessionID.String(sess.id),
		observe.KeyQuestionIndex.Int(idx),
		observe.KeySource.String(source),
	)
	defer span.End()
	log := observe.Logger(ctx).With("session_id", sess.id, "question_index", idx, "source", source)
	start := time.Now()

	tr := m.transcriber.Transcribe(ctx, req)
	text := tr.Text
	cleaned := text
	if m.cleaner != nil && text != "" {
		cleaned = m.cleaner.Clean(ctx, text, append(skill.Names(sess.skills), m.vocabulary...)).Text
	}

	detected := []string{}
	if cleaned != "" {
		detectStart := time.Now()
		names, err := m.detector.Detect(ctx, cleaned, sess.skills)
		if m.metrics != nil {
			m.metrics.LLMDuration.Record(ctx, time.Since(detectStart).Seconds(),
				metric.WithAttributes(observe.Attr("stage", "detect")))
		}
		if err != nil {
			log.Warn("skill detection failed, treating answer as no detections", "err", err)
			if m.metrics != nil {
				m.metrics.RecordProviderError(ctx, "llm", "detect")
			}
		} else if names != nil {
			detected = names
		}
	}

	now := m.now()
	confirmed := sess.tracker.Merge(detected, now, cleaned)
	if confirmed == nil {
		confirmed = []string{}
	}
	all := sess.tracker.AllDetected()

	// A live chunk without speech is not an answer.
	if source == sourceLive && cleaned == "" {
		res := m.neutral(sess, idx, MessageNoSpeech)
		res.Language = tr.Language
		return res, nil
	}

	sess.mu.Lock()
	sess.answers = append(sess.answers, Answer{
		QuestionIndex:     idx,
		Transcript:        text,
		CleanedTranscript: cleaned,
		DetectedSkills:    detected,
		Language:          tr.Language,
		Timestamp:         now,
		Source:            source,
	})
	if sess.state == StateCreated {
		sess.state = StateActive
	}
	sess.lastActivity = now

	next := sess.current
	var reason CompletionReason
	switch {
	case all:
		reason = ReasonCoverage
	case source == sourceREST && idx >= len(sess.questions)-1:
		reason = ReasonQuestions
	}
	if source == sourceREST {
		next = idx + 1
		if next < len(sess.questions) {
			sess.current = next
		}
	}
	completed := false
	if reason != "" {
		completed = sess.completeLocked(reason, now)
	}
	isCompleted := sess.state == StateCompleted
	sess.mu.Unlock()

	res := &AnswerResult{
		QuestionIndex:     idx,
		Transcript:        text,
		CleanedTranscript: cleaned,
		DetectedSkills:    detected,
		NewlyConfirmed:    confirmed,
		Language:          tr.Language,
		Progress:          sess.progress(),
		AllSkillsDetected: all,
		Completed:         isCompleted,
	}
	if !isCompleted && next < len(sess.questions) {
		res.HasNextQuestion = true
		res.NextQuestionIndex = next
		res.NextQuestion = sess.questions[next]
	}
	if text == "" {
		res.Message = MessageNoSpeech
	}

	if m.metrics != nil {
		m.metrics.AnswerDuration.Record(ctx, time.Since(start).Seconds())
		m.metrics.Answers.Add(ctx, 1, metric.WithAttributes(observe.Attr("source", source)))
		if len(confirmed) > 0 {
			m.metrics.SkillsConfirmed.Add(ctx, int64(len(confirmed)))
		}
		if completed {
			m.metrics.RecordSessionCompleted(ctx, string(reason))
		}
	}

	log.Info("answer processed",
		"language", tr.Language,
		"retried", tr.Retried,
		"detected", detected,
		"newly_confirmed", confirmed,
		"coverage", res.Progress.Percentage,
		"completed", isCompleted,
	)
	return res, nil
}

// Status returns a snapshot of the session.
func (m *Manager) Status(id string) (*Snapshot, error) {
	sess, err := m.Session(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	transcriptions := make([]string, 0, len(sess.answers))
	for _, a := range sess.answers {
		if a.CleanedTranscript != "" {
			transcriptions = append(transcriptions, a.CleanedTranscript)
		}
	}
	snap := &Snapshot{
		ID:              sess.id,
		State:           sess.state,
		Transcriptions:  transcriptions,
		AnswersCount:    len(sess.answers),
		Questions:       append([]string(nil), sess.questions...),
		CurrentQuestion: sess.current,
		ElapsedSeconds:  m.elapsedLocked(sess).Seconds(),
	}
	sess.mu.Unlock()

	p := sess.progress()
	snap.SkillsStatus = sess.tracker.Statuses()
	snap.DetectedCount = p.Detected
	snap.TotalSkills = p.Total
	snap.ProgressPercentage = p.Percentage
	return snap, nil
}

// elapsedLocked is the session duration so far, frozen at completion.
// sess.mu must be held.
func (m *Manager) elapsedLocked(sess *Session) time.Duration {
	end := m.now()
	if sess.state == StateCompleted {
		end = sess.completedAt
	}
	return end.Sub(sess.startTime)
}

// Complete finishes the session, removes it from the registry and returns
// the final report. A session already completed by coverage or by its
// last question keeps its original completion reason.
func (m *Manager) Complete(ctx context.Context, id string) (*Report, error) {
	return m.Finish(ctx, id, ReasonManual)
}

// Finish is [Manager.Complete] with an explicit completion reason, used by
// the live path when its deadline expires.
func (m *Manager) Finish(ctx context.Context, id string, reason CompletionReason) (*Report, error) {
	sess, err := m.Session(id)
	if err != nil {
		return nil, err
	}

	// Wait for an in-flight answer so its result is part of the report.
	sess.work.Lock()
	defer sess.work.Unlock()

	m.mu.Lock()
	if m.sessions[id] != sess {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	report := m.finalize(ctx, sess, reason)
	m.store(ctx, report)

	observe.Logger(ctx).Info("interview session completed",
		"session_id", id,
		"reason", report.Reason,
		"coverage", report.Summary.Coverage,
		"answers", len(report.Answers),
		"duration_s", report.DurationSeconds,
	)
	return report, nil
}

// finalize completes sess if needed and builds its report. The caller has
// already removed sess from the registry.
func (m *Manager) finalize(ctx context.Context, sess *Session, reason CompletionReason) *Report {
	sess.mu.Lock()
	first := sess.completeLocked(reason, m.now())
	report := &Report{
		SessionID:   sess.id,
		Answers:     append([]Answer{}, sess.answers...),
		Questions:   append([]string(nil), sess.questions...),
		Reason:      sess.reason,
		StartedAt:   sess.startTime,
		CompletedAt: sess.completedAt,
	}
	report.DurationSeconds = m.elapsedLocked(sess).Seconds()
	sess.mu.Unlock()

	report.Summary = sess.tracker.Report()

	if m.metrics != nil {
		m.metrics.ActiveSessions.Add(ctx, -1)
		if first {
			m.metrics.RecordSessionCompleted(ctx, string(reason))
		}
	}
	return report
}

func (m *Manager) store(ctx context.Context, r *Report) {
	if m.archive == nil {
		return
	}
	if err := m.archive.Store(ctx, r); err != nil {
		observe.Logger(ctx).Warn("archive report failed", "session_id", r.SessionID, "err", err)
	}
}

// Run evicts sessions idle for longer than the configured TTL until ctx is
// cancelled. Evicted sessions are completed with [ReasonExpired] and their
// reports archived. With no TTL Run just waits for ctx.
func (m *Manager) Run(ctx context.Context) error {
	if m.ttl <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(m.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep evicts every session idle for longer than the TTL and returns the
// number evicted.
func (m *Manager) Sweep(ctx context.Context) int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.ttl)

	m.mu.RLock()
	var idle []string
	for id, sess := range m.sessions {
		sess.mu.Lock()
		if sess.lastActivity.Before(cutoff) {
			idle = append(idle, id)
		}
		sess.mu.Unlock()
	}
	m.mu.RUnlock()

	n := 0
	for _, id := range idle {
		if _, err := m.Finish(ctx, id, ReasonExpired); err != nil {
			continue
		}
		n++
	}
	if n > 0 {
		observe.Logger(ctx).Info("evicted idle interview sessions", "count", n, "ttl", m.ttl)
	}
	return n
}
