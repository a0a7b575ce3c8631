package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrWong99/skillprobe/internal/interview"
	"github.com/MrWong99/skillprobe/internal/observe"
	"github.com/MrWong99/skillprobe/internal/skill"
	"github.com/MrWong99/skillprobe/pkg/provider/stt"
)

// startRequest is the body of POST /interview/start. Skills may be plain
// strings or {skill, category} objects.
type startRequest struct {
	Skills            []skill.Skill `json:"skills"`
	Questions         []string      `json:"questions"`
	GenerateQuestions *bool         `json:"generate_questions"`
	JobDescription    string        `json:"job_description"`
	MaxSkills         int           `json:"max_skills"`
}

type startResponse struct {
	SessionID      string        `json:"session_id"`
	TotalQuestions int           `json:"total_questions"`
	TotalSkills    int           `json:"total_skills"`
	FirstQuestion  string        `json:"first_question"`
	Skills         []skill.Skill `json:"skills"`
	Questions      []string      `json:"questions"`
}

// handleStart handles POST /interview/start.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := observe.Logger(ctx)

	var req startRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	skills := skill.Normalize(req.Skills)
	if len(skills) == 0 && strings.TrimSpace(req.JobDescription) != "" {
		if s.cfg.Analyzer == nil {
			writeError(w, r, fmt.Errorf("%w: skill extraction is not configured", errUnavailable))
			return
		}
		limit := req.MaxSkills
		if limit <= 0 {
			limit = s.cfg.ExtractLimit
		}
		extracted, err := s.cfg.Analyzer.ExtractSkills(ctx, req.JobDescription, limit)
		if err != nil {
			log.Warn("skill extraction failed, using default skills", "err", err)
		}
		skills = skill.Normalize(extracted)
	}
	if len(skills) == 0 {
		skills = skill.Normalize(s.cfg.DefaultSkills)
	}

	questions := req.Questions
	generate := s.cfg.GenerateQuestions
	if req.GenerateQuestions != nil {
		generate = *req.GenerateQuestions
	}
	if len(questions) == 0 && generate && len(skills) > 0 {
		if s.cfg.Analyzer == nil {
			writeError(w, r, fmt.Errorf("%w: question generation is not configured", errUnavailable))
			return
		}
		generated, err := s.cfg.Analyzer.GenerateQuestions(ctx, skills)
		if err != nil {
			log.Warn("question generation failed, using fallback questions", "err", err)
		}
		questions = generated
	}

	id, err := s.cfg.Manager.Create(ctx, skills, questions)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := s.cfg.Manager.Session(id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	qs := make([]string, sess.NumQuestions())
	for i := range qs {
		qs[i] = sess.Question(i)
	}
	writeJSON(w, http.StatusCreated, startResponse{
		SessionID:      id,
		TotalQuestions: len(qs),
		TotalSkills:    len(sess.Skills()),
		FirstQuestion:  sess.Question(0),
		Skills:         sess.Skills(),
		Questions:      qs,
	})
}

// handleAnswer handles POST /interview/answer/{sessionId}/{questionIndex}.
// The body is the raw recording, or a multipart form with an "audio" file.
// The session and index are checked before the upload is read.
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("sessionId")
	idx, err := strconv.Atoi(r.PathValue("questionIndex"))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: question index %q is not a number", interview.ErrInvalidArgument, r.PathValue("questionIndex")))
		return
	}

	if _, err := s.cfg.Manager.CheckAnswer(id, idx); err != nil {
		writeError(w, r, err)
		return
	}

	req, err := s.readAudio(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.cfg.Manager.SubmitAnswer(r.Context(), id, idx, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// readAudio extracts the uploaded recording from r.
func (s *Server) readAudio(w http.ResponseWriter, r *http.Request) (stt.Request, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return stt.Request{}, uploadError(err)
		}
		return stt.Request{Audio: data, Filename: filenameFor(mediaType)}, nil
	}

	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		return stt.Request{}, uploadError(err)
	}
	for _, field := range []string{"audio", "audio_file"} {
		f, hdr, err := r.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			return stt.Request{}, uploadError(err)
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return stt.Request{}, uploadError(err)
		}
		return stt.Request{Audio: data, Filename: hdr.Filename}, nil
	}
	return stt.Request{}, fmt.Errorf("%w: multipart form has no audio field", interview.ErrInvalidArgument)
}

func uploadError(err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return fmt.Errorf("%w: audio exceeds %d bytes", interview.ErrInvalidArgument, tooBig.Limit)
	}
	return fmt.Errorf("%w: read audio: %v", interview.ErrInvalidArgument, err)
}

// filenameFor derives a container hint for the ASR backend from a raw
// upload's content type.
func filenameFor(mediaType string) string {
	switch mediaType {
	case "audio/webm", "video/webm":
		return "answer.webm"
	case "audio/ogg":
		return "answer.ogg"
	case "audio/mpeg", "audio/mp3":
		return "answer.mp3"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return "answer.m4a"
	case "audio/flac":
		return "answer.flac"
	default:
		return "answer.wav"
	}
}

// handleComplete handles POST /interview/complete/{sessionId}.
func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	report, err := s.cfg.Manager.Complete(r.Context(), r.PathValue("sessionId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleStatus handles GET /interview/session/{sessionId}.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.cfg.Manager.Status(r.PathValue("sessionId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
