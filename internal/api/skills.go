package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/MrWong99/skillprobe/internal/interview"
	"github.com/MrWong99/skillprobe/internal/observe"
	"github.com/MrWong99/skillprobe/internal/skill"
)

type extractRequest struct {
	JobDescription string `json:"job_description"`
	MaxSkills      int    `json:"max_skills"`
}

type extractResponse struct {
	Skills []skill.Skill `json:"skills"`
}

// handleExtract handles POST /skills/extract. A provider failure answers 200
// with an empty list.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Analyzer == nil {
		writeError(w, r, fmt.Errorf("%w: skill extraction is not configured", errUnavailable))
		return
	}
	var req extractRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	skills, err := s.cfg.Analyzer.ExtractSkills(r.Context(), req.JobDescription, req.MaxSkills)
	if errors.Is(err, skill.ErrEmptyDescription) {
		writeError(w, r, fmt.Errorf("%w: %v", interview.ErrInvalidArgument, err))
		return
	}
	if err != nil {
		observe.Logger(r.Context()).Warn("skill extraction failed, answering with no skills", "err", err)
		skills = nil
	}
	if skills == nil {
		skills = []skill.Skill{}
	}
	writeJSON(w, http.StatusOK, extractResponse{Skills: skills})
}

type generateRequest struct {
	Skills []skill.Skill `json:"skills"`
}

type generateResponse struct {
	Questions []string `json:"questions"`
}

// handleGenerate handles POST /questions/generate. A provider failure still
// answers 200 with the fallback questions.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Analyzer == nil {
		writeError(w, r, fmt.Errorf("%w: question generation is not configured", errUnavailable))
		return
	}
	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	skills := skill.Normalize(req.Skills)
	if len(skills) == 0 {
		writeError(w, r, fmt.Errorf("%w: at least one skill is required", interview.ErrInvalidArgument))
		return
	}

	questions, err := s.cfg.Analyzer.GenerateQuestions(r.Context(), skills)
	if err != nil {
		observe.Logger(r.Context()).Warn("question generation failed, using fallback questions", "err", err)
	}
	writeJSON(w, http.StatusOK, generateResponse{Questions: questions})
}
