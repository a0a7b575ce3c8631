package skill_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/MrWong99/skillprobe/internal/skill"
	"github.com/MrWong99/skillprobe/pkg/provider/llm/mock"
)

func TestAnalyzer_ExtractSkills(t *testing.T) {
	t.Parallel()

	var items []string
	for i := range 12 {
		items = append(items, fmt.Sprintf(`{"skill": "Skill %d", "category": "Trade Skill"}`, i))
	}
	p := reply("[" + strings.Join(items, ",") + "]")
	a := skill.NewAnalyzer(p)

	got, err := a.ExtractSkills(context.Background(), "Warehouse associate, forklift required.", 0)
	if err != nil {
		t.Fatalf("ExtractSkills: %v", err)
	}
	if len(got) != skill.DefaultExtractLimit {
		t.Errorf("len = %d, want default cap %d", len(got), skill.DefaultExtractLimit)
	}

	got, err = a.ExtractSkills(context.Background(), "Warehouse associate", 100)
	if err != nil {
		t.Fatalf("ExtractSkills: %v", err)
	}
	if len(got) != 12 {
		t.Errorf("len = %d, want all 12 under the max cap", len(got))
	}

	req := p.Calls()[0].Req
	if !strings.Contains(req.Messages[0].Content, "forklift required") {
		t.Errorf("prompt missing job description: %s", req.Messages[0].Content)
	}
	if !strings.Contains(req.SystemPrompt, "Safety & Certification") {
		t.Errorf("system prompt missing categories")
	}
}

func TestAnalyzer_ExtractSkillsUnusableReply(t *testing.T) {
	t.Parallel()

	a := skill.NewAnalyzer(reply("Skills: welding, carpentry"))
	got, err := a.ExtractSkills(context.Background(), "Welder", 5)
	if err != nil {
		t.Fatalf("ExtractSkills: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty non-nil list", got)
	}

	if _, err := a.ExtractSkills(context.Background(), "  ", 5); !errors.Is(err, skill.ErrEmptyDescription) {
		t.Errorf("blank description: err = %v", err)
	}
}

func TestAnalyzer_GenerateQuestionsPadsShortReply(t *testing.T) {
	t.Parallel()

	a := skill.NewAnalyzer(reply(`["Have you operated a forklift before?", ""]`))
	got, err := a.GenerateQuestions(context.Background(), interviewSkills)
	if err != nil {
		t.Fatalf("GenerateQuestions: %v", err)
	}
	want := []string{
		"Have you operated a forklift before?",
		"Can you tell me about your experience with Forklift Operation?",
		"Can you tell me about your experience with Welding?",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d questions, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("question %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAnalyzer_GenerateQuestionsProviderError(t *testing.T) {
	t.Parallel()

	a := skill.NewAnalyzer(&mock.Provider{CompleteErr: errors.New("timeout")})
	got, err := a.GenerateQuestions(context.Background(), interviewSkills)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(got) != len(interviewSkills) {
		t.Fatalf("got %d fallback questions, want %d", len(got), len(interviewSkills))
	}
	if got[0] != skill.FallbackQuestion(interviewSkills[0]) {
		t.Errorf("question 0 = %q", got[0])
	}
}
