package skill_test

import (
	"errors"
	"testing"

	"github.com/MrWong99/skillprobe/internal/skill"
)

func TestParseList_MixedItems(t *testing.T) {
	t.Parallel()

	got, err := skill.ParseList([]byte(`["  Welding ", {"skill": "Forklift Operation", "category": "Equipment Operation"}, {"name": "CDL"}, "WELDING", ""]`))
	if err != nil {
		t.Fatalf("ParseList: %v", err)
	}
	want := []skill.Skill{
		{Name: "Welding", Category: "General"},
		{Name: "Forklift Operation", Category: "Equipment Operation"},
		{Name: "CDL", Category: "General"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("item %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseList_Errors(t *testing.T) {
	t.Parallel()

	if _, err := skill.ParseList([]byte(`[]`)); !errors.Is(err, skill.ErrNoSkills) {
		t.Errorf("empty list: err = %v, want ErrNoSkills", err)
	}
	if _, err := skill.ParseList([]byte(`["", "  "]`)); !errors.Is(err, skill.ErrNoSkills) {
		t.Errorf("blank names: err = %v, want ErrNoSkills", err)
	}
	if _, err := skill.ParseList([]byte(`[42]`)); err == nil {
		t.Error("number item: expected error")
	}
	if _, err := skill.ParseList([]byte(`{"skill": "x"}`)); err == nil {
		t.Error("object instead of array: expected error")
	}
}

func TestSkill_String(t *testing.T) {
	t.Parallel()

	if got := (skill.Skill{Name: "OSHA 10", Category: "Safety & Certification"}).String(); got != "OSHA 10 (Safety & Certification)" {
		t.Errorf("String() = %q", got)
	}
	if got := (skill.Skill{Name: "Welding"}).String(); got != "Welding" {
		t.Errorf("String() without category = %q", got)
	}
}
