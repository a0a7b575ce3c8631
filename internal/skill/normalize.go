package skill

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoSkills is returned by [ParseList] when the input holds no usable skill.
var ErrNoSkills = errors.New("skill: no skills")

// Normalize trims names and categories, drops entries without a name,
// collapses case-insensitive duplicates (first occurrence wins) and fills in
// [DefaultCategory]. The input slice is not modified.
func Normalize(skills []Skill) []Skill {
	seen := make(map[string]struct{}, len(skills))
	out := make([]Skill, 0, len(skills))
	for _, s := range skills {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			continue
		}
		k := key(name)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		category := strings.TrimSpace(s.Category)
		if category == "" {
			category = DefaultCategory
		}
		out = append(out, Skill{Name: name, Category: category})
	}
	return out
}

// ParseList decodes a JSON array whose items are skill names or
// {skill, category} objects, possibly mixed, and normalizes the result.
// Any malformed item fails the whole list; this is the strict form used at
// the API boundary.
func ParseList(data []byte) ([]Skill, error) {
	var raw []Skill
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("skill: parse list: %w", err)
	}
	skills := Normalize(raw)
	if len(skills) == 0 {
		return nil, ErrNoSkills
	}
	return skills, nil
}

// FromNames builds a normalized skill list from bare names.
func FromNames(names []string) []Skill {
	skills := make([]Skill, len(names))
	for i, n := range names {
		skills[i] = Skill{Name: n}
	}
	return Normalize(skills)
}
