package skill

import (
	"sync"
	"time"
)

// ReportEntry is the per-skill line of a coverage report.
type ReportEntry struct {
	Skill         string `json:"skill"`
	Category      string `json:"category"`
	DetectedCount int    `json:"detected_count"`
}

// Report splits the session's skills into confirmed and missing.
// Coverage is a percentage in [0, 100].
type Report struct {
	TotalSkills int           `json:"total_skills"`
	Skills      []ReportEntry `json:"skills"`
	Confirmed   []ReportEntry `json:"skills_has"`
	Missing     []ReportEntry `json:"skills_missing"`
	Coverage    float64       `json:"coverage"`
}

// Tracker owns the detection status of a fixed skill list. All methods are
// safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	skills []Skill
	index  map[string]int
	status []Status
}

// NewTracker returns a Tracker for skills. The list is normalized; the
// tracker never adds or removes skills afterwards.
func NewTracker(skills []Skill) *Tracker {
	skills = Normalize(skills)
	t := &Tracker{
		skills: skills,
		index:  make(map[string]int, len(skills)),
		status: make([]Status, len(skills)),
	}
	for i, s := range skills {
		t.index[key(s.Name)] = i
		t.status[i] = Status{Category: s.Category}
	}
	return t
}

// Skills returns a copy of the tracked skill list.
func (t *Tracker) Skills() []Skill {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Skill, len(t.skills))
	copy(out, t.skills)
	return out
}

// Resolve maps a name to its canonical spelling. Matching is
// case-insensitive on the trimmed name.
func (t *Tracker) Resolve(name string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.index[key(name)]
	if !ok {
		return "", false
	}
	return t.skills[i].Name, true
}

// Merge records a detection of each named skill at ts with the utterance
// text as evidence. Unknown names are ignored and repeated names within one
// call count once. Every known skill gets a new evidence entry; Has flips to
// true the first time. Merge returns the canonical names that were confirmed
// by this call for the first time.
func (t *Tracker) Merge(names []string, ts time.Time, text string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var confirmed []string
	seen := make(map[int]struct{}, len(names))
	for _, n := range names {
		i, ok := t.index[key(n)]
		if !ok {
			continue
		}
		if _, dup := seen[i]; dup {
			continue
		}
		seen[i] = struct{}{}

		st := &t.status[i]
		if !st.Has {
			st.Has = true
			confirmed = append(confirmed, t.skills[i].Name)
		}
		st.DetectedIn = append(st.DetectedIn, Detection{Timestamp: ts, SourceText: text})
	}
	return confirmed
}

// Has reports whether the named skill has been confirmed.
func (t *Tracker) Has(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.index[key(name)]
	return ok && t.status[i].Has
}

// Counts returns the number of confirmed skills and the total.
func (t *Tracker) Counts() (detected, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.countLocked(), len(t.skills)
}

func (t *Tracker) countLocked() int {
	n := 0
	for _, st := range t.status {
		if st.Has {
			n++
		}
	}
	return n
}

// Coverage returns the confirmed fraction in [0, 1], or 0 with no skills.
func (t *Tracker) Coverage() float64 {
	detected, total := t.Counts()
	if total == 0 {
		return 0
	}
	return float64(detected) / float64(total)
}

// AllDetected reports whether every skill is confirmed. It is false for an
// empty skill list.
func (t *Tracker) AllDetected() bool {
	detected, total := t.Counts()
	return total > 0 && detected == total
}

// Statuses returns a deep copy of the status map keyed by canonical name.
func (t *Tracker) Statuses() map[string]Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Status, len(t.skills))
	for i, s := range t.skills {
		st := t.status[i]
		st.DetectedIn = append([]Detection(nil), st.DetectedIn...)
		out[s.Name] = st
	}
	return out
}

// Detected returns the canonical names of confirmed skills in list order.
func (t *Tracker) Detected() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for i, s := range t.skills {
		if t.status[i].Has {
			out = append(out, s.Name)
		}
	}
	return out
}

// Report builds the coverage report in skill list order.
func (t *Tracker) Report() Report {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := Report{
		TotalSkills: len(t.skills),
		Skills:      make([]ReportEntry, 0, len(t.skills)),
		Confirmed:   []ReportEntry{},
		Missing:     []ReportEntry{},
	}
	for i, s := range t.skills {
		st := t.status[i]
		e := ReportEntry{Skill: s.Name, Category: s.Category, DetectedCount: len(st.DetectedIn)}
		r.Skills = append(r.Skills, e)
		if st.Has {
			r.Confirmed = append(r.Confirmed, e)
		} else {
			r.Missing = append(r.Missing, e)
		}
	}
	if len(t.skills) > 0 {
		r.Coverage = float64(len(r.Confirmed)) / float64(len(t.skills)) * 100
	}
	return r
}
