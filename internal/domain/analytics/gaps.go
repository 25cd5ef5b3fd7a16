package analytics

import (
	"sort"

	"github.com/alem-hub/strategic-analytics/internal/domain/assessment"
	"github.com/alem-hub/strategic-analytics/internal/domain/shared"
)

// MinReportedGap is the gap percentage at or below which a skill is not
// reported as a learning gap.
const MinReportedGap = 20.0

// Priority ranks how urgently a learning gap should be addressed.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// LearningGap is a skill where aggregate correctness falls meaningfully
// below mastery.
type LearningGap struct {
	Skill            string   `json:"skill"`
	Category         string   `json:"category"`
	GapPercentage    float64  `json:"gap_percentage"`
	AffectedStudents int      `json:"affected_students"`
	AffectedClasses  int      `json:"affected_classes"`
	AverageScore     float64  `json:"average_score"` // 0-1 fraction
	Priority         Priority `json:"priority"`
	Recommendations  []string `json:"recommendations"`
}

// skillTally accumulates per-skill evidence across students.
type skillTally struct {
	attempts    int
	correctness float64
	students    map[string]struct{}
	classes     map[string]struct{}
}

// AnalyzeLearningGaps aggregates skill profiles into a list of gaps sorted by
// descending gap percentage. Ties keep the order in which skills were first
// seen; within one student's profile skills are visited in name order so the
// result does not depend on map iteration.
func AnalyzeLearningGaps(students []assessment.StudentRecord, policy Policy) []LearningGap {
	tallies := make(map[string]*skillTally)
	order := make([]string, 0)

	for _, s := range students {
		if len(s.SkillProfile) == 0 {
			continue
		}
		for _, skill := range sortedKeys(s.SkillProfile) {
			t, ok := tallies[skill]
			if !ok {
				t = &skillTally{
					students: make(map[string]struct{}),
					classes:  make(map[string]struct{}),
				}
				tallies[skill] = t
				order = append(order, skill)
			}
			t.attempts++
			t.correctness += s.SkillProfile[skill]
			t.students[s.StudentID] = struct{}{}
			t.classes[s.ClassID] = struct{}{}
		}
	}

	gaps := make([]LearningGap, 0, len(order))
	for _, skill := range order {
		t := tallies[skill]
		avg := shared.Ratio(t.correctness, float64(t.attempts))
		gap := (1 - avg) * 100
		if gap <= MinReportedGap {
			continue
		}
		affected := len(t.students)
		gaps = append(gaps, LearningGap{
			Skill:            skill,
			Category:         policy.Classify(skill),
			GapPercentage:    gap,
			AffectedStudents: affected,
			AffectedClasses:  len(t.classes),
			AverageScore:     avg,
			Priority:         gapPriority(gap, affected),
			Recommendations:  gapRecommendations(skill, gap),
		})
	}

	sort.SliceStable(gaps, func(i, j int) bool {
		return gaps[i].GapPercentage > gaps[j].GapPercentage
	})

	return gaps
}

// gapPriority tiers a gap by its size and reach.
func gapPriority(gap float64, affectedStudents int) Priority {
	switch {
	case gap > 50 && affectedStudents > 20:
		return PriorityCritical
	case gap > 35 || affectedStudents > 30:
		return PriorityHigh
	case gap > 25 || affectedStudents > 15:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

func gapRecommendations(skill string, gap float64) []string {
	recs := []string{
		"Review foundational concepts of " + skill,
		"Assign targeted practice exercises",
		"Re-assess the skill in the next evaluation cycle",
	}
	if gap > 40 {
		recs = append(recs,
			"Schedule small-group reinforcement sessions",
			"Involve the pedagogical coordination in an intervention plan",
		)
	}
	return recs
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
