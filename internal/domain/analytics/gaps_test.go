package analytics

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/strategic-analytics/internal/domain/assessment"
)

func TestAnalyzeLearningGaps(t *testing.T) {
	students := []assessment.StudentRecord{
		{StudentID: "s1", ClassID: "A", SkillProfile: map[string]float64{
			"Math algebra":          0.4,
			"reading comprehension": 0.9,
			"science labs":          0.7,
		}},
		{StudentID: "s2", ClassID: "B", SkillProfile: map[string]float64{
			"Math algebra":          0.6,
			"reading comprehension": 0.7,
			"history":               0.5,
		}},
		{StudentID: "s3", ClassID: "B"},
	}

	gaps := AnalyzeLearningGaps(students, DefaultPolicy())

	require.Len(t, gaps, 3)

	math := gaps[0]
	assert.Equal(t, "Math algebra", math.Skill)
	assert.Equal(t, "Matemática", math.Category)
	assert.InDelta(t, 50.0, math.GapPercentage, 1e-9)
	assert.InDelta(t, 0.5, math.AverageScore, 1e-9)
	assert.Equal(t, 2, math.AffectedStudents)
	assert.Equal(t, 2, math.AffectedClasses)
	assert.Equal(t, PriorityHigh, math.Priority)
	assert.Len(t, math.Recommendations, 5)

	// same gap as Math, seen later
	assert.Equal(t, "history", gaps[1].Skill)
	assert.Equal(t, "Outras", gaps[1].Category)

	science := gaps[2]
	assert.Equal(t, "science labs", science.Skill)
	assert.Equal(t, "Ciências", science.Category)
	assert.InDelta(t, 30.0, science.GapPercentage, 1e-9)
	assert.Equal(t, PriorityMedium, science.Priority)
	assert.Len(t, science.Recommendations, 3)

	for _, g := range gaps {
		assert.NotEqual(t, "reading comprehension", g.Skill, "a 20 point gap is not reported")
	}
}

func TestAnalyzeLearningGaps_Invariants(t *testing.T) {
	var students []assessment.StudentRecord
	for i := 0; i < 40; i++ {
		students = append(students, assessment.StudentRecord{
			StudentID: fmt.Sprintf("s%d", i),
			ClassID:   fmt.Sprintf("c%d", i%3),
			SkillProfile: map[string]float64{
				"skill-a": float64(i%10) / 10,
				"skill-b": float64((i*7)%10) / 10,
				"skill-c": 0.95,
				"skill-d": 0,
			},
		})
	}

	gaps := AnalyzeLearningGaps(students, DefaultPolicy())

	require.NotEmpty(t, gaps)
	for i, g := range gaps {
		assert.Greater(t, g.GapPercentage, 20.0)
		assert.LessOrEqual(t, g.GapPercentage, 100.0)
		if i > 0 {
			assert.GreaterOrEqual(t, gaps[i-1].GapPercentage, g.GapPercentage)
		}
	}
	assert.Equal(t, "skill-d", gaps[0].Skill)
	assert.InDelta(t, 100.0, gaps[0].GapPercentage, 1e-9)
}

func TestAnalyzeLearningGaps_Empty(t *testing.T) {
	assert.Empty(t, AnalyzeLearningGaps(nil, DefaultPolicy()))
	assert.Empty(t, AnalyzeLearningGaps([]assessment.StudentRecord{{StudentID: "s", ClassID: "c"}}, DefaultPolicy()))
}

func TestGapPriority(t *testing.T) {
	tests := []struct {
		name     string
		gap      float64
		affected int
		want     Priority
	}{
		{"critical needs both size and reach", 60, 21, PriorityCritical},
		{"large gap, few students", 60, 5, PriorityHigh},
		{"wide reach alone", 22, 31, PriorityHigh},
		{"medium gap", 30, 1, PriorityMedium},
		{"medium reach", 22, 16, PriorityMedium},
		{"small and narrow", 22, 2, PriorityLow},
		{"boundaries are exclusive", 25, 15, PriorityLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gapPriority(tt.gap, tt.affected))
		})
	}
}

func TestPolicy_ClassifyUsesInjectedRules(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, "Matemática", p.Classify("Math fractions"))
	assert.Equal(t, "Linguagens", p.Classify("reading fluency"))
	assert.Equal(t, "Outras", p.Classify("math lowercase"))

	p.CategoryRules = []CategoryRule{{Substring: "geo", Category: "Humanas"}}
	p.DefaultCategory = "Geral"
	assert.Equal(t, "Humanas", p.Classify("geography"))
	assert.Equal(t, "Geral", p.Classify("Math fractions"))
}
