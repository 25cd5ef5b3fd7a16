package analytics

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/strategic-analytics/internal/domain/assessment"
)

func TestPredictRisk_FiltersToInterventions(t *testing.T) {
	students := []assessment.StudentRecord{
		{StudentID: "fine", ClassID: "A", OverallAverage: 75, ProgressTrend: assessment.TrendStable},
		{StudentID: "low", ClassID: "A", OverallAverage: 55},
		{StudentID: "flagged", ClassID: "A", OverallAverage: 75, RiskAssessment: risk(assessment.RiskHigh)},
		{StudentID: "sliding", ClassID: "B", OverallAverage: 82, ProgressTrend: assessment.TrendDeclining},
		// a critical assessment alone does not trigger an intervention
		{StudentID: "critical-but-fine", ClassID: "B", OverallAverage: 75, RiskAssessment: risk(assessment.RiskCritical)},
	}

	preds := PredictRisk(students, nil)

	ids := make([]string, 0, len(preds))
	for _, p := range preds {
		ids = append(ids, p.StudentID)
		assert.True(t, p.InterventionNeeded)
	}
	assert.ElementsMatch(t, []string{"low", "flagged", "sliding"}, ids)
}

func TestPredictRisk_Scores(t *testing.T) {
	students := []assessment.StudentRecord{
		{StudentID: "s1", ClassID: "A", OverallAverage: 50, ProgressTrend: assessment.TrendDeclining, RiskAssessment: risk(assessment.RiskHigh)},
		{StudentID: "s2", ClassID: "A", OverallAverage: 55, ProgressTrend: assessment.TrendImproving},
	}

	preds := PredictRisk(students, nil)
	require.Len(t, preds, 2)

	byID := map[string]PerformancePrediction{}
	for _, p := range preds {
		byID[p.StudentID] = p
	}
	assert.InDelta(t, 38.25, byID["s1"].PredictedScore, 1e-9)
	assert.InDelta(t, 60.5, byID["s2"].PredictedScore, 1e-9)
	assert.InDelta(t, 50.0, byID["s1"].CurrentScore, 1e-9)
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name    string
		scores  []float64
		overall float64
		want    float64
	}{
		{"no history uses default consistency", nil, 50, 91},
		{"single exam uses default consistency", []float64{50}, 50, 93},
		{"spread scores lower consistency", []float64{30, 70}, 50, 98},
		{"capped at 100", []float64{50, 50, 50, 50}, 50, 100},
		{"consistency floors at 0", []float64{100, 100}, 0, 74},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, confidence(tt.scores, tt.overall), 1e-9)
		})
	}
}

func TestPredictRisk_UsesExamHistory(t *testing.T) {
	students := []assessment.StudentRecord{{StudentID: "s1", ClassID: "A", OverallAverage: 50}}
	exams := []assessment.ExamRecord{
		exam("e1", 1, 60, assessment.ExamResult{StudentID: "s1", Score: 30}, assessment.ExamResult{StudentID: "s2", Score: 90}),
		exam("e2", 2, 60, assessment.ExamResult{StudentID: "s1", Score: 70}),
		exam("e3", 3, 60, assessment.ExamResult{StudentID: "s2", Score: 80}),
	}

	preds := PredictRisk(students, exams)

	require.Len(t, preds, 1)
	assert.InDelta(t, 98.0, preds[0].Confidence, 1e-9)
}

func TestClassifyRisk(t *testing.T) {
	tests := []struct {
		name    string
		student assessment.StudentRecord
		want    assessment.RiskLevel
	}{
		{"assessed critical wins", assessment.StudentRecord{OverallAverage: 90, RiskAssessment: risk(assessment.RiskCritical)}, assessment.RiskCritical},
		{"below 50 is high", assessment.StudentRecord{OverallAverage: 45}, assessment.RiskHigh},
		{"below 60 is medium", assessment.StudentRecord{OverallAverage: 55}, assessment.RiskMedium},
		{"assessed medium", assessment.StudentRecord{OverallAverage: 70, RiskAssessment: risk(assessment.RiskMedium)}, assessment.RiskMedium},
		{"assessed high with good scores stays low", assessment.StudentRecord{OverallAverage: 70, RiskAssessment: risk(assessment.RiskHigh)}, assessment.RiskLow},
		{"default low", assessment.StudentRecord{OverallAverage: 70}, assessment.RiskLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyRisk(tt.student))
		})
	}
}

func TestKeyFactors(t *testing.T) {
	s := assessment.StudentRecord{
		OverallAverage: 40,
		AttendanceRate: rate(70),
		ProgressTrend:  assessment.TrendDeclining,
		RiskAssessment: risk(assessment.RiskHigh, "family issues", "health"),
	}
	assert.Equal(t, []string{"below-average performance", "low attendance", "declining trend"}, keyFactors(s))

	s = assessment.StudentRecord{
		OverallAverage: 70,
		RiskAssessment: risk(assessment.RiskHigh, "family issues", "health", "transport", "work"),
	}
	assert.Equal(t, []string{"family issues", "health", "transport"}, keyFactors(s))

	s = assessment.StudentRecord{OverallAverage: 55}
	assert.Equal(t, []string{"below-average performance"}, keyFactors(s), "missing attendance is not low attendance")
}

func TestPredictRisk_Ordering(t *testing.T) {
	students := []assessment.StudentRecord{
		{StudentID: "high-down", ClassID: "A", OverallAverage: 45, ProgressTrend: assessment.TrendDeclining},
		{StudentID: "medium", ClassID: "A", OverallAverage: 55},
		{StudentID: "high-up", ClassID: "A", OverallAverage: 45, ProgressTrend: assessment.TrendImproving},
		{StudentID: "critical", ClassID: "B", OverallAverage: 58, RiskAssessment: risk(assessment.RiskCritical)},
	}

	preds := PredictRisk(students, nil)

	require.Len(t, preds, 4)
	got := []string{preds[0].StudentID, preds[1].StudentID, preds[2].StudentID, preds[3].StudentID}
	assert.Equal(t, []string{"critical", "high-up", "high-down", "medium"}, got)
}

func TestPredictRisk_Bounds(t *testing.T) {
	var students []assessment.StudentRecord
	trends := []assessment.Trend{assessment.TrendImproving, assessment.TrendDeclining, assessment.TrendStable, ""}
	levels := []assessment.RiskLevel{assessment.RiskLow, assessment.RiskMedium, assessment.RiskHigh, assessment.RiskCritical}
	for i := 0; i <= 100; i += 5 {
		for j, tr := range trends {
			students = append(students, assessment.StudentRecord{
				StudentID:      fmt.Sprintf("s%d-%d", i, j),
				ClassID:        "A",
				OverallAverage: float64(i),
				ProgressTrend:  tr,
				RiskAssessment: risk(levels[(i/5+j)%len(levels)]),
			})
		}
	}

	for _, p := range PredictRisk(students, nil) {
		assert.GreaterOrEqual(t, p.PredictedScore, 0.0)
		assert.LessOrEqual(t, p.PredictedScore, 100.0)
		assert.GreaterOrEqual(t, p.Confidence, 0.0)
		assert.LessOrEqual(t, p.Confidence, 100.0)
		assert.True(t, p.InterventionNeeded)
		assert.LessOrEqual(t, len(p.KeyFactors), 3)
	}
}

func TestPredictRisk_EmptyInput(t *testing.T) {
	preds := PredictRisk(nil, nil)
	assert.NotNil(t, preds)
	assert.Empty(t, preds)
}
