package analytics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/strategic-analytics/internal/domain/assessment"
	"github.com/alem-hub/strategic-analytics/internal/domain/shared"
)

func scenarioSnapshot() assessment.Snapshot {
	return assessment.Snapshot{
		Classes: []assessment.ClassRecord{
			{ClassID: "A", ClassName: "9A", AverageScore: 55, PassingRate: 60, AttendanceRate: rate(65), StudentCount: 20},
			{ClassID: "B", ClassName: "9B", AverageScore: 85, PassingRate: 95, AttendanceRate: rate(96), StudentCount: 22},
		},
		Students: []assessment.StudentRecord{
			{StudentID: "s1", StudentName: "Aigerim", ClassID: "A", OverallAverage: 40, RiskAssessment: risk(assessment.RiskCritical)},
		},
	}
}

func TestAnalyze_AlertScenario(t *testing.T) {
	report, err := Analyze(scenarioSnapshot(), assessment.DefaultGoals(), testPolicy())
	require.NoError(t, err)

	require.Len(t, report.Alerts, 3)
	byType := map[AlertType]ClassAlert{}
	for _, a := range report.Alerts {
		assert.Equal(t, "A", a.ClassID, "class B meets every goal")
		assert.Equal(t, SeverityCritical, a.Severity)
		byType[a.Type] = a
	}
	require.Contains(t, byType, AlertPerformance)
	require.Contains(t, byType, AlertAttendance)
	require.Contains(t, byType, AlertRisk)
	assert.Equal(t, 1, byType[AlertRisk].StudentsAffected)
	assert.Equal(t, 3, report.CriticalAlerts())
}

func TestAnalyze_EmptyStudents(t *testing.T) {
	snap := scenarioSnapshot()
	snap.Students = nil

	report, err := Analyze(snap, assessment.DefaultGoals(), testPolicy())
	require.NoError(t, err)

	assert.Empty(t, report.LearningGaps)
	assert.Empty(t, report.Predictions)
	assert.Zero(t, report.Metrics.RiskStudents)
	assert.Len(t, report.ClassRankings, 2)
}

func TestAnalyze_EmptySnapshot(t *testing.T) {
	report, err := Analyze(assessment.Snapshot{}, assessment.DefaultGoals(), testPolicy())
	require.NoError(t, err)

	assert.Zero(t, report.Metrics.TotalClasses)
	assert.Zero(t, report.Metrics.OverallAverage)
	assert.Empty(t, report.ClassRankings)
	assert.Empty(t, report.Alerts)
}

func TestAnalyze_Idempotent(t *testing.T) {
	snap := scenarioSnapshot()
	snap.Students = append(snap.Students,
		assessment.StudentRecord{StudentID: "s2", ClassID: "B", OverallAverage: 58, ProgressTrend: assessment.TrendDeclining,
			SkillProfile: map[string]float64{"Math geometry": 0.3, "reading": 0.5}},
		assessment.StudentRecord{StudentID: "s3", ClassID: "B", OverallAverage: 91,
			SkillProfile: map[string]float64{"Math geometry": 0.6, "science": 0.2}},
	)
	goals := assessment.DefaultGoals()

	first, err := Analyze(snap, goals, DefaultPolicy())
	require.NoError(t, err)
	second, err := Analyze(snap, goals, DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, first.Metrics, second.Metrics)
	assert.Equal(t, first.LearningGaps, second.LearningGaps)
	assert.Equal(t, first.ClassRankings, second.ClassRankings)
	assert.Equal(t, first.Predictions, second.Predictions)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Len(t, second.Alerts, len(first.Alerts))
}

func TestAnalyze_DoesNotMutateInput(t *testing.T) {
	snap := scenarioSnapshot()
	snap.Classes[1].Exams = []assessment.ExamRecord{exam("e2", 20, 80), exam("e1", 2, 70)}

	_, err := Analyze(snap, assessment.DefaultGoals(), testPolicy())
	require.NoError(t, err)

	assert.Equal(t, "A", snap.Classes[0].ClassID)
	assert.Equal(t, "e2", snap.Classes[1].Exams[0].ID)
}

func TestAnalyze_RejectsMalformedRecords(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*assessment.Snapshot)
		kind   error
		field  string
	}{
		{
			name:   "missing student id",
			mutate: func(s *assessment.Snapshot) { s.Students[0].StudentID = "" },
			kind:   shared.ErrInvalidID,
			field:  "students[0].StudentID",
		},
		{
			name:   "missing class id",
			mutate: func(s *assessment.Snapshot) { s.Classes[1].ClassID = "" },
			kind:   shared.ErrInvalidID,
			field:  "classes[1].ClassID",
		},
		{
			name:   "skill score above 1",
			mutate: func(s *assessment.Snapshot) { s.Students[0].SkillProfile = map[string]float64{"Math": 1.5} },
			kind:   shared.ErrValueOutOfRange,
			field:  "students[0].SkillProfile",
		},
		{
			name:   "unknown trend",
			mutate: func(s *assessment.Snapshot) { s.Students[0].ProgressTrend = "sideways" },
			kind:   shared.ErrInvalidFormat,
			field:  "students[0].ProgressTrend",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := scenarioSnapshot()
			tt.mutate(&snap)

			report, err := Analyze(snap, assessment.DefaultGoals(), testPolicy())

			require.Error(t, err)
			assert.Nil(t, report)
			assert.True(t, shared.IsValidation(err))
			assert.True(t, errors.Is(err, shared.ErrValidation))
			assert.True(t, errors.Is(err, tt.kind))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestAnalyze_RejectsInvalidGoals(t *testing.T) {
	goals := assessment.DefaultGoals()
	goals.AttendanceRate = 140

	_, err := Analyze(scenarioSnapshot(), goals, testPolicy())

	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInvalidGoals))
}

func TestFingerprint(t *testing.T) {
	snap := scenarioSnapshot()
	goals := assessment.DefaultGoals()

	a, err := Fingerprint(snap, goals, DefaultPolicy())
	require.NoError(t, err)
	b, err := Fingerprint(scenarioSnapshot(), goals, testPolicy())
	require.NoError(t, err)
	assert.Equal(t, a, b, "clock and ID hooks are not part of the content")
	assert.Len(t, a, 64)

	goals.AverageScore = 71
	c, err := Fingerprint(snap, goals, DefaultPolicy())
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	p := DefaultPolicy()
	p.ExpectedGrowth = 6
	d, err := Fingerprint(snap, assessment.DefaultGoals(), p)
	require.NoError(t, err)
	assert.NotEqual(t, a, d)

	snap.Students[0].OverallAverage = 41
	e, err := Fingerprint(snap, assessment.DefaultGoals(), DefaultPolicy())
	require.NoError(t, err)
	assert.NotEqual(t, a, e)
}
