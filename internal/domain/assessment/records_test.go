package assessment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/strategic-analytics/internal/domain/shared"
)

func TestSnapshot_AllExamsDeduplicates(t *testing.T) {
	s := Snapshot{
		Exams: []ExamRecord{{ID: "e1", AverageScore: 60}},
		Classes: []ClassRecord{
			{ClassID: "A", Exams: []ExamRecord{{ID: "e1", AverageScore: 99}, {ID: "e2"}}},
			{ClassID: "B", Exams: []ExamRecord{{ID: "e2"}, {ID: "e3"}}},
		},
	}

	exams := s.AllExams()

	require.Len(t, exams, 3)
	assert.Equal(t, "e1", exams[0].ID)
	assert.Equal(t, 60.0, exams[0].AverageScore, "first occurrence wins")
	assert.Equal(t, "e3", exams[2].ID)
}

func TestRiskLevel(t *testing.T) {
	assert.Equal(t, 4, RiskCritical.Weight())
	assert.Equal(t, 1, RiskLow.Weight())
	assert.Equal(t, 0, RiskLevel("").Weight())
	assert.True(t, RiskHigh.IsAtRisk())
	assert.False(t, RiskMedium.IsAtRisk())
}

func TestStudentRecord_OptionalFields(t *testing.T) {
	s := StudentRecord{StudentID: "s1", ClassID: "A"}
	assert.Equal(t, RiskLevel(""), s.RiskLevel())
	assert.Nil(t, s.RiskFactors())
	assert.Equal(t, TrendStable, s.ProgressTrend.OrStable())

	v := 88.0
	c := ClassRecord{ClassID: "A", AttendanceRate: &v}
	assert.Equal(t, 88.0, c.Attendance())
	assert.Zero(t, ClassRecord{}.Attendance())
}

func TestExamRecord_ScoreFor(t *testing.T) {
	e := ExamRecord{ID: "e", Results: []ExamResult{{StudentID: "s1", Score: 72}}}

	score, ok := e.ScoreFor("s1")
	assert.True(t, ok)
	assert.Equal(t, 72.0, score)

	_, ok = e.ScoreFor("s2")
	assert.False(t, ok)
}

func TestSnapshot_Validate(t *testing.T) {
	valid := Snapshot{
		Exams: []ExamRecord{{ID: "e1", Results: []ExamResult{{StudentID: "s1", Score: 80}}}},
		Classes: []ClassRecord{{
			ClassID:        "A",
			AverageScore:   70,
			SkillBreakdown: map[string]float64{"Math": 64},
		}},
		Students: []StudentRecord{{
			StudentID:      "s1",
			ClassID:        "A",
			OverallAverage: 80,
			SkillProfile:   map[string]float64{"Math": 0.8},
			RiskAssessment: &RiskAssessment{Level: RiskLow},
		}},
	}
	require.NoError(t, valid.Validate())

	// sparse data is fine
	require.NoError(t, Snapshot{Students: []StudentRecord{{StudentID: "s", ClassID: "c"}}}.Validate())

	bad := valid
	bad.Exams = []ExamRecord{{ID: "e1", Results: []ExamResult{{Score: 80}}}}
	err := bad.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInvalidID))
	assert.Contains(t, err.Error(), "exams[0].Results[0].StudentID")

	bad = valid
	bad.Students = []StudentRecord{{StudentID: "s1", ClassID: "A", RiskAssessment: &RiskAssessment{Level: "severe"}}}
	err = bad.Validate()
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))

	bad = valid
	bad.Classes = []ClassRecord{{ClassID: "", AverageScore: 101}}
	err = bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "and 1 more")

	var de *shared.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "assessment", de.Domain)
}

func TestInstitutionalGoals_Validate(t *testing.T) {
	require.NoError(t, DefaultGoals().Validate())

	err := InstitutionalGoals{AverageScore: -1}.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInvalidGoals))
	assert.Contains(t, err.Error(), "averageScore")
}
