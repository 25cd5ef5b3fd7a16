package analytics

import (
	"fmt"
	"time"

	"github.com/alem-hub/strategic-analytics/internal/domain/assessment"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// testPolicy is DefaultPolicy with a frozen clock and sequential alert IDs.
func testPolicy() Policy {
	p := DefaultPolicy()
	p.Now = func() time.Time { return testNow }
	seq := 0
	p.NewID = func() string {
		seq++
		return fmt.Sprintf("alert-%d", seq)
	}
	return p
}

func rate(v float64) *float64 { return &v }

func risk(level assessment.RiskLevel, factors ...string) *assessment.RiskAssessment {
	return &assessment.RiskAssessment{Level: level, Factors: factors}
}

func exam(id string, day int, avg float64, results ...assessment.ExamResult) assessment.ExamRecord {
	return assessment.ExamRecord{
		ID:           id,
		Title:        "Exam " + id,
		AverageScore: avg,
		Date:         time.Date(2025, 1, day, 0, 0, 0, 0, time.UTC),
		Results:      results,
	}
}
