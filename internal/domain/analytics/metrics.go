package analytics

import (
	"github.com/alem-hub/strategic-analytics/internal/domain/assessment"
	"github.com/alem-hub/strategic-analytics/internal/domain/shared"
)

// InstitutionalMetrics are the institution-wide KPIs.
type InstitutionalMetrics struct {
	TotalStudents     int     `json:"total_students"`
	TotalClasses      int     `json:"total_classes"`
	OverallAverage    float64 `json:"overall_average"`
	PassingRate       float64 `json:"passing_rate"`
	AttendanceRate    float64 `json:"attendance_rate"`
	RiskStudents      int     `json:"risk_students"`
	ImprovingStudents int     `json:"improving_students"`
	DecliningStudents int     `json:"declining_students"`

	Benchmarks Benchmarks                    `json:"benchmarks"`
	Goals      assessment.InstitutionalGoals `json:"goals"`
}

// AggregateMetrics reduces classes and students into institution-wide KPIs.
// Rates are plain means across classes; an absent attendance rate counts as
// 0 and an empty class list yields 0 for every mean.
func AggregateMetrics(
	classes []assessment.ClassRecord,
	students []assessment.StudentRecord,
	goals assessment.InstitutionalGoals,
	benchmarks Benchmarks,
) InstitutionalMetrics {
	m := InstitutionalMetrics{
		TotalStudents: len(students),
		TotalClasses:  len(classes),
		Benchmarks:    benchmarks,
		Goals:         goals,
	}

	var sumAvg, sumPassing, sumAttendance float64
	for _, c := range classes {
		sumAvg += c.AverageScore
		sumPassing += c.PassingRate
		sumAttendance += c.Attendance()
	}
	n := float64(len(classes))
	m.OverallAverage = shared.Ratio(sumAvg, n)
	m.PassingRate = shared.Ratio(sumPassing, n)
	m.AttendanceRate = shared.Ratio(sumAttendance, n)

	for _, s := range students {
		if s.RiskLevel().IsAtRisk() {
			m.RiskStudents++
		}
		switch s.ProgressTrend {
		case assessment.TrendImproving:
			m.ImprovingStudents++
		case assessment.TrendDeclining:
			m.DecliningStudents++
		}
	}

	return m
}
