package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/alem-hub/strategic-analytics/internal/domain/assessment"
	"github.com/alem-hub/strategic-analytics/internal/domain/shared"
)

// AlertType classifies what an alert is about.
type AlertType string

const (
	AlertPerformance AlertType = "performance"
	AlertAttendance  AlertType = "attendance"
	AlertRisk        AlertType = "risk"
)

// Severity orders alerts: critical > high > medium > low.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Weight returns the sort weight of the severity (critical=4 ... low=1).
func (s Severity) Weight() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// ClassAlert is a single entry of the alert feed.
type ClassAlert struct {
	ID               string    `json:"id"`
	Type             AlertType `json:"type"`
	Severity         Severity  `json:"severity"`
	ClassID          string    `json:"class_id"`
	Message          string    `json:"message"`
	StudentsAffected int       `json:"students_affected"`
	ActionItems      []string  `json:"action_items"`
	CreatedAt        time.Time `json:"created_at"`
	Acknowledged     bool      `json:"acknowledged"`
}

// GenerateAlerts builds the alert feed from class KPIs and risk predictions.
//
// Every class may raise a performance alert (average below goal) and an
// attendance alert (reported attendance below goal). Students predicted at
// critical risk are grouped into a single risk alert per class. The feed is
// sorted by descending severity; equal severities keep insertion order
// (class alerts first, in class order, then risk alerts in first-seen order).
func GenerateAlerts(
	classes []assessment.ClassRecord,
	predictions []PerformancePrediction,
	goals assessment.InstitutionalGoals,
	policy Policy,
) []ClassAlert {
	policy = policy.withDefaults()
	now := policy.Now()
	alerts := make([]ClassAlert, 0)

	for _, c := range classes {
		if c.AverageScore < goals.AverageScore {
			severity := SeverityHigh
			if c.AverageScore < policy.CriticalScoreFloor ||
				goals.AverageScore-c.AverageScore >= policy.CriticalScoreShortfall {
				severity = SeverityCritical
			}
			alerts = append(alerts, ClassAlert{
				ID:       policy.NewID(),
				Type:     AlertPerformance,
				Severity: severity,
				ClassID:  c.ClassID,
				Message: fmt.Sprintf("%s average score %.1f is below the institutional goal of %.1f",
					classLabel(c), c.AverageScore, goals.AverageScore),
				StudentsAffected: shortfallCount(c.StudentCount, c.AverageScore, goals.AverageScore),
				ActionItems: []string{
					"Review lesson plans and assessment alignment",
					"Offer remedial sessions for struggling students",
					"Schedule a follow-up with the class teacher",
				},
				CreatedAt: now,
			})
		}

		if c.AttendanceRate != nil && *c.AttendanceRate < goals.AttendanceRate {
			rate := *c.AttendanceRate
			severity := SeverityHigh
			if rate < policy.CriticalAttendanceFloor {
				severity = SeverityCritical
			}
			alerts = append(alerts, ClassAlert{
				ID:       policy.NewID(),
				Type:     AlertAttendance,
				Severity: severity,
				ClassID:  c.ClassID,
				Message: fmt.Sprintf("%s attendance %.1f%% is below the institutional goal of %.1f%%",
					classLabel(c), rate, goals.AttendanceRate),
				StudentsAffected: shortfallCount(c.StudentCount, rate, goals.AttendanceRate),
				ActionItems: []string{
					"Contact families of frequently absent students",
					"Investigate recurring absence patterns",
				},
				CreatedAt: now,
			})
		}
	}

	riskByClass := make(map[string]int)
	for _, p := range predictions {
		if p.RiskLevel != assessment.RiskCritical {
			continue
		}
		if i, ok := riskByClass[p.ClassID]; ok {
			alerts[i].StudentsAffected++
			alerts[i].Message = riskMessage(p.ClassID, alerts[i].StudentsAffected)
			continue
		}
		riskByClass[p.ClassID] = len(alerts)
		alerts = append(alerts, ClassAlert{
			ID:               policy.NewID(),
			Type:             AlertRisk,
			Severity:         SeverityCritical,
			ClassID:          p.ClassID,
			Message:          riskMessage(p.ClassID, 1),
			StudentsAffected: 1,
			ActionItems: []string{
				"Build individual intervention plans",
				"Meet with families of at-risk students",
				"Refer students to pedagogical support",
			},
			CreatedAt: now,
		})
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Severity.Weight() > alerts[j].Severity.Weight()
	})

	return alerts
}

// shortfallCount estimates how many students are behind: the student count
// scaled by the relative shortfall against the goal, rounded down.
func shortfallCount(studentCount int, rate, goal float64) int {
	n := math.Floor(float64(studentCount) * (1 - shared.Ratio(rate, goal)))
	if n < 0 || math.IsNaN(n) {
		return 0
	}
	return int(n)
}

func riskMessage(classID string, students int) string {
	if students == 1 {
		return fmt.Sprintf("1 student in class %s is at critical risk", classID)
	}
	return fmt.Sprintf("%d students in class %s are at critical risk", students, classID)
}

func classLabel(c assessment.ClassRecord) string {
	if c.ClassName != "" {
		return "Class " + c.ClassName
	}
	return "Class " + c.ClassID
}
