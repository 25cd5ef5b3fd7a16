package assessment

import (
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Trend describes the direction of a student's or class's progress.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

// OrStable returns the trend, treating an empty value as stable.
func (t Trend) OrStable() Trend {
	if t == "" {
		return TrendStable
	}
	return t
}

// RiskLevel is the ordinal risk tier: low < medium < high < critical.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Weight returns the sort weight of the tier (critical=4 ... low=1, unknown=0).
func (r RiskLevel) Weight() int {
	switch r {
	case RiskCritical:
		return 4
	case RiskHigh:
		return 3
	case RiskMedium:
		return 2
	case RiskLow:
		return 1
	default:
		return 0
	}
}

// IsAtRisk returns true for the high and critical tiers.
func (r RiskLevel) IsAtRisk() bool {
	return r == RiskHigh || r == RiskCritical
}

// ══════════════════════════════════════════════════════════════════════════════
// EXAMS
// ══════════════════════════════════════════════════════════════════════════════

// ExamResult is one student's raw score on an exam.
type ExamResult struct {
	StudentID string  `json:"student_id" validate:"required"`
	Score     float64 `json:"score" validate:"gte=0,lte=100"`
}

// ExamRecord summarizes a single exam.
type ExamRecord struct {
	ID           string       `json:"id" validate:"required"`
	Title        string       `json:"title"`
	Results      []ExamResult `json:"results" validate:"dive"`
	AverageScore float64      `json:"average_score" validate:"gte=0,lte=100"`
	Date         time.Time    `json:"date"`
}

// ScoreFor returns the student's score on this exam.
func (e ExamRecord) ScoreFor(studentID string) (float64, bool) {
	for _, r := range e.Results {
		if r.StudentID == studentID {
			return r.Score, true
		}
	}
	return 0, false
}

// ══════════════════════════════════════════════════════════════════════════════
// CLASSES
// ══════════════════════════════════════════════════════════════════════════════

// ClassRecord is a per-class performance snapshot.
// Exams are not guaranteed to be in chronological order.
type ClassRecord struct {
	ClassID          string             `json:"class_id" validate:"required"`
	ClassName        string             `json:"class_name"`
	AverageScore     float64            `json:"average_score" validate:"gte=0,lte=100"`
	PassingRate      float64            `json:"passing_rate" validate:"gte=0,lte=100"`
	AttendanceRate   *float64           `json:"attendance_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	StudentCount     int                `json:"student_count" validate:"gte=0"`
	Exams            []ExamRecord       `json:"exams,omitempty" validate:"dive"`
	SkillBreakdown   map[string]float64 `json:"skill_breakdown,omitempty" validate:"omitempty,dive,keys,required,endkeys,gte=0,lte=100"`
	PerformanceTrend Trend              `json:"performance_trend,omitempty" validate:"omitempty,oneof=improving declining stable"`
}

// Attendance returns the attendance rate, or 0 when it is not reported.
func (c ClassRecord) Attendance() float64 {
	if c.AttendanceRate == nil {
		return 0
	}
	return *c.AttendanceRate
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

// RiskAssessment is an externally supplied risk judgement for a student.
type RiskAssessment struct {
	Level   RiskLevel `json:"level" validate:"omitempty,oneof=low medium high critical"`
	Factors []string  `json:"factors,omitempty"`
}

// StudentRecord is a per-student result history.
type StudentRecord struct {
	StudentID      string             `json:"student_id" validate:"required"`
	StudentName    string             `json:"student_name"`
	ClassID        string             `json:"class_id" validate:"required"`
	OverallAverage float64            `json:"overall_average" validate:"gte=0,lte=100"`
	ProgressTrend  Trend              `json:"progress_trend,omitempty" validate:"omitempty,oneof=improving declining stable"`
	AttendanceRate *float64           `json:"attendance_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	SkillProfile   map[string]float64 `json:"skill_profile,omitempty" validate:"omitempty,dive,keys,required,endkeys,gte=0,lte=1"`
	RiskAssessment *RiskAssessment    `json:"risk_assessment,omitempty"`
}

// RiskLevel returns the assessed risk level, or "" when none was supplied.
func (s StudentRecord) RiskLevel() RiskLevel {
	if s.RiskAssessment == nil {
		return ""
	}
	return s.RiskAssessment.Level
}

// RiskFactors returns the assessed risk factors, if any.
func (s StudentRecord) RiskFactors() []string {
	if s.RiskAssessment == nil {
		return nil
	}
	return s.RiskAssessment.Factors
}

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT & GOALS
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot bundles the three input collections for one institution.
type Snapshot struct {
	Exams    []ExamRecord    `json:"exams" validate:"dive"`
	Classes  []ClassRecord   `json:"classes" validate:"dive"`
	Students []StudentRecord `json:"students" validate:"dive"`
}

// AllExams returns the standalone exams followed by every class's exams,
// keeping only the first occurrence of each exam ID.
func (s Snapshot) AllExams() []ExamRecord {
	seen := make(map[string]struct{})
	out := make([]ExamRecord, 0, len(s.Exams))
	add := func(e ExamRecord) {
		if _, ok := seen[e.ID]; ok {
			return
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	for _, e := range s.Exams {
		add(e)
	}
	for _, c := range s.Classes {
		for _, e := range c.Exams {
			add(e)
		}
	}
	return out
}

// InstitutionalGoals are the targets classes are compared against (0-100).
type InstitutionalGoals struct {
	AverageScore   float64 `json:"average_score" yaml:"average_score" validate:"gte=0,lte=100"`
	PassingRate    float64 `json:"passing_rate" yaml:"passing_rate" validate:"gte=0,lte=100"`
	AttendanceRate float64 `json:"attendance_rate" yaml:"attendance_rate" validate:"gte=0,lte=100"`
}

// DefaultGoals returns the goals used when the caller supplies none.
func DefaultGoals() InstitutionalGoals {
	return InstitutionalGoals{
		AverageScore:   70,
		PassingRate:    85,
		AttendanceRate: 90,
	}
}
