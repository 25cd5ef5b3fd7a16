package analytics

import (
	"math"
	"sort"

	"github.com/alem-hub/strategic-analytics/internal/domain/assessment"
	"github.com/alem-hub/strategic-analytics/internal/domain/shared"
)

// Heuristic constants of the risk predictor.
const (
	trendFactorImproving = 1.1
	trendFactorDeclining = 0.9
	riskFactorHigh       = 0.85

	baseConfidence       = 70.0
	consistencyWeight    = 30.0
	perExamConfidence    = 2.0
	defaultConsistency   = 0.7
	maxKeyFactors        = 3
	belowAverageScore    = 60.0
	highRiskScore        = 50.0
	lowAttendanceRate    = 80.0
	factorBelowAverage   = "below-average performance"
	factorLowAttendance  = "low attendance"
	factorDecliningTrend = "declining trend"
)

// PerformancePrediction is a heuristic projection of a student's next score.
type PerformancePrediction struct {
	StudentID          string               `json:"student_id"`
	ClassID            string               `json:"class_id"`
	CurrentScore       float64              `json:"current_score"`
	PredictedScore     float64              `json:"predicted_score"`
	Confidence         float64              `json:"confidence"`
	RiskLevel          assessment.RiskLevel `json:"risk_level"`
	KeyFactors         []string             `json:"key_factors"`
	InterventionNeeded bool                 `json:"intervention_needed"`
}

// Delta returns the projected change in score.
func (p PerformancePrediction) Delta() float64 {
	return p.PredictedScore - p.CurrentScore
}

// PredictRisk projects every student's score and returns only the students
// that need an intervention, ordered by descending risk tier and then by
// descending projected change. exams supplies each student's score history.
func PredictRisk(students []assessment.StudentRecord, exams []assessment.ExamRecord) []PerformancePrediction {
	out := make([]PerformancePrediction, 0)

	for _, s := range students {
		if !needsIntervention(s) {
			continue
		}
		scores := studentScores(s.StudentID, exams)
		out = append(out, PerformancePrediction{
			StudentID:          s.StudentID,
			ClassID:            s.ClassID,
			CurrentScore:       s.OverallAverage,
			PredictedScore:     predictScore(s),
			Confidence:         confidence(scores, s.OverallAverage),
			RiskLevel:          classifyRisk(s),
			KeyFactors:         keyFactors(s),
			InterventionNeeded: true,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		wi, wj := out[i].RiskLevel.Weight(), out[j].RiskLevel.Weight()
		if wi != wj {
			return wi > wj
		}
		return out[i].Delta() > out[j].Delta()
	})

	return out
}

func needsIntervention(s assessment.StudentRecord) bool {
	return s.OverallAverage < belowAverageScore ||
		s.RiskLevel() == assessment.RiskHigh ||
		s.ProgressTrend == assessment.TrendDeclining
}

// predictScore applies the trend and risk multipliers, clamped to 0-100.
func predictScore(s assessment.StudentRecord) float64 {
	trendFactor := 1.0
	switch s.ProgressTrend {
	case assessment.TrendImproving:
		trendFactor = trendFactorImproving
	case assessment.TrendDeclining:
		trendFactor = trendFactorDeclining
	}

	riskFactor := 1.0
	if s.RiskLevel() == assessment.RiskHigh {
		riskFactor = riskFactorHigh
	}

	return shared.Percentage(s.OverallAverage * trendFactor * riskFactor).Clamp().Float64()
}

// confidence grows with score consistency and with the number of exams.
// Consistency is 1 minus the mean absolute deviation of the exam scores from
// the overall average, normalized to the 0-100 scale.
func confidence(scores []float64, overall float64) float64 {
	consistency := defaultConsistency
	if len(scores) > 1 {
		deviations := make([]float64, len(scores))
		for i, sc := range scores {
			deviations[i] = math.Abs(sc - overall)
		}
		consistency = math.Max(0, 1-shared.Mean(deviations)/100)
	}
	c := baseConfidence + consistency*consistencyWeight + float64(len(scores))*perExamConfidence
	return shared.Percentage(c).Clamp().Float64()
}

func classifyRisk(s assessment.StudentRecord) assessment.RiskLevel {
	switch {
	case s.RiskLevel() == assessment.RiskCritical:
		return assessment.RiskCritical
	case s.OverallAverage < highRiskScore:
		return assessment.RiskHigh
	case s.OverallAverage < belowAverageScore || s.RiskLevel() == assessment.RiskMedium:
		return assessment.RiskMedium
	default:
		return assessment.RiskLow
	}
}

func keyFactors(s assessment.StudentRecord) []string {
	factors := make([]string, 0, maxKeyFactors)
	if s.OverallAverage < belowAverageScore {
		factors = append(factors, factorBelowAverage)
	}
	if s.AttendanceRate != nil && *s.AttendanceRate < lowAttendanceRate {
		factors = append(factors, factorLowAttendance)
	}
	if s.ProgressTrend == assessment.TrendDeclining {
		factors = append(factors, factorDecliningTrend)
	}
	factors = append(factors, s.RiskFactors()...)
	if len(factors) > maxKeyFactors {
		factors = factors[:maxKeyFactors]
	}
	return factors
}

// studentScores collects the student's score on every exam they sat.
func studentScores(studentID string, exams []assessment.ExamRecord) []float64 {
	var scores []float64
	for _, e := range exams {
		if sc, ok := e.ScoreFor(studentID); ok {
			scores = append(scores, sc)
		}
	}
	return scores
}
