package analytics

import (
	"sort"

	"github.com/alem-hub/strategic-analytics/internal/domain/assessment"
	"github.com/alem-hub/strategic-analytics/internal/domain/shared"
)

// PerformanceCategory buckets a class by percentile.
type PerformanceCategory string

const (
	CategoryTop          PerformanceCategory = "top"
	CategoryAboveAverage PerformanceCategory = "above-average"
	CategoryAverage      PerformanceCategory = "average"
	CategoryBelowAverage PerformanceCategory = "below-average"
	CategoryBottom       PerformanceCategory = "bottom"
)

// CategoryForPercentile returns the bucket for a percentile in (0, 100].
func CategoryForPercentile(p float64) PerformanceCategory {
	switch {
	case p >= 80:
		return CategoryTop
	case p >= 60:
		return CategoryAboveAverage
	case p >= 40:
		return CategoryAverage
	case p >= 20:
		return CategoryBelowAverage
	default:
		return CategoryBottom
	}
}

// ClassRanking is a class's position among all classes.
type ClassRanking struct {
	ClassID             string              `json:"class_id"`
	ClassName           string              `json:"class_name"`
	Rank                int                 `json:"rank"` // 1-based
	Percentile          float64             `json:"percentile"`
	ValueAdded          float64             `json:"value_added"`
	Trend               assessment.Trend    `json:"trend"`
	PerformanceCategory PerformanceCategory `json:"performance_category"`
	CurrentScore        float64             `json:"current_score"`
	BaselineScore       float64             `json:"baseline_score"`
}

// RankClasses orders classes by descending average score and assigns each a
// percentile, value-added figure and performance bucket. Rankings are
// returned in rank order; equal averages keep their input order.
//
// For rank index i (0-based) among N classes the percentile is
// (N-i)/N*100, so the top class gets 100 and the bottom class 100/N.
func RankClasses(classes []assessment.ClassRecord, policy Policy) []ClassRanking {
	if len(classes) == 0 {
		return []ClassRanking{}
	}

	ordered := make([]assessment.ClassRecord, len(classes))
	copy(ordered, classes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].AverageScore > ordered[j].AverageScore
	})

	n := float64(len(ordered))
	rankings := make([]ClassRanking, 0, len(ordered))
	for i, c := range ordered {
		percentile := (n - float64(i)) / n * 100
		history := chronological(c.Exams)

		baseline := c.AverageScore - policy.BaselineFallback
		if len(history) > 0 {
			baseline = history[0].AverageScore
		}

		rankings = append(rankings, ClassRanking{
			ClassID:             c.ClassID,
			ClassName:           c.ClassName,
			Rank:                i + 1,
			Percentile:          percentile,
			ValueAdded:          valueAdded(history, policy.ExpectedGrowth),
			Trend:               c.PerformanceTrend.OrStable(),
			PerformanceCategory: CategoryForPercentile(percentile),
			CurrentScore:        c.AverageScore,
			BaselineScore:       baseline,
		})
	}

	return rankings
}

// valueAdded compares growth across the exam history with the expected
// growth, as a signed percentage. Fewer than two exams yields 0.
func valueAdded(history []assessment.ExamRecord, expectedGrowth float64) float64 {
	if len(history) < 2 {
		return 0
	}
	growth := history[len(history)-1].AverageScore - history[0].AverageScore
	return shared.Ratio(growth-expectedGrowth, expectedGrowth) * 100
}

// chronological returns a date-ordered copy of exams.
func chronological(exams []assessment.ExamRecord) []assessment.ExamRecord {
	out := make([]assessment.ExamRecord, len(exams))
	copy(out, exams)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}
