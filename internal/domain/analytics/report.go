package analytics

import (
	"time"

	"github.com/alem-hub/strategic-analytics/internal/domain/assessment"
)

// Report is the composite result of one engine invocation.
type Report struct {
	Metrics       InstitutionalMetrics    `json:"metrics"`
	LearningGaps  []LearningGap           `json:"learning_gaps"`
	ClassRankings []ClassRanking          `json:"class_rankings"`
	Predictions   []PerformancePrediction `json:"predictions"`
	Alerts        []ClassAlert            `json:"alerts"`

	// Fingerprint identifies the inputs the report was computed from.
	Fingerprint string    `json:"fingerprint"`
	GeneratedAt time.Time `json:"generated_at"`
}

// CriticalAlerts returns the number of critical alerts in the report.
func (r *Report) CriticalAlerts() int {
	n := 0
	for _, a := range r.Alerts {
		if a.Severity == SeverityCritical {
			n++
		}
	}
	return n
}

// Analyze runs the whole pipeline over one snapshot. It validates the input
// first and returns a *shared.DomainError of kind shared.ErrValidation for
// malformed records or goals. Sparse optional data never fails.
//
// The leaf stages are independent; only GenerateAlerts consumes another
// stage's output (the predictions).
func Analyze(snapshot assessment.Snapshot, goals assessment.InstitutionalGoals, policy Policy) (*Report, error) {
	if err := goals.Validate(); err != nil {
		return nil, err
	}
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}

	fingerprint, err := Fingerprint(snapshot, goals, policy)
	if err != nil {
		return nil, err
	}

	policy = policy.withDefaults()
	predictions := PredictRisk(snapshot.Students, snapshot.AllExams())

	return &Report{
		Metrics:       AggregateMetrics(snapshot.Classes, snapshot.Students, goals, policy.Benchmarks),
		LearningGaps:  AnalyzeLearningGaps(snapshot.Students, policy),
		ClassRankings: RankClasses(snapshot.Classes, policy),
		Predictions:   predictions,
		Alerts:        GenerateAlerts(snapshot.Classes, predictions, goals, policy),
		Fingerprint:   fingerprint,
		GeneratedAt:   policy.Now(),
	}, nil
}

// RunSummary is the persisted trace of one report computation.
type RunSummary struct {
	RunID          string    `json:"run_id"`
	InstitutionID  string    `json:"institution_id"`
	Fingerprint    string    `json:"fingerprint"`
	Cached         bool      `json:"cached"`
	Alerts         int       `json:"alerts"`
	CriticalAlerts int       `json:"critical_alerts"`
	Predictions    int       `json:"predictions"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// Summarize condenses r into a RunSummary.
func (r *Report) Summarize(runID, institutionID string, cached bool) RunSummary {
	return RunSummary{
		RunID:          runID,
		InstitutionID:  institutionID,
		Fingerprint:    r.Fingerprint,
		Cached:         cached,
		Alerts:         len(r.Alerts),
		CriticalAlerts: r.CriticalAlerts(),
		Predictions:    len(r.Predictions),
		GeneratedAt:    r.GeneratedAt,
	}
}
