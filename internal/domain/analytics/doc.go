// Package analytics is the strategic analytics engine. It turns a snapshot of
// assessment records into five derived artifacts: institutional KPIs, a
// prioritized learning-gap report, a class ranking, per-student risk
// predictions and a severity-ordered alert feed.
//
// Every function in this package is pure: inputs are never mutated, outputs
// are freshly allocated, and nothing is cached or shared between calls, so
// all of them are safe for concurrent use. Predictions and confidence values
// are explainable heuristics, not a trained model.
//
// Pipeline:
//
//	Snapshot ─┬─ AggregateMetrics ───────────────┐
//	          ├─ AnalyzeLearningGaps ────────────┤
//	          ├─ RankClasses ────────────────────┼─► Report
//	          └─ PredictRisk ─┬──────────────────┤
//	                          └─ GenerateAlerts ─┘
package analytics
