// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"time"

	"github.com/alem-hub/strategic-analytics/internal/domain/analytics"
	"github.com/alem-hub/strategic-analytics/internal/domain/assessment"
	"github.com/alem-hub/strategic-analytics/internal/domain/shared"
	"github.com/alem-hub/strategic-analytics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STRATEGIC REPORT QUERY
// Loads an institution's snapshot and returns its strategic report,
// reusing a cached report when the inputs have not changed.
// ══════════════════════════════════════════════════════════════════════════════

// GetStrategicReportQuery holds the parameters of a report request.
type GetStrategicReportQuery struct {
	InstitutionID string

	// Goals overrides the handler's default goals when set.
	Goals *assessment.InstitutionalGoals

	// BypassCache forces a recompute; the fresh report is still cached.
	BypassCache bool
}

// Validate checks the query parameters.
func (q GetStrategicReportQuery) Validate() error {
	if q.InstitutionID == "" {
		return shared.NewDomainError("query", "GetStrategicReport", shared.ErrInvalidID, "institution_id is required")
	}
	if q.Goals != nil {
		return q.Goals.Validate()
	}
	return nil
}

// GetStrategicReportResult is the handler's answer.
type GetStrategicReportResult struct {
	InstitutionID string            `json:"institution_id"`
	Report        *analytics.Report `json:"report"`
	Cached        bool              `json:"cached"`
}

// SnapshotSource loads the assessment records of one institution.
type SnapshotSource interface {
	LoadSnapshot(ctx context.Context, institutionID string) (assessment.Snapshot, error)
}

// ReportCache memoizes reports by input fingerprint.
type ReportCache interface {
	Get(ctx context.Context, fingerprint string) (*analytics.Report, bool, error)
	Set(ctx context.Context, report *analytics.Report) error
	RememberLatest(ctx context.Context, institutionID, fingerprint string) error
}

// Recorder receives report metrics.
type Recorder interface {
	ObserveReport(d time.Duration, cached bool, err error)
	ObserveCache(result string)
	ObserveFreshReport(report *analytics.Report)
}

// GetStrategicReportHandler serves GetStrategicReportQuery.
type GetStrategicReportHandler struct {
	source   SnapshotSource
	cache    ReportCache
	policy   analytics.Policy
	goals    assessment.InstitutionalGoals
	log      *logger.Logger
	recorder Recorder
}

// HandlerOption customizes a GetStrategicReportHandler.
type HandlerOption func(*GetStrategicReportHandler)

// WithCache enables report memoization.
func WithCache(c ReportCache) HandlerOption {
	return func(h *GetStrategicReportHandler) { h.cache = c }
}

// WithRecorder enables metrics.
func WithRecorder(r Recorder) HandlerOption {
	return func(h *GetStrategicReportHandler) { h.recorder = r }
}

// WithLogger sets the handler's logger.
func WithLogger(l *logger.Logger) HandlerOption {
	return func(h *GetStrategicReportHandler) { h.log = l }
}

// NewGetStrategicReportHandler creates a handler that computes reports with
// policy and falls back to goals when a query carries none.
func NewGetStrategicReportHandler(
	source SnapshotSource,
	policy analytics.Policy,
	goals assessment.InstitutionalGoals,
	opts ...HandlerOption,
) *GetStrategicReportHandler {
	h := &GetStrategicReportHandler{
		source: source,
		policy: policy,
		goals:  goals,
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With(logger.Component("strategic_report"))
	return h
}

// Handle executes the query. Cache failures are logged and the report is
// recomputed; they never fail the request.
func (h *GetStrategicReportHandler) Handle(ctx context.Context, q GetStrategicReportQuery) (res *GetStrategicReportResult, err error) {
	start := time.Now()
	defer func() {
		if h.recorder != nil {
			h.recorder.ObserveReport(time.Since(start), res != nil && res.Cached, err)
		}
	}()

	if err := q.Validate(); err != nil {
		return nil, err
	}
	log := h.log.With(logger.InstitutionID(q.InstitutionID))

	snapshot, err := h.source.LoadSnapshot(ctx, q.InstitutionID)
	if err != nil {
		log.Warn("snapshot load failed", logger.Err(err))
		return nil, err
	}

	goals := h.goals
	if q.Goals != nil {
		goals = *q.Goals
	}

	fingerprint, err := analytics.Fingerprint(snapshot, goals, h.policy)
	if err != nil {
		return nil, err
	}
	log = log.With(logger.Fingerprint(fingerprint))

	if h.cache != nil && !q.BypassCache {
		if report := h.lookup(ctx, log, fingerprint); report != nil {
			return &GetStrategicReportResult{InstitutionID: q.InstitutionID, Report: report, Cached: true}, nil
		}
	}

	report, err := analytics.Analyze(snapshot, goals, h.policy)
	if err != nil {
		log.Warn("snapshot rejected", logger.Err(err))
		return nil, err
	}
	if h.recorder != nil {
		h.recorder.ObserveFreshReport(report)
	}

	log.Info("report computed",
		logger.Int("alerts", len(report.Alerts)),
		logger.Int("critical_alerts", report.CriticalAlerts()),
		logger.Int("predictions", len(report.Predictions)),
		logger.Latency(time.Since(start)),
	)

	if h.cache != nil {
		if err := h.cache.Set(ctx, report); err != nil {
			log.Warn("report cache write failed", logger.Err(err))
		} else if err := h.cache.RememberLatest(ctx, q.InstitutionID, fingerprint); err != nil {
			log.Warn("latest report pointer write failed", logger.Err(err))
		}
	}

	return &GetStrategicReportResult{InstitutionID: q.InstitutionID, Report: report}, nil
}

func (h *GetStrategicReportHandler) lookup(ctx context.Context, log *logger.Logger, fingerprint string) *analytics.Report {
	report, found, err := h.cache.Get(ctx, fingerprint)
	switch {
	case err != nil:
		h.observeCache("error")
		log.Warn("report cache read failed, recomputing", logger.Err(err))
		return nil
	case !found:
		h.observeCache("miss")
		return nil
	default:
		h.observeCache("hit")
		log.Debug("report served from cache")
		return report
	}
}

func (h *GetStrategicReportHandler) observeCache(result string) {
	if h.recorder != nil {
		h.recorder.ObserveCache(result)
	}
}
