// Package jobs contains the scheduled jobs of the analytics worker.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alem-hub/strategic-analytics/internal/application/query"
	"github.com/alem-hub/strategic-analytics/internal/domain/analytics"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD REPORTS JOB
// ══════════════════════════════════════════════════════════════════════════════

// InstitutionLister enumerates the institutions to report on.
type InstitutionLister interface {
	ListInstitutions(ctx context.Context) ([]string, error)
}

// ReportHandler produces a report for one institution.
type ReportHandler interface {
	Handle(ctx context.Context, q query.GetStrategicReportQuery) (*query.GetStrategicReportResult, error)
}

// RunRecorder persists run summaries.
type RunRecorder interface {
	RecordRun(ctx context.Context, run analytics.RunSummary) error
}

// RebuildReportsConfig contains configuration for the rebuild job.
type RebuildReportsConfig struct {
	// MaxConcurrent bounds how many institutions are processed at once.
	MaxConcurrent int

	// Timeout is the maximum duration of one whole run.
	Timeout time.Duration

	// ForceRecompute skips cache lookups.
	ForceRecompute bool
}

// DefaultRebuildReportsConfig returns sensible defaults.
func DefaultRebuildReportsConfig() RebuildReportsConfig {
	return RebuildReportsConfig{
		MaxConcurrent: 4,
		Timeout:       10 * time.Minute,
	}
}

// RebuildStats describes the last completed run.
type RebuildStats struct {
	RunID          string
	StartedAt      time.Time
	Duration       time.Duration
	Institutions   int
	Computed       int
	Cached         int
	Failed         int
	CriticalAlerts int
	FailedIDs      []string
}

// RebuildReportsJob refreshes the strategic report of every institution so
// that reads hit a warm cache and run history stays current.
type RebuildReportsJob struct {
	lister  InstitutionLister
	reports ReportHandler
	runs    RunRecorder
	logger  *slog.Logger
	config  RebuildReportsConfig
	newID   func() string

	last atomic.Pointer[RebuildStats]
}

// NewRebuildReportsJob creates the job. runs may be nil.
func NewRebuildReportsJob(
	lister InstitutionLister,
	reports ReportHandler,
	runs RunRecorder,
	logger *slog.Logger,
	config RebuildReportsConfig,
) *RebuildReportsJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 1
	}
	return &RebuildReportsJob{
		lister:  lister,
		reports: reports,
		runs:    runs,
		logger:  logger,
		config:  config,
		newID:   uuid.NewString,
	}
}

// Name returns the job name.
func (j *RebuildReportsJob) Name() string { return "rebuild_reports" }

// Description returns a human-readable description.
func (j *RebuildReportsJob) Description() string {
	return "Recomputes the strategic report of every active institution"
}

// LastStats returns the stats of the last completed run, or nil.
func (j *RebuildReportsJob) LastStats() *RebuildStats { return j.last.Load() }

// Run executes the job. A failing institution does not stop the others;
// the returned error lists every failure.
func (j *RebuildReportsJob) Run(ctx context.Context) error {
	stats := &RebuildStats{RunID: j.newID(), StartedAt: time.Now()}
	log := j.logger.With("run_id", stats.RunID)

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	ids, err := j.lister.ListInstitutions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list institutions: %w", err)
	}
	stats.Institutions = len(ids)
	log.Info("rebuilding reports", "institutions", len(ids), "max_concurrent", j.config.MaxConcurrent)

	var (
		mu       sync.Mutex
		failures []error
		computed atomic.Int64
		cached   atomic.Int64
		critical atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.config.MaxConcurrent)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			res, err := j.reports.Handle(gctx, query.GetStrategicReportQuery{
				InstitutionID: id,
				BypassCache:   j.config.ForceRecompute,
			})
			if err != nil {
				log.Warn("report rebuild failed", "institution_id", id, "error", err)
				mu.Lock()
				failures = append(failures, fmt.Errorf("%s: %w", id, err))
				stats.FailedIDs = append(stats.FailedIDs, id)
				mu.Unlock()
				return nil
			}

			if res.Cached {
				cached.Add(1)
			} else {
				computed.Add(1)
			}
			critical.Add(int64(res.Report.CriticalAlerts()))

			if j.runs != nil {
				if err := j.runs.RecordRun(gctx, res.Report.Summarize(stats.RunID, id, res.Cached)); err != nil {
					log.Warn("run record failed", "institution_id", id, "error", err)
				}
			}
			return nil
		})
	}

	waitErr := g.Wait()

	sort.Strings(stats.FailedIDs)
	stats.Computed = int(computed.Load())
	stats.Cached = int(cached.Load())
	stats.CriticalAlerts = int(critical.Load())
	stats.Failed = len(stats.FailedIDs)
	stats.Duration = time.Since(stats.StartedAt)
	j.last.Store(stats)

	log.Info("reports rebuilt",
		"computed", stats.Computed,
		"cached", stats.Cached,
		"failed", stats.Failed,
		"critical_alerts", stats.CriticalAlerts,
		"duration", stats.Duration.String(),
	)

	if waitErr != nil {
		return fmt.Errorf("rebuild interrupted: %w", waitErr)
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d of %d institutions failed: %w", len(failures), len(ids), errors.Join(failures...))
	}
	return nil
}
