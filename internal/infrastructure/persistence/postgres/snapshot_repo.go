package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/strategic-analytics/internal/domain/analytics"
	"github.com/alem-hub/strategic-analytics/internal/domain/assessment"
	"github.com/alem-hub/strategic-analytics/internal/domain/shared"
	"github.com/alem-hub/strategic-analytics/pkg/circuitbreaker"
	"github.com/alem-hub/strategic-analytics/pkg/retry"
)

// SnapshotRepository reads assessment snapshots per institution.
type SnapshotRepository struct {
	conn    *Connection
	retrier *retry.Retrier
	breaker *circuitbreaker.Breaker
}

// NewSnapshotRepository creates a repository. Loads are retried on
// transient database errors; repeated failures open a breaker that fails
// later loads fast until the database recovers.
func NewSnapshotRepository(conn *Connection, opts ...circuitbreaker.Option) *SnapshotRepository {
	opts = append([]circuitbreaker.Option{circuitbreaker.WithIsFailure(countsAgainstStore)}, opts...)
	return &SnapshotRepository{
		conn:    conn,
		retrier: retry.DatabaseRetrier(retry.WithRetryIf(isTransient)),
		breaker: circuitbreaker.DatabaseBreaker(opts...),
	}
}

// countsAgainstStore ignores outcomes that say nothing about database health.
func countsAgainstStore(err error) bool {
	return !errors.Is(err, shared.ErrInstitutionNotFound) &&
		!errors.Is(err, context.Canceled)
}

func (r *SnapshotRepository) do(ctx context.Context, fn func(context.Context) error) error {
	return r.breaker.Execute(ctx, func(ctx context.Context) error {
		return r.retrier.Do(ctx, fn)
	})
}

// Breaker exposes the store breaker for health reporting.
func (r *SnapshotRepository) Breaker() *circuitbreaker.Breaker { return r.breaker }

// ListInstitutions returns the IDs of active institutions in ID order.
func (r *SnapshotRepository) ListInstitutions(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.do(ctx, func(ctx context.Context) error {
		ids = ids[:0]
		return r.conn.WithTx(ctx, ReadOnly, func(tx pgx.Tx) error {
			rows, err := tx.Query(ctx, `SELECT id FROM institutions WHERE active ORDER BY id`)
			if err != nil {
				return err
			}
			ids, err = pgx.CollectRows(rows, pgx.RowTo[string])
			return err
		})
	})
	if err != nil {
		return nil, shared.WrapError("report", "ListInstitutions", shared.ErrServiceUnavailable, "failed to list institutions", err)
	}
	return ids, nil
}

// LoadSnapshot reads every class, exam and student record for one
// institution inside a single read-only transaction.
func (r *SnapshotRepository) LoadSnapshot(ctx context.Context, institutionID string) (assessment.Snapshot, error) {
	var snap assessment.Snapshot
	err := r.do(ctx, func(ctx context.Context) error {
		return r.conn.WithTx(ctx, ReadOnly, func(tx pgx.Tx) error {
			var exists bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM institutions WHERE id = $1)`, institutionID,
			).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return retry.Permanent(shared.ErrInstitutionNotFound)
			}

			var err error
			snap, err = loadSnapshot(ctx, tx, institutionID)
			return err
		})
	})
	switch {
	case err == nil:
		return snap, nil
	case errors.Is(err, shared.ErrInstitutionNotFound):
		return assessment.Snapshot{}, shared.WrapError("report", "LoadSnapshot", shared.ErrNotFound,
			fmt.Sprintf("institution %q not found", institutionID), err)
	default:
		return assessment.Snapshot{}, shared.WrapError("report", "LoadSnapshot", shared.ErrServiceUnavailable,
			"failed to load snapshot", errors.Join(shared.ErrSnapshotUnavailable, err))
	}
}

func loadSnapshot(ctx context.Context, q Querier, inst string) (assessment.Snapshot, error) {
	exams, err := loadExams(ctx, q, inst)
	if err != nil {
		return assessment.Snapshot{}, fmt.Errorf("exams: %w", err)
	}
	classes, err := loadClasses(ctx, q, inst, exams)
	if err != nil {
		return assessment.Snapshot{}, fmt.Errorf("classes: %w", err)
	}
	students, err := loadStudents(ctx, q, inst)
	if err != nil {
		return assessment.Snapshot{}, fmt.Errorf("students: %w", err)
	}
	return assessment.Snapshot{
		Exams:    exams[""],
		Classes:  classes,
		Students: students,
	}, nil
}

// loadExams groups exams by class ID; institution-wide exams are under "".
func loadExams(ctx context.Context, q Querier, inst string) (map[string][]assessment.ExamRecord, error) {
	results := make(map[string][]assessment.ExamResult)
	rows, err := q.Query(ctx, `
		SELECT exam_id, student_id, score
		FROM exam_results
		WHERE institution_id = $1
		ORDER BY exam_id, student_id`, inst)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var (
			examID string
			res    assessment.ExamResult
		)
		if err := rows.Scan(&examID, &res.StudentID, &res.Score); err != nil {
			rows.Close()
			return nil, err
		}
		results[examID] = append(results[examID], res)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = q.Query(ctx, `
		SELECT id, COALESCE(class_id, ''), title, average_score, held_at
		FROM exams
		WHERE institution_id = $1
		ORDER BY held_at NULLS FIRST, id`, inst)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]assessment.ExamRecord)
	for rows.Next() {
		var (
			e       assessment.ExamRecord
			classID string
			heldAt  *time.Time
		)
		if err := rows.Scan(&e.ID, &classID, &e.Title, &e.AverageScore, &heldAt); err != nil {
			return nil, err
		}
		if heldAt != nil {
			e.Date = heldAt.UTC()
		}
		e.Results = results[e.ID]
		out[classID] = append(out[classID], e)
	}
	return out, rows.Err()
}

func loadClasses(ctx context.Context, q Querier, inst string, exams map[string][]assessment.ExamRecord) ([]assessment.ClassRecord, error) {
	skills, err := loadSkillMap(ctx, q, `
		SELECT class_id, skill, score FROM class_skills WHERE institution_id = $1`, inst)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT id, name, average_score, passing_rate, attendance_rate, student_count, COALESCE(performance_trend, '')
		FROM classes
		WHERE institution_id = $1
		ORDER BY id`, inst)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []assessment.ClassRecord
	for rows.Next() {
		var (
			c     assessment.ClassRecord
			trend string
		)
		if err := rows.Scan(&c.ClassID, &c.ClassName, &c.AverageScore, &c.PassingRate,
			&c.AttendanceRate, &c.StudentCount, &trend); err != nil {
			return nil, err
		}
		c.PerformanceTrend = assessment.Trend(trend)
		c.SkillBreakdown = skills[c.ClassID]
		c.Exams = exams[c.ClassID]
		out = append(out, c)
	}
	return out, rows.Err()
}

func loadStudents(ctx context.Context, q Querier, inst string) ([]assessment.StudentRecord, error) {
	skills, err := loadSkillMap(ctx, q, `
		SELECT student_id, skill, score FROM student_skills WHERE institution_id = $1`, inst)
	if err != nil {
		return nil, err
	}

	factors := make(map[string][]string)
	rows, err := q.Query(ctx, `
		SELECT student_id, factor
		FROM student_risk_factors
		WHERE institution_id = $1
		ORDER BY student_id, position`, inst)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id, factor string
		if err := rows.Scan(&id, &factor); err != nil {
			rows.Close()
			return nil, err
		}
		factors[id] = append(factors[id], factor)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = q.Query(ctx, `
		SELECT id, name, class_id, overall_average, COALESCE(progress_trend, ''), attendance_rate, risk_level
		FROM students
		WHERE institution_id = $1
		ORDER BY id`, inst)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []assessment.StudentRecord
	for rows.Next() {
		var (
			s     assessment.StudentRecord
			trend string
			risk  *string
		)
		if err := rows.Scan(&s.StudentID, &s.StudentName, &s.ClassID, &s.OverallAverage,
			&trend, &s.AttendanceRate, &risk); err != nil {
			return nil, err
		}
		s.ProgressTrend = assessment.Trend(trend)
		s.SkillProfile = skills[s.StudentID]
		if risk != nil || len(factors[s.StudentID]) > 0 {
			s.RiskAssessment = &assessment.RiskAssessment{Factors: factors[s.StudentID]}
			if risk != nil {
				s.RiskAssessment.Level = assessment.RiskLevel(*risk)
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// loadSkillMap runs a (owner, skill, score) query and groups it by owner.
func loadSkillMap(ctx context.Context, q Querier, sql, inst string) (map[string]map[string]float64, error) {
	rows, err := q.Query(ctx, sql, inst)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]map[string]float64)
	for rows.Next() {
		var (
			owner, skill string
			score        float64
		)
		if err := rows.Scan(&owner, &skill, &score); err != nil {
			return nil, err
		}
		if out[owner] == nil {
			out[owner] = make(map[string]float64)
		}
		out[owner][skill] = score
	}
	return out, rows.Err()
}

// RecordRun stores the summary of one report computation.
func (r *SnapshotRepository) RecordRun(ctx context.Context, run analytics.RunSummary) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO report_runs
			(run_id, institution_id, fingerprint, cached, alerts, critical_alerts, predictions, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id, institution_id) DO NOTHING`,
		run.RunID, run.InstitutionID, run.Fingerprint, run.Cached,
		run.Alerts, run.CriticalAlerts, run.Predictions, run.GeneratedAt)
	if err != nil {
		return shared.WrapError("report", "RecordRun", shared.ErrServiceUnavailable, "failed to record report run", err)
	}
	return nil
}
