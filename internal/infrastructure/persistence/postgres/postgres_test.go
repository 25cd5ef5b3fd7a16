package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/strategic-analytics/internal/domain/shared"
	"github.com/alem-hub/strategic-analytics/pkg/circuitbreaker"
)

func TestMigrations_Ordered(t *testing.T) {
	migs := Migrations()
	require.NotEmpty(t, migs)
	for i, m := range migs {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.Name)
		assert.NotEmpty(t, strings.TrimSpace(m.UpSQL))
	}
	for _, table := range []string{"institutions", "classes", "exams", "exam_results", "students", "student_skills", "student_risk_factors", "class_skills"} {
		assert.Contains(t, migs[0].UpSQL, "CREATE TABLE IF NOT EXISTS "+table+" ")
	}
	assert.Contains(t, migs[1].UpSQL, "report_runs")
}

func TestPoolConfig(t *testing.T) {
	cfg, err := PoolConfig("postgres://u:p@localhost:5432/analytics?sslmode=disable", DefaultPoolDefaults())
	require.NoError(t, err)
	assert.Equal(t, int32(10), cfg.MaxConns)
	assert.Equal(t, int32(2), cfg.MinConns)
	assert.Equal(t, time.Hour, cfg.MaxConnLifetime)
	assert.Equal(t, "analytics", cfg.ConnConfig.Database)

	_, err = PoolConfig("://nope", DefaultPoolDefaults())
	assert.Error(t, err)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), false},
		{"no rows", pgx.ErrNoRows, false},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"syntax error", &pgconn.PgError{Code: "42601"}, false},
		{"network", errors.New("connection reset by peer"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransient(tt.err))
		})
	}
}

func TestConnection_ClosedGuards(t *testing.T) {
	c := &Connection{closed: true}
	assert.ErrorIs(t, c.Ping(context.Background()), ErrConnectionClosed)
	_, err := c.Exec(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, ErrConnectionClosed)
	err = c.WithTx(context.Background(), ReadOnly, func(pgx.Tx) error { return nil })
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestSnapshotRepository_BreakerOpensOnStoreFailure(t *testing.T) {
	repo := NewSnapshotRepository(&Connection{closed: true}, circuitbreaker.WithFailureThreshold(1), circuitbreaker.WithCoolDown(time.Hour))
	ctx := context.Background()

	_, err := repo.LoadSnapshot(ctx, "inst-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionClosed)
	assert.True(t, shared.IsUnavailable(err))
	assert.Equal(t, circuitbreaker.StateOpen, repo.Breaker().State())

	_, err = repo.LoadSnapshot(ctx, "inst-1")
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.ErrorIs(t, err, shared.ErrSnapshotUnavailable)

	_, err = repo.ListInstitutions(ctx)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
}

func TestCountsAgainstStore(t *testing.T) {
	assert.False(t, countsAgainstStore(shared.ErrInstitutionNotFound))
	assert.False(t, countsAgainstStore(fmt.Errorf("load: %w", context.Canceled)))
	assert.True(t, countsAgainstStore(ErrConnectionClosed))
}
