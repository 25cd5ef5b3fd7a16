package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name  string
	runs  atomic.Int32
	err   error
	block chan struct{}
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "test job" }
func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return j.err
}

type recordingObserver struct {
	mu   sync.Mutex
	jobs []string
	errs []error
}

func (o *recordingObserver) ObserveJob(job string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.jobs = append(o.jobs, job)
	o.errs = append(o.errs, err)
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func every(t *testing.T, d time.Duration) Schedule {
	t.Helper()
	s, err := NewIntervalSchedule(d)
	require.NoError(t, err)
	return s
}

func TestIntervalSchedule(t *testing.T) {
	s := every(t, 15*time.Minute)
	base := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, base.Add(15*time.Minute), s.Next(base))
	assert.Equal(t, "@every 15m0s", s.String())

	_, err := NewIntervalSchedule(0)
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestRegister(t *testing.T) {
	s := New(Config{Logger: quiet()})
	job := &countingJob{name: "a"}

	require.NoError(t, s.Register(job, every(t, time.Hour)))
	assert.ErrorIs(t, s.Register(job, every(t, time.Hour)), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, every(t, time.Hour)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "b"}, nil), ErrNilSchedule)

	infos := s.ListJobs()
	require.Len(t, infos, 1)
	assert.Equal(t, "@every 1h0m0s", infos[0].Schedule)
}

func TestRunNow(t *testing.T) {
	obs := &recordingObserver{}
	s := New(Config{Logger: quiet(), Observer: obs})
	boom := errors.New("boom")
	require.NoError(t, s.Register(&countingJob{name: "ok"}, every(t, time.Hour)))
	require.NoError(t, s.Register(&countingJob{name: "bad", err: boom}, every(t, time.Hour)))

	res, err := s.RunNow(context.Background(), "ok")
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.True(t, res.Manual)

	_, err = s.RunNow(context.Background(), "bad")
	assert.ErrorIs(t, err, boom)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	assert.Equal(t, []string{"ok", "bad"}, obs.jobs)
	history := s.History(0)
	require.Len(t, history, 2)
	assert.Equal(t, "bad", history[1].JobName)

	infos := s.ListJobs()
	assert.Equal(t, "bad", infos[0].Name)
	assert.Equal(t, int64(1), infos[0].FailCount)
}

func TestRunOnStart_NoOverlap(t *testing.T) {
	job := &countingJob{name: "slow", block: make(chan struct{})}
	s := New(Config{Logger: quiet(), RunOnStart: true, TickInterval: 5 * time.Millisecond})
	require.NoError(t, s.Register(job, every(t, time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), job.runs.Load(), "a running job is not started again")

	_, err := s.RunNow(context.Background(), "slow")
	assert.ErrorIs(t, err, ErrJobAlreadyRunning)

	close(job.block)
	require.Eventually(t, func() bool { return job.runs.Load() >= 2 }, time.Second, time.Millisecond)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestJobTimeout(t *testing.T) {
	s := New(Config{Logger: quiet(), JobTimeout: 10 * time.Millisecond})
	require.NoError(t, s.Register(&countingJob{name: "stuck", block: make(chan struct{})}, every(t, time.Hour)))

	_, err := s.RunNow(context.Background(), "stuck")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
