package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/strategic-analytics/internal/domain/analytics"
	"github.com/alem-hub/strategic-analytics/internal/domain/shared"
	"github.com/alem-hub/strategic-analytics/pkg/circuitbreaker"
)

// unreachable points at a port nothing listens on so every command fails fast.
func unreachable() *Cache {
	return NewCacheFromClient(goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	}))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "analytics:report:abc", ReportKey("abc"))
	assert.Equal(t, "analytics:latest:inst-1", LatestKey("inst-1"))
	assert.Equal(t, "localhost:6379", DefaultConfig().Addr())
}

func TestNewReportCache_DefaultTTL(t *testing.T) {
	c := NewReportCache(unreachable(), 0)
	assert.Equal(t, DefaultReportTTL, c.ttl)
}

func TestReportCache_SetRejectsMissingFingerprint(t *testing.T) {
	c := NewReportCache(unreachable(), time.Minute)

	err := c.Set(context.Background(), &analytics.Report{})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	assert.Error(t, c.Set(context.Background(), nil))
}

func TestReportCache_UnavailableIsRetryable(t *testing.T) {
	c := NewReportCache(unreachable(), time.Minute)
	ctx := context.Background()

	_, found, err := c.Get(ctx, "abc")
	require.Error(t, err)
	assert.False(t, found)
	assert.True(t, shared.IsUnavailable(err))

	err = c.Set(ctx, &analytics.Report{Fingerprint: "abc"})
	assert.True(t, shared.IsRetryable(err))
}

func TestCache_EmptyKey(t *testing.T) {
	c := unreachable()
	assert.ErrorIs(t, c.Set(context.Background(), "", 1, 0), ErrCacheKeyEmpty)
	assert.ErrorIs(t, c.Set(context.Background(), "k", 1, -time.Second), ErrCacheInvalidTTL)
	_, err := c.DeleteByPattern(context.Background(), "")
	assert.ErrorIs(t, err, ErrCacheKeyEmpty)
}

func TestReportCache_BreakerShortCircuits(t *testing.T) {
	c := NewReportCache(unreachable(), time.Minute,
		circuitbreaker.WithFailureThreshold(1), circuitbreaker.WithCoolDown(time.Hour))
	ctx := context.Background()

	_, _, err := c.Get(ctx, "abc")
	require.Error(t, err)
	assert.Equal(t, circuitbreaker.StateOpen, c.Breaker().State())

	_, found, err := c.Get(ctx, "abc")
	assert.False(t, found)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.True(t, shared.IsUnavailable(err))
	assert.Equal(t, 1, c.Breaker().Counts().Rejections)
}
