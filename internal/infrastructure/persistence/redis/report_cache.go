package redis

import (
	"context"
	"errors"
	"time"

	"github.com/alem-hub/strategic-analytics/internal/domain/analytics"
	"github.com/alem-hub/strategic-analytics/internal/domain/shared"
	"github.com/alem-hub/strategic-analytics/pkg/circuitbreaker"
	"github.com/alem-hub/strategic-analytics/pkg/retry"
)

// DefaultReportTTL is used when the configured TTL is not positive.
const DefaultReportTTL = 30 * time.Minute

// ReportCache memoizes strategic reports by input fingerprint. Reads and
// writes go through a circuit breaker so an unreachable Redis costs one
// fast rejection instead of a retry cycle per request.
type ReportCache struct {
	cache   *Cache
	ttl     time.Duration
	retrier *retry.Retrier
	breaker *circuitbreaker.Breaker
}

// NewReportCache creates a report cache with the given entry TTL. opts
// tune the cache breaker.
func NewReportCache(cache *Cache, ttl time.Duration, opts ...circuitbreaker.Option) *ReportCache {
	if ttl <= 0 {
		ttl = DefaultReportTTL
	}
	opts = append([]circuitbreaker.Option{circuitbreaker.WithIsFailure(isConnectionFault)}, opts...)
	return &ReportCache{
		cache:   cache,
		ttl:     ttl,
		retrier: retry.CacheRetrier(retry.WithRetryIf(isConnectionFault)),
		breaker: circuitbreaker.CacheBreaker(opts...),
	}
}

// isConnectionFault separates Redis outages from per-key outcomes.
func isConnectionFault(err error) bool {
	return !errors.Is(err, ErrCacheMiss) && !errors.Is(err, ErrCacheSerialization)
}

func (c *ReportCache) do(ctx context.Context, fn func(context.Context) error) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, fn)
	})
}

// Breaker exposes the cache breaker for health reporting.
func (c *ReportCache) Breaker() *circuitbreaker.Breaker { return c.breaker }

// ReportKey returns the cache key for a fingerprint.
func ReportKey(fingerprint string) string { return PrefixReport + fingerprint }

// LatestKey returns the key that points at an institution's newest report.
func LatestKey(institutionID string) string { return PrefixLatest + institutionID }

// Get returns the cached report for fingerprint. found is false on a miss.
// A corrupt entry is treated as a miss and removed.
func (c *ReportCache) Get(ctx context.Context, fingerprint string) (*analytics.Report, bool, error) {
	var report analytics.Report
	err := c.do(ctx, func(ctx context.Context) error {
		return c.cache.Get(ctx, ReportKey(fingerprint), &report)
	})
	switch {
	case err == nil:
		return &report, true, nil
	case errors.Is(err, ErrCacheMiss):
		return nil, false, nil
	case errors.Is(err, ErrCacheSerialization):
		_ = c.cache.Delete(ctx, ReportKey(fingerprint))
		return nil, false, nil
	default:
		return nil, false, shared.WrapError("cache", "GetReport", shared.ErrServiceUnavailable, "report cache read failed", err)
	}
}

// Set stores report under its fingerprint.
func (c *ReportCache) Set(ctx context.Context, report *analytics.Report) error {
	if report == nil || report.Fingerprint == "" {
		return shared.NewDomainError("cache", "SetReport", shared.ErrInvalidInput, "report has no fingerprint")
	}
	err := c.do(ctx, func(ctx context.Context) error {
		return c.cache.Set(ctx, ReportKey(report.Fingerprint), report, c.ttl)
	})
	if err != nil {
		return shared.WrapError("cache", "SetReport", shared.ErrServiceUnavailable, "report cache write failed", err)
	}
	return nil
}

// RememberLatest records fingerprint as the institution's newest report.
func (c *ReportCache) RememberLatest(ctx context.Context, institutionID, fingerprint string) error {
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.cache.SetString(ctx, LatestKey(institutionID), fingerprint, c.ttl)
	})
	if err != nil {
		return shared.WrapError("cache", "RememberLatest", shared.ErrServiceUnavailable, "latest pointer write failed", err)
	}
	return nil
}

// Latest returns the newest cached report for an institution, if any.
func (c *ReportCache) Latest(ctx context.Context, institutionID string) (*analytics.Report, bool, error) {
	fp, err := circuitbreaker.Call(ctx, c.breaker, func(ctx context.Context) (string, error) {
		return c.cache.GetString(ctx, LatestKey(institutionID))
	})
	if errors.Is(err, ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, shared.WrapError("cache", "Latest", shared.ErrServiceUnavailable, "latest pointer read failed", err)
	}
	return c.Get(ctx, fp)
}

// Purge drops every cached report and latest pointer.
func (c *ReportCache) Purge(ctx context.Context) (int, error) {
	n, err := c.cache.DeleteByPattern(ctx, PrefixReport+"*")
	if err != nil {
		return n, err
	}
	m, err := c.cache.DeleteByPattern(ctx, PrefixLatest+"*")
	return n + m, err
}
