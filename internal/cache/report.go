package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"tenant-metrics/internal/metrics"
	"tenant-metrics/internal/model"
)

const (
	keyPrefix  = "tenant-metrics:report:"
	DefaultTTL = 5 * time.Minute
	dateLayout = "2006-01-02"
)

// Aggregator is the report producer being cached.
type Aggregator interface {
	Aggregate(ctx context.Context, tenantIDs []uuid.UUID, start, end time.Time) (*model.Report, error)
}

// ReportCache serves reports from a KVStore and falls through to the
// underlying aggregator on a miss. Cache errors are logged and ignored.
type ReportCache struct {
	kv     KVStore
	next   Aggregator
	ttl    time.Duration
	logger *zap.Logger
}

func NewReportCache(kv KVStore, next Aggregator, ttl time.Duration, logger *zap.Logger) *ReportCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ReportCache{kv: kv, next: next, ttl: ttl, logger: logger}
}

// Key is stable for the same range and tenant set in any order.
func Key(tenantIDs []uuid.UUID, start, end time.Time) string {
	ids := "all"
	if len(tenantIDs) > 0 {
		strs := lo.Uniq(lo.Map(tenantIDs, func(id uuid.UUID, _ int) string { return id.String() }))
		sort.Strings(strs)
		ids = strings.Join(strs, ",")
	}
	return keyPrefix + start.Format(dateLayout) + ":" + end.Format(dateLayout) + ":" + ids
}

func (c *ReportCache) Aggregate(ctx context.Context, tenantIDs []uuid.UUID, start, end time.Time) (*model.Report, error) {
	key := Key(tenantIDs, start, end)

	raw, err := c.kv.Get(ctx, key)
	switch {
	case err == nil:
		var report model.Report
		jerr := json.Unmarshal([]byte(raw), &report)
		if jerr == nil {
			metrics.AggregationRuns.WithLabelValues("cache").Inc()
			return &report, nil
		}
		c.logger.Warn("Discarding unreadable cached report", zap.String("key", key), zap.Error(jerr))
	case !errors.Is(err, ErrCacheMiss):
		c.logger.Warn("Report cache read failed", zap.String("key", key), zap.Error(err))
	}

	report, err := c.next.Aggregate(ctx, tenantIDs, start, end)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, report)
	return report, nil
}

// Refresh recomputes a report and overwrites its cache entry.
func (c *ReportCache) Refresh(ctx context.Context, tenantIDs []uuid.UUID, start, end time.Time) error {
	report, err := c.next.Aggregate(ctx, tenantIDs, start, end)
	if err != nil {
		return err
	}
	c.store(ctx, Key(tenantIDs, start, end), report)
	return nil
}

func (c *ReportCache) store(ctx context.Context, key string, report *model.Report) {
	data, err := json.Marshal(report)
	if err != nil {
		c.logger.Warn("Failed to encode report for cache", zap.Error(err))
		return
	}
	if err := c.kv.Set(ctx, key, string(data), c.ttl); err != nil {
		c.logger.Warn("Report cache write failed", zap.String("key", key), zap.Error(err))
	}
}
