package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/irfndi/celebrum-analytics/internal/models"
	"github.com/irfndi/celebrum-analytics/internal/source"
	"github.com/irfndi/celebrum-analytics/internal/telemetry"
)

// Hit/miss categories reported to a Recorder.
const (
	CategoryMemory = "series_memory"
	CategoryRedis  = "series_redis"
)

// Loader produces the aligned series for an asset key.
type Loader func(ctx context.Context, key string) (models.AlignedSeries, error)

// SecondTier is an optional shared store consulted on a local miss.
type SecondTier interface {
	Get(ctx context.Context, asset, fingerprint string) (models.AlignedSeries, bool, error)
	Set(ctx context.Context, series models.AlignedSeries, fingerprint string) error
	Delete(ctx context.Context, asset string) error
	Clear(ctx context.Context) (int, error)
}

// Recorder receives hit and miss events.
type Recorder interface {
	RecordHit(category string)
	RecordMiss(category string)
}

// Options configures a SeriesCache.
type Options struct {
	// TTL bounds how long an entry is served without a reload. Zero keeps
	// entries until their fingerprint changes.
	TTL        time.Duration
	SecondTier SecondTier
	Recorder   Recorder
	Logger     *logrus.Logger
	// Tracer defaults to telemetry.GetCacheTracer.
	Tracer trace.Tracer
}

// Stats is a snapshot of cache activity.
type Stats struct {
	Entries        int   `json:"entries"`
	Hits           int64 `json:"hits"`
	Misses         int64 `json:"misses"`
	SecondTierHits int64 `json:"second_tier_hits"`
	Loads          int64 `json:"loads"`
	LoadErrors     int64 `json:"load_errors"`
	Invalidations  int64 `json:"invalidations"`
}

type seriesEntry struct {
	series      models.AlignedSeries
	fingerprint string
	loadedAt    time.Time
}

// SeriesCache memoizes aligned series per asset. An entry is reused only
// while the source fingerprint is unchanged and the TTL has not passed.
type SeriesCache struct {
	src    source.SeriesSource
	load   Loader
	opts   Options
	logger *logrus.Logger
	tracer trace.Tracer
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]seriesEntry
	group   singleflight.Group

	hits, misses, tierHits, loads, loadErrors, invalidations atomic.Int64
}

func NewSeriesCache(src source.SeriesSource, load Loader, opts Options) *SeriesCache {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.GetCacheTracer()
	}
	return &SeriesCache{
		src:     src,
		load:    load,
		opts:    opts,
		logger:  logger,
		tracer:  tracer,
		now:     time.Now,
		entries: make(map[string]seriesEntry),
	}
}

// Get returns the aligned series for key, reloading it when the source
// changed. The returned series is a copy the caller may keep.
func (c *SeriesCache) Get(ctx context.Context, key string) (models.AlignedSeries, error) {
	fp, err := c.src.Fingerprint(key)
	if err != nil {
		c.drop(key)
		return models.AlignedSeries{}, err
	}

	if s, ok := c.lookup(key, fp); ok {
		c.hits.Add(1)
		c.record(CategoryMemory, true)
		return s.Clone(), nil
	}
	c.misses.Add(1)
	c.record(CategoryMemory, false)

	v, err, _ := c.group.Do(key+"\x00"+fp, func() (v interface{}, err error) {
		// A panic escaping singleflight with waiters attached cannot be
		// recovered by any caller.
		defer func() {
			if r := recover(); r != nil {
				c.loadErrors.Add(1)
				err = fmt.Errorf("asset %q: load panicked: %v", key, r)
			}
		}()
		// Waiters share this load, so one caller going away must not fail
		// the rest.
		return c.fill(context.WithoutCancel(ctx), key, fp)
	})
	if err != nil {
		return models.AlignedSeries{}, err
	}
	return v.(models.AlignedSeries).Clone(), nil
}

func (c *SeriesCache) lookup(key, fp string) (models.AlignedSeries, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || e.fingerprint != fp || c.expired(e) {
		return models.AlignedSeries{}, false
	}
	return e.series, true
}

func (c *SeriesCache) fill(ctx context.Context, key, fp string) (models.AlignedSeries, error) {
	if s, ok := c.fromSecondTier(ctx, key, fp); ok {
		c.store(key, fp, s)
		return s, nil
	}

	ctx, span := telemetry.StartSpan(ctx, c.tracer, "cache.load", telemetry.StringAttribute("cache.key", key))
	defer span.End()

	start := c.now()
	s, err := c.load(ctx, key)
	if err != nil {
		c.loadErrors.Add(1)
		telemetry.RecordError(span, err)
		return models.AlignedSeries{}, err
	}
	c.loads.Add(1)
	c.store(key, fp, s)
	elapsed := c.now().Sub(start)
	telemetry.SetSpanAttributes(span,
		telemetry.IntAttribute("records", s.Len()),
		telemetry.Int64Attribute("duration_ms", elapsed.Milliseconds()))
	c.logger.WithFields(logrus.Fields{
		"asset":       key,
		"records":     s.Len(),
		"filled":      s.FilledCount(),
		"duration_ms": elapsed.Milliseconds(),
	}).Debug("Loaded series")

	if tier := c.opts.SecondTier; tier != nil {
		if err := tier.Set(ctx, s, fp); err != nil {
			c.logger.WithError(err).WithField("asset", key).Warn("Second tier cache write failed")
		}
	}
	return s, nil
}

// fromSecondTier reads key from the shared tier. Read errors count as a
// miss.
func (c *SeriesCache) fromSecondTier(ctx context.Context, key, fp string) (models.AlignedSeries, bool) {
	tier := c.opts.SecondTier
	if tier == nil {
		return models.AlignedSeries{}, false
	}
	ctx, span := telemetry.StartSpan(ctx, c.tracer, "cache.second_tier_get", telemetry.StringAttribute("cache.key", key))
	defer span.End()

	s, ok, err := tier.Get(ctx, key, fp)
	telemetry.SetSpanAttributes(span, telemetry.BoolAttribute("cache.hit", ok))
	switch {
	case err != nil:
		telemetry.RecordError(span, err)
		c.logger.WithError(err).WithField("asset", key).Warn("Second tier cache read failed")
		return models.AlignedSeries{}, false
	case ok:
		c.tierHits.Add(1)
		c.record(CategoryRedis, true)
		return s, true
	default:
		c.record(CategoryRedis, false)
		return models.AlignedSeries{}, false
	}
}

func (c *SeriesCache) store(key, fp string, s models.AlignedSeries) {
	c.mu.Lock()
	c.entries[key] = seriesEntry{series: s, fingerprint: fp, loadedAt: c.now()}
	c.mu.Unlock()
}

func (c *SeriesCache) drop(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	return true
}

func (c *SeriesCache) expired(e seriesEntry) bool {
	return c.opts.TTL > 0 && c.now().Sub(e.loadedAt) > c.opts.TTL
}

func (c *SeriesCache) record(category string, hit bool) {
	if c.opts.Recorder == nil {
		return
	}
	if hit {
		c.opts.Recorder.RecordHit(category)
	} else {
		c.opts.Recorder.RecordMiss(category)
	}
}

// Invalidate forgets key in both tiers.
func (c *SeriesCache) Invalidate(ctx context.Context, key string) {
	if c.drop(key) {
		c.invalidations.Add(1)
	}
	if tier := c.opts.SecondTier; tier != nil {
		if err := tier.Delete(ctx, key); err != nil {
			c.logger.WithError(err).WithField("asset", key).Warn("Second tier cache delete failed")
		}
	}
}

// InvalidateAll empties both tiers and returns the number of local entries
// dropped.
func (c *SeriesCache) InvalidateAll(ctx context.Context) int {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[string]seriesEntry)
	c.mu.Unlock()
	c.invalidations.Add(int64(n))

	if tier := c.opts.SecondTier; tier != nil {
		if _, err := tier.Clear(ctx); err != nil {
			c.logger.WithError(err).Warn("Second tier cache clear failed")
		}
	}
	return n
}

// Sweep drops every entry whose source changed, disappeared or outlived the
// TTL, and returns the affected keys.
func (c *SeriesCache) Sweep(ctx context.Context) []string {
	c.mu.RLock()
	snapshot := make(map[string]seriesEntry, len(c.entries))
	for k, e := range c.entries {
		snapshot[k] = e
	}
	c.mu.RUnlock()

	var stale []string
	for key, e := range snapshot {
		fp, err := c.src.Fingerprint(key)
		if err == nil && fp == e.fingerprint && !c.expired(e) {
			continue
		}
		stale = append(stale, key)
		c.Invalidate(ctx, key)
	}
	sort.Strings(stale)
	return stale
}

// Cached reports whether key currently has a local entry.
func (c *SeriesCache) Cached(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[key]
	return ok
}

func (c *SeriesCache) Stats() Stats {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()
	return Stats{
		Entries:        n,
		Hits:           c.hits.Load(),
		Misses:         c.misses.Load(),
		SecondTierHits: c.tierHits.Load(),
		Loads:          c.loads.Load(),
		LoadErrors:     c.loadErrors.Load(),
		Invalidations:  c.invalidations.Load(),
	}
}
