package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/guregu/null/v6"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/celebrum-analytics/internal/database"
	"github.com/irfndi/celebrum-analytics/internal/models"
)

// seriesCacheEntry is the Redis form of an aligned series. Columns are
// stored as nullable floats because JSON has no NaN.
type seriesCacheEntry struct {
	Asset       string       `json:"asset"`
	Fingerprint string       `json:"fingerprint"`
	CachedAt    time.Time    `json:"cached_at"`
	Dates       []time.Time  `json:"dates"`
	Open        []null.Float `json:"open"`
	High        []null.Float `json:"high"`
	Low         []null.Float `json:"low"`
	Close       []null.Float `json:"close"`
	Volume      []null.Float `json:"volume"`
	Filled      []bool       `json:"filled"`
	// Interpolated is a models.ColumnSet per record.
	Interpolated []models.ColumnSet `json:"interpolated,omitempty"`
}

// RedisSeriesStore is the shared second tier behind SeriesCache, so several
// server processes reuse one another's parsed series.
type RedisSeriesStore struct {
	redis  *database.RedisClient
	ttl    time.Duration
	prefix string
	logger *logrus.Logger
}

// NewRedisSeriesStore creates a store writing entries with ttl. A zero ttl
// keeps entries until they are invalidated.
func NewRedisSeriesStore(client *database.RedisClient, ttl time.Duration, logger *logrus.Logger) *RedisSeriesStore {
	return &RedisSeriesStore{
		redis:  client,
		ttl:    ttl,
		prefix: "series_cache:",
		logger: logger,
	}
}

func (s *RedisSeriesStore) key(asset string) string {
	return s.prefix + asset
}

// Get returns the stored series for asset when its fingerprint matches.
func (s *RedisSeriesStore) Get(ctx context.Context, asset, fingerprint string) (models.AlignedSeries, bool, error) {
	data, err := s.redis.Get(ctx, s.key(asset))
	if errors.Is(err, redis.Nil) {
		return models.AlignedSeries{}, false, nil
	}
	if err != nil {
		return models.AlignedSeries{}, false, fmt.Errorf("redis get %s: %w", asset, err)
	}

	var entry seriesCacheEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		s.logger.WithError(err).WithField("asset", asset).Warn("Dropping undecodable cached series")
		_ = s.redis.Delete(ctx, s.key(asset))
		return models.AlignedSeries{}, false, nil
	}
	if entry.Fingerprint != fingerprint {
		return models.AlignedSeries{}, false, nil
	}
	return entry.series(), true, nil
}

// Set stores series under asset together with its source fingerprint.
func (s *RedisSeriesStore) Set(ctx context.Context, series models.AlignedSeries, fingerprint string) error {
	data, err := json.Marshal(newSeriesCacheEntry(series, fingerprint))
	if err != nil {
		return fmt.Errorf("encode %s: %w", series.Asset, err)
	}
	if err := s.redis.Set(ctx, s.key(series.Asset), data, s.ttl); err != nil {
		return fmt.Errorf("redis set %s: %w", series.Asset, err)
	}
	return nil
}

// Delete removes the entry for asset.
func (s *RedisSeriesStore) Delete(ctx context.Context, asset string) error {
	return s.redis.Delete(ctx, s.key(asset))
}

// Clear removes every entry written by this store.
func (s *RedisSeriesStore) Clear(ctx context.Context) (int, error) {
	return s.redis.DeletePattern(ctx, s.prefix+"*")
}

// Ping checks the connection.
func (s *RedisSeriesStore) Ping(ctx context.Context) error {
	return s.redis.HealthCheck(ctx)
}

func newSeriesCacheEntry(series models.AlignedSeries, fingerprint string) seriesCacheEntry {
	filled := make([]bool, series.Len())
	interpolated := make([]models.ColumnSet, series.Len())
	for i, r := range series.Records {
		filled[i] = r.Filled
		interpolated[i] = r.Interpolated
	}
	return seriesCacheEntry{
		Asset:        series.Asset,
		Fingerprint:  fingerprint,
		CachedAt:     time.Now().UTC(),
		Dates:        series.Dates(),
		Open:         models.NullableSlice(series.Values(models.ColumnOpen)),
		High:         models.NullableSlice(series.Values(models.ColumnHigh)),
		Low:          models.NullableSlice(series.Values(models.ColumnLow)),
		Close:        models.NullableSlice(series.Values(models.ColumnClose)),
		Volume:       models.NullableSlice(series.Values(models.ColumnVolume)),
		Filled:       filled,
		Interpolated: interpolated,
	}
}

func (e seriesCacheEntry) series() models.AlignedSeries {
	records := make([]models.PriceRecord, len(e.Dates))
	for i, d := range e.Dates {
		records[i] = models.PriceRecord{
			Date:   d.UTC(),
			Open:   floatAt(e.Open, i),
			High:   floatAt(e.High, i),
			Low:    floatAt(e.Low, i),
			Close:  floatAt(e.Close, i),
			Volume: floatAt(e.Volume, i),
			Filled: i < len(e.Filled) && e.Filled[i],
		}
		if i < len(e.Interpolated) {
			records[i].Interpolated = e.Interpolated[i]
		}
	}
	return models.AlignedSeries{PriceSeries: models.PriceSeries{Asset: e.Asset, Records: records}}
}

func floatAt(values []null.Float, i int) float64 {
	if i >= len(values) || !values[i].Valid {
		return models.Missing()
	}
	return values[i].Float64
}
