package services

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// cacheStatsKey is where periodic reporting persists the counters.
const cacheStatsKey = "analytics:cache_stats"

const overallCategory = "overall"

// CacheStats represents cache statistics
type CacheStats struct {
	Hits        int64     `json:"hits"`
	Misses      int64     `json:"misses"`
	HitRate     float64   `json:"hit_rate"`
	TotalOps    int64     `json:"total_ops"`
	LastUpdated time.Time `json:"last_updated"`
}

// CacheMetrics represents detailed cache metrics by category
type CacheMetrics struct {
	Overall          CacheStats            `json:"overall"`
	ByCategory       map[string]CacheStats `json:"by_category"`
	RedisInfo        map[string]string     `json:"redis_info,omitempty"`
	ConnectedClients int64                 `json:"connected_clients"`
	KeyCount         int64                 `json:"key_count"`
}

// CacheAnalyticsService counts series cache hits and misses per tier. It
// satisfies cache.Recorder. The Redis client is optional.
type CacheAnalyticsService struct {
	redisClient *redis.Client
	logger      *logrus.Logger
	stats       map[string]*CacheStats
	mu          sync.RWMutex
	now         func() time.Time
}

// NewCacheAnalyticsService creates a new cache analytics service
func NewCacheAnalyticsService(redisClient *redis.Client, logger *logrus.Logger) *CacheAnalyticsService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CacheAnalyticsService{
		redisClient: redisClient,
		logger:      logger,
		stats:       make(map[string]*CacheStats),
		now:         time.Now,
	}
}

// RecordHit records a cache hit for the given category
func (c *CacheAnalyticsService) RecordHit(category string) {
	c.record(category, true)
}

// RecordMiss records a cache miss for the given category
func (c *CacheAnalyticsService) RecordMiss(category string) {
	c.record(category, false)
}

func (c *CacheAnalyticsService) record(category string, hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for _, name := range []string{category, overallCategory} {
		s := c.stats[name]
		if s == nil {
			s = &CacheStats{}
			c.stats[name] = s
		}
		if hit {
			s.Hits++
		} else {
			s.Misses++
		}
		s.TotalOps++
		s.HitRate = float64(s.Hits) / float64(s.TotalOps)
		s.LastUpdated = now
	}
}

// GetStats returns cache statistics for a specific category
func (c *CacheAnalyticsService) GetStats(category string) CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if stats, exists := c.stats[category]; exists {
		return *stats
	}
	return CacheStats{}
}

// GetAllStats returns all cache statistics
func (c *CacheAnalyticsService) GetAllStats() map[string]CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]CacheStats, len(c.stats))
	for category, stats := range c.stats {
		result[category] = *stats
	}
	return result
}

// GetMetrics returns the counters plus whatever Redis reports about itself.
// Redis failures degrade to counters only.
func (c *CacheAnalyticsService) GetMetrics(ctx context.Context) *CacheMetrics {
	allStats := c.GetAllStats()
	metrics := &CacheMetrics{
		Overall:    allStats[overallCategory],
		ByCategory: allStats,
	}
	delete(metrics.ByCategory, overallCategory)

	if c.redisClient == nil {
		return metrics
	}

	if info, err := c.redisClient.Info(ctx, "clients").Result(); err == nil {
		metrics.RedisInfo = c.parseRedisInfo(info)
		if n, err := strconv.ParseInt(metrics.RedisInfo["connected_clients"], 10, 64); err == nil {
			metrics.ConnectedClients = n
		}
	} else {
		c.logger.WithError(err).Debug("Redis INFO unavailable")
	}

	if keyCount, err := c.redisClient.DBSize(ctx).Result(); err == nil {
		metrics.KeyCount = keyCount
	}
	return metrics
}

// parseRedisInfo parses Redis INFO command output
func (c *CacheAnalyticsService) parseRedisInfo(info string) map[string]string {
	result := make(map[string]string)

	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) == 2 {
			result[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}

	return result
}

// ResetStats resets all cache statistics
func (c *CacheAnalyticsService) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = make(map[string]*CacheStats)
}

// StartPeriodicReporting persists the counters to Redis every interval
// until ctx is cancelled. It is a no-op without Redis.
func (c *CacheAnalyticsService) StartPeriodicReporting(ctx context.Context, interval time.Duration) {
	if c.redisClient == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.reportStats(ctx)
			}
		}
	}()
}

// reportStats stores the current counters with a 24 hour TTL.
func (c *CacheAnalyticsService) reportStats(ctx context.Context) {
	statsJSON, err := json.Marshal(c.GetAllStats())
	if err != nil {
		return
	}
	if err := c.redisClient.Set(ctx, cacheStatsKey, statsJSON, 24*time.Hour).Err(); err != nil {
		c.logger.WithError(err).Warn("Failed to persist cache stats")
	}
}
