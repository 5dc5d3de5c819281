package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// RefreshScheduler keeps the series cache in step with the source files.
// On every tick it sweeps entries whose fingerprint changed and reloads
// them so the next request does not pay for the reload.
type RefreshScheduler struct {
	cron     *cron.Cron
	analysis *AnalysisService
	logger   *logrus.Logger
	ctx      context.Context
	cancel   context.CancelFunc

	mu       sync.Mutex
	lastRun  time.Time
	reloaded []string
}

// NewRefreshScheduler creates a scheduler bound to analysis.
func NewRefreshScheduler(analysis *AnalysisService, logger *logrus.Logger) *RefreshScheduler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RefreshScheduler{
		cron:     cron.New(),
		analysis: analysis,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Register schedules the refresh job. expr is any robfig/cron expression,
// including descriptors such as "@every 5m".
func (s *RefreshScheduler) Register(expr string) error {
	if _, err := s.cron.AddFunc(expr, func() { s.Refresh(s.ctx) }); err != nil {
		return fmt.Errorf("register cache refresh %q: %w", expr, err)
	}
	return nil
}

// WarmCache loads every configured asset once.
func (s *RefreshScheduler) WarmCache(ctx context.Context) int {
	start := time.Now()
	loaded := 0
	for _, r := range s.analysis.LoadAll(ctx) {
		if r.Err == nil {
			loaded++
		}
	}
	s.logger.WithFields(logrus.Fields{
		"loaded":      loaded,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Cache warming completed")
	return loaded
}

// Refresh sweeps stale entries and reloads them. It returns the reloaded keys.
func (s *RefreshScheduler) Refresh(ctx context.Context) []string {
	stale := s.analysis.Cache().Sweep(ctx)
	if len(stale) > 0 {
		for _, r := range s.analysis.LoadAll(ctx, stale...) {
			if r.Err != nil {
				continue
			}
			s.logger.WithField("asset", r.Asset).Info("Reloaded changed asset")
		}
	}

	s.mu.Lock()
	s.lastRun = time.Now()
	s.reloaded = stale
	s.mu.Unlock()
	return stale
}

// LastRun returns when Refresh last finished and what it reloaded.
func (s *RefreshScheduler) LastRun() (time.Time, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, append([]string(nil), s.reloaded...)
}

// Start starts the cron scheduler.
func (s *RefreshScheduler) Start() {
	s.cron.Start()
	s.logger.Info("Cache refresh scheduler started")
}

// Stop stops the scheduler and waits for a running refresh to finish.
func (s *RefreshScheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("Cache refresh scheduler stopped")
}
