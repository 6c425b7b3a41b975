package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ViviZhou160916/medicine-inventory/internal/models"
	"github.com/ViviZhou160916/medicine-inventory/internal/util"

	"go.uber.org/zap"
)

const statsCacheTTL = time.Minute

// DashboardService serves aggregated inventory stats with a short-lived
// Redis cache in front of the database
type DashboardService struct {
	stats  StatsRepository
	cache  StatsCache
	logger *zap.Logger
}

// NewDashboardService creates a new dashboard service. Cache may be nil.
func NewDashboardService(stats StatsRepository, cache StatsCache) *DashboardService {
	return &DashboardService{
		stats:  stats,
		cache:  cache,
		logger: util.GetLogger(),
	}
}

// GetStats returns dashboard stats, served from cache when fresh
func (s *DashboardService) GetStats(ctx context.Context) (*models.DashboardStats, error) {
	if s.cache != nil {
		if payload, err := s.cache.GetCachedStats(ctx); err == nil {
			var cached models.DashboardStats
			if err := json.Unmarshal(payload, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	stats, err := s.stats.GetDashboardStats(ctx, time.Now())
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(stats); err == nil {
			if err := s.cache.SetCachedStats(ctx, payload, statsCacheTTL); err != nil {
				s.logger.Warn("Failed to cache dashboard stats", zap.Error(err))
			}
		}
	}

	return stats, nil
}
