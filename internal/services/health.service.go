package services

import (
	"context"
	"fmt"

	"github.com/coursebill/billing-api/pkg/pg"
	"github.com/coursebill/billing-api/pkg/redis"
)

// HealthService pings the dependencies the API cannot live without.
type HealthService struct {
	db    *pg.DB
	cache redis.RedisAdapter
}

func NewHealthService(db *pg.DB, cache redis.RedisAdapter) *HealthService {
	return &HealthService{
		db:    db,
		cache: cache,
	}
}

func (s *HealthService) Check(ctx context.Context) error {
	sqlDB, err := s.db.Read(ctx).DB()
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if s.cache != nil {
		if cmd := s.cache.Client().Ping(ctx); cmd.Err() != nil {
			return fmt.Errorf("redis: %w", cmd.Err())
		}
	}

	return nil
}
