// Package statistics serves incident counters through a short-lived Redis
// cache.
package statistics

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/sosdesk/intake/app/models"
)

const (
	CacheKeySnapshot = "intake:statistics:snapshot"
	CacheExpiration  = 30 * time.Second
)

// Source computes the counters from the store.
type Source interface {
	CountByStatus(ctx context.Context) (map[models.IncidentStatus]int64, error)
	CountReportedSince(ctx context.Context, since time.Time) (int64, error)
}

// Snapshot is one computed set of counters.
type Snapshot struct {
	ByStatus      map[models.IncidentStatus]int64 `json:"by_status"`
	Total         int64                           `json:"total"`
	ReportedToday int64                           `json:"reported_today"`
	GeneratedAt   time.Time                       `json:"generated_at"`
}

// Statistics reads snapshots through an optional Redis cache.
type Statistics struct {
	client *redis.Client
	source Source
	ttl    time.Duration
}

// New returns a Statistics. A nil client disables caching.
func New(client *redis.Client, source Source, ttl time.Duration) *Statistics {
	if ttl <= 0 {
		ttl = CacheExpiration
	}
	return &Statistics{client: client, source: source, ttl: ttl}
}

// Get returns the cached snapshot or computes and caches a fresh one.
// Redis failures fall back to the database.
func (s *Statistics) Get(ctx context.Context) (*Snapshot, error) {
	if s.client != nil {
		raw, err := s.client.Get(ctx, CacheKeySnapshot).Bytes()
		switch {
		case err == nil:
			var snap Snapshot
			if err := json.Unmarshal(raw, &snap); err == nil {
				return &snap, nil
			}
			log.Warnf("[Statistics] Dropping undecodable cached snapshot")
		case !errors.Is(err, redis.Nil):
			log.Warnf("[Statistics] Cache read failed: %v", err)
		}
	}

	snap, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}

	if s.client != nil {
		if raw, err := json.Marshal(snap); err == nil {
			if err := s.client.Set(ctx, CacheKeySnapshot, raw, s.ttl).Err(); err != nil {
				log.Warnf("[Statistics] Cache write failed: %v", err)
			}
		}
	}
	return snap, nil
}

// Invalidate drops the cached snapshot.
func (s *Statistics) Invalidate(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Del(ctx, CacheKeySnapshot).Err()
}

func (s *Statistics) compute(ctx context.Context) (*Snapshot, error) {
	byStatus, err := s.source.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	var total int64
	for _, n := range byStatus {
		total += n
	}

	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today, err := s.source.CountReportedSince(ctx, midnight)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		ByStatus:      byStatus,
		Total:         total,
		ReportedToday: today,
		GeneratedAt:   now.UTC(),
	}, nil
}
