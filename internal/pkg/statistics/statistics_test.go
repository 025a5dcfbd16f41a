package statistics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sosdesk/intake/app/models"
)

const isolatedStatisticsTestRedisDB = 13

type countingSource struct {
	mu       sync.Mutex
	calls    int
	byStatus map[models.IncidentStatus]int64
	today    int64
	err      error
}

func (s *countingSource) CountByStatus(ctx context.Context) (map[models.IncidentStatus]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[models.IncidentStatus]int64, len(s.byStatus))
	for k, v := range s.byStatus {
		out[k] = v
	}
	return out, nil
}

func (s *countingSource) CountReportedSince(ctx context.Context, since time.Time) (int64, error) {
	return s.today, nil
}

func TestGetWithoutCache(t *testing.T) {
	src := &countingSource{
		byStatus: map[models.IncidentStatus]int64{models.StatusReceived: 2, models.StatusApproved: 3},
		today:    4,
	}
	stats := New(nil, src, 0)

	snap, err := stats.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), snap.Total)
	assert.Equal(t, int64(4), snap.ReportedToday)
	assert.Equal(t, int64(3), snap.ByStatus[models.StatusApproved])

	_, err = stats.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
	assert.NoError(t, stats.Invalidate(context.Background()))
}

func TestGetPropagatesSourceError(t *testing.T) {
	stats := New(nil, &countingSource{err: errors.New("db down")}, time.Minute)
	_, err := stats.Get(context.Background())
	assert.Error(t, err)
}

func TestGetCachesInRedis(t *testing.T) {
	client := testRedis(t)
	src := &countingSource{byStatus: map[models.IncidentStatus]int64{models.StatusAnalyzed: 1}}
	stats := New(client, src, time.Minute)
	ctx := context.Background()

	first, err := stats.Get(ctx)
	require.NoError(t, err)
	second, err := stats.Get(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls)
	assert.Equal(t, first.Total, second.Total)

	require.NoError(t, stats.Invalidate(ctx))
	_, err = stats.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	host := os.Getenv("CACHE_HOST")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("CACHE_PORT")
	if port == "" {
		port = "6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: os.Getenv("CACHE_PASSWORD"),
		DB:       isolatedStatisticsTestRedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Skipping Redis-dependent test: %v", err)
	}
	require.NoError(t, client.FlushDB(context.Background()).Err())
	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return client
}
