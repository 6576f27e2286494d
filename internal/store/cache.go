package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pointtrack/internal/model"
)

const leaderboardKey = "pointtrack:leaderboard"

// LeaderboardCache mirrors leaderboard standings into a redis sorted
// set so dashboards can read rankings without hitting Postgres. It is
// write-through and best effort; a missing or stale cache is never an
// error for the core.
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLeaderboardCache creates the cache with the given entry TTL.
func NewLeaderboardCache(r *Redis, ttl time.Duration) *LeaderboardCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &LeaderboardCache{client: r.Client, ttl: ttl}
}

// Refresh replaces the cached standings with the given snapshot.
func (c *LeaderboardCache) Refresh(ctx context.Context, students []model.Student) error {
	if c == nil || c.client == nil {
		return nil
	}
	members := make([]redis.Z, 0, len(students))
	for _, st := range students {
		members = append(members, redis.Z{
			Score:  float64(st.TotalPoints),
			Member: st.StudentID,
		})
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, leaderboardKey)
	if len(members) > 0 {
		pipe.ZAdd(ctx, leaderboardKey, members...)
	}
	pipe.Expire(ctx, leaderboardKey, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("leaderboard cache refresh: %w", err)
	}
	return nil
}
