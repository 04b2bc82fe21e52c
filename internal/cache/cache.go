// Package cache implements the Activity Cache (§4.5): a best-effort,
// Redis-backed key/value store keyed by user id. It exists purely to
// avoid thrashing the relational store on the hot heartbeat path and to
// let the gap detector work without scanning telemetry — every
// correctness argument in this repository holds with the cache empty, so
// every method here degrades silently to a cache miss on error.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dipnamdev/attendance-management-backend/internal/domain"
	"github.com/dipnamdev/attendance-management-backend/internal/logger"
)

// LastActivity is the cached heartbeat bookkeeping the processor and the
// gap detector both read and write.
type LastActivity struct {
	LastInputTs     time.Time `json:"lastInputTs"`
	LastHeartbeatTs time.Time `json:"lastHeartbeatTs"`
}

// ActivityCache is the contract the heartbeat processor, commands, and
// reconcilers depend on. Every method is advisory: a cache miss or error
// must never be distinguishable from "never written" by the caller.
type ActivityCache interface {
	GetLastActivity(ctx context.Context, userID string) (LastActivity, bool)
	SetLastActivity(ctx context.Context, userID string, v LastActivity, ttl time.Duration)
	GetCurrentState(ctx context.Context, userID string) (domain.State, bool)
	SetCurrentState(ctx context.Context, userID string, state domain.State, ttl time.Duration)
	Clear(ctx context.Context, userID string)
}

// Redis is the production ActivityCache.
type Redis struct {
	client  *redis.Client
	log     logger.Logger
	enabled bool
}

// Config holds the Redis connection settings.
type Config struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// New constructs a Redis-backed cache. When cfg.Enabled is false, every
// method is a permanent miss/no-op without ever dialing Redis — the
// deployment can run with no cache at all, per §4.5.
func New(cfg Config, log logger.Logger) *Redis {
	if log == nil {
		log = logger.Noop{}
	}
	if !cfg.Enabled {
		return &Redis{log: log, enabled: false}
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   3,
	})

	return &Redis{client: client, log: log, enabled: true}
}

// Close releases the underlying Redis connection pool.
func (c *Redis) Close() error {
	if !c.enabled {
		return nil
	}
	return c.client.Close()
}

func activityKey(userID string) string { return "user:" + userID + ":last_activity" }
func stateKey(userID string) string    { return "user:" + userID + ":current_state" }

func (c *Redis) GetLastActivity(ctx context.Context, userID string) (LastActivity, bool) {
	if !c.enabled {
		return LastActivity{}, false
	}

	raw, err := c.client.Get(ctx, activityKey(userID)).Result()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("cache: get last activity failed", "user_id", userID, "err", err)
		}
		return LastActivity{}, false
	}

	var v LastActivity
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		c.log.Warn("cache: decode last activity failed", "user_id", userID, "err", err)
		return LastActivity{}, false
	}
	return v, true
}

func (c *Redis) SetLastActivity(ctx context.Context, userID string, v LastActivity, ttl time.Duration) {
	if !c.enabled {
		return
	}

	raw, err := json.Marshal(v)
	if err != nil {
		c.log.Warn("cache: encode last activity failed", "user_id", userID, "err", err)
		return
	}
	if err := c.client.Set(ctx, activityKey(userID), raw, ttl).Err(); err != nil {
		c.log.Warn("cache: set last activity failed", "user_id", userID, "err", err)
	}
}

func (c *Redis) GetCurrentState(ctx context.Context, userID string) (domain.State, bool) {
	if !c.enabled {
		return domain.StateNone, false
	}

	raw, err := c.client.Get(ctx, stateKey(userID)).Result()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("cache: get current state failed", "user_id", userID, "err", err)
		}
		return domain.StateNone, false
	}
	return domain.State(raw), true
}

func (c *Redis) SetCurrentState(ctx context.Context, userID string, state domain.State, ttl time.Duration) {
	if !c.enabled {
		return
	}
	if err := c.client.Set(ctx, stateKey(userID), string(state), ttl).Err(); err != nil {
		c.log.Warn("cache: set current state failed", "user_id", userID, "err", err)
	}
}

func (c *Redis) Clear(ctx context.Context, userID string) {
	if !c.enabled {
		return
	}
	if err := c.client.Del(ctx, activityKey(userID), stateKey(userID)).Err(); err != nil {
		c.log.Warn("cache: clear failed", "user_id", userID, "err", err)
	}
}
