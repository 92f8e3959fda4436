package timer

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/gomodule/redigo/redis"

	"github.com/fthabet1/Kaizen-sub000/pkg/models"
)

// RedisCache stores sessions in Redis so several server instances share one
// view of each user's believed-running timer.
type RedisCache struct {
	pool *redis.Pool
}

// NewRedisCache creates a cache backed by a redigo pool at addr.
func NewRedisCache(addr string) *RedisCache {
	pool := &redis.Pool{
		MaxIdle:     4,
		IdleTimeout: 240 * time.Second,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialContext(ctx, "tcp", addr)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
	return &RedisCache{pool: pool}
}

// Close releases the connection pool.
func (c *RedisCache) Close() error {
	return c.pool.Close()
}

func sessionKey(userID int64) string {
	return fmt.Sprintf("kaizen:session:%d", userID)
}

// Get reads the user's session, returning nil when absent.
func (c *RedisCache) Get(ctx context.Context, userID int64) (*models.TimerSession, error) {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("redis conn: %w", err)
	}
	defer conn.Close()

	data, err := redis.Bytes(conn.Do("GET", sessionKey(userID)))
	if err == redis.ErrNil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var session models.TimerSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, nil // corrupt cache value, store wins
	}
	return &session, nil
}

// Put stores the session.
func (c *RedisCache) Put(ctx context.Context, userID int64, session *models.TimerSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redis conn: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Do("SET", sessionKey(userID), data); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes the user's session.
func (c *RedisCache) Delete(ctx context.Context, userID int64) error {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redis conn: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Do("DEL", sessionKey(userID)); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
