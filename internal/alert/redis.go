package alert

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSink publishes each alert to a pub/sub channel so an external
// on-call tool can subscribe without the engine knowing who is
// listening. Constructed from an explicit address/credentials triple
// rather than reading the environment itself, so every binary's
// config.Load() stays the only place that touches os.Getenv.
type RedisSink struct {
	client  *redis.Client
	channel string
}

func NewRedisSink(addr, password string, db int, channel string) *RedisSink {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 1,
	})
	return &RedisSink{client: client, channel: channel}
}

func (s *RedisSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisSink) Send(ctx context.Context, a Alert) error {
	payload, err := marshal(a)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, s.channel, payload).Err()
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
