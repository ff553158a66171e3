package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const notifiedKeyPrefix = "relay:notified:"

// NewRedisClient parses the URL and checks the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.WithField("addr", opts.Addr).Info("Connected to Redis")
	return client, nil
}

// RedisNotifiedSet shares the dedupe set between relay instances. SETNX makes
// the check and the mark one atomic step on the server.
type RedisNotifiedSet struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisNotifiedSet(client redis.Cmdable, ttl time.Duration) *RedisNotifiedSet {
	return &RedisNotifiedSet{client: client, ttl: ttl}
}

func (r *RedisNotifiedSet) key(txID string) string {
	return notifiedKeyPrefix + txID
}

func (r *RedisNotifiedSet) CheckAndMark(ctx context.Context, txID string) (bool, error) {
	if txID == "" {
		return false, ErrEmptyTransactionID
	}
	ok, err := r.client.SetNX(ctx, r.key(txID), 1, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark transaction as notified: %w", err)
	}
	return ok, nil
}

func (r *RedisNotifiedSet) Contains(ctx context.Context, txID string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(txID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check notified transaction: %w", err)
	}
	return n > 0, nil
}
