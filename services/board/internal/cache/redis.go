package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/redis/go-redis/v9"
)

const defaultRedisTimeout = 5 * time.Second

// Redis is the production Store. Values are stored as JSON strings without a
// TTL: the board's cached state is meant to survive restarts, eviction is
// explicit via Delete.
type Redis struct {
	client *redis.Client
	logger apt.Logger
}

// NewRedisFromURL accepts a redis:// URL carrying address, credentials and
// database number, the same single-key style used for nats.url and
// db.mongo.url.
func NewRedisFromURL(rawURL string, logger apt.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	opts.DialTimeout = defaultRedisTimeout
	opts.ReadTimeout = defaultRedisTimeout
	opts.WriteTimeout = defaultRedisTimeout

	return newRedis(redis.NewClient(opts), logger), nil
}

func newRedis(client *redis.Client, logger apt.Logger) *Redis {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Redis{
		client: client,
		logger: logger,
	}
}

func (r *Redis) Start(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return err
	}
	r.logger.Info("connected to Redis")
	return nil
}

func (r *Redis) Stop(ctx context.Context) error {
	return r.client.Close()
}

func (r *Redis) Get(ctx context.Context, key string, out any) (bool, error) {
	raw, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		// A corrupt entry is worthless; drop it and report a miss.
		r.logger.Error("dropping corrupt cache entry", "key", key, "error", err)
		if delErr := r.client.Del(ctx, key).Err(); delErr != nil {
			r.logger.Error("cannot delete corrupt cache entry", "key", key, "error", delErr)
		}
		return false, nil
	}
	return true, nil
}

func (r *Redis) Set(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, raw, 0).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
