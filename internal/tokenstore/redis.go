package tokenstore

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Redis keeps the slot under one key, for clients that share a session
// across processes.
type Redis struct {
	rdb *goredis.Client
	key string
}

func NewRedis(rdb *goredis.Client, key string) *Redis {
	return &Redis{rdb: rdb, key: key}
}

// DialRedis parses url, pings the server and returns the store.
func DialRedis(ctx context.Context, url, key string) (*Redis, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return NewRedis(rdb, key), nil
}

func (r *Redis) Get(ctx context.Context) (string, error) {
	if r.rdb == nil {
		return "", ErrNotConfigured
	}
	v, err := r.rdb.Get(ctx, r.key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (r *Redis) Set(ctx context.Context, token string) error {
	if r.rdb == nil {
		return ErrNotConfigured
	}
	return r.rdb.Set(ctx, r.key, token, 0).Err()
}

func (r *Redis) Delete(ctx context.Context) error {
	if r.rdb == nil {
		return ErrNotConfigured
	}
	return r.rdb.Del(ctx, r.key).Err()
}

func (r *Redis) Close() error {
	if r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}
