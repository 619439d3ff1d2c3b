// Package redisdb keeps the session mirror in Redis, so several consoles on one
// machine (or a container restart) share the same sign-in.
package redisdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "urlify:"

type RedisDB struct {
	client            *redis.Client
	connectionTimeout time.Duration
}

func New(addr, password string, db int, connectionTimeout time.Duration) (*RedisDB, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	result := &RedisDB{
		client:            client,
		connectionTimeout: connectionTimeout,
	}

	ctx, cancel := result.timeout()
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Join(
			fmt.Errorf("in internal/db/redisdb/redisdb.go/New(): error while `client.Ping()` calling: %w", err),
			client.Close(),
		)
	}

	return result, nil
}

func (db *RedisDB) timeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), db.connectionTimeout)
}

func (db *RedisDB) Get(key string) (string, bool, error) {
	ctx, cancel := db.timeout()
	defer cancel()

	value, err := db.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("in internal/db/redisdb/redisdb.go/Get(): error while `client.Get()` calling: %w", err)
	}

	return value, true, nil
}

func (db *RedisDB) Set(key, value string) error {
	ctx, cancel := db.timeout()
	defer cancel()

	if err := db.client.Set(ctx, keyPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("in internal/db/redisdb/redisdb.go/Set(): error while `client.Set()` calling: %w", err)
	}

	return nil
}

func (db *RedisDB) Remove(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	ctx, cancel := db.timeout()
	defer cancel()

	prefixed := make([]string, 0, len(keys))
	for _, key := range keys {
		prefixed = append(prefixed, keyPrefix+key)
	}
	if err := db.client.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("in internal/db/redisdb/redisdb.go/Remove(): error while `client.Del()` calling: %w", err)
	}

	return nil
}

func (db *RedisDB) Close() error {
	return db.client.Close()
}
