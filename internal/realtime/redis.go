package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSink stores each value under "ebus:<key>" and publishes it on a
// channel of the same name, so readers can either poll or subscribe.
type RedisSink struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSink(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &RedisSink{client: client, ttl: ttl}, nil
}

func redisKey(key string) string { return "ebus:" + key }

func (r *RedisSink) Set(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisKey(key), payload, r.ttl)
		pipe.Publish(ctx, redisKey(key), payload)
		return nil
	})
	return err
}

// Remove deletes key and its children.
func (r *RedisSink) Remove(ctx context.Context, key string) error {
	var keys []string
	iter := r.client.Scan(ctx, 0, redisKey(key)+"/*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	keys = append(keys, redisKey(key))
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.Publish(ctx, redisKey(key), "null")
		return nil
	})
	return err
}

func (r *RedisSink) Close() error { return r.client.Close() }
