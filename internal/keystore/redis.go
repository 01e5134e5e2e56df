// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package keystore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore implements Store on Redis, for key-set caches shared by a
// fleet of client processes.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and returns a store. Keys are
// namespaced under "fhec:keyset:".
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{client: client, prefix: "fhec:keyset:"}, nil
}

func (s *RedisStore) Put(ctx context.Context, fingerprint string, data []byte) error {
	if err := s.client.Set(ctx, s.prefix+fingerprint, data, 0).Err(); err != nil {
		return fmt.Errorf("store key set: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, fingerprint string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.prefix+fingerprint).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load key set: %w", err)
	}
	return data, nil
}

func (s *RedisStore) Exists(ctx context.Context, fingerprint string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+fingerprint).Result()
	if err != nil {
		return false, fmt.Errorf("check key set: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Delete(ctx context.Context, fingerprint string) error {
	n, err := s.client.Del(ctx, s.prefix+fingerprint).Result()
	if err != nil {
		return fmt.Errorf("delete key set: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
