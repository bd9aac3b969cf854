// internal/infra/redisstore/store.go
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 200

// Store keeps post records as Redis hashes and category indexes as sorted sets.
type Store struct {
	rdb redis.UniversalClient
}

func NewStore(rdb redis.UniversalClient) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) GetFields(ctx context.Context, key string) (map[string]string, error) {
	fields, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis HGETALL %s: %w", key, err)
	}
	return fields, nil
}

func (s *Store) SetFields(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	if err := s.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("redis HSET %s: %w", key, err)
	}
	return nil
}

func (s *Store) AddToIndex(ctx context.Context, index, member string, score int64) error {
	if err := s.rdb.ZAdd(ctx, index, redis.Z{Score: float64(score), Member: member}).Err(); err != nil {
		return fmt.Errorf("redis ZADD %s: %w", index, err)
	}
	return nil
}

func (s *Store) RemoveFromIndex(ctx context.Context, index, member string) error {
	if err := s.rdb.ZRem(ctx, index, member).Err(); err != nil {
		return fmt.Errorf("redis ZREM %s: %w", index, err)
	}
	return nil
}

// RemoveFromIndexes drops member from every index in one pipeline.
func (s *Store) RemoveFromIndexes(ctx context.Context, indexes []string, member string) error {
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, idx := range indexes {
			pipe.ZRem(ctx, idx, member)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis ZREM pipeline for %s: %w", member, err)
	}
	return nil
}

func (s *Store) ScanIndex(ctx context.Context, index string) ([]string, error) {
	members, err := s.rdb.ZRangeByScore(ctx, index, &redis.ZRangeBy{Min: "-inf", Max: "+inf"}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis ZRANGEBYSCORE %s: %w", index, err)
	}
	return members, nil
}

func (s *Store) IndexContains(ctx context.Context, index, member string) (bool, error) {
	err := s.rdb.ZScore(ctx, index, member).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis ZSCORE %s: %w", index, err)
	}
	return true, nil
}

// ScanKeys walks the keyspace with SCAN so large databases are not blocked.
func (s *Store) ScanKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis SCAN %s*: %w", prefix, err)
	}
	return keys, nil
}
