package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const inputKeyPrefix = "input:"

// RedisStorage keeps input records in Redis, one JSON value per input.
type RedisStorage struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStorage creates a new Redis storage instance.
// If addr is empty, returns nil (Redis is disabled). A zero ttl keeps
// records forever.
func NewRedisStorage(addr string, ttl time.Duration) (*RedisStorage, error) {
	if addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	zap.L().Named("storage").Info("Redis connected", zap.String("addr", addr))

	return &RedisStorage{
		client: client,
		ttl:    ttl,
	}, nil
}

func inputKey(index int) string {
	return inputKeyPrefix + strconv.Itoa(index)
}

// SaveInput stores a record, refreshing its TTL.
func (r *RedisStorage) SaveInput(ctx context.Context, record *InputRecord) error {
	if r == nil || r.client == nil {
		return nil
	}

	data, err := marshalRecord(record)
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, inputKey(record.Index), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}

	return nil
}

// LoadInput retrieves a single record.
func (r *RedisStorage) LoadInput(ctx context.Context, index int) (*InputRecord, error) {
	if r == nil || r.client == nil {
		return nil, fmt.Errorf("redis not configured")
	}

	data, err := r.client.Get(ctx, inputKey(index)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return unmarshalRecord(data)
}

// RestoreAllInputs scans every stored record. Unreadable keys are skipped.
func (r *RedisStorage) RestoreAllInputs(ctx context.Context) (map[int]*InputRecord, error) {
	if r == nil || r.client == nil {
		return nil, fmt.Errorf("redis not configured")
	}

	records := make(map[int]*InputRecord)
	skipped := 0

	iter := r.client.Scan(ctx, 0, inputKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		index, err := strconv.Atoi(strings.TrimPrefix(key, inputKeyPrefix))
		if err != nil {
			skipped++
			continue
		}

		data, err := r.client.Get(ctx, key).Bytes()
		if err != nil {
			zap.L().Named("storage").Warn("Failed to read key", zap.String("key", key), zap.Error(err))
			skipped++
			continue
		}

		record, err := unmarshalRecord(data)
		if err != nil {
			zap.L().Named("storage").Warn("Skipping unreadable record", zap.String("key", key), zap.Error(err))
			skipped++
			continue
		}
		records[index] = record
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan error: %w", err)
	}

	zap.L().Named("storage").Info("Restored inputs from Redis",
		zap.Int("restored", len(records)),
		zap.Int("skipped", skipped))
	return records, nil
}

// Close closes the Redis connection.
func (r *RedisStorage) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
