package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Romanvolodimer/Dispetcher-progecr/internal/models"
)

const (
	// ThresholdKeyPrefix prefixes hourly threshold keys
	ThresholdKeyPrefix = "threshold:"
	// CapacityKeyPrefix prefixes daily capacity keys
	CapacityKeyPrefix = "capacity:"
)

// RedisStore implements Store on Redis. Every threshold lives under its own
// key so SET gives the atomic per-key upsert the adjustment path relies on.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return &RedisStore{client: client}, nil
}

func thresholdKey(installation, date string, hour int) string {
	return fmt.Sprintf("%s%s:%s:%d", ThresholdKeyPrefix, installation, date, hour)
}

func capacityKey(installation, date string) string {
	return fmt.Sprintf("%s%s:%s", CapacityKeyPrefix, installation, date)
}

// HourlyThreshold returns the stored threshold for one hour.
func (s *RedisStore) HourlyThreshold(ctx context.Context, installation, date string, hour int) (float64, bool, error) {
	return s.getFloat(ctx, thresholdKey(installation, date, hour))
}

// DailyCapacity returns the stored capacity for one date.
func (s *RedisStore) DailyCapacity(ctx context.Context, installation, date string) (float64, bool, error) {
	return s.getFloat(ctx, capacityKey(installation, date))
}

func (s *RedisStore) getFloat(ctx context.Context, key string) (float64, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt value at %s: %w", key, err)
	}
	return f, true, nil
}

// UpsertHourlyThreshold creates or replaces one hourly threshold.
func (s *RedisStore) UpsertHourlyThreshold(ctx context.Context, installation, date string, hour int, value float64) error {
	key := thresholdKey(installation, date, hour)
	if err := s.client.Set(ctx, key, formatFloat(value), 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// UpsertDailyCapacity creates or replaces the daily capacity.
func (s *RedisStore) UpsertDailyCapacity(ctx context.Context, installation, date string, value float64) error {
	key := capacityKey(installation, date)
	if err := s.client.Set(ctx, key, formatFloat(value), 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// SaveDay writes the capacity and all 24 hourly thresholds in one
// transactional pipeline.
func (s *RedisStore) SaveDay(ctx context.Context, rec models.DayRecord) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, capacityKey(rec.Installation, rec.Date), formatFloat(rec.Capacity), 0)
	for i, v := range rec.Hours {
		pipe.Set(ctx, thresholdKey(rec.Installation, rec.Date, i+1), formatFloat(v), 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Day returns the stored hourly thresholds for one date, ordered by hour.
func (s *RedisStore) Day(ctx context.Context, installation, date string) ([]models.HourValue, error) {
	keys := make([]string, 24)
	for i := range keys {
		keys[i] = thresholdKey(installation, date, i+1)
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	rows := make([]models.HourValue, 0, 24)
	for i, raw := range vals {
		str, ok := raw.(string)
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(str, 64)
		if err != nil {
			continue
		}
		rows = append(rows, models.HourValue{Hour: i + 1, Value: f})
	}
	return rows, nil
}

// Ping verifies the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close closes the connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
