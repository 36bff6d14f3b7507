package store

import (
	"context"
	"sync"

	"github.com/Romanvolodimer/Dispetcher-progecr/internal/models"
)

// MemoryStore is an in-process Store used by tests and by local development
// runs without Redis.
type MemoryStore struct {
	mu         sync.RWMutex
	thresholds map[string]float64
	capacities map[string]float64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		thresholds: make(map[string]float64),
		capacities: make(map[string]float64),
	}
}

func (s *MemoryStore) HourlyThreshold(ctx context.Context, installation, date string, hour int) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.thresholds[thresholdKey(installation, date, hour)]
	return v, ok, nil
}

func (s *MemoryStore) DailyCapacity(ctx context.Context, installation, date string) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.capacities[capacityKey(installation, date)]
	return v, ok, nil
}

func (s *MemoryStore) UpsertHourlyThreshold(ctx context.Context, installation, date string, hour int, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thresholds[thresholdKey(installation, date, hour)] = value
	return nil
}

func (s *MemoryStore) UpsertDailyCapacity(ctx context.Context, installation, date string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capacities[capacityKey(installation, date)] = value
	return nil
}

func (s *MemoryStore) SaveDay(ctx context.Context, rec models.DayRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capacities[capacityKey(rec.Installation, rec.Date)] = rec.Capacity
	for i, v := range rec.Hours {
		s.thresholds[thresholdKey(rec.Installation, rec.Date, i+1)] = v
	}
	return nil
}

func (s *MemoryStore) Day(ctx context.Context, installation, date string) ([]models.HourValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]models.HourValue, 0, 24)
	for hour := 1; hour <= 24; hour++ {
		if v, ok := s.thresholds[thresholdKey(installation, date, hour)]; ok {
			rows = append(rows, models.HourValue{Hour: hour, Value: v})
		}
	}
	return rows, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
