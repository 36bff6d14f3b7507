// Package store defines the durable threshold store contract and its
// implementations.
package store

import (
	"context"
	"errors"

	"github.com/Romanvolodimer/Dispetcher-progecr/internal/models"
)

// ErrUnavailable wraps store transport failures so callers can distinguish
// them from validation problems.
var ErrUnavailable = errors.New("threshold store unavailable")

// Store is the durable mapping from (installation, date, hour) to a
// threshold and (installation, date) to a daily capacity. Upserts are
// create-or-replace and atomic per key.
type Store interface {
	// HourlyThreshold returns the threshold for the given hour. The second
	// return is false when no value is stored.
	HourlyThreshold(ctx context.Context, installation, date string, hour int) (float64, bool, error)

	// DailyCapacity returns the capacity step for the given date. The second
	// return is false when no value is stored.
	DailyCapacity(ctx context.Context, installation, date string) (float64, bool, error)

	// UpsertHourlyThreshold creates or replaces one hourly threshold.
	UpsertHourlyThreshold(ctx context.Context, installation, date string, hour int, value float64) error

	// UpsertDailyCapacity creates or replaces the daily capacity.
	UpsertDailyCapacity(ctx context.Context, installation, date string, value float64) error

	// SaveDay persists a full day record transactionally.
	SaveDay(ctx context.Context, rec models.DayRecord) error

	// Day returns the stored hourly thresholds for a date, ordered by hour.
	Day(ctx context.Context, installation, date string) ([]models.HourValue, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	Close() error
}
