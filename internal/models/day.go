package models

import (
	"errors"
	"fmt"
	"time"
)

// DateFormat is the calendar date layout used as part of store keys.
const DateFormat = "2006-01-02"

// Day record validation errors
var (
	ErrEmptyInstallation = errors.New("installation cannot be empty")
	ErrInvalidDate       = errors.New("date must be formatted YYYY-MM-DD")
	ErrInvalidCapacity   = errors.New("capacity must be a positive number")
)

// DayRecord is a full day of hourly thresholds plus the daily capacity for
// one installation, persisted in a single store transaction by the
// data-entry workflow.
type DayRecord struct {
	Installation string `json:"installation"`
	Date         string `json:"date"`

	// Daily unloading capacity in kW
	Capacity float64 `json:"capacity"`

	// Hourly threshold values in kW, index 0 holding hour 1
	Hours [24]float64 `json:"hours"`
}

// Validate checks the record before it reaches the store.
func (r *DayRecord) Validate() error {
	if r.Installation == "" {
		return ErrEmptyInstallation
	}
	if _, err := time.Parse(DateFormat, r.Date); err != nil {
		return ErrInvalidDate
	}
	if r.Capacity <= 0 {
		return ErrInvalidCapacity
	}
	return nil
}

// HourValue is one stored hourly threshold row, as returned by the day read
// API.
type HourValue struct {
	Hour  int     `json:"hour_of_day"`
	Value float64 `json:"value"`
}

// OutcomeKind classifies the result of polling one installation
type OutcomeKind string

const (
	OutcomeMetric OutcomeKind = "metric"
	OutcomeAlert  OutcomeKind = "alert"
	OutcomeError  OutcomeKind = "error"
)

// PollOutcome is the result of fetching and classifying one installation
// during a poll cycle.
type PollOutcome struct {
	CardID       int
	Installation string
	Kind         OutcomeKind

	// Reading in kW; NaN when the source text had no numeric content
	Value float64

	Threshold float64
	Capacity  float64

	// Failure description, error outcomes only
	Message string

	At time.Time
}

func (o PollOutcome) String() string {
	if o.Kind == OutcomeError {
		return fmt.Sprintf("%s: %s", o.Installation, o.Message)
	}
	return fmt.Sprintf("%s: %.1f (threshold %.1f)", o.Installation, o.Value, o.Threshold)
}
