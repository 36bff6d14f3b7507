package models

import (
	"math"
	"time"
)

// EventType tags an outbound subscriber event
type EventType string

const (
	EventConfigAll EventType = "configAll"
	EventMetric    EventType = "metric"
	EventAlert     EventType = "alert"
	EventError     EventType = "error"
	EventInfo      EventType = "info"
)

// Card is the per-installation slice of the config snapshot sent to
// subscribers
type Card struct {
	ID             int     `json:"id"`
	Threshold      float64 `json:"threshold"`
	PollIntervalMs int64   `json:"pollIntervalMs"`
}

// Event is the tagged union record pushed to subscribers. Only the fields
// relevant to Type are populated; the rest are omitted on the wire.
type Event struct {
	Type EventType `json:"type"`

	// Card identifier, for all types except configAll
	ID int `json:"id,omitempty"`

	// Config snapshot, configAll only
	Cards []Card `json:"cards,omitempty"`

	// Reading value; nil when the reading was not numeric
	Value *float64 `json:"value,omitempty"`

	// Effective threshold the reading was compared against
	Threshold *float64 `json:"threshold,omitempty"`

	// Daily capacity step (LRV), metric events only
	LRV *float64 `json:"lrv,omitempty"`

	// Human-readable text, error and info events
	Message string `json:"message,omitempty"`

	// Event timestamp, RFC3339
	TS string `json:"ts,omitempty"`
}

// NewConfigAll builds a config snapshot event.
func NewConfigAll(cards []Card) Event {
	return Event{Type: EventConfigAll, Cards: cards}
}

// NewMetric builds a metric event. A NaN reading is carried as a null value
// so the payload stays valid JSON.
func NewMetric(id int, value, threshold, lrv float64, ts time.Time) Event {
	return Event{
		Type:      EventMetric,
		ID:        id,
		Value:     floatField(value),
		Threshold: &threshold,
		LRV:       &lrv,
		TS:        ts.UTC().Format(time.RFC3339),
	}
}

// NewAlert builds an alert event for a reading outside the deadband.
func NewAlert(id int, value, threshold float64, ts time.Time) Event {
	return Event{
		Type:      EventAlert,
		ID:        id,
		Value:     floatField(value),
		Threshold: &threshold,
		TS:        ts.UTC().Format(time.RFC3339),
	}
}

// NewErrorEvent builds an error event.
func NewErrorEvent(id int, message string, ts time.Time) Event {
	return Event{
		Type:    EventError,
		ID:      id,
		Message: message,
		TS:      ts.UTC().Format(time.RFC3339),
	}
}

// NewInfo builds an info event.
func NewInfo(id int, message string) Event {
	return Event{Type: EventInfo, ID: id, Message: message}
}

func floatField(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
