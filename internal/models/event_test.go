package models

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"
)

func TestMetricEventOmitsNaNValue(t *testing.T) {
	ts := time.Date(2024, 3, 10, 4, 30, 0, 0, time.UTC)

	raw, err := json.Marshal(NewMetric(1, math.NaN(), 2000, 1, ts))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if strings.Contains(string(raw), `"value"`) {
		t.Errorf("NaN reading leaked into payload: %s", raw)
	}
	if !strings.Contains(string(raw), `"threshold":2000`) {
		t.Errorf("threshold missing from payload: %s", raw)
	}
}

func TestMetricEventCarriesNumericValue(t *testing.T) {
	ts := time.Date(2024, 3, 10, 4, 30, 0, 0, time.UTC)

	raw, err := json.Marshal(NewMetric(1, 1850.5, 2000, 1, ts))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(raw), `"value":1850.5`) {
		t.Errorf("value missing from payload: %s", raw)
	}
	if !strings.Contains(string(raw), `"ts":"2024-03-10T04:30:00Z"`) {
		t.Errorf("timestamp not RFC3339 UTC: %s", raw)
	}
}

func TestConfigAllOmitsPerCardFields(t *testing.T) {
	raw, err := json.Marshal(NewConfigAll([]Card{{ID: 1, Threshold: 1900, PollIntervalMs: 15000}}))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	for _, field := range []string{`"value"`, `"message"`, `"lrv"`} {
		if strings.Contains(string(raw), field) {
			t.Errorf("configAll payload carries %s: %s", field, raw)
		}
	}
}
