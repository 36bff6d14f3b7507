// Package source provides the live reading feed for monitored
// installations.
package source

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
)

// Reader yields the raw text reading for an installation. Implementations
// must honor context cancellation so one unreachable source cannot stall a
// poll cycle.
type Reader interface {
	Read(ctx context.Context, installation string) (string, error)
	Close() error
}

// ErrUnknownInstallation is returned for installations the reader has no
// endpoint for.
var ErrUnknownInstallation = errors.New("no source endpoint for installation")

// ParseReading extracts a number from a raw source text. Everything but
// digits, dot, comma and minus is stripped and a decimal comma is accepted.
// Text with no numeric content parses to NaN.
func ParseReading(raw string) float64 {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		case r == ',':
			b.WriteRune('.')
		}
	}

	cleaned := b.String()
	if cleaned == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
