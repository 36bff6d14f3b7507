// Package threshold implements dynamic threshold resolution and manual
// adjustment for monitored installations.
package threshold

import (
	"time"

	"github.com/Romanvolodimer/Dispetcher-progecr/internal/models"
)

// Window identifies one hour of one calendar day, the unit dynamic
// thresholds and adjustment alternation are scoped to. Hours are 1-based:
// wall-clock hour 4 belongs to window hour 5.
type Window struct {
	Date string
	Hour int
}

// WindowAt computes the hour window for a wall-clock instant.
func WindowAt(t time.Time) Window {
	return Window{
		Date: t.Format(models.DateFormat),
		Hour: t.Hour() + 1,
	}
}

// Prev returns the preceding hour window within the same day. Hour 1 wraps
// to hour 24 of the same date, matching the store's carry-forward lookup.
func (w Window) Prev() Window {
	if w.Hour == 1 {
		return Window{Date: w.Date, Hour: 24}
	}
	return Window{Date: w.Date, Hour: w.Hour - 1}
}
