package models

import (
	"encoding/json"
	"errors"
)

// Command types accepted from subscribers
const (
	CmdGetConfigAll      = "getConfigAll"
	CmdSetThreshold      = "setThreshold"
	CmdSetPollIntervalMs = "setPollIntervalMs"
	CmdAdjustThreshold   = "adjustThreshold"
	CmdCheckNow          = "checkNow"
)

// Command validation errors
var (
	ErrUnknownCommand = errors.New("unknown command type")
	ErrNotNumeric     = errors.New("value is not numeric")
	ErrZeroAdjustment = errors.New("adjustment must be non-zero")
)

// Command is the tagged union record received from subscribers. Numeric
// payload fields are kept as json.Number so a quoted number from an older
// console build is still accepted.
type Command struct {
	Type string `json:"type"`

	// Card identifier for setThreshold and checkNow
	ID int `json:"id,omitempty"`

	// Card identifier for adjustThreshold
	CardID int `json:"cardId,omitempty"`

	// New value for setThreshold / setPollIntervalMs
	Value json.Number `json:"value,omitempty"`

	// Signed adjustment for adjustThreshold; only the sign is used
	Adjustment json.Number `json:"adjustment,omitempty"`
}

// ParseCommand decodes a raw subscriber message.
func ParseCommand(raw []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return Command{}, err
	}
	switch cmd.Type {
	case CmdGetConfigAll, CmdSetThreshold, CmdSetPollIntervalMs, CmdAdjustThreshold, CmdCheckNow:
		return cmd, nil
	default:
		return Command{}, ErrUnknownCommand
	}
}

// FloatValue parses the numeric value payload.
func (c Command) FloatValue() (float64, error) {
	v, err := c.Value.Float64()
	if err != nil {
		return 0, ErrNotNumeric
	}
	return v, nil
}

// Direction reduces the adjustment payload to its sign.
func (c Command) Direction() (int, error) {
	v, err := c.Adjustment.Float64()
	if err != nil {
		return 0, ErrNotNumeric
	}
	switch {
	case v > 0:
		return 1, nil
	case v < 0:
		return -1, nil
	default:
		return 0, ErrZeroAdjustment
	}
}
