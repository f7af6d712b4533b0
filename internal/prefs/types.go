package prefs

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("preference not found")

// Preference is a trader's stored defaults.
type Preference struct {
	Account     string    `json:"account"`
	SlippageBps uint32    `json:"slippage_bps"`
	UpdatedAt   time.Time `json:"updated_at"`
}
