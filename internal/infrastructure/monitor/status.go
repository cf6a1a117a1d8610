package monitor

import "time"

// Status is the last probe result. Components that are not configured report
// false and are omitted from Healthy.
type Status struct {
	Backend    bool      `json:"backend"`
	PostgreSQL bool      `json:"postgresql"`
	Redis      bool      `json:"redis"`
	Buffer     bool      `json:"buffer"`
	BufferSize int       `json:"buffer_size"`
	LastCheck  time.Time `json:"last_check"`
}
