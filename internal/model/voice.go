package model

import "time"

// Concurrency and attempt limits are clamped to this range at the boundary.
// Values outside it are silently adjusted, never rejected.
const (
	LimitFloor = 1
	LimitCeil  = 5
)

// VoiceConfig is the process-wide voice provider configuration. At most one
// row exists; it is created on first write and updated in place thereafter.
type VoiceConfig struct {
	APIKey         string    `json:"api_key"`
	AssistantID    string    `json:"assistant_id"`
	PhoneNumberID  string    `json:"phone_number_id"`
	WebhookSecret  string    `json:"webhook_secret"`
	CallingEnabled bool      `json:"calling_enabled"`
	MaxConcurrent  int       `json:"max_concurrent"`
	MaxAttempts    int       `json:"max_attempts"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Clamp forces MaxConcurrent and MaxAttempts into [LimitFloor, LimitCeil].
func (c *VoiceConfig) Clamp() {
	c.MaxConcurrent = clampLimit(c.MaxConcurrent)
	c.MaxAttempts = clampLimit(c.MaxAttempts)
}

func clampLimit(n int) int {
	if n < LimitFloor {
		return LimitFloor
	}
	if n > LimitCeil {
		return LimitCeil
	}
	return n
}

// LocationStatus represents the operational state of a car park location.
type LocationStatus string

const (
	LocationDraft  LocationStatus = "draft"
	LocationLive   LocationStatus = "live"
	LocationClosed LocationStatus = "closed"
)

// Location is the car park a campaign sells for. Calling may only start while
// the location is live.
type Location struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Status LocationStatus `json:"status"`
}
