package models

import "time"

// ActuatorState is the controller's view of a single relay.
type ActuatorState struct {
	RelayID       string        `json:"relay_id"`
	Active        bool          `json:"active"`
	LastTriggered time.Time     `json:"last_triggered,omitempty"`
	LastAttempt   time.Time     `json:"last_attempt,omitempty"`
	ReleaseAt     time.Time     `json:"release_at,omitempty"` // zero when no auto-release is pending
	Cooldown      time.Duration `json:"cooldown"`
	AutoRelease   time.Duration `json:"auto_release"`
}

// ResponseRule maps a pest class to a relay when confidence reaches Threshold.
type ResponseRule struct {
	ClassName string  `json:"class_name" mapstructure:"class"`
	RelayID   string  `json:"relay_id" mapstructure:"relay"`
	Threshold float64 `json:"threshold" mapstructure:"threshold"`
}
