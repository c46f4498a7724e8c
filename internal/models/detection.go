package models

import "time"

// Finding is a single pest located in an image by the detection engine.
type Finding struct {
	ClassName  string     `json:"class_name"`
	ClassID    int        `json:"class_id"`
	Confidence float64    `json:"confidence"` // 0..1
	BBox       [4]float64 `json:"bbox"`       // x1, y1, x2, y2
}

// Outcomes recorded for each relay the policy asked for.
const (
	ActionTriggered  = "triggered"
	ActionSuppressed = "suppressed"
	ActionFailed     = "failed"
)

// ActionOutcome tells what the acting stage did with one relay intent.
type ActionOutcome struct {
	RelayID string `json:"relay_id"`
	Outcome string `json:"outcome"`          // triggered | suppressed | failed
	Reason  string `json:"reason,omitempty"` // already_active | cooldown | error detail
}

// SourceManual marks a record built from an operator's pest report instead
// of an image.
const SourceManual = "manual"

// DetectionRecord is the immutable result of one detection request.
type DetectionRecord struct {
	ID              string          `json:"id"`
	Timestamp       time.Time       `json:"timestamp"`
	ImageRef        string          `json:"image_ref"`
	Source          string          `json:"source,omitempty"`
	Location        *[2]float64     `json:"location,omitempty"` // x, y of a reported pest
	Findings        []Finding       `json:"detections"`
	TotalDetections int             `json:"total_detections"`
	Failed          bool            `json:"failed,omitempty"`
	Error           string          `json:"error,omitempty"`
	Actions         []ActionOutcome `json:"actions,omitempty"`
}
