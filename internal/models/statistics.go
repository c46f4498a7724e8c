package models

import "time"

// ConfidenceStats summarizes confidences of every finding ever recorded.
type ConfidenceStats struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// Statistics is a consistent snapshot of cumulative counters.
type Statistics struct {
	TotalDetections  int             `json:"total_detections"`
	FailedDetections int             `json:"failed_detections"`
	TotalFindings    int             `json:"total_findings"`
	PestCounts       map[string]int  `json:"pest_types"`
	Confidence       ConfidenceStats `json:"confidence_stats"`
	RecentActivity   int             `json:"recent_activity"`
	RecentWindow     time.Duration   `json:"recent_window"`
	SensorReadings   int             `json:"sensor_readings"`
	Retained         int             `json:"retained_events"`
	LastDetectionAt  time.Time       `json:"last_detection_at,omitempty"`
}
