package models

import "time"

// Sensor kinds.
const (
	SensorTemperature  = "temperature"
	SensorHumidity     = "humidity"
	SensorLight        = "light"
	SensorSoilMoisture = "soil_moisture"
	SensorOther        = "other"
)

// Reading statuses.
const (
	ReadingOK    = "ok"
	ReadingError = "error"
)

// SensorReading is one normalized sample. Value is nil when the read failed.
type SensorReading struct {
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Value     *float64  `json:"value"`
	Unit      string    `json:"unit"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
}

// OK reports whether the reading carries a usable value.
func (r SensorReading) OK() bool {
	return r.Status == ReadingOK && r.Value != nil
}
