package models

import "time"

// Event types pushed to subscribers and recorded in history.
const (
	EventSensorUpdate      = "sensor_update"
	EventDetectionComplete = "detection_complete"
	EventDetectionFailed   = "detection_failed"
	EventActuatorChanged   = "actuator_changed"
)

// Event is a state change. Exactly one of the payload pointers is set.
type Event struct {
	Seq        uint64           `json:"seq"`
	Type       string           `json:"type"`
	RecordedAt time.Time        `json:"recorded_at"`
	Detection  *DetectionRecord `json:"detection,omitempty"`
	Sensor     *SensorReading   `json:"sensor,omitempty"`
	Actuator   *ActuatorState   `json:"actuator,omitempty"`
}

// Payload returns whichever payload the event carries.
func (e Event) Payload() any {
	switch {
	case e.Detection != nil:
		return e.Detection
	case e.Sensor != nil:
		return e.Sensor
	case e.Actuator != nil:
		return e.Actuator
	default:
		return nil
	}
}

// ArchivedEvent is a single row of the persistent event log.
type ArchivedEvent struct {
	EventID    string    `json:"event_id"`
	Seq        uint64    `json:"seq"`
	OccurredAt time.Time `json:"occurred_at"`
	Type       string    `json:"type"`
	Summary    string    `json:"summary"` // human-readable
	Payload    any       `json:"payload,omitempty"`
}

// Key identifies the entity the event is about: relay id, sensor name or
// detection id. Empty when the event carries no payload.
func (e Event) Key() string {
	switch {
	case e.Detection != nil:
		return e.Detection.ID
	case e.Sensor != nil:
		return e.Sensor.Name
	case e.Actuator != nil:
		return e.Actuator.RelayID
	default:
		return ""
	}
}
