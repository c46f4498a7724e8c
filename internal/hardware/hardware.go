package hardware

import (
	"context"
	"errors"
)

var (
	ErrUnknownSensor = errors.New("unknown sensor")
	ErrUnknownRelay  = errors.New("unknown relay")
	ErrNoReading     = errors.New("no reading received yet")
	ErrStaleReading  = errors.New("reading is stale")
)

// Measurement is a raw sensor value as reported by the device.
// Type and Unit may be empty; the poller fills them from configuration.
type Measurement struct {
	Value float64
	Unit  string
	Type  string
}

// SensorReader reads one named sensor.
type SensorReader interface {
	ReadSensor(ctx context.Context, name string) (Measurement, error)
}

// RelaySwitch drives one relay on or off.
type RelaySwitch interface {
	SetRelay(ctx context.Context, id string, on bool) error
}

// Hardware is the full device capability set.
type Hardware interface {
	SensorReader
	RelaySwitch
}
