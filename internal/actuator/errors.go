package actuator

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownRelay = errors.New("unknown relay")
	ErrHardware     = errors.New("relay hardware failure")
)

// HardwareError is returned when a relay command was not confirmed.
// The relay state is left as it was before the command.
type HardwareError struct {
	RelayID string
	On      bool
	Err     error
}

func (e *HardwareError) Error() string {
	cmd := "off"
	if e.On {
		cmd = "on"
	}
	return fmt.Sprintf("relay %s: switch %s: %v", e.RelayID, cmd, e.Err)
}

func (e *HardwareError) Unwrap() error { return e.Err }

func (e *HardwareError) Is(target error) bool { return target == ErrHardware }
