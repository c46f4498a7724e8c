package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

var ErrInvalidConfig = errors.New("invalid config")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate checks cross references between relays, rules and sensors.
func (c *Config) Validate() error {
	if c.History.MaxEvents <= 0 {
		return invalid("history.max_events must be positive, got %d", c.History.MaxEvents)
	}
	if c.Broadcast.SubscriberBuffer <= 0 {
		return invalid("broadcast.subscriber_buffer must be positive, got %d", c.Broadcast.SubscriberBuffer)
	}
	if c.Sensors.PollInterval <= 0 {
		return invalid("sensors.poll_interval must be positive")
	}
	if c.Detection.Timeout <= 0 {
		return invalid("detection.timeout must be positive")
	}

	relayIDs := make(map[string]struct{}, len(c.Actuators.Relays))
	for _, r := range c.Actuators.Relays {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			return invalid("relay id is empty")
		}
		if _, dup := relayIDs[id]; dup {
			return invalid("duplicate relay %q", id)
		}
		if r.Cooldown < 0 || r.AutoRelease < 0 {
			return invalid("relay %q has a negative duration", id)
		}
		relayIDs[id] = struct{}{}
	}

	for _, rule := range c.Rules {
		if strings.TrimSpace(rule.ClassName) == "" {
			return invalid("rule for relay %q has no class", rule.RelayID)
		}
		if rule.Threshold < 0 || rule.Threshold > 1 {
			return invalid("rule %q threshold %.2f outside [0,1]", rule.ClassName, rule.Threshold)
		}
		if _, ok := relayIDs[rule.RelayID]; !ok {
			return invalid("rule %q references unknown relay %q", rule.ClassName, rule.RelayID)
		}
	}

	names := lo.Map(c.Sensors.Items, func(s SensorConfig, _ int) string { return s.Name })
	if len(lo.Uniq(names)) != len(names) {
		return invalid("duplicate sensor names in %v", names)
	}
	if lo.Contains(names, "") {
		return invalid("sensor name is empty")
	}

	switch c.Detection.Driver {
	case DriverHTTP, DriverSimulated:
	default:
		return invalid("unknown detection.driver %q", c.Detection.Driver)
	}
	switch c.Hardware.Driver {
	case DriverMQTT, DriverSimulated:
	default:
		return invalid("unknown hardware.driver %q", c.Hardware.Driver)
	}
	switch c.Images.Driver {
	case DriverFS, DriverMinio:
	default:
		return invalid("unknown images.driver %q", c.Images.Driver)
	}
	return nil
}
