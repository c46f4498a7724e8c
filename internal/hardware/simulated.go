package hardware

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/Kunal6688/PestDetect/internal/models"
)

type valueRange struct {
	min, max float64
}

// Simulated value ranges per sensor type.
var simulatedRanges = map[string]valueRange{
	models.SensorTemperature:  {20, 30},
	models.SensorHumidity:     {40, 80},
	models.SensorSoilMoisture: {0, 100},
	models.SensorLight:        {0, 1000},
	models.SensorOther:        {0, 1023},
}

// Simulated is an in-memory device used when no real hardware is attached.
type Simulated struct {
	mu             sync.Mutex
	rnd            *rand.Rand
	sensors        map[string]string // name -> type
	relays         map[string]bool
	failingSensors map[string]bool
	failingRelays  map[string]bool
	delay          time.Duration
}

// NewSimulated builds a device with the given sensors (name -> type) and relay ids.
func NewSimulated(sensors map[string]string, relays []string) *Simulated {
	s := &Simulated{
		rnd:            rand.New(rand.NewSource(time.Now().UnixNano())),
		sensors:        make(map[string]string, len(sensors)),
		relays:         make(map[string]bool, len(relays)),
		failingSensors: make(map[string]bool),
		failingRelays:  make(map[string]bool),
	}
	for name, typ := range sensors {
		s.sensors[name] = typ
	}
	for _, id := range relays {
		s.relays[id] = false
	}
	return s
}

// SetSensorFailure makes reads of name fail until cleared.
func (s *Simulated) SetSensorFailure(name string, failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failingSensors[name] = failing
}

// SetRelayFailure makes commands to id fail until cleared.
func (s *Simulated) SetRelayFailure(id string, failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failingRelays[id] = failing
}

// SetDelay adds latency to every call; the call still honors ctx.
func (s *Simulated) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Relay reports the simulated physical relay position.
func (s *Simulated) Relay(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.relays[id]
}

func (s *Simulated) wait(ctx context.Context) error {
	s.mu.Lock()
	d := s.delay
	s.mu.Unlock()
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Simulated) ReadSensor(ctx context.Context, name string) (Measurement, error) {
	if err := s.wait(ctx); err != nil {
		return Measurement{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	typ, ok := s.sensors[name]
	if !ok {
		return Measurement{}, fmt.Errorf("%w: %s", ErrUnknownSensor, name)
	}
	if s.failingSensors[name] {
		return Measurement{}, fmt.Errorf("sensor %s: simulated read failure", name)
	}
	r, ok := simulatedRanges[typ]
	if !ok {
		r = simulatedRanges[models.SensorOther]
	}
	return Measurement{
		Value: r.min + s.rnd.Float64()*(r.max-r.min),
		Type:  typ,
	}, nil
}

func (s *Simulated) SetRelay(ctx context.Context, id string, on bool) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.relays[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRelay, id)
	}
	if s.failingRelays[id] {
		return fmt.Errorf("relay %s: simulated command failure", id)
	}
	s.relays[id] = on
	return nil
}
