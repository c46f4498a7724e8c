package poller

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/Kunal6688/PestDetect/internal/hardware"
	"github.com/Kunal6688/PestDetect/internal/logger"
	"github.com/Kunal6688/PestDetect/internal/models"
)

const defaultReadTimeout = 5 * time.Second

// SensorSpec is the configured identity of one sensor.
type SensorSpec struct {
	Name string
	Type string
	Unit string
}

// Recorder appends an event to history, publishes it and returns the
// stamped copy.
type Recorder interface {
	Record(e models.Event) models.Event
}

// Poller samples every configured sensor on its own cadence.
type Poller struct {
	hw      hardware.SensorReader
	sensors []SensorSpec
	timeout time.Duration
	events  Recorder
	now     func() time.Time
	log     *logger.Logger

	mu      sync.RWMutex
	current map[string]models.SensorReading
	polls   uint64
}

func New(hw hardware.SensorReader, sensors []SensorSpec, timeout time.Duration, events Recorder, log *logger.Logger) *Poller {
	if timeout <= 0 {
		timeout = defaultReadTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Poller{
		hw:      hw,
		sensors: append([]SensorSpec(nil), sensors...),
		timeout: timeout,
		events:  events,
		now:     time.Now,
		log:     log,
		current: make(map[string]models.SensorReading, len(sensors)),
	}
}

// PollAll reads every sensor concurrently. A failing sensor yields an error
// reading and never affects the others.
func (p *Poller) PollAll(ctx context.Context) map[string]models.SensorReading {
	readings := make([]models.SensorReading, len(p.sensors))

	var wg sync.WaitGroup
	for i, spec := range p.sensors {
		wg.Add(1)
		go func(i int, spec SensorSpec) {
			defer wg.Done()
			readings[i] = p.read(ctx, spec)
		}(i, spec)
	}
	wg.Wait()

	out := make(map[string]models.SensorReading, len(readings))
	p.mu.Lock()
	for _, r := range readings {
		p.current[r.Name] = r
		out[r.Name] = r
	}
	p.polls++
	p.mu.Unlock()

	if p.events != nil {
		for i := range readings {
			r := readings[i]
			p.events.Record(models.Event{Type: models.EventSensorUpdate, Sensor: &r})
		}
	}
	return out
}

func (p *Poller) read(ctx context.Context, spec SensorSpec) models.SensorReading {
	rctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	m, err := p.hw.ReadSensor(rctx, spec.Name)
	r := normalize(spec, m, err, p.now().UTC())
	if r.Status == models.ReadingError {
		p.log.Warnw("sensor_read_failed", "sensor", spec.Name, "err", r.Error)
	}
	return r
}

// normalize turns a raw measurement into a reading with type and unit filled in.
func normalize(spec SensorSpec, m hardware.Measurement, err error, ts time.Time) models.SensorReading {
	r := models.SensorReading{
		Name:      spec.Name,
		Type:      firstNonEmpty(spec.Type, m.Type, models.SensorOther),
		Unit:      firstNonEmpty(m.Unit, spec.Unit),
		Timestamp: ts,
		Status:    models.ReadingOK,
	}
	switch {
	case err != nil:
		r.Status = models.ReadingError
		r.Error = err.Error()
	case math.IsNaN(m.Value) || math.IsInf(m.Value, 0):
		r.Status = models.ReadingError
		r.Error = "sensor returned a non-finite value"
	default:
		v := math.Round(m.Value*100) / 100
		r.Value = &v
	}
	return r
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Current returns a copy of the latest reading per sensor.
func (p *Poller) Current() map[string]models.SensorReading {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]models.SensorReading, len(p.current))
	for k, v := range p.current {
		out[k] = v
	}
	return out
}

// Polls reports how many poll rounds have completed.
func (p *Poller) Polls() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.polls
}

// Sensors lists the configured sensors.
func (p *Poller) Sensors() []SensorSpec {
	return append([]SensorSpec(nil), p.sensors...)
}

// Run polls immediately and then every interval until ctx is canceled.
func (p *Poller) Run(ctx context.Context, interval time.Duration) {
	p.PollAll(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.PollAll(ctx)
		}
	}
}
