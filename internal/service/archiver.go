package service

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Kunal6688/PestDetect/internal/logger"
	"github.com/Kunal6688/PestDetect/internal/models"
	"github.com/Kunal6688/PestDetect/internal/repository"

	"github.com/google/uuid"
)

const (
	DefaultArchiveQueue = 256
	defaultSinkTimeout  = 5 * time.Second
	drainTimeout        = 10 * time.Second
)

// EventSink is one archive destination.
type EventSink interface {
	Name() string
	Write(ctx context.Context, e models.Event) error
}

// ArchiverStats counts archive traffic since start.
type ArchiverStats struct {
	Queued     int    `json:"queued"`
	Enqueued   uint64 `json:"enqueued"`
	Dropped    uint64 `json:"dropped"`
	Written    uint64 `json:"written"`
	SinkErrors uint64 `json:"sink_errors"`
}

// Archiver copies published events to durable sinks on a background
// goroutine. Publish never blocks: when the queue is full the event is
// dropped from the archive only.
type Archiver struct {
	queue   chan models.Event
	sinks   []EventSink
	timeout time.Duration
	log     *logger.Logger
	done    chan struct{}

	enqueued   atomic.Uint64
	dropped    atomic.Uint64
	written    atomic.Uint64
	sinkErrors atomic.Uint64
}

func NewArchiver(size int, sinks []EventSink, log *logger.Logger) *Archiver {
	if size <= 0 {
		size = DefaultArchiveQueue
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Archiver{
		queue:   make(chan models.Event, size),
		sinks:   sinks,
		timeout: defaultSinkTimeout,
		log:     log,
		done:    make(chan struct{}),
	}
}

func (a *Archiver) Publish(e models.Event) {
	select {
	case a.queue <- e:
		a.enqueued.Add(1)
	default:
		a.dropped.Add(1)
		a.log.Warnw("archive_event_dropped", "type", e.Type, "seq", e.Seq, "reason", "queue_full")
	}
}

// Run writes queued events until ctx is canceled, then drains what is left.
func (a *Archiver) Run(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			a.drain(context.WithoutCancel(ctx))
			return
		case e := <-a.queue:
			a.write(ctx, e)
		}
	}
}

// Done is closed once Run has drained the queue and returned.
func (a *Archiver) Done() <-chan struct{} { return a.done }

func (a *Archiver) drain(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()
	for {
		select {
		case e := <-a.queue:
			a.write(ctx, e)
		default:
			return
		}
	}
}

// write hands e to every sink in order. A failing sink never stops the rest.
func (a *Archiver) write(ctx context.Context, e models.Event) {
	for _, s := range a.sinks {
		wctx, cancel := context.WithTimeout(ctx, a.timeout)
		err := s.Write(wctx, e)
		cancel()
		if err != nil {
			a.sinkErrors.Add(1)
			a.log.Errorw("archive_sink_failed", "sink", s.Name(), "type", e.Type, "seq", e.Seq, "err", err)
		}
	}
	a.written.Add(1)
}

func (a *Archiver) Stats() ArchiverStats {
	return ArchiverStats{
		Queued:     len(a.queue),
		Enqueued:   a.enqueued.Load(),
		Dropped:    a.dropped.Load(),
		Written:    a.written.Load(),
		SinkErrors: a.sinkErrors.Load(),
	}
}

// SQLiteSink writes events to the local event log and keeps relay_states
// current on every actuator change.
type SQLiteSink struct {
	events repository.EventRepo
	relays repository.RelayStateRepo
}

func NewSQLiteSink(events repository.EventRepo, relays repository.RelayStateRepo) *SQLiteSink {
	return &SQLiteSink{events: events, relays: relays}
}

func (s *SQLiteSink) Name() string { return "sqlite" }

func (s *SQLiteSink) Write(ctx context.Context, e models.Event) error {
	err := s.events.Append(ctx, models.ArchivedEvent{
		EventID:    uuid.NewString(),
		Seq:        e.Seq,
		OccurredAt: e.RecordedAt,
		Type:       e.Type,
		Summary:    Summarize(e),
		Payload:    e.Payload(),
	})
	if err != nil {
		return err
	}
	if e.Actuator != nil && s.relays != nil {
		if err := s.relays.Save(ctx, *e.Actuator); err != nil {
			return err
		}
	}
	return nil
}

// Summarize renders a one-line description of e for the event log.
func Summarize(e models.Event) string {
	switch {
	case e.Detection != nil:
		d := e.Detection
		if d.Failed {
			return fmt.Sprintf("detection failed on %s: %s", d.ImageRef, d.Error)
		}
		var b strings.Builder
		if d.TotalDetections == 0 {
			fmt.Fprintf(&b, "no pests found on %s", d.ImageRef)
		} else {
			fmt.Fprintf(&b, "%d pests found on %s", d.TotalDetections, d.ImageRef)
		}
		var triggered []string
		for _, a := range d.Actions {
			if a.Outcome == models.ActionTriggered {
				triggered = append(triggered, a.RelayID)
			}
		}
		if len(triggered) > 0 {
			fmt.Fprintf(&b, "; triggered %s", strings.Join(triggered, ", "))
		}
		return b.String()
	case e.Sensor != nil:
		r := e.Sensor
		if !r.OK() {
			return fmt.Sprintf("%s read failed: %s", r.Name, r.Error)
		}
		return strings.TrimSpace(fmt.Sprintf("%s = %.2f %s", r.Name, *r.Value, r.Unit))
	case e.Actuator != nil:
		if e.Actuator.Active {
			return fmt.Sprintf("relay %s on", e.Actuator.RelayID)
		}
		return fmt.Sprintf("relay %s off", e.Actuator.RelayID)
	default:
		return e.Type
	}
}
