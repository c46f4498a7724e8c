package service

import (
	"context"
	"slices"
	"strings"

	"github.com/Kunal6688/PestDetect/internal/history"
	"github.com/Kunal6688/PestDetect/internal/models"
	"github.com/Kunal6688/PestDetect/internal/orchestrator"
	"github.com/Kunal6688/PestDetect/internal/poller"

	"github.com/samber/lo"
)

type HistoryReader interface {
	Snapshot() models.Statistics
	Query(q history.Query) []models.Event
	Len() int
	Capacity() int
}

type SensorPoller interface {
	Current() map[string]models.SensorReading
	PollAll(ctx context.Context) map[string]models.SensorReading
	Polls() uint64
	Sensors() []poller.SensorSpec
}

type PipelineStatus interface {
	Status() orchestrator.Status
}

type BusStats interface {
	Subscribers() int
	Stats() (published, dropped uint64)
}

type ArchiveStats interface {
	Stats() ArchiverStats
}

// SystemStatus is a point-in-time health view of the running system.
type SystemStatus struct {
	Pipeline           orchestrator.Status `json:"pipeline"`
	Subscribers        int                 `json:"subscribers"`
	EventsPublished    uint64              `json:"events_published"`
	SubscribersDropped uint64              `json:"subscribers_dropped"`
	Archive            ArchiverStats       `json:"archive"`
	HistoryRetained    int                 `json:"history_retained"`
	HistoryCapacity    int                 `json:"history_capacity"`
	Relays             int                 `json:"relays"`
	ActiveRelays       int                 `json:"active_relays"`
	Sensors            int                 `json:"sensors"`
	SensorPolls        uint64              `json:"sensor_polls"`
}

type MonitoringService struct {
	history  HistoryReader
	sensors  SensorPoller
	relays   RelayController
	pipeline PipelineStatus
	bus      BusStats
	archive  ArchiveStats
}

func NewMonitoringService(h HistoryReader, sensors SensorPoller, relays RelayController, pipeline PipelineStatus, bus BusStats, archive ArchiveStats) *MonitoringService {
	return &MonitoringService{
		history:  h,
		sensors:  sensors,
		relays:   relays,
		pipeline: pipeline,
		bus:      bus,
		archive:  archive,
	}
}

// History returns retained events newest first.
func (s *MonitoringService) History(q history.Query) []models.Event {
	q.Kind = strings.ToLower(strings.TrimSpace(q.Kind))
	return s.history.Query(q)
}

func (s *MonitoringService) Statistics() models.Statistics {
	return s.history.Snapshot()
}

// Sensors returns the latest reading of every sensor ordered by name.
func (s *MonitoringService) Sensors() []models.SensorReading {
	return sortedReadings(s.sensors.Current())
}

// PollSensors forces an immediate poll outside the regular schedule.
func (s *MonitoringService) PollSensors(ctx context.Context) []models.SensorReading {
	return sortedReadings(s.sensors.PollAll(ctx))
}

func sortedReadings(m map[string]models.SensorReading) []models.SensorReading {
	out := lo.Values(m)
	slices.SortFunc(out, func(a, b models.SensorReading) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

func (s *MonitoringService) SystemStatus() SystemStatus {
	states := s.relays.States()
	st := SystemStatus{
		Pipeline:        s.pipeline.Status(),
		HistoryRetained: s.history.Len(),
		HistoryCapacity: s.history.Capacity(),
		Relays:          len(states),
		ActiveRelays: lo.CountBy(lo.Values(states), func(a models.ActuatorState) bool {
			return a.Active
		}),
		Sensors:     len(s.sensors.Sensors()),
		SensorPolls: s.sensors.Polls(),
	}
	if s.bus != nil {
		st.Subscribers = s.bus.Subscribers()
		st.EventsPublished, st.SubscribersDropped = s.bus.Stats()
	}
	if s.archive != nil {
		st.Archive = s.archive.Stats()
	}
	return st
}
