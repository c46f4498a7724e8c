package service

import (
	"context"
	"time"

	"github.com/Kunal6688/PestDetect/internal/actuator"
	"github.com/Kunal6688/PestDetect/internal/broadcast"
	"github.com/Kunal6688/PestDetect/internal/history"
	"github.com/Kunal6688/PestDetect/internal/models"
	"github.com/Kunal6688/PestDetect/internal/repository"
)

type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Detection submits images, or operator pest reports, to the detection
// pipeline.
type Detection interface {
	SubmitDetection(ctx context.Context, imageRef string) (models.DetectionRecord, error)
	SubmitUpload(ctx context.Context, filename string, data []byte, contentType string) (models.DetectionRecord, error)
	RespondToPest(ctx context.Context, className string, confidence float64, location *[2]float64) (models.DetectionRecord, error)
}

// Actuators exposes relay state and manual control.
type Actuators interface {
	ActuatorStates() []models.ActuatorState
	Trigger(ctx context.Context, relayID string) (actuator.Result, error)
	Release(ctx context.Context, relayID string) error
	ReleaseAll(ctx context.Context) error
}

// Monitoring exposes read-only views: history, statistics, sensors and status.
type Monitoring interface {
	History(q history.Query) []models.Event
	Statistics() models.Statistics
	Sensors() []models.SensorReading
	PollSensors(ctx context.Context) []models.SensorReading
	SystemStatus() SystemStatus
}

// Events hands out live subscriptions to the event stream.
type Events interface {
	Subscribe() *broadcast.Subscription
	Unsubscribe(s *broadcast.Subscription)
}

// EventLog reads the persistent archive.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.ArchivedEvent, error)
	RelayStates(ctx context.Context) ([]models.ActuatorState, error)
}

// Service aggregates everything the HTTP layer needs.
type Service struct {
	Detection
	Actuators
	Monitoring
	Events
	EventLog
	Authorization
}

// Deps are the running components a Service is built from.
type Deps struct {
	Repos     *repository.Repository
	Detection Detection
	Relays    RelayController
	History   HistoryReader
	Sensors   SensorPoller
	Pipeline  PipelineStatus
	Bus       *broadcast.Broadcaster
	Archive   ArchiveStats
	Auth      AuthConfig
}

// AuthConfig carries token settings into AuthService.
type AuthConfig struct {
	SigningKey string
	TokenTTL   time.Duration
}

func NewService(d Deps) *Service {
	return &Service{
		Detection:     d.Detection,
		Actuators:     NewActuatorService(d.Relays),
		Monitoring:    NewMonitoringService(d.History, d.Sensors, d.Relays, d.Pipeline, d.Bus, d.Archive),
		Events:        d.Bus,
		EventLog:      NewEventLogService(d.Repos.EventRepo, d.Repos.RelayStateRepo),
		Authorization: NewAuthService(d.Repos.Auth, d.Auth.SigningKey, d.Auth.TokenTTL),
	}
}
