package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Kunal6688/PestDetect/internal/models"
	"github.com/Kunal6688/PestDetect/internal/repository"
)

const (
	defaultLogLimit = 500
	maxLogLimit     = 5000
)

// LogFilter selects archived events by time range, type and count.
type LogFilter struct {
	From  time.Time // inclusive; zero means no lower bound
	To    time.Time // inclusive; zero means no upper bound
	Type  string    // "", "sensor_update", "detection_complete", "detection_failed", "actuator_changed"
	Limit int       // 0 means defaultLogLimit
}

type EventLogService struct {
	eventRepo repository.EventRepo
	relayRepo repository.RelayStateRepo
}

func NewEventLogService(eventRepo repository.EventRepo, relayRepo repository.RelayStateRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo, relayRepo: relayRepo}
}

var (
	errInvalidTimeRange = errors.New("invalid time range: From must be <= To")
	errInvalidLimit     = errors.New("invalid limit: must not be negative")
)

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeEventType trims spaces and lowercases the event type filter.
func normalizeEventType(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

// normalizeAndValidateFilter prepares query parameters and validates them.
func normalizeAndValidateFilter(f LogFilter) (repository.EventFilter, error) {
	from := normalizeToUTC(f.From)
	to := normalizeToUTC(f.To)

	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return repository.EventFilter{}, errInvalidTimeRange
	}

	limit := f.Limit
	switch {
	case limit < 0:
		return repository.EventFilter{}, errInvalidLimit
	case limit == 0:
		limit = defaultLogLimit
	case limit > maxLogLimit:
		limit = maxLogLimit
	}

	return repository.EventFilter{
		From:  from,
		To:    to,
		Type:  normalizeEventType(f.Type),
		Limit: limit,
	}, nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.ArchivedEvent, error) {
	rf, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, rf)
}

// RelayStates returns the last persisted state of every relay.
func (s *EventLogService) RelayStates(ctx context.Context) ([]models.ActuatorState, error) {
	return s.relayRepo.List(ctx)
}

// IsValidationError reports whether err came from filter validation.
func IsValidationError(err error) bool {
	return errors.Is(err, errInvalidTimeRange) || errors.Is(err, errInvalidLimit)
}
