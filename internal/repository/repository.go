package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/Kunal6688/PestDetect/internal/models"
)

type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// EventRepo is the persistent, queryable event log.
type EventRepo interface {
	Append(ctx context.Context, e models.ArchivedEvent) error
	List(ctx context.Context, f EventFilter) ([]models.ArchivedEvent, error)
}

// RelayStateRepo keeps the last known state of each relay.
type RelayStateRepo interface {
	Save(ctx context.Context, s models.ActuatorState) error
	List(ctx context.Context) ([]models.ActuatorState, error)
}

// EventFilter bounds an event log query. Zero values mean "no bound".
type EventFilter struct {
	From  time.Time // inclusive
	To    time.Time // inclusive
	Type  string
	Limit int
}

type Repository struct {
	EventRepo      EventRepo
	RelayStateRepo RelayStateRepo
	Auth           Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		EventRepo:      NewEventSQLite(db),
		RelayStateRepo: NewRelayStateSQLite(db),
		Auth:           NewUserRepository(db),
	}
}

// timeLayout is fixed-width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatNullableTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func parseNullableTime(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s.String)
}
