package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Kunal6688/PestDetect/internal/models"
)

// RelayStateSQLite persists the last observed state of every relay so an
// operator can see what the field looked like before a restart.
type RelayStateSQLite struct {
	db  *sql.DB
	now func() time.Time
}

func NewRelayStateSQLite(db *sql.DB) *RelayStateSQLite {
	return &RelayStateSQLite{db: db, now: time.Now}
}

const (
	upsertRelayStateSQL = `
		INSERT INTO relay_states (relay_id, active, last_triggered, release_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(relay_id) DO UPDATE SET
			active=excluded.active,
			last_triggered=excluded.last_triggered,
			release_at=excluded.release_at,
			updated_at=excluded.updated_at
	`

	selectRelayStatesSQL = `
		SELECT relay_id, active, last_triggered, release_at
		FROM relay_states ORDER BY relay_id
	`
)

// Save upserts the relay row.
func (r *RelayStateSQLite) Save(ctx context.Context, s models.ActuatorState) error {
	_, err := r.db.ExecContext(ctx, upsertRelayStateSQL,
		s.RelayID,
		s.Active,
		formatNullableTime(s.LastTriggered),
		formatNullableTime(s.ReleaseAt),
		formatTime(r.now()),
	)
	if err != nil {
		return fmt.Errorf("upsert relay state %s: %w", s.RelayID, err)
	}
	return nil
}

// List returns every persisted relay ordered by id.
func (r *RelayStateSQLite) List(ctx context.Context) ([]models.ActuatorState, error) {
	rows, err := r.db.QueryContext(ctx, selectRelayStatesSQL)
	if err != nil {
		return nil, fmt.Errorf("query relay states: %w", err)
	}
	defer rows.Close()

	var out []models.ActuatorState
	for rows.Next() {
		var (
			s                        models.ActuatorState
			lastTriggered, releaseAt sql.NullString
		)
		if err := rows.Scan(&s.RelayID, &s.Active, &lastTriggered, &releaseAt); err != nil {
			return nil, fmt.Errorf("scan relay state: %w", err)
		}
		if s.LastTriggered, err = parseNullableTime(lastTriggered); err != nil {
			return nil, fmt.Errorf("parse last_triggered of %s: %w", s.RelayID, err)
		}
		if s.ReleaseAt, err = parseNullableTime(releaseAt); err != nil {
			return nil, fmt.Errorf("parse release_at of %s: %w", s.RelayID, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate relay states: %w", err)
	}
	return out, nil
}
