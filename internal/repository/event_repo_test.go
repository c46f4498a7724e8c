package repository

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/Kunal6688/PestDetect/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
)

func ctx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return c
}

func newSQLMock(t *testing.T) (sqlmock.Sqlmock, func() *EventSQLite) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("mock expectations: %v", err)
		}
		_ = db.Close()
	})
	return mock, func() *EventSQLite { return NewEventSQLite(db) }
}

func TestEventAppend_FillsDefaults(t *testing.T) {
	t.Parallel()
	mock, repo := newSQLMock(t)

	mock.ExpectExec(regexp.QuoteMeta(insertEventSQL)).
		WithArgs(sqlmock.AnyArg(), int64(7), sqlmock.AnyArg(),
			"detection_complete", "2 pests found on img-1.jpg",
			`{"total":2}`,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo().Append(ctx(t), models.ArchivedEvent{
		Seq:     7,
		Type:    "  Detection_Complete ",
		Summary: "2 pests found on img-1.jpg",
		Payload: map[string]any{"total": 2},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func TestEventAppend_NilPayloadStoredAsNull(t *testing.T) {
	t.Parallel()
	mock, repo := newSQLMock(t)

	at := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta(insertEventSQL)).
		WithArgs("ev-1", int64(1), "2025-06-01T08:30:00.000000000Z", "sensor_update", "", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo().Append(ctx(t), models.ArchivedEvent{
		EventID:    "ev-1",
		Seq:        1,
		OccurredAt: at,
		Type:       "sensor_update",
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func TestEventAppend_DBError(t *testing.T) {
	t.Parallel()
	mock, repo := newSQLMock(t)

	mock.ExpectExec("INSERT INTO events").
		WillReturnError(errors.New("disk full"))

	err := repo().Append(ctx(t), models.ArchivedEvent{Type: "actuator_changed"})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected error, got %v", err)
	}
}

func TestEventList_NoFilters(t *testing.T) {
	t.Parallel()
	mock, repo := newSQLMock(t)

	js, _ := json.Marshal(map[string]any{"relay_id": "pump"})
	rows := sqlmock.NewRows([]string{"id", "seq", "occurred_at", "type", "summary", "payload"}).
		AddRow("1", int64(1), "2025-01-01T10:00:00.000000000Z", "actuator_changed", "pump on", string(js)).
		AddRow("2", int64(2), "2025-01-01T11:00:00.000000000Z", "sensor_update", "temperature 24.5", nil)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, seq, occurred_at, type, summary, payload FROM events ORDER BY occurred_at ASC, seq ASC`)).
		WillReturnRows(rows)

	got, err := repo().List(ctx(t), EventFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2, got %d", len(got))
	}
	if got[0].EventID != "1" || got[1].Seq != 2 {
		t.Fatalf("unexpected rows: %+v", got)
	}
	if !got[0].OccurredAt.Equal(time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("occurred_at: %v", got[0].OccurredAt)
	}
	b, _ := json.Marshal(got[0].Payload)
	if string(b) != string(js) {
		t.Fatalf("payload mismatch: %s vs %s", b, js)
	}
	if got[1].Payload != nil {
		t.Fatalf("expected nil payload, got %#v", got[1].Payload)
	}
}

func TestEventList_WithFilters(t *testing.T) {
	t.Parallel()
	mock, repo := newSQLMock(t)

	from := time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	query := `SELECT id, seq, occurred_at, type, summary, payload FROM events WHERE occurred_at >= ? AND occurred_at <= ? AND type = ? ORDER BY occurred_at ASC, seq ASC LIMIT ?`
	rows := sqlmock.NewRows([]string{"id", "seq", "occurred_at", "type", "summary", "payload"}).
		AddRow("3", int64(3), "2025-01-01T11:30:00.000000000Z", "detection_failed", "engine down", "not json")

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs("2025-01-01T11:00:00.000000000Z", "2025-01-01T12:00:00.000000000Z", "detection_failed", 10).
		WillReturnRows(rows)

	got, err := repo().List(ctx(t), EventFilter{From: from, To: to, Type: " DETECTION_FAILED ", Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].EventID != "3" {
		t.Fatalf("unexpected results: %+v", got)
	}
	if got[0].Payload != "not json" {
		t.Fatalf("malformed payload should be kept raw, got %#v", got[0].Payload)
	}
}

func TestEventList_QueryError(t *testing.T) {
	t.Parallel()
	mock, repo := newSQLMock(t)

	mock.ExpectQuery("SELECT id, seq").WillReturnError(errors.New("locked"))

	_, err := repo().List(ctx(t), EventFilter{})
	if err == nil || !strings.Contains(err.Error(), "query events") {
		t.Fatalf("expected query error, got %v", err)
	}
}

func TestEventList_BadTimestamp(t *testing.T) {
	t.Parallel()
	mock, repo := newSQLMock(t)

	rows := sqlmock.NewRows([]string{"id", "seq", "occurred_at", "type", "summary", "payload"}).
		AddRow("1", int64(1), "yesterday", "sensor_update", "", nil)
	mock.ExpectQuery("SELECT id, seq").WillReturnRows(rows)

	_, err := repo().List(ctx(t), EventFilter{})
	if err == nil || !strings.Contains(err.Error(), "parse occurred_at") {
		t.Fatalf("expected parse error, got %v", err)
	}
}
