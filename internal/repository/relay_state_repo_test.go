package repository

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/Kunal6688/PestDetect/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRelayRepo(t *testing.T) (*RelayStateSQLite, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	repo := NewRelayStateSQLite(db)
	repo.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	return repo, mock
}

func TestRelayStateSave_Upserts(t *testing.T) {
	repo, mock := newRelayRepo(t)

	triggered := time.Date(2025, 3, 1, 8, 59, 50, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta(upsertRelayStateSQL)).
		WithArgs("pump", true,
			"2025-03-01T08:59:50.000000000Z",
			"2025-03-01T09:00:00.000000000Z",
			"2025-03-01T09:00:00.000000000Z",
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Save(ctx(t), models.ActuatorState{
		RelayID:       "pump",
		Active:        true,
		LastTriggered: triggered,
		ReleaseAt:     triggered.Add(10 * time.Second),
	})
	require.NoError(t, err)
}

func TestRelayStateSave_ZeroTimesStoredAsNull(t *testing.T) {
	repo, mock := newRelayRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(upsertRelayStateSQL)).
		WithArgs("trap", false, nil, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Save(ctx(t), models.ActuatorState{RelayID: "trap"}))
}

func TestRelayStateSave_Error(t *testing.T) {
	repo, mock := newRelayRepo(t)

	mock.ExpectExec("INSERT INTO relay_states").WillReturnError(errors.New("readonly"))

	err := repo.Save(ctx(t), models.ActuatorState{RelayID: "pump"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert relay state pump")
}

func TestRelayStateList(t *testing.T) {
	repo, mock := newRelayRepo(t)

	rows := sqlmock.NewRows([]string{"relay_id", "active", "last_triggered", "release_at"}).
		AddRow("pump", true, "2025-03-01T08:59:50.000000000Z", "2025-03-01T09:00:00.000000000Z").
		AddRow("trap", false, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta(selectRelayStatesSQL)).WillReturnRows(rows)

	got, err := repo.List(ctx(t))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "pump", got[0].RelayID)
	assert.True(t, got[0].Active)
	assert.Equal(t, time.Date(2025, 3, 1, 8, 59, 50, 0, time.UTC), got[0].LastTriggered)
	assert.Equal(t, "trap", got[1].RelayID)
	assert.True(t, got[1].LastTriggered.IsZero())
	assert.True(t, got[1].ReleaseAt.IsZero())
}
