package repository

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/Kunal6688/PestDetect/internal/models"
	"github.com/Kunal6688/PestDetect/internal/repository/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *Repository {
	t.Helper()
	sqlDB, err := db.InitDB(filepath.Join(t.TempDir(), "pest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewRepository(sqlDB)
}

func TestSQLite_UsersRoundTrip(t *testing.T) {
	repos := openTestDB(t)

	id, err := repos.Auth.Create(ctx(t), "agronomist", "hash")
	require.NoError(t, err)
	assert.Positive(t, id)

	_, err = repos.Auth.Create(ctx(t), "agronomist", "other")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	u, err := repos.Auth.GetByUsername(ctx(t), "agronomist")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, id, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	u, err = repos.Auth.GetByUsername(ctx(t), "nobody")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestSQLite_EventsFilterAndOrder(t *testing.T) {
	repos := openTestDB(t)
	base := time.Date(2025, 8, 27, 10, 0, 0, 0, time.UTC)

	for i, e := range []models.ArchivedEvent{
		{Seq: 3, OccurredAt: base.Add(2 * time.Minute), Type: models.EventActuatorChanged, Summary: "relay pump on"},
		{Seq: 1, OccurredAt: base, Type: models.EventSensorUpdate, Summary: "temperature = 24.50 °C", Payload: map[string]any{"value": 24.5}},
		{Seq: 2, OccurredAt: base.Add(time.Minute), Type: " SENSOR_UPDATE ", Summary: "humidity = 61.00 %"},
		{Seq: 4, OccurredAt: base.Add(24 * time.Hour), Type: models.EventDetectionComplete, Summary: "no pests found on leaf.jpg"},
	} {
		require.NoError(t, repos.EventRepo.Append(ctx(t), e), "event %d", i)
	}

	all, err := repos.EventRepo.List(ctx(t), EventFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []uint64{1, 2, 3, 4}, []uint64{all[0].Seq, all[1].Seq, all[2].Seq, all[3].Seq})
	assert.NotEmpty(t, all[0].EventID)
	assert.Equal(t, map[string]any{"value": 24.5}, all[0].Payload)

	sensors, err := repos.EventRepo.List(ctx(t), EventFilter{Type: models.EventSensorUpdate})
	require.NoError(t, err)
	require.Len(t, sensors, 2, "type stored normalized")

	window, err := repos.EventRepo.List(ctx(t), EventFilter{
		From:  base.Add(time.Minute),
		To:    base.Add(time.Hour),
		Limit: 1,
	})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, uint64(2), window[0].Seq)
}

func TestSQLite_RelayStatesUpsert(t *testing.T) {
	repos := openTestDB(t)
	on := time.Date(2025, 8, 27, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repos.RelayStateRepo.Save(ctx(t), models.ActuatorState{
		RelayID: "pump", Active: true, LastTriggered: on, ReleaseAt: on.Add(10 * time.Second),
	}))
	require.NoError(t, repos.RelayStateRepo.Save(ctx(t), models.ActuatorState{RelayID: "trap"}))
	require.NoError(t, repos.RelayStateRepo.Save(ctx(t), models.ActuatorState{
		RelayID: "pump", Active: false, LastTriggered: on,
	}))

	states, err := repos.RelayStateRepo.List(ctx(t))
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "pump", states[0].RelayID)
	assert.False(t, states[0].Active)
	assert.True(t, on.Equal(states[0].LastTriggered))
	assert.True(t, states[0].ReleaseAt.IsZero())
	assert.Equal(t, "trap", states[1].RelayID)
}
