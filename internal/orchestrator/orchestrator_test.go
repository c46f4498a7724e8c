package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Kunal6688/PestDetect/internal/actuator"
	"github.com/Kunal6688/PestDetect/internal/broadcast"
	"github.com/Kunal6688/PestDetect/internal/detector"
	"github.com/Kunal6688/PestDetect/internal/history"
	"github.com/Kunal6688/PestDetect/internal/imagestore"
	"github.com/Kunal6688/PestDetect/internal/models"
	"github.com/Kunal6688/PestDetect/internal/policy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engineFunc func(ctx context.Context, image []byte) (detector.Result, error)

func (f engineFunc) Detect(ctx context.Context, image []byte) (detector.Result, error) {
	return f(ctx, image)
}

func findings(fs ...models.Finding) engineFunc {
	return func(context.Context, []byte) (detector.Result, error) {
		return detector.Result{Findings: fs}, nil
	}
}

// memImages is an in-memory imagestore.Store.
type memImages struct {
	mu   sync.Mutex
	data map[string][]byte
	n    int
}

func newMemImages(refs ...string) *memImages {
	m := &memImages{data: map[string][]byte{}}
	for _, r := range refs {
		m.data[r] = []byte("img:" + r)
	}
	return m
}

func (m *memImages) Save(_ context.Context, name string, data []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.n++
	ref := fmt.Sprintf("%d-%s", m.n, name)
	m.data[ref] = data
	return ref, nil
}

func (m *memImages) Load(_ context.Context, ref string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[ref]
	if !ok {
		return nil, imagestore.ErrNotFound
	}
	return d, nil
}

type relaySwitch struct {
	mu   sync.Mutex
	fail error
	cmds []string
}

func (r *relaySwitch) SetRelay(_ context.Context, id string, on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.cmds = append(r.cmds, fmt.Sprintf("%s:%v", id, on))
	return nil
}

type harness struct {
	orch   *Orchestrator
	store  *history.Store
	bus    *broadcast.Broadcaster
	sub    *broadcast.Subscription
	relays *relaySwitch
	ctrl   *actuator.Controller
}

func newHarness(t *testing.T, engine detector.Engine, timeout time.Duration) *harness {
	t.Helper()
	sw := &relaySwitch{}
	ctrl := actuator.NewController(sw, []actuator.RelaySpec{
		{ID: "pump", Cooldown: time.Hour},
		{ID: "trap", Cooldown: time.Hour},
	}, time.Second, nil)
	store := history.NewStore(100, time.Hour)
	bus := broadcast.New(256, nil)
	h := &harness{
		store:  store,
		bus:    bus,
		sub:    bus.Subscribe(),
		relays: sw,
		ctrl:   ctrl,
	}
	h.orch = New(Deps{
		Engine: engine,
		Images: newMemImages("leaf.jpg"),
		Policy: policy.NewEvaluator([]models.ResponseRule{
			{ClassName: "aphid", RelayID: "pump", Threshold: 0.6},
			{ClassName: "beetle", RelayID: "trap", Threshold: 0.5},
		}),
		Actuators: ctrl,
		Events:    history.NewJournal(store, bus),
		Timeout:   timeout,
	})
	return h
}

func (h *harness) nextEvent(t *testing.T) models.Event {
	t.Helper()
	select {
	case e := <-h.sub.Events():
		return e
	case <-time.After(time.Second):
		t.Fatalf("no event published")
		return models.Event{}
	}
}

func TestSubmitDetection_TriggersMappedRelays(t *testing.T) {
	h := newHarness(t, findings(
		models.Finding{ClassName: "aphid", Confidence: 0.9},
		models.Finding{ClassName: "aphid", Confidence: 0.8},
		models.Finding{ClassName: "locust", Confidence: 0.99},
	), time.Second)

	rec, err := h.orch.SubmitDetection(context.Background(), "leaf.jpg")
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "leaf.jpg", rec.ImageRef)
	assert.Equal(t, 3, rec.TotalDetections)
	assert.False(t, rec.Failed)
	assert.Equal(t, []models.ActionOutcome{{RelayID: "pump", Outcome: models.ActionTriggered}}, rec.Actions)
	assert.Equal(t, []string{"pump:true"}, h.relays.cmds)

	e := h.nextEvent(t)
	assert.Equal(t, models.EventDetectionComplete, e.Type)
	assert.Equal(t, uint64(1), e.Seq)
	require.NotNil(t, e.Detection)
	assert.Equal(t, rec.ID, e.Detection.ID)

	st := h.store.Snapshot()
	assert.Equal(t, 1, st.TotalDetections)
	assert.Equal(t, 3, st.TotalFindings)
	assert.Equal(t, 2, st.PestCounts["aphid"])
}

func TestSubmitDetection_SecondDetectionInsideCooldownIsSuppressed(t *testing.T) {
	h := newHarness(t, findings(models.Finding{ClassName: "aphid", Confidence: 0.9}), time.Second)
	ctx := context.Background()

	_, err := h.orch.SubmitDetection(ctx, "leaf.jpg")
	require.NoError(t, err)
	require.NoError(t, h.ctrl.Release(ctx, "pump"))

	rec, err := h.orch.SubmitDetection(ctx, "leaf.jpg")
	require.NoError(t, err)
	assert.Equal(t, []models.ActionOutcome{{RelayID: "pump", Outcome: models.ActionSuppressed, Reason: actuator.ReasonCooldown}}, rec.Actions)
	assert.Equal(t, 2, h.store.Snapshot().TotalDetections)
}

func TestSubmitDetection_NoFindings(t *testing.T) {
	h := newHarness(t, findings(), time.Second)

	rec, err := h.orch.SubmitDetection(context.Background(), "leaf.jpg")
	require.NoError(t, err)
	assert.NotNil(t, rec.Findings)
	assert.Empty(t, rec.Findings)
	assert.Empty(t, rec.Actions)
	assert.Empty(t, h.relays.cmds)
	assert.Equal(t, models.EventDetectionComplete, h.nextEvent(t).Type)
}

func TestSubmitDetection_EngineFailureIsRecorded(t *testing.T) {
	boom := fmt.Errorf("%w: model crashed", detector.ErrDetectionEngine)
	h := newHarness(t, engineFunc(func(context.Context, []byte) (detector.Result, error) {
		return detector.Result{}, boom
	}), time.Second)

	rec, err := h.orch.SubmitDetection(context.Background(), "leaf.jpg")
	require.Error(t, err)
	assert.ErrorIs(t, err, detector.ErrDetectionEngine)
	var de *DetectionError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "leaf.jpg", de.ImageRef)

	assert.True(t, rec.Failed)
	assert.Equal(t, 0, rec.TotalDetections)
	assert.Contains(t, rec.Error, "model crashed")
	assert.Empty(t, h.relays.cmds)

	e := h.nextEvent(t)
	assert.Equal(t, models.EventDetectionFailed, e.Type)
	require.NotNil(t, e.Detection)
	assert.True(t, e.Detection.Failed)

	st := h.store.Snapshot()
	assert.Equal(t, 0, st.TotalDetections)
	assert.Equal(t, 1, st.FailedDetections)
	assert.Equal(t, 1, h.store.Len())
}

func TestSubmitDetection_Timeout(t *testing.T) {
	h := newHarness(t, engineFunc(func(ctx context.Context, _ []byte) (detector.Result, error) {
		<-ctx.Done()
		return detector.Result{}, fmt.Errorf("%w: %v", detector.ErrDetectionEngine, ctx.Err())
	}), 30*time.Millisecond)

	start := time.Now()
	rec, err := h.orch.SubmitDetection(context.Background(), "leaf.jpg")
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, err, detector.ErrDetectionEngine)
	assert.True(t, rec.Failed)
}

func TestSubmitDetection_UnknownImage(t *testing.T) {
	h := newHarness(t, findings(), time.Second)

	rec, err := h.orch.SubmitDetection(context.Background(), "missing.jpg")
	assert.ErrorIs(t, err, imagestore.ErrNotFound)
	assert.ErrorIs(t, err, detector.ErrDetectionEngine)
	assert.True(t, rec.Failed)
}

func TestSubmitDetection_HardwareFailureDoesNotFailDetection(t *testing.T) {
	h := newHarness(t, findings(
		models.Finding{ClassName: "aphid", Confidence: 0.9},
		models.Finding{ClassName: "beetle", Confidence: 0.9},
	), time.Second)
	h.relays.fail = errors.New("relay board offline")

	rec, err := h.orch.SubmitDetection(context.Background(), "leaf.jpg")
	require.NoError(t, err)
	require.Len(t, rec.Actions, 2)
	for _, a := range rec.Actions {
		assert.Equal(t, models.ActionFailed, a.Outcome)
		assert.Contains(t, a.Reason, "relay board offline")
	}
	assert.Equal(t, "pump", rec.Actions[0].RelayID)
	assert.Equal(t, "trap", rec.Actions[1].RelayID)

	st, err := h.ctrl.State("pump")
	require.NoError(t, err)
	assert.False(t, st.Active)
}

func TestSubmitDetection_ConcurrentRequests(t *testing.T) {
	h := newHarness(t, findings(models.Finding{ClassName: "aphid", Confidence: 0.9}), time.Second)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.orch.SubmitDetection(context.Background(), "leaf.jpg"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("submit: %v", err)
	}

	assert.Equal(t, n, h.store.Snapshot().TotalDetections)
	assert.Equal(t, []string{"pump:true"}, h.relays.cmds, "relay activates once despite concurrent detections")

	seen := map[uint64]bool{}
	for _, e := range h.store.Query(history.Query{}) {
		assert.False(t, seen[e.Seq], "duplicate seq %d", e.Seq)
		seen[e.Seq] = true
	}

	st := h.orch.Status()
	assert.Equal(t, uint64(n), st.Submitted)
	assert.Equal(t, uint64(n), st.Completed)
	assert.Equal(t, int64(1), st.Stages[StageIdle])
}

func TestStatus_ReportsInFlightStage(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	h := newHarness(t, engineFunc(func(ctx context.Context, _ []byte) (detector.Result, error) {
		close(entered)
		<-release
		return detector.Result{}, nil
	}), time.Second)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = h.orch.SubmitDetection(context.Background(), "leaf.jpg")
	}()

	<-entered
	st := h.orch.Status()
	assert.Equal(t, int64(1), st.Stages[StageAwaitingDetection])
	assert.Equal(t, int64(0), st.Stages[StageIdle])

	close(release)
	<-done
	st = h.orch.Status()
	assert.Equal(t, int64(0), st.Stages[StageAwaitingDetection])
	assert.Equal(t, int64(1), st.Stages[StageIdle])
}

func TestSubmitUpload(t *testing.T) {
	var got []byte
	h := newHarness(t, engineFunc(func(_ context.Context, img []byte) (detector.Result, error) {
		got = img
		return detector.Result{}, nil
	}), time.Second)

	rec, err := h.orch.SubmitUpload(context.Background(), "new.png", []byte("fresh"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "1-new.png", rec.ImageRef)
	assert.Equal(t, []byte("fresh"), got)

	_, err = h.orch.SubmitUpload(context.Background(), "empty.png", nil, "image/png")
	assert.Error(t, err)
}

func TestRunAutoDetection(t *testing.T) {
	h := newHarness(t, findings(), time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.orch.RunAutoDetection(ctx, 5*time.Millisecond, "leaf.jpg")
	}()

	deadline := time.Now().Add(2 * time.Second)
	for h.store.Snapshot().TotalDetections < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
	assert.GreaterOrEqual(t, h.store.Snapshot().TotalDetections, 2)
}

func TestRecordActuatorChange_PublishedBeforeDetection(t *testing.T) {
	h := newHarness(t, findings(models.Finding{ClassName: "beetle", Confidence: 0.7}), time.Second)
	h.ctrl.SetObserver(h.orch.RecordActuatorChange)

	_, err := h.orch.SubmitDetection(context.Background(), "leaf.jpg")
	require.NoError(t, err)

	first := h.nextEvent(t)
	assert.Equal(t, models.EventActuatorChanged, first.Type)
	require.NotNil(t, first.Actuator)
	assert.Equal(t, "trap", first.Actuator.RelayID)
	assert.True(t, first.Actuator.Active)

	second := h.nextEvent(t)
	assert.Equal(t, models.EventDetectionComplete, second.Type)
	assert.Greater(t, second.Seq, first.Seq)

	events := h.store.Query(history.Query{Kind: models.EventActuatorChanged})
	assert.Len(t, events, 1)
}

func TestSubmitDetection_ConcurrentEventsArriveInSeqOrder(t *testing.T) {
	h := newHarness(t, findings(
		models.Finding{ClassName: "aphid", Confidence: 0.9},
		models.Finding{ClassName: "beetle", Confidence: 0.9},
	), time.Second)
	h.ctrl.SetObserver(h.orch.RecordActuatorChange)

	const n = 30
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.orch.SubmitDetection(context.Background(), "leaf.jpg")
		}()
	}
	wg.Wait()

	want := h.store.Len()
	var last uint64
	for i := 0; i < want; i++ {
		e := h.nextEvent(t)
		require.Greater(t, e.Seq, last, "event %d out of order", i)
		last = e.Seq
	}
}

func TestRespondToPest_AppliesRulesWithoutImage(t *testing.T) {
	h := newHarness(t, findings(), time.Second)
	loc := &[2]float64{12.5, 3}

	rec, err := h.orch.RespondToPest(context.Background(), " Aphid ", 0.75, loc)
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, models.SourceManual, rec.Source)
	assert.Empty(t, rec.ImageRef)
	assert.Equal(t, loc, rec.Location)
	require.Len(t, rec.Findings, 1)
	assert.Equal(t, "Aphid", rec.Findings[0].ClassName)
	assert.Equal(t, 1, rec.TotalDetections)
	assert.Equal(t, []models.ActionOutcome{{RelayID: "pump", Outcome: models.ActionTriggered}}, rec.Actions)
	assert.Equal(t, []string{"pump:true"}, h.relays.cmds)

	e := h.nextEvent(t)
	assert.Equal(t, models.EventDetectionComplete, e.Type)
	require.NotNil(t, e.Detection)
	assert.Equal(t, rec.ID, e.Detection.ID)

	st := h.store.Snapshot()
	assert.Equal(t, 1, st.TotalDetections)
	assert.Equal(t, 1, st.PestCounts["Aphid"])

	status := h.orch.Status()
	assert.Equal(t, uint64(1), status.Submitted)
	assert.Equal(t, uint64(1), status.Completed)
}

func TestRespondToPest_BelowThresholdRecordsWithoutAction(t *testing.T) {
	h := newHarness(t, findings(), time.Second)

	rec, err := h.orch.RespondToPest(context.Background(), "aphid", 0.3, nil)
	require.NoError(t, err)
	assert.Empty(t, rec.Actions)
	assert.Nil(t, rec.Location)
	assert.Empty(t, h.relays.cmds)
	assert.Equal(t, 1, h.store.Len())
}

func TestRespondToPest_RejectsInvalidReport(t *testing.T) {
	h := newHarness(t, findings(), time.Second)

	cases := []struct {
		name       string
		class      string
		confidence float64
	}{
		{"empty class", "  ", 0.9},
		{"negative confidence", "aphid", -0.1},
		{"confidence above one", "aphid", 1.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.orch.RespondToPest(context.Background(), tc.class, tc.confidence, nil)
			assert.ErrorIs(t, err, ErrInvalidReport)
		})
	}
	assert.Equal(t, 0, h.store.Len())
	assert.Empty(t, h.relays.cmds)
}
