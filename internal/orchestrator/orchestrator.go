package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Kunal6688/PestDetect/internal/actuator"
	"github.com/Kunal6688/PestDetect/internal/detector"
	"github.com/Kunal6688/PestDetect/internal/imagestore"
	"github.com/Kunal6688/PestDetect/internal/logger"
	"github.com/Kunal6688/PestDetect/internal/models"

	"github.com/google/uuid"
)

// Stages of one detection request.
const (
	StageIdle              = "idle"
	StageAwaitingDetection = "awaiting_detection"
	StageEvaluating        = "evaluating"
	StageActing            = "acting"
	StageRecorded          = "recorded"
	StageFailed            = "failed"
)

var inFlightStages = []string{StageAwaitingDetection, StageEvaluating, StageActing, StageRecorded, StageFailed}

const defaultDetectionTimeout = 15 * time.Second

// DetectionError reports that no findings could be obtained for an image.
// It matches detector.ErrDetectionEngine and unwraps to the cause.
type DetectionError struct {
	ImageRef string
	Err      error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("detection for %q failed: %v", e.ImageRef, e.Err)
}

func (e *DetectionError) Unwrap() error { return e.Err }

func (e *DetectionError) Is(target error) bool { return target == detector.ErrDetectionEngine }

// Policy turns a record into relay intents.
type Policy interface {
	Evaluate(rec models.DetectionRecord) []string
}

// Actuators triggers relays.
type Actuators interface {
	Trigger(ctx context.Context, relayID string) (actuator.Result, error)
}

// Recorder appends an event to history, publishes it and returns the
// stamped copy.
type Recorder interface {
	Record(e models.Event) models.Event
}

// ErrInvalidReport rejects a pest report without a class or with a
// confidence outside [0, 1].
var ErrInvalidReport = errors.New("invalid pest report")

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Engine    detector.Engine
	Images    imagestore.Store
	Policy    Policy
	Actuators Actuators
	Events    Recorder
	Timeout   time.Duration
	Log       *logger.Logger
}

// Status is a point-in-time view of pipeline activity.
type Status struct {
	Stages    map[string]int64 `json:"stages"`
	Submitted uint64           `json:"submitted"`
	Completed uint64           `json:"completed"`
	Failed    uint64           `json:"failed"`
}

// Orchestrator runs detection requests through
// awaiting_detection -> evaluating -> acting -> recorded, or -> failed.
// Requests run concurrently; each store guards its own state.
type Orchestrator struct {
	engine    detector.Engine
	images    imagestore.Store
	policy    Policy
	actuators Actuators
	events    Recorder
	timeout   time.Duration
	now       func() time.Time
	log       *logger.Logger

	stages    map[string]*atomic.Int64
	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
}

func New(d Deps) *Orchestrator {
	if d.Timeout <= 0 {
		d.Timeout = defaultDetectionTimeout
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	o := &Orchestrator{
		engine:    d.Engine,
		images:    d.Images,
		policy:    d.Policy,
		actuators: d.Actuators,
		events:    d.Events,
		timeout:   d.Timeout,
		now:       time.Now,
		log:       d.Log,
		stages:    make(map[string]*atomic.Int64, len(inFlightStages)),
	}
	for _, s := range inFlightStages {
		o.stages[s] = new(atomic.Int64)
	}
	return o
}

func (o *Orchestrator) enter(stage string) { o.stages[stage].Add(1) }
func (o *Orchestrator) leave(stage string) { o.stages[stage].Add(-1) }

// SubmitDetection runs one image through the pipeline. On engine failure the
// failed record is still recorded and returned along with a *DetectionError.
func (o *Orchestrator) SubmitDetection(ctx context.Context, imageRef string) (models.DetectionRecord, error) {
	o.submitted.Add(1)
	id := uuid.NewString()

	o.enter(StageAwaitingDetection)
	findings, err := o.detect(ctx, imageRef)
	o.leave(StageAwaitingDetection)
	if err != nil {
		return o.fail(id, imageRef, err)
	}

	rec := models.DetectionRecord{
		ID:              id,
		Timestamp:       o.now().UTC(),
		ImageRef:        imageRef,
		Findings:        findings,
		TotalDetections: len(findings),
	}

	o.enter(StageEvaluating)
	intents := o.policy.Evaluate(rec)
	o.leave(StageEvaluating)

	o.enter(StageActing)
	// acting is not abandoned when the caller goes away
	rec.Actions = o.act(context.WithoutCancel(ctx), intents)
	o.leave(StageActing)

	o.enter(StageRecorded)
	o.record(models.Event{Type: models.EventDetectionComplete, Detection: &rec})
	o.leave(StageRecorded)

	o.completed.Add(1)
	o.log.Infow("detection_complete", "detection_id", id, "image_ref", imageRef,
		"findings", rec.TotalDetections, "intents", intents)
	return rec, nil
}

func (o *Orchestrator) detect(ctx context.Context, imageRef string) ([]models.Finding, error) {
	dctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	img, err := o.images.Load(dctx, imageRef)
	if err != nil {
		return nil, fmt.Errorf("load image: %w", err)
	}
	res, err := o.engine.Detect(dctx, img)
	if err != nil {
		return nil, err
	}
	if res.Findings == nil {
		return []models.Finding{}, nil
	}
	return res.Findings, nil
}

func (o *Orchestrator) act(ctx context.Context, intents []string) []models.ActionOutcome {
	if len(intents) == 0 {
		return nil
	}
	out := make([]models.ActionOutcome, 0, len(intents))
	for _, relayID := range intents {
		res, err := o.actuators.Trigger(ctx, relayID)
		switch {
		case err != nil:
			o.log.Errorw("relay_action_failed", "relay", relayID, "err", err)
			out = append(out, models.ActionOutcome{RelayID: relayID, Outcome: models.ActionFailed, Reason: err.Error()})
		case res.Triggered:
			out = append(out, models.ActionOutcome{RelayID: relayID, Outcome: models.ActionTriggered})
		default:
			out = append(out, models.ActionOutcome{RelayID: relayID, Outcome: models.ActionSuppressed, Reason: res.Reason})
		}
	}
	return out
}

func (o *Orchestrator) fail(id, imageRef string, cause error) (models.DetectionRecord, error) {
	o.enter(StageFailed)
	defer o.leave(StageFailed)

	rec := models.DetectionRecord{
		ID:        id,
		Timestamp: o.now().UTC(),
		ImageRef:  imageRef,
		Findings:  []models.Finding{},
		Failed:    true,
		Error:     cause.Error(),
	}
	o.record(models.Event{Type: models.EventDetectionFailed, Detection: &rec})
	o.failed.Add(1)
	o.log.Errorw("detection_failed", "detection_id", id, "image_ref", imageRef, "err", cause)
	return rec, &DetectionError{ImageRef: imageRef, Err: cause}
}

func (o *Orchestrator) record(e models.Event) {
	if o.events != nil {
		o.events.Record(e)
	}
}

// RecordActuatorChange records and publishes an actuator_changed event. It is
// meant to be installed as the actuator controller's observer.
func (o *Orchestrator) RecordActuatorChange(st models.ActuatorState) {
	o.record(models.Event{Type: models.EventActuatorChanged, Actuator: &st})
}

// RespondToPest applies the response rules to a pest reported without an
// image, e.g. by a field operator. The single-finding record goes through the
// evaluating, acting and recorded stages like an image detection.
func (o *Orchestrator) RespondToPest(ctx context.Context, className string, confidence float64, location *[2]float64) (models.DetectionRecord, error) {
	className = strings.TrimSpace(className)
	if className == "" {
		return models.DetectionRecord{}, fmt.Errorf("%w: pest type is required", ErrInvalidReport)
	}
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return models.DetectionRecord{}, fmt.Errorf("%w: confidence %v outside [0, 1]", ErrInvalidReport, confidence)
	}
	o.submitted.Add(1)

	rec := models.DetectionRecord{
		ID:              uuid.NewString(),
		Timestamp:       o.now().UTC(),
		Source:          models.SourceManual,
		Location:        location,
		Findings:        []models.Finding{{ClassName: className, Confidence: confidence}},
		TotalDetections: 1,
	}

	o.enter(StageEvaluating)
	intents := o.policy.Evaluate(rec)
	o.leave(StageEvaluating)

	o.enter(StageActing)
	rec.Actions = o.act(context.WithoutCancel(ctx), intents)
	o.leave(StageActing)

	o.enter(StageRecorded)
	o.record(models.Event{Type: models.EventDetectionComplete, Detection: &rec})
	o.leave(StageRecorded)

	o.completed.Add(1)
	o.log.Infow("pest_report_handled", "detection_id", rec.ID, "class", className,
		"confidence", confidence, "intents", intents)
	return rec, nil
}

// SubmitUpload stores the image and runs it through the pipeline.
func (o *Orchestrator) SubmitUpload(ctx context.Context, filename string, data []byte, contentType string) (models.DetectionRecord, error) {
	if len(data) == 0 {
		return models.DetectionRecord{}, errors.New("empty upload")
	}
	ref, err := o.images.Save(ctx, filename, data, contentType)
	if err != nil {
		return models.DetectionRecord{}, fmt.Errorf("store image: %w", err)
	}
	return o.SubmitDetection(ctx, ref)
}

// RunAutoDetection submits imageRef every interval until ctx is canceled.
func (o *Orchestrator) RunAutoDetection(ctx context.Context, interval time.Duration, imageRef string) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := o.SubmitDetection(ctx, imageRef); err != nil {
				o.log.Warnw("auto_detection_failed", "image_ref", imageRef, "err", err)
			}
		}
	}
}

// Status reports in-flight requests per stage and lifetime counters.
func (o *Orchestrator) Status() Status {
	st := Status{
		Stages:    make(map[string]int64, len(o.stages)+1),
		Submitted: o.submitted.Load(),
		Completed: o.completed.Load(),
		Failed:    o.failed.Load(),
	}
	var busy int64
	for name, g := range o.stages {
		n := g.Load()
		st.Stages[name] = n
		busy += n
	}
	if busy == 0 {
		st.Stages[StageIdle] = 1
	} else {
		st.Stages[StageIdle] = 0
	}
	return st
}
