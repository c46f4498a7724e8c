package actuator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Kunal6688/PestDetect/internal/hardware"
	"github.com/Kunal6688/PestDetect/internal/logger"
	"github.com/Kunal6688/PestDetect/internal/models"
)

// Suppression reasons reported in Result.Reason.
const (
	ReasonAlreadyActive = "already_active"
	ReasonCooldown      = "cooldown"
)

const defaultCommandTimeout = 3 * time.Second

// RelaySpec is the static configuration of one relay.
type RelaySpec struct {
	ID          string
	Cooldown    time.Duration
	AutoRelease time.Duration // zero keeps the relay on until released
}

// Result describes what Trigger did. A suppressed trigger is not an error.
type Result struct {
	RelayID   string               `json:"relay_id"`
	Triggered bool                 `json:"triggered"`
	Reason    string               `json:"reason,omitempty"`
	State     models.ActuatorState `json:"state"`
}

type relay struct {
	mu    sync.Mutex
	state models.ActuatorState
}

// Controller owns relay state. Each relay has its own lock, held across the
// hardware command so that state and device never diverge.
type Controller struct {
	hw             hardware.RelaySwitch
	relays         map[string]*relay
	order          []string
	commandTimeout time.Duration
	now            func() time.Time
	log            *logger.Logger

	obsMu    sync.RWMutex
	observer func(models.ActuatorState)
}

func NewController(hw hardware.RelaySwitch, specs []RelaySpec, commandTimeout time.Duration, log *logger.Logger) *Controller {
	if log == nil {
		log = logger.Nop()
	}
	if commandTimeout <= 0 {
		commandTimeout = defaultCommandTimeout
	}
	c := &Controller{
		hw:             hw,
		relays:         make(map[string]*relay, len(specs)),
		order:          make([]string, 0, len(specs)),
		commandTimeout: commandTimeout,
		now:            time.Now,
		log:            log,
	}
	for _, s := range specs {
		c.relays[s.ID] = &relay{state: models.ActuatorState{
			RelayID:     s.ID,
			Cooldown:    s.Cooldown,
			AutoRelease: s.AutoRelease,
		}}
		c.order = append(c.order, s.ID)
	}
	return c
}

// SetObserver registers fn to receive every state transition. fn runs while
// the relay lock is held and must not call back into the controller.
func (c *Controller) SetObserver(fn func(models.ActuatorState)) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	c.observer = fn
}

func (c *Controller) notify(st models.ActuatorState) {
	c.obsMu.RLock()
	fn := c.observer
	c.obsMu.RUnlock()
	if fn != nil {
		fn(st)
	}
}

func (c *Controller) relay(id string) (*relay, error) {
	r, ok := c.relays[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRelay, id)
	}
	return r, nil
}

func (c *Controller) command(ctx context.Context, id string, on bool) error {
	cctx, cancel := context.WithTimeout(ctx, c.commandTimeout)
	defer cancel()
	if err := c.hw.SetRelay(cctx, id, on); err != nil {
		c.log.Errorw("relay_command_failed", "relay", id, "on", on, "err", err)
		return &HardwareError{RelayID: id, On: on, Err: err}
	}
	return nil
}

// releaseDue reports whether an active relay has passed its auto-release deadline.
func releaseDue(st models.ActuatorState, now time.Time) bool {
	return st.Active && !st.ReleaseAt.IsZero() && !now.Before(st.ReleaseAt)
}

// releaseLocked switches the relay off and clears activation. r.mu must be held.
func (c *Controller) releaseLocked(ctx context.Context, r *relay) error {
	if err := c.command(ctx, r.state.RelayID, false); err != nil {
		return err
	}
	r.state.Active = false
	r.state.ReleaseAt = time.Time{}
	c.notify(r.state)
	return nil
}

// Trigger activates the relay unless it is active or cooling down.
func (c *Controller) Trigger(ctx context.Context, id string) (Result, error) {
	r, err := c.relay(id)
	if err != nil {
		return Result{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := c.now()
	if releaseDue(r.state, now) {
		if err := c.releaseLocked(ctx, r); err != nil {
			return Result{}, err
		}
		c.log.Infow("relay_auto_released", "relay", id, "lazy", true)
	}

	switch {
	case r.state.Active:
		r.state.LastAttempt = now
		c.log.Debugw("relay_trigger_suppressed", "relay", id, "reason", ReasonAlreadyActive)
		return Result{RelayID: id, Reason: ReasonAlreadyActive, State: r.state}, nil
	case !r.state.LastTriggered.IsZero() && now.Sub(r.state.LastTriggered) < r.state.Cooldown:
		r.state.LastAttempt = now
		c.log.Debugw("relay_trigger_suppressed", "relay", id, "reason", ReasonCooldown,
			"remaining", r.state.Cooldown-now.Sub(r.state.LastTriggered))
		return Result{RelayID: id, Reason: ReasonCooldown, State: r.state}, nil
	}

	if err := c.command(ctx, id, true); err != nil {
		return Result{}, err
	}

	r.state.Active = true
	r.state.LastTriggered = now
	r.state.LastAttempt = now
	r.state.ReleaseAt = time.Time{}
	if r.state.AutoRelease > 0 {
		r.state.ReleaseAt = now.Add(r.state.AutoRelease)
	}
	c.notify(r.state)
	c.log.Infow("relay_triggered", "relay", id, "release_at", r.state.ReleaseAt)
	return Result{RelayID: id, Triggered: true, State: r.state}, nil
}

// Release switches the relay off. Releasing an inactive relay is a no-op.
func (c *Controller) Release(ctx context.Context, id string) error {
	r, err := c.relay(id)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.state.Active {
		return nil
	}
	if err := c.releaseLocked(ctx, r); err != nil {
		return err
	}
	c.log.Infow("relay_released", "relay", id)
	return nil
}

// ReleaseAll switches every active relay off and reports all failures.
func (c *Controller) ReleaseAll(ctx context.Context) error {
	var errs []error
	for _, id := range c.order {
		if err := c.Release(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Sweep performs every auto-release whose deadline has passed and returns
// how many relays were switched off. Failed releases are retried next sweep.
func (c *Controller) Sweep(ctx context.Context) int {
	released := 0
	for _, id := range c.order {
		r := c.relays[id]
		r.mu.Lock()
		if releaseDue(r.state, c.now()) {
			if err := c.releaseLocked(ctx, r); err != nil {
				c.log.Warnw("relay_auto_release_failed", "relay", id, "err", err)
			} else {
				released++
				c.log.Infow("relay_auto_released", "relay", id)
			}
		}
		r.mu.Unlock()
	}
	return released
}

// Run sweeps at the given interval until ctx is canceled.
func (c *Controller) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Sweep(ctx)
		}
	}
}

// State returns a copy of one relay's state.
func (c *Controller) State(id string) (models.ActuatorState, error) {
	r, err := c.relay(id)
	if err != nil {
		return models.ActuatorState{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, nil
}

// States returns a copy of every relay's state keyed by relay id.
func (c *Controller) States() map[string]models.ActuatorState {
	out := make(map[string]models.ActuatorState, len(c.order))
	for _, id := range c.order {
		r := c.relays[id]
		r.mu.Lock()
		out[id] = r.state
		r.mu.Unlock()
	}
	return out
}

// IDs lists configured relays in configuration order.
func (c *Controller) IDs() []string {
	return append([]string(nil), c.order...)
}
