package service

import (
	"context"
	"slices"
	"strings"

	"github.com/Kunal6688/PestDetect/internal/actuator"
	"github.com/Kunal6688/PestDetect/internal/models"

	"github.com/samber/lo"
)

// RelayController is the subset of actuator.Controller the API drives.
type RelayController interface {
	Trigger(ctx context.Context, relayID string) (actuator.Result, error)
	Release(ctx context.Context, relayID string) error
	ReleaseAll(ctx context.Context) error
	States() map[string]models.ActuatorState
}

// ActuatorService exposes manual relay control. Manual triggers go through
// the same debounce as policy-driven ones.
type ActuatorService struct {
	relays RelayController
}

func NewActuatorService(relays RelayController) *ActuatorService {
	return &ActuatorService{relays: relays}
}

// ActuatorStates returns every relay ordered by id.
func (s *ActuatorService) ActuatorStates() []models.ActuatorState {
	states := lo.Values(s.relays.States())
	slices.SortFunc(states, func(a, b models.ActuatorState) int {
		return strings.Compare(a.RelayID, b.RelayID)
	})
	return states
}

func (s *ActuatorService) Trigger(ctx context.Context, relayID string) (actuator.Result, error) {
	relayID = strings.TrimSpace(relayID)
	if relayID == "" {
		return actuator.Result{}, actuator.ErrUnknownRelay
	}
	// a dropped HTTP request must not leave the relay half-switched
	return s.relays.Trigger(context.WithoutCancel(ctx), relayID)
}

func (s *ActuatorService) Release(ctx context.Context, relayID string) error {
	relayID = strings.TrimSpace(relayID)
	if relayID == "" {
		return actuator.ErrUnknownRelay
	}
	return s.relays.Release(context.WithoutCancel(ctx), relayID)
}

func (s *ActuatorService) ReleaseAll(ctx context.Context) error {
	return s.relays.ReleaseAll(context.WithoutCancel(ctx))
}
