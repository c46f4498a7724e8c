package handlers

import (
	"errors"
	"net/http"

	"github.com/Kunal6688/PestDetect/internal/actuator"
	"github.com/Kunal6688/PestDetect/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

const (
	errUnknownRelay  = "unknown relay"
	errRelayHardware = "relay hardware did not respond"
	errRelayCommand  = "relay command failed"
)

// relayErrorStatus maps controller errors to HTTP codes.
func relayErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, actuator.ErrUnknownRelay):
		return http.StatusNotFound, errUnknownRelay
	case errors.Is(err, actuator.ErrHardware):
		return http.StatusBadGateway, errRelayHardware
	default:
		return http.StatusInternalServerError, errRelayCommand
	}
}

// @Summary      Actuator states
// @Description  Current state of every relay keyed by relay id.
// @Tags         actuators
// @Produce      json
// @Success      200  {object}  map[string]models.ActuatorState
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/actuators [get]
// @Security     BearerAuth
func (h *Handler) getActuators(c *gin.Context) {
	states := h.services.Actuators.ActuatorStates()
	c.JSON(http.StatusOK, lo.KeyBy(states, func(s models.ActuatorState) string {
		return s.RelayID
	}))
}

// @Summary      Trigger relay
// @Description  Manual trigger. Cooldown and already-active suppression apply; a suppressed trigger is not an error.
// @Tags         actuators
// @Produce      json
// @Param        id   path      string  true  "Relay id"
// @Success      200  {object}  actuator.Result
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/actuators/{id}/trigger [post]
// @Security     BearerAuth
func (h *Handler) triggerActuator(c *gin.Context) {
	id := c.Param("id")
	res, err := h.services.Actuators.Trigger(c.Request.Context(), id)
	if err != nil {
		code, msg := relayErrorStatus(err)
		h.logAndJSONError(c, code, msg, "relay_trigger_failed", err, "relay", id)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary      Release relay
// @Tags         actuators
// @Produce      json
// @Param        id   path      string  true  "Relay id"
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/actuators/{id}/release [post]
// @Security     BearerAuth
func (h *Handler) releaseActuator(c *gin.Context) {
	id := c.Param("id")
	if err := h.services.Actuators.Release(c.Request.Context(), id); err != nil {
		code, msg := relayErrorStatus(err)
		h.logAndJSONError(c, code, msg, "relay_release_failed", err, "relay", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusReleased, "relay_id": id})
}

// @Summary      Release all relays
// @Description  Emergency stop: switches every active relay off.
// @Tags         actuators
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/actuators/release-all [post]
// @Security     BearerAuth
func (h *Handler) releaseAll(c *gin.Context) {
	if err := h.services.Actuators.ReleaseAll(c.Request.Context()); err != nil {
		code, msg := relayErrorStatus(err)
		h.logAndJSONError(c, code, msg, "relay_release_all_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusReleased})
}
