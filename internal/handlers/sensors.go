package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// @Summary      Current sensor readings
// @Tags         sensors
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, sensors"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/sensors [get]
// @Security     BearerAuth
func (h *Handler) getSensors(c *gin.Context) {
	readings := h.services.Monitoring.Sensors()
	c.JSON(http.StatusOK, gin.H{
		"count":   len(readings),
		"sensors": readings,
	})
}

// @Summary      Poll sensors now
// @Description  Reads every sensor immediately; results are recorded and broadcast like scheduled polls.
// @Tags         sensors
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, sensors"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/sensors/poll [post]
// @Security     BearerAuth
func (h *Handler) pollSensors(c *gin.Context) {
	readings := h.services.Monitoring.PollSensors(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"count":   len(readings),
		"sensors": readings,
	})
}
