package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	statusOK       = "ok"
	statusReleased = "released"

	errInvalidBodyPref = "invalid body: "
	errInvalidLimit    = "invalid 'limit'; use a non-negative integer"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// bindJSONOrBadRequest binds the body into dst and writes a 400 on failure.
// It returns false when the request has already been answered.
func (h *Handler) bindJSONOrBadRequest(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if h.log != nil {
			h.log.Infow("bad_request_body", "path", c.FullPath(), "err", err)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return false
	}
	return true
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      System status
// @Description  Pipeline stage gauges, subscriber and archive counters, relay and sensor counts.
// @Tags         system
// @Produce      json
// @Success      200  {object}  service.SystemStatus
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/system/status [get]
// @Security     BearerAuth
func (h *Handler) systemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Monitoring.SystemStatus())
}
