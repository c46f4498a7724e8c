package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Kunal6688/PestDetect/internal/history"

	"github.com/gin-gonic/gin"
)

const (
	errSinceInvalid = "invalid 'since' time; use RFC3339 or YYYY-MM-DD"
	errExport       = "failed to build export"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// parseHistoryQuery reads since, limit and kind. It writes a 400 and
// returns false on bad input.
func parseHistoryQuery(c *gin.Context) (history.Query, bool) {
	var q history.Query
	if s := c.Query("since"); s != "" {
		since, err := parseQueryTime(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errSinceInvalid})
			return q, false
		}
		q.Since = since
	}
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidLimit})
			return q, false
		}
		q.Limit = n
	}
	q.Kind = strings.ToLower(strings.TrimSpace(c.Query("kind")))
	return q, true
}

// @Summary      Recent history
// @Description  Retained events newest first. History is bounded; older events are only in the archive.
// @Tags         history
// @Produce      json
// @Param        since  query   string  false  "Only events at or after this time (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD')"
// @Param        limit  query   int     false  "Maximum number of events"
// @Param        kind   query   string  false  "Event type"  Enums(sensor_update,detection_complete,detection_failed,actuator_changed)
// @Success      200    {object}  map[string]interface{}  "count, events"
// @Failure      400    {object}  map[string]string
// @Failure      401    {object}  map[string]string
// @Router       /api/v1/history [get]
// @Security     BearerAuth
func (h *Handler) getHistory(c *gin.Context) {
	q, ok := parseHistoryQuery(c)
	if !ok {
		return
	}
	events := h.services.Monitoring.History(q)
	c.JSON(http.StatusOK, gin.H{
		"count":  len(events),
		"events": events,
	})
}

// @Summary      Export history
// @Description  Retained history as an XLSX workbook with one sheet per event kind.
// @Tags         history
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        since  query   string  false  "Only events at or after this time"
// @Param        limit  query   int     false  "Maximum number of events"
// @Success      200
// @Failure      400    {object}  map[string]string
// @Failure      401    {object}  map[string]string
// @Failure      500    {object}  map[string]string
// @Router       /api/v1/history/export [get]
// @Security     BearerAuth
func (h *Handler) exportHistory(c *gin.Context) {
	q, ok := parseHistoryQuery(c)
	if !ok {
		return
	}
	data, err := buildHistoryWorkbook(h.services.Monitoring.History(q))
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errExport, "history_export_failed", err)
		return
	}
	filename := "pest-history-" + time.Now().UTC().Format("20060102-150405") + ".xlsx"
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, xlsxContentType, data)
}

// @Summary      Statistics
// @Description  Cumulative detection totals, pest counts, confidence range and recent activity.
// @Tags         history
// @Produce      json
// @Success      200  {object}  models.Statistics
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/statistics [get]
// @Security     BearerAuth
func (h *Handler) getStatistics(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Monitoring.Statistics())
}
