package handlers

import (
	"errors"
	"net/http"

	"github.com/Kunal6688/PestDetect/internal/orchestrator"

	"github.com/gin-gonic/gin"
)

// defaultReportConfidence applies when a report carries no confidence.
const defaultReportConfidence = 0.5

const errPestResponse = "failed to apply pest response"

// PestReportRequest reports a pest seen in the field without an image.
type PestReportRequest struct {
	PestType   string      `json:"pest_type" binding:"required" example:"aphid"`
	Confidence *float64    `json:"confidence" example:"0.9"`
	Location   *[2]float64 `json:"location"`
}

// @Summary      Respond to a reported pest
// @Description  Applies the response rules to a pest reported without an image and records the result.
// @Tags         system
// @Accept       json
// @Produce      json
// @Param        body  body      PestReportRequest  true  "Pest report"
// @Success      200   {object}  models.DetectionRecord
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /api/v1/system/pest-response [post]
// @Security     BearerAuth
func (h *Handler) pestResponse(c *gin.Context) {
	var req PestReportRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	confidence := defaultReportConfidence
	if req.Confidence != nil {
		confidence = *req.Confidence
	}

	rec, err := h.services.Detection.RespondToPest(c.Request.Context(), req.PestType, confidence, req.Location)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, rec)
	case errors.Is(err, orchestrator.ErrInvalidReport):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, errPestResponse, "pest_response_failed", err,
			"pest_type", req.PestType)
	}
}
