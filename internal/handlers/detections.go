package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Kunal6688/PestDetect/internal/imagestore"
	"github.com/Kunal6688/PestDetect/internal/models"
	"github.com/Kunal6688/PestDetect/internal/orchestrator"

	"github.com/gin-gonic/gin"
)

const (
	maxUploadBytes = 10 << 20 // 10 MB

	errMissingFile   = "missing image file in form field 'file'"
	errEmptyFile     = "uploaded file is empty"
	errFileTooLarge  = "uploaded file exceeds 10 MB"
	errImageNotFound = "image not found"
	errBadImageRef   = "invalid image_ref"
	errDetection     = "detection failed"
	errStoreImage    = "failed to store image"
)

// SubmitByRefRequest points at an image already in the image store.
type SubmitByRefRequest struct {
	ImageRef string `json:"image_ref" binding:"required" example:"2025/leaf-12.jpg"`
}

// @Summary      Submit image upload
// @Description  Stores the uploaded image, runs detection, applies response rules and records the result.
// @Tags         detections
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file  true  "Image file"
// @Success      200   {object}  models.DetectionRecord
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      502   {object}  map[string]interface{}  "error, record"
// @Router       /api/v1/detections [post]
// @Security     BearerAuth
func (h *Handler) submitUpload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errMissingFile})
		return
	}
	if fh.Size == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": errEmptyFile})
		return
	}
	if fh.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": errFileTooLarge})
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.logAndJSONError(c, http.StatusBadRequest, errMissingFile, "upload_open_failed", err)
		return
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		h.logAndJSONError(c, http.StatusBadRequest, errMissingFile, "upload_read_failed", err)
		return
	}

	rec, err := h.services.Detection.SubmitUpload(c.Request.Context(), fh.Filename, data, fh.Header.Get("Content-Type"))
	h.respondDetection(c, rec, err)
}

// @Summary      Submit image reference
// @Description  Runs detection on an image already present in the image store.
// @Tags         detections
// @Accept       json
// @Produce      json
// @Param        body  body      SubmitByRefRequest  true  "Image reference"
// @Success      200   {object}  models.DetectionRecord
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]interface{}  "error, record"
// @Failure      502   {object}  map[string]interface{}  "error, record"
// @Router       /api/v1/detections/ref [post]
// @Security     BearerAuth
func (h *Handler) submitByRef(c *gin.Context) {
	var req SubmitByRefRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	ref := strings.TrimSpace(req.ImageRef)
	if ref == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errBadImageRef})
		return
	}

	rec, err := h.services.Detection.SubmitDetection(c.Request.Context(), ref)
	h.respondDetection(c, rec, err)
}

// respondDetection maps pipeline outcomes to HTTP. A failed detection is
// still recorded, so its record is returned alongside the error.
func (h *Handler) respondDetection(c *gin.Context, rec models.DetectionRecord, err error) {
	if err == nil {
		c.JSON(http.StatusOK, rec)
		return
	}

	var detErr *orchestrator.DetectionError
	switch {
	case errors.Is(err, imagestore.ErrNotFound):
		h.failedDetectionJSON(c, http.StatusNotFound, errImageNotFound, "detection_image_not_found", rec, err)
	case errors.Is(err, imagestore.ErrInvalidRef):
		h.failedDetectionJSON(c, http.StatusBadRequest, errBadImageRef, "detection_bad_image_ref", rec, err)
	case errors.As(err, &detErr):
		h.failedDetectionJSON(c, http.StatusBadGateway, fmt.Sprintf("%s: %s", errDetection, rec.Error), "detection_request_failed", rec, err)
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, errStoreImage, "detection_submit_failed", err)
	}
}

// failedDetectionJSON answers with userMsg plus the failed record when the
// pipeline wrote one to history.
func (h *Handler) failedDetectionJSON(c *gin.Context, code int, userMsg, logKey string, rec models.DetectionRecord, err error) {
	if h.log != nil {
		h.log.Infow(logKey, "err", err, "image_ref", rec.ImageRef, "record_id", rec.ID)
	}
	body := gin.H{"error": userMsg}
	if rec.ID != "" {
		body["record"] = rec
	}
	c.JSON(code, body)
}
