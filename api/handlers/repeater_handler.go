package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"example.com/backstage/services/repeater/internal/models"
	"example.com/backstage/services/repeater/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// deviceKeyHeader carries the per-device ingestion key
const deviceKeyHeader = "X-Device-Key"

// RepeaterHandler handles repeater telemetry requests
type RepeaterHandler struct {
	service service.Service
	log     *logrus.Logger
}

// NewRepeaterHandler creates a new RepeaterHandler instance
func NewRepeaterHandler(svc service.Service, log *logrus.Logger) *RepeaterHandler {
	return &RepeaterHandler{
		service: svc,
		log:     log,
	}
}

// IngestActivity handles incoming transmit/receive events from repeaters
func (h *RepeaterHandler) IngestActivity(c *gin.Context) {
	var payload models.ActivityPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.log.WithError(err).Warn("Invalid activity format")
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid activity format",
		})
		return
	}

	if err := h.service.AuthorizeDevice(c.Request.Context(), payload.Device, c.GetHeader(deviceKeyHeader)); err != nil {
		h.respondError(c, err, "Failed to authorize device")
		return
	}

	result, err := h.service.IngestActivity(c.Request.Context(), &payload, time.Now().UTC())
	if err != nil {
		h.respondError(c, err, "Failed to ingest activity")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":         "success",
		"activity_id":    result.ActivityID,
		"timestamp":      result.Timestamp,
		"device_created": result.DeviceCreated,
	})
}

// GetStatus returns derived health snapshots for one device or the fleet
func (h *RepeaterHandler) GetStatus(c *gin.Context) {
	views, err := h.service.Status(c.Request.Context(), c.Query("device"), time.Now().UTC())
	if err != nil {
		h.respondError(c, err, "Failed to get status")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":     len(views),
		"repeaters": views,
	})
}

// GetHistory returns the correlated relay history for one device
func (h *RepeaterHandler) GetHistory(c *gin.Context) {
	device := c.Query("device")
	if device == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "device query parameter is required",
		})
		return
	}

	limit := intQuery(c, "limit", 0)
	offset := intQuery(c, "offset", 0)

	view, err := h.service.History(c.Request.Context(), device, limit, offset)
	if err != nil {
		h.respondError(c, err, "Failed to get history")
		return
	}

	c.JSON(http.StatusOK, view)
}

// GetMetrics returns time-windowed statistics
func (h *RepeaterHandler) GetMetrics(c *gin.Context) {
	view, err := h.service.Metrics(c.Request.Context(), c.Query("device"), c.Query("period"), time.Now().UTC())
	if err != nil {
		h.respondError(c, err, "Failed to get metrics")
		return
	}

	c.JSON(http.StatusOK, view)
}

// ListActivities returns a newest-first page of raw events
func (h *RepeaterHandler) ListActivities(c *gin.Context) {
	limit := intQuery(c, "limit", 0)
	offset := intQuery(c, "offset", 0)

	page, err := h.service.ListActivities(c.Request.Context(), c.Query("device"), limit, offset)
	if err != nil {
		h.respondError(c, err, "Failed to list activities")
		return
	}

	c.JSON(http.StatusOK, page)
}

// respondError maps service errors onto HTTP responses
func (h *RepeaterHandler) respondError(c *gin.Context, err error, logMsg string) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Validation failed",
			"fields": verr.Fields,
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrDeviceNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Device not found",
		})
	case errors.Is(err, service.ErrInvalidDeviceKey):
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Invalid device key",
		})
	case errors.Is(err, service.ErrDeviceDisabled):
		c.JSON(http.StatusForbidden, gin.H{
			"error": "Device disabled",
		})
	default:
		h.log.WithError(err).Error(logMsg)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": logMsg,
		})
	}
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
