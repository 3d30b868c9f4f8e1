package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-skywatch/objects"
	"go-skywatch/radar"
	"go-skywatch/types"
)

// objectErrorStatus maps workflow errors to HTTP status codes.
func objectErrorStatus(err error) int {
	switch {
	case errors.Is(err, objects.ErrInvalidKind),
		errors.Is(err, objects.ErrInvalidObjectData),
		errors.Is(err, objects.ErrMissingID):
		return http.StatusBadRequest
	case errors.Is(err, objects.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// CreateObject creates (or delete-flags) an object, persists it and emits
// the change to all subscribers.
func CreateObject(c *gin.Context, svc *objects.Service) {
	var req types.CreateObjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data, err := svc.CreateAndEmit(c.Request.Context(), req)
	if err != nil {
		c.JSON(objectErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, data)
}

// SetTemporaryObject broadcasts an object without persisting it.
func SetTemporaryObject(c *gin.Context, svc *objects.Service) {
	var req types.CreateObjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := svc.SetTemporaryAndEmit(req); err != nil {
		c.JSON(objectErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// ClassifyObject runs the suggest transition and the notification flow.
// Success means the object was validated and broadcast; enrichment and
// notification outcomes do not affect the response.
func ClassifyObject(c *gin.Context, svc *objects.Service) {
	var req types.ClassifyObjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := svc.ClassifyAndNotify(c.Request.Context(), req); err != nil {
		c.JSON(objectErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// TriggerObjectChange fetches a stored object and rebroadcasts it.
func TriggerObjectChange(c *gin.Context, svc *objects.Service) {
	data, err := svc.GetAndEmit(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(objectErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, data)
}

// GetRadars lists the static radar station registry.
func GetRadars(c *gin.Context) {
	c.JSON(http.StatusOK, radar.Radars)
}

// CreateRadarPoint creates a manual radar detection point.
func CreateRadarPoint(c *gin.Context, svc *objects.Service) {
	var req types.CreateRadarPointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := svc.CreateRadarPoint(req)
	c.JSON(http.StatusOK, gin.H{"success": true, "id": id})
}
