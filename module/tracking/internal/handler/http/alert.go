package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/racanix/location-foreground-service/module/tracking/domain"
	"github.com/racanix/location-foreground-service/module/tracking/service"
)

type alertService interface {
	List(ctx context.Context) ([]domain.Alert, error)
	Add(ctx context.Context, alert domain.Alert) (bool, error)
	Get(ctx context.Context, id string) (*domain.Alert, error)
	Remove(ctx context.Context, id string) (bool, error)
	ClearAll(ctx context.Context) error
}

type alertRequest struct {
	ID             string                 `json:"id"`
	Type           string                 `json:"type"`
	TargetLocation *domain.TargetLocation `json:"targetLocation"`
}

type AlertHandler struct {
	alertSvc alertService
}

func NewAlertHandler(alertSvc alertService) *AlertHandler {
	return &AlertHandler{alertSvc: alertSvc}
}

func (h *AlertHandler) Register(r *gin.RouterGroup) {
	r.GET("/alerts", h.List)
	r.POST("/alerts", h.Create)
	r.DELETE("/alerts", h.ClearAll)
	r.GET("/alerts/:alert_id", h.Get)
	r.DELETE("/alerts/:alert_id", h.Delete)
}

func (h *AlertHandler) List(c *gin.Context) {
	alerts, err := h.alertSvc.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch alerts"})
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (h *AlertHandler) Create(c *gin.Context) {
	var req alertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if req.TargetLocation != nil {
		if err := req.TargetLocation.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	alert := domain.Alert{
		ID:             strings.TrimSpace(req.ID),
		Type:           domain.ParseAlertType(strings.ToUpper(req.Type)),
		TargetLocation: req.TargetLocation,
	}
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}

	added, err := h.alertSvc.Add(c.Request.Context(), alert)
	if err != nil {
		if errors.Is(err, service.ErrAlertInvalid) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store alert"})
		return
	}
	if !added {
		c.JSON(http.StatusConflict, gin.H{"error": "alert already exists"})
		return
	}

	c.JSON(http.StatusCreated, alert)
}

func (h *AlertHandler) Get(c *gin.Context) {
	alert, err := h.alertSvc.Get(c.Request.Context(), c.Param("alert_id"))
	if err != nil {
		if errors.Is(err, service.ErrAlertNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch alert"})
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *AlertHandler) Delete(c *gin.Context) {
	removed, err := h.alertSvc.Remove(c.Request.Context(), c.Param("alert_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove alert"})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AlertHandler) ClearAll(c *gin.Context) {
	if err := h.alertSvc.ClearAll(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear alerts"})
		return
	}
	c.Status(http.StatusNoContent)
}
