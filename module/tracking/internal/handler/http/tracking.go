package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/racanix/location-foreground-service/module/tracking/domain"
)

type trackingService interface {
	Start(ctx context.Context, opts domain.TrackingOptions) error
	Stop(ctx context.Context)
	Status() domain.Status
	ConfirmArrival(ctx context.Context, alertID string)
	RejectArrival(ctx context.Context)
}

type confirmRequest struct {
	AlertID string `json:"alertId"`
}

type TrackingHandler struct {
	trackingSvc trackingService
}

func NewTrackingHandler(trackingSvc trackingService) *TrackingHandler {
	return &TrackingHandler{trackingSvc: trackingSvc}
}

func (h *TrackingHandler) Register(r *gin.RouterGroup) {
	r.GET("/tracking", h.GetStatus)
	r.POST("/tracking/start", h.Start)
	r.POST("/tracking/stop", h.Stop)
	r.POST("/tracking/arrival/confirm", h.ConfirmArrival)
	r.POST("/tracking/arrival/reject", h.RejectArrival)
}

func (h *TrackingHandler) Start(c *gin.Context) {
	opts := domain.DefaultTrackingOptions()
	if err := c.ShouldBindJSON(&opts); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.trackingSvc.Start(c.Request.Context(), opts); err != nil {
		if errors.Is(err, domain.ErrInvalidOptions) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start tracking"})
		return
	}

	st := h.trackingSvc.Status()
	c.JSON(http.StatusOK, gin.H{"running": st.Running, "session_id": st.SessionID})
}

func (h *TrackingHandler) Stop(c *gin.Context) {
	h.trackingSvc.Stop(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"running": false})
}

func (h *TrackingHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.trackingSvc.Status())
}

func (h *TrackingHandler) ConfirmArrival(c *gin.Context) {
	var req confirmRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	h.trackingSvc.ConfirmArrival(c.Request.Context(), req.AlertID)
	c.JSON(http.StatusAccepted, gin.H{"alertId": req.AlertID})
}

func (h *TrackingHandler) RejectArrival(c *gin.Context) {
	h.trackingSvc.RejectArrival(c.Request.Context())
	c.Status(http.StatusAccepted)
}
