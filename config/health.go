package config

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

type closer interface {
	IsClosed() bool
}

type connector interface {
	IsConnected() bool
}

// HealthChecker reports dependency status. A nil dependency is not checked.
type HealthChecker struct {
	db       pinger
	amqpConn closer
	mqtt     connector
}

func NewHealthChecker(db pinger, amqpConn closer, mqttClient connector) *HealthChecker {
	return &HealthChecker{db: db, amqpConn: amqpConn, mqtt: mqttClient}
}

func (h *HealthChecker) Register(r *gin.Engine) {
	r.GET("/healthz", h.Handle)
}

func (h *HealthChecker) Handle(c *gin.Context) {
	status := http.StatusOK
	deps := gin.H{}

	if h.db != nil {
		if err := h.db.PingContext(c.Request.Context()); err != nil {
			deps["postgres"] = gin.H{"status": "down", "error": err.Error()}
			status = http.StatusServiceUnavailable
		} else {
			deps["postgres"] = gin.H{"status": "up"}
		}
	}

	if h.amqpConn != nil {
		if h.amqpConn.IsClosed() {
			deps["rabbitmq"] = gin.H{"status": "down", "error": "connection closed"}
			status = http.StatusServiceUnavailable
		} else {
			deps["rabbitmq"] = gin.H{"status": "up"}
		}
	}

	if h.mqtt != nil {
		if !h.mqtt.IsConnected() {
			deps["mqtt"] = gin.H{"status": "down", "error": "not connected"}
			status = http.StatusServiceUnavailable
		} else {
			deps["mqtt"] = gin.H{"status": "up"}
		}
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "unhealthy"
	}

	c.JSON(status, gin.H{
		"status":       overall,
		"dependencies": deps,
	})
}
