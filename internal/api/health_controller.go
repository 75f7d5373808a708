package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Checker reports whether a dependency is reachable
type Checker func(ctx context.Context) error

type HealthController struct {
	database Checker
	redis    Checker
	hub      *Hub
}

// NewHealthController takes optional checks; nil checks are reported as "disabled"
func NewHealthController(database, redis Checker, hub *Hub) *HealthController {
	return &HealthController{database: database, redis: redis, hub: hub}
}

// GET /api/health
func (hc *HealthController) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{"status": "ok", "service": "rechnung"}

	body["database"] = probe(ctx, hc.database)
	if body["database"] == "down" {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
	}
	body["redis"] = probe(ctx, hc.redis)
	if hc.hub != nil {
		body["websocketClients"] = hc.hub.ClientsCount()
	}
	c.JSON(status, body)
}

func probe(ctx context.Context, check Checker) string {
	if check == nil {
		return "disabled"
	}
	if err := check(ctx); err != nil {
		return "down"
	}
	return "up"
}
