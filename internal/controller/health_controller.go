package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"delta-gateway/internal/storage"
)

type HealthResponse struct {
	Status    string        `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Service   string        `json:"service"`
	Version   string        `json:"version"`
	Storage   StorageStatus `json:"storage"`
}

type StorageStatus struct {
	Backend string `json:"backend"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type HealthController struct {
	store   storage.Store
	backend string
	timeout time.Duration
}

func NewHealthController(store storage.Store, backend string) *HealthController {
	return &HealthController{
		store:   store,
		backend: backend,
		timeout: 5 * time.Second,
	}
}

func (hc *HealthController) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   "delta-gateway",
		Version:   "1.0.0",
		Storage:   StorageStatus{Backend: hc.backend, Status: "connected"},
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), hc.timeout)
	defer cancel()

	if _, err := hc.store.List(ctx, ""); err != nil && !errors.Is(err, storage.ErrNotFound) {
		resp.Status = "unhealthy"
		resp.Storage.Status = "disconnected"
		resp.Storage.Message = "Storage listing failed: " + err.Error()
	}

	statusCode := http.StatusOK
	if resp.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, resp)
}
