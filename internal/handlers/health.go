package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ytakahashi/taskflow/internal/logger"
	"github.com/ytakahashi/taskflow/internal/services"
)

type HealthHandler struct {
	kv services.KV
}

func NewHealthHandler(kv services.KV) *HealthHandler {
	return &HealthHandler{kv: kv}
}

// API is the liveness probe used by clients.
func (h *HealthHandler) API(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "message": "Server is running"})
}

// Ready additionally checks the store backing LINE links.
func (h *HealthHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := h.kv.Ping(ctx); err != nil {
		logger.Warn("health check failed", "error", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
