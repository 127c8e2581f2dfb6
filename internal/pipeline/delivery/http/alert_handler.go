package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"crypto-signal-agent/internal/pipeline/repository"
	"crypto-signal-agent/internal/pipeline/service"
	"crypto-signal-agent/pkg/logger"
)

// AlertHandler handles HTTP requests for issued alerts.
type AlertHandler struct {
	alertService service.AlertService
	logger       *logger.Logger
}

// NewAlertHandler creates a new AlertHandler.
func NewAlertHandler(alertService service.AlertService, logger *logger.Logger) *AlertHandler {
	return &AlertHandler{alertService: alertService, logger: logger}
}

// RegisterRoutes registers the subscriber alert routes to the Echo group.
func (h *AlertHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/:id/alerts", h.GetAlertsBySubscriber)
}

// GetAlertsBySubscriber returns the most recent alerts issued to one
// subscriber.
func (h *AlertHandler) GetAlertsBySubscriber(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid subscriber ID"})
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid limit"})
		}
	}

	alerts, err := h.alertService.GetAlertsBySubscriber(c.Request().Context(), uint(id), limit)
	if err != nil {
		if errors.Is(err, repository.ErrSubscriberNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Subscriber not found"})
		}
		h.logger.Error("Failed to get alerts", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to get alerts"})
	}

	return c.JSON(http.StatusOK, alerts)
}
