package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"crypto-signal-agent/internal/pipeline/dto"
	"crypto-signal-agent/internal/pipeline/repository"
	"crypto-signal-agent/internal/pipeline/service"
	"crypto-signal-agent/pkg/logger"
)

// SubscriberHandler handles HTTP requests for subscriber profile edits.
type SubscriberHandler struct {
	subscriberService service.SubscriberService
	logger            *logger.Logger
}

// NewSubscriberHandler creates a new SubscriberHandler.
func NewSubscriberHandler(subscriberService service.SubscriberService, logger *logger.Logger) *SubscriberHandler {
	return &SubscriberHandler{subscriberService: subscriberService, logger: logger}
}

// RegisterRoutes registers the subscriber profile routes to the Echo group.
func (h *SubscriberHandler) RegisterRoutes(g *echo.Group) {
	g.PUT("/:id/watchlist", h.UpdateWatchlist)
}

// UpdateWatchlist replaces the subscriber's watchlist and tracked wallets.
func (h *SubscriberHandler) UpdateWatchlist(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid subscriber ID"})
	}

	var req dto.UpdateWatchlistRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}

	subscriber, err := h.subscriberService.UpdateWatchlist(c.Request().Context(), uint(id), &req)
	if err != nil {
		if errors.Is(err, repository.ErrSubscriberNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Subscriber not found"})
		}
		h.logger.Error("Failed to update watchlist", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to update watchlist"})
	}

	return c.JSON(http.StatusOK, subscriber)
}
