package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"crypto-signal-agent/internal/pipeline/dto"
	"crypto-signal-agent/internal/pipeline/repository"
	"crypto-signal-agent/internal/pipeline/service"
	"crypto-signal-agent/pkg/logger"
)

// FeedbackHandler handles HTTP requests for subscriber feedback.
type FeedbackHandler struct {
	feedbackService service.FeedbackService
	logger          *logger.Logger
}

// NewFeedbackHandler creates a new FeedbackHandler.
func NewFeedbackHandler(feedbackService service.FeedbackService, logger *logger.Logger) *FeedbackHandler {
	return &FeedbackHandler{feedbackService: feedbackService, logger: logger}
}

// RegisterRoutes registers the feedback routes to the Echo group.
func (h *FeedbackHandler) RegisterRoutes(g *echo.Group) {
	g.POST("", h.RecordFeedback)
}

// RecordFeedback accepts one feedback tuple and applies it to the
// subscriber's personalization weights.
func (h *FeedbackHandler) RecordFeedback(c echo.Context) error {
	var req dto.RecordFeedbackRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request payload"})
	}

	if err := h.feedbackService.RecordFeedback(c.Request().Context(), &req); err != nil {
		if errors.Is(err, repository.ErrSubscriberNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Subscriber not found"})
		}
		if errors.Is(err, service.ErrInvalidFeedbackAction) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		h.logger.Error("Failed to record feedback", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to record feedback"})
	}

	return c.NoContent(http.StatusAccepted)
}
