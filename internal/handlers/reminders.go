package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ytakahashi/taskflow/internal/models"
	"github.com/ytakahashi/taskflow/internal/notify"
)

type ReminderHandler struct {
	dispatcher *notify.Dispatcher
}

func NewReminderHandler(dispatcher *notify.Dispatcher) *ReminderHandler {
	return &ReminderHandler{dispatcher: dispatcher}
}

// ScheduleReminder handles POST /api/schedule-reminder.
func (h *ReminderHandler) ScheduleReminder(c echo.Context) error {
	var req models.ReminderRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
	}

	resp, err := h.dispatcher.Schedule(req)
	switch {
	case errors.Is(err, models.ErrValidation):
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: models.UserMessage(err)})
	case err != nil:
		return c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: models.UserMessage(err)})
	}
	return c.JSON(http.StatusOK, resp)
}

// SendReminder handles POST /api/send-reminder.
func (h *ReminderHandler) SendReminder(c echo.Context) error {
	var req models.ReminderRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
	}

	err := h.dispatcher.Send(c.Request().Context(), req)
	switch {
	case errors.Is(err, models.ErrValidation):
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: models.UserMessage(err)})
	case err != nil:
		c.Logger().Errorf("error sending email: %v", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   models.UserMessage(err),
			Details: cause(err),
		})
	}
	return c.JSON(http.StatusOK, models.SendResponse{Success: true, Message: "Reminder email sent successfully"})
}

func cause(err error) string {
	var e *models.Error
	if errors.As(err, &e) && e.Err != nil {
		return e.Err.Error()
	}
	return err.Error()
}
