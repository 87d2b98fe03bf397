package handlers

import (
	"net/http"

	apierrors "github.com/astrapersonal/astra-api/pkg/api/errors"
	"github.com/astrapersonal/astra-api/pkg/jobs"
	"github.com/labstack/echo/v4"
)

// SchedulerHandler triggers the daily batch jobs. Routes are mounted behind
// RequireCronSecret.
type SchedulerHandler struct {
	runner *jobs.Runner
}

// NewSchedulerHandler creates a new scheduler handler
func NewSchedulerHandler(runner *jobs.Runner) *SchedulerHandler {
	return &SchedulerHandler{runner: runner}
}

// GenerateDaily godoc
// @Summary Generate today's horoscopes
// @Description Generates the horoscope of every onboarded active user that does not have one yet
// @Tags Scheduler
// @Produce json
// @Param x-cron-secret header string true "Shared cron secret"
// @Success 200 {object} models.GenerateDailyResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /scheduler/generate-daily [post]
func (h *SchedulerHandler) GenerateDaily(c echo.Context) error {
	resp, err := h.runner.GenerateDaily(c.Request().Context())
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// SendTelegram godoc
// @Summary Push today's horoscopes to Telegram
// @Tags Scheduler
// @Produce json
// @Param x-cron-secret header string true "Shared cron secret"
// @Success 200 {object} models.SendTelegramResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /scheduler/send-telegram [post]
func (h *SchedulerHandler) SendTelegram(c echo.Context) error {
	resp, err := h.runner.SendTelegram(c.Request().Context())
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// CheckTrials godoc
// @Summary Expire ended trials
// @Tags Scheduler
// @Produce json
// @Param x-cron-secret header string true "Shared cron secret"
// @Success 200 {object} models.CheckTrialsResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /scheduler/check-trials [post]
func (h *SchedulerHandler) CheckTrials(c echo.Context) error {
	resp, err := h.runner.CheckTrials(c.Request().Context())
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}
