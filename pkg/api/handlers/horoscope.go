package handlers

import (
	"net/http"
	"strconv"

	apierrors "github.com/astrapersonal/astra-api/pkg/api/errors"
	"github.com/astrapersonal/astra-api/pkg/horoscope"
	"github.com/labstack/echo/v4"
)

// HoroscopeHandler serves the caller's daily horoscopes
type HoroscopeHandler struct {
	horoscopes *horoscope.Service
}

// NewHoroscopeHandler creates a new horoscope handler
func NewHoroscopeHandler(horoscopes *horoscope.Service) *HoroscopeHandler {
	return &HoroscopeHandler{horoscopes: horoscopes}
}

// Today godoc
// @Summary Today's horoscope
// @Description Returns today's horoscope, generating it on demand when the daily run has not produced it yet
// @Tags Horoscope
// @Produce json
// @Security BearerAuth
// @Success 200 {object} store.DailyHoroscope
// @Failure 400 {object} models.ErrorResponse "Birth data missing"
// @Failure 500 {object} models.ErrorResponse
// @Router /horoscope/today [get]
func (h *HoroscopeHandler) Today(c echo.Context) error {
	id, err := caller(c)
	if id == nil {
		return err
	}

	ctx, cancel := requestContext(c, horoscopeTimeout)
	defer cancel()

	today, err := h.horoscopes.GetToday(ctx, id.UserID)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, today)
}

// History godoc
// @Summary Recent horoscopes
// @Tags Horoscope
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of days (default: 7, max: 60)"
// @Success 200 {array} store.DailyHoroscope
// @Router /horoscope/history [get]
func (h *HoroscopeHandler) History(c echo.Context) error {
	id, err := caller(c)
	if id == nil {
		return err
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	rows, err := h.horoscopes.History(ctx, id.UserID, limit)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, rows)
}
