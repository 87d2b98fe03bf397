package handlers

import (
	"net/http"

	apierrors "github.com/astrapersonal/astra-api/pkg/api/errors"
	"github.com/astrapersonal/astra-api/pkg/luna"
	"github.com/astrapersonal/astra-api/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// LunaHandler exposes the metered Luna conversation
type LunaHandler struct {
	luna      *luna.Service
	validator *validator.Validate
}

// NewLunaHandler creates a new Luna handler
func NewLunaHandler(lunaService *luna.Service) *LunaHandler {
	return &LunaHandler{
		luna:      lunaService,
		validator: newValidator(),
	}
}

// StartSession godoc
// @Summary Start a Luna session
// @Tags Luna
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.StartSessionRequest true "Session options"
// @Success 200 {object} models.StartSessionResponse
// @Failure 402 {object} models.ErrorResponse "Minutes exhausted"
// @Failure 403 {object} models.ErrorResponse "No subscription"
// @Router /luna/session/start [post]
func (h *LunaHandler) StartSession(c echo.Context) error {
	id, err := caller(c)
	if id == nil {
		return err
	}
	var req models.StartSessionRequest
	if valid, err := bindAndValidate(c, h.validator, &req); !valid {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	resp, err := h.luna.Start(ctx, id.UserID, req)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// SendMessage godoc
// @Summary Send a message to Luna
// @Tags Luna
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.SendMessageRequest true "Message"
// @Success 200 {object} models.SendMessageResponse
// @Failure 404 {object} models.ErrorResponse "Session not found or ended"
// @Router /luna/message [post]
func (h *LunaHandler) SendMessage(c echo.Context) error {
	id, err := caller(c)
	if id == nil {
		return err
	}
	var req models.SendMessageRequest
	if valid, err := bindAndValidate(c, h.validator, &req); !valid {
		return err
	}

	ctx, cancel := requestContext(c, lunaTimeout)
	defer cancel()

	resp, err := h.luna.Turn(ctx, id.UserID, req)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// EndSession godoc
// @Summary End a Luna session
// @Description Closes the session and debits its duration rounded up to whole minutes
// @Tags Luna
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.EndSessionRequest true "Session"
// @Success 200 {object} models.EndSessionResponse
// @Failure 404 {object} models.ErrorResponse "Session not found or ended"
// @Router /luna/session/end [post]
func (h *LunaHandler) EndSession(c echo.Context) error {
	id, err := caller(c)
	if id == nil {
		return err
	}
	var req models.EndSessionRequest
	if valid, err := bindAndValidate(c, h.validator, &req); !valid {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	resp, err := h.luna.End(ctx, id.UserID, req.SessionID)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Balance godoc
// @Summary My Luna minutes
// @Tags Luna
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.BalanceResponse
// @Router /luna/balance [get]
func (h *LunaHandler) Balance(c echo.Context) error {
	id, err := caller(c)
	if id == nil {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	resp, err := h.luna.Balance(ctx, id.UserID)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}
