package handlers

import (
	"encoding/json"
	"net/http"

	apierrors "github.com/astrapersonal/astra-api/pkg/api/errors"
	"github.com/astrapersonal/astra-api/pkg/logger"
	"github.com/astrapersonal/astra-api/pkg/telegram"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/labstack/echo/v4"
)

// TelegramHandler serves the bot webhook and the account linking endpoints
type TelegramHandler struct {
	bot    *telegram.Service
	logger logger.Logger
}

// NewTelegramHandler creates a new Telegram handler
func NewTelegramHandler(bot *telegram.Service, log logger.Logger) *TelegramHandler {
	if log == nil {
		log = logger.Default()
	}
	return &TelegramHandler{bot: bot, logger: log}
}

// Webhook godoc
// @Summary Telegram bot webhook
// @Description Public endpoint called by the Bot API. Always acknowledges.
// @Tags Telegram
// @Accept json
// @Produce json
// @Success 200 {object} models.OKResponse
// @Router /telegram/webhook [post]
func (h *TelegramHandler) Webhook(c echo.Context) error {
	var upd tgmodels.Update
	if err := json.NewDecoder(c.Request().Body).Decode(&upd); err != nil {
		h.logger.Debug("ignoring undecodable telegram update", "error", err)
		return ok(c)
	}

	// send and lookup calls carry their own deadlines
	ctx, cancel := requestContext(c, 3*defaultTimeout)
	defer cancel()

	h.bot.HandleUpdate(ctx, &upd)
	return ok(c)
}

// GenerateLinkToken godoc
// @Summary Create a Telegram link token
// @Description Returns a single-use token and the deep link that connects the caller's chat
// @Tags Telegram
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.LinkTokenResponse
// @Router /telegram/generate-link-token [post]
func (h *TelegramHandler) GenerateLinkToken(c echo.Context) error {
	id, err := caller(c)
	if id == nil {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	resp, err := h.bot.GenerateLinkToken(ctx, id.UserID)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Disconnect godoc
// @Summary Disconnect Telegram
// @Tags Telegram
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.OKResponse
// @Router /telegram/disconnect [delete]
func (h *TelegramHandler) Disconnect(c echo.Context) error {
	id, err := caller(c)
	if id == nil {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	if err := h.bot.Disconnect(ctx, id.UserID); err != nil {
		return apierrors.FromDomain(c, err)
	}
	return ok(c)
}

// Status godoc
// @Summary Telegram connection status
// @Tags Telegram
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.TelegramStatusResponse
// @Router /telegram/status [get]
func (h *TelegramHandler) Status(c echo.Context) error {
	id, err := caller(c)
	if id == nil {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	resp, err := h.bot.Status(ctx, id.UserID)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// SetupWebhook godoc
// @Summary Register the bot webhook
// @Description Admin only. Points the Bot API at the configured webhook URL.
// @Tags Telegram
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.SetupWebhookResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /telegram/setup-webhook [post]
func (h *TelegramHandler) SetupWebhook(c echo.Context) error {
	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	resp, err := h.bot.SetupWebhook(ctx)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}
