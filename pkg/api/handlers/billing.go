package handlers

import (
	"io"
	"net/http"

	apierrors "github.com/astrapersonal/astra-api/pkg/api/errors"
	"github.com/astrapersonal/astra-api/pkg/billing"
	"github.com/astrapersonal/astra-api/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Largest accepted Stripe event payload
const maxWebhookBody = 64 << 10

// BillingHandler handles checkout and the Stripe webhook
type BillingHandler struct {
	billingService *billing.Service
	validator      *validator.Validate
}

// NewBillingHandler creates a new billing handler
func NewBillingHandler(billingService *billing.Service) *BillingHandler {
	return &BillingHandler{
		billingService: billingService,
		validator:      newValidator(),
	}
}

// ListPacks godoc
// @Summary Luna minute packs
// @Tags Services
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.PackResponse
// @Router /services/luna/packs [get]
func (h *BillingHandler) ListPacks(c echo.Context) error {
	packs := billing.Packs()
	resp := make([]models.PackResponse, 0, len(packs))
	for _, p := range packs {
		resp = append(resp, models.PackResponse{
			ID:       p.ID,
			Name:     p.Name,
			Minutes:  p.Minutes,
			PriceEUR: p.PriceEUR,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

// CreateLunaCheckout godoc
// @Summary Buy Luna minutes
// @Description Records a pending order and opens a Stripe Checkout session for the chosen pack
// @Tags Services
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CheckoutRequest true "Pack"
// @Success 200 {object} models.CheckoutResponse
// @Failure 400 {object} models.ErrorResponse "Invalid pack"
// @Router /services/luna/checkout [post]
func (h *BillingHandler) CreateLunaCheckout(c echo.Context) error {
	id, err := caller(c)
	if id == nil {
		return err
	}
	var req models.CheckoutRequest
	if valid, err := bindAndValidate(c, h.validator, &req); !valid {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	resp, err := h.billingService.CreateLunaCheckout(ctx, id.UserID, req.PackID)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleWebhook godoc
// @Summary Stripe webhook
// @Description Verifies the signature and applies the event once per event id
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Stripe webhook signature for verification"
// @Success 200 {object} models.OKResponse
// @Failure 400 {object} models.ErrorResponse "Invalid signature"
// @Failure 413 {object} models.ErrorResponse "Payload too large"
// @Router /webhooks/stripe [post]
func (h *BillingHandler) HandleWebhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_body",
			Message: "Failed to read request body",
		})
	}
	if len(body) > maxWebhookBody {
		return c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
			Error:   "payload_too_large",
			Message: "Request body exceeds the webhook size limit",
		})
	}

	signature := c.Request().Header.Get("Stripe-Signature")

	if err := h.billingService.HandleWebhook(c.Request().Context(), body, signature); err != nil {
		return apierrors.FromDomain(c, err)
	}
	return ok(c)
}
