package billing

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/astrapersonal/astra-api/pkg/domain"
	"github.com/astrapersonal/astra-api/pkg/logger"
	"github.com/astrapersonal/astra-api/pkg/metrics"
	"github.com/astrapersonal/astra-api/pkg/models"
	"github.com/astrapersonal/astra-api/pkg/store"
	"github.com/stripe/stripe-go/v76"
	"gorm.io/gorm"
)

// Config holds the Stripe settings used by checkout and the webhook
type Config struct {
	WebhookSecret string
	FrontendURL   string
	// PriceIDs maps a pack id to its one-time Stripe price. Packs without one,
	// and recurring packs, are sold with inline price data.
	PriceIDs map[string]string
}

// Service handles checkout and webhook reconciliation
type Service struct {
	db      *gorm.DB
	gateway Gateway
	cfg     Config
	metrics *metrics.Metrics
	logger  logger.Logger
	now     func() time.Time
}

// NewService creates a new billing service. m may be nil.
func NewService(db *gorm.DB, gateway Gateway, cfg Config, m *metrics.Metrics, log logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		db:      db,
		gateway: gateway,
		cfg:     cfg,
		metrics: m,
		logger:  log,
		now:     time.Now,
	}
}

// CreateLunaCheckout records a pending pack order and opens a Stripe payment
// session for it
func (s *Service) CreateLunaCheckout(ctx context.Context, userID, packID string) (*models.CheckoutResponse, error) {
	pack, ok := PackByID(packID)
	if !ok {
		return nil, domain.NewBadRequestError("Pacchetto non valido")
	}

	db := s.db.WithContext(ctx)

	var profile store.Profile
	err := db.Where("id = ?", userID).Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewNotFoundError("profile")
	}
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	sub := store.Subscription{UserID: userID}
	err = db.Where(store.Subscription{UserID: userID}).
		Attrs(store.Subscription{Plan: store.PlanFree, Status: store.SubscriptionActive}).
		FirstOrCreate(&sub).Error
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	customerID, err := s.ensureCustomer(ctx, &sub, profile.Email)
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	order := store.LunaMinutePack{
		UserID:           userID,
		PackName:         pack.ID,
		MinutesPurchased: pack.Minutes,
		PriceEUR:         pack.PriceEUR,
		OrderStatus:      store.OrderPending,
	}
	if err := db.Create(&order).Error; err != nil {
		return nil, domain.NewInternalError(err)
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, s.checkoutParams(pack, customerID, userID, order.ID))
	if err != nil {
		s.logger.Error("stripe checkout failed", "user_id", userID, "pack_id", pack.ID, "error", err)
		return nil, domain.NewInternalError(err)
	}

	err = db.Model(&store.LunaMinutePack{}).
		Where("id = ?", order.ID).
		Update("stripe_session_id", sess.ID).Error
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	s.logger.Info("luna checkout created", "user_id", userID, "pack_id", pack.ID, "order_id", order.ID)
	return &models.CheckoutResponse{CheckoutURL: sess.URL}, nil
}

func (s *Service) ensureCustomer(ctx context.Context, sub *store.Subscription, email string) (string, error) {
	if sub.StripeCustomerID != nil && *sub.StripeCustomerID != "" {
		return *sub.StripeCustomerID, nil
	}

	customerID, err := s.gateway.CreateCustomer(ctx, email, sub.UserID)
	if err != nil {
		return "", err
	}

	err = s.db.WithContext(ctx).Model(&store.Subscription{}).
		Where("id = ?", sub.ID).
		Update("stripe_customer_id", customerID).Error
	if err != nil {
		return "", err
	}
	return customerID, nil
}

func (s *Service) checkoutParams(pack Pack, customerID, userID, orderID string) *stripe.CheckoutSessionParams {
	item := &stripe.CheckoutSessionLineItemParams{Quantity: stripe.Int64(1)}
	if priceID := s.cfg.PriceIDs[pack.ID]; priceID != "" && !pack.Recurring {
		item.Price = stripe.String(priceID)
	} else {
		item.PriceData = &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(string(stripe.CurrencyEUR)),
			UnitAmount: stripe.Int64(pack.AmountCents()),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(pack.Name),
			},
		}
	}

	return &stripe.CheckoutSessionParams{
		Customer:           stripe.String(customerID),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          []*stripe.CheckoutSessionLineItemParams{item},
		SuccessURL:         stripe.String(s.cfg.FrontendURL + "/luna?success=true"),
		CancelURL:          stripe.String(s.cfg.FrontendURL + "/luna?cancelled=true"),
		Metadata: map[string]string{
			"user_id":  userID,
			"order_id": orderID,
			"pack_id":  pack.ID,
			"minutes":  strconv.Itoa(pack.Minutes),
		},
	}
}
