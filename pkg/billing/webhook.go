package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/astrapersonal/astra-api/pkg/domain"
	"github.com/astrapersonal/astra-api/pkg/store"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Webhook outcomes reported to metrics
const (
	outcomeProcessed = "processed"
	outcomeDuplicate = "duplicate"
	outcomeFailed    = "failed"
	outcomeInvalid   = "invalid_signature"
)

// HandleWebhook verifies and applies one Stripe event. The event id is written
// to the ledger in the same transaction as its state change, so a redelivered
// event is acknowledged without side effects.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		s.logger.Warn("stripe webhook signature rejected", "error", err)
		s.metrics.RecordWebhookEvent("unknown", outcomeInvalid)
		return domain.NewInvalidWebhookSignatureError(err)
	}

	eventType := string(event.Type)
	s.logger.Info("📨 Stripe webhook received", "event_id", event.ID, "type", eventType)

	duplicate := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&store.ProcessedEvent{
			EventID:     event.ID,
			EventType:   eventType,
			ProcessedAt: s.now().UTC(),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			duplicate = true
			return nil
		}
		return s.apply(ctx, tx, event)
	})
	if err != nil {
		s.logger.Error("stripe webhook failed", "event_id", event.ID, "type", eventType, "error", err)
		s.metrics.RecordWebhookEvent(eventType, outcomeFailed)
		return domain.NewInternalError(err)
	}

	if duplicate {
		s.logger.Info("stripe webhook already processed", "event_id", event.ID)
		s.metrics.RecordWebhookEvent(eventType, outcomeDuplicate)
		return nil
	}
	s.metrics.RecordWebhookEvent(eventType, outcomeProcessed)
	return nil
}

func (s *Service) apply(ctx context.Context, tx *gorm.DB, event stripe.Event) error {
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("failed to unmarshal session: %w", err)
		}
		return s.handleCheckoutCompleted(ctx, tx, &sess)

	case stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("failed to unmarshal subscription: %w", err)
		}
		return tx.Model(&store.Subscription{}).
			Where("stripe_subscription_id = ?", sub.ID).
			Updates(map[string]any{
				"status":       store.SubscriptionCancelled,
				"cancelled_at": s.now().UTC(),
			}).Error

	case stripe.EventTypeInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return fmt.Errorf("failed to unmarshal invoice: %w", err)
		}
		if inv.Customer == nil || inv.Customer.ID == "" {
			return nil
		}
		return tx.Model(&store.Subscription{}).
			Where("stripe_customer_id = ?", inv.Customer.ID).
			Update("status", store.SubscriptionPaused).Error

	default:
		s.logger.Debug("unhandled stripe event", "type", string(event.Type))
		return nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, tx *gorm.DB, sess *stripe.CheckoutSession) error {
	meta := sess.Metadata
	userID := meta["user_id"]
	if userID == "" {
		s.logger.Warn("checkout session without user_id", "session_id", sess.ID)
		return nil
	}
	paidAt := s.now().UTC()

	switch {
	case meta["pack_id"] != "":
		minutes, err := strconv.Atoi(meta["minutes"])
		if err != nil {
			return fmt.Errorf("invalid minutes %q: %w", meta["minutes"], err)
		}

		updates := map[string]any{
			"order_status": store.OrderPaid,
			"paid_at":      paidAt,
			"is_consumed":  false,
		}
		if sess.PaymentIntent != nil {
			updates["stripe_payment_intent"] = sess.PaymentIntent.ID
		}

		// Only a pending order credits minutes
		res := tx.Model(&store.LunaMinutePack{}).
			Where("id = ? AND user_id = ? AND order_status = ?", meta["order_id"], userID, store.OrderPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			s.logger.Warn("pack order not pending", "order_id", meta["order_id"], "user_id", userID)
			return nil
		}

		if err := store.AddLunaMinutes(ctx, tx, userID, minutes); err != nil {
			return err
		}
		s.logger.Info("✅ luna minutes credited", "user_id", userID, "order_id", meta["order_id"], "minutes", minutes)
		return nil

	case meta["service_type"] != "":
		return tx.Model(&store.ServiceOrder{}).
			Where("id = ? AND user_id = ?", meta["order_id"], userID).
			Updates(map[string]any{
				"order_status": store.OrderPaid,
				"paid_at":      paidAt,
				"status":       "pending",
			}).Error

	default:
		return nil
	}
}
