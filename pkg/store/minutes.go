package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrNoSubscription is returned when the user has no subscription row
var ErrNoSubscription = errors.New("subscription not found")

// AddLunaMinutes credits minutes to the user's balance in a single UPDATE
func AddLunaMinutes(ctx context.Context, db *gorm.DB, userID string, minutes int) error {
	res := db.WithContext(ctx).
		Model(&Subscription{}).
		Where("user_id = ?", userID).
		Update("luna_minutes_balance", gorm.Expr("luna_minutes_balance + ?", minutes))
	if res.Error != nil {
		return fmt.Errorf("add luna minutes: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNoSubscription
	}
	return nil
}

// DeductLunaMinutes debits minutes and records them as used in a single UPDATE.
// The balance may go negative; callers gate on the balance before metering.
func DeductLunaMinutes(ctx context.Context, db *gorm.DB, userID string, minutes int) error {
	res := db.WithContext(ctx).
		Model(&Subscription{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"luna_minutes_balance": gorm.Expr("luna_minutes_balance - ?", minutes),
			"luna_minutes_used":    gorm.Expr("luna_minutes_used + ?", minutes),
		})
	if res.Error != nil {
		return fmt.Errorf("deduct luna minutes: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNoSubscription
	}
	return nil
}

// FindSubscription loads the user's subscription, returning ErrNoSubscription when absent
func FindSubscription(ctx context.Context, db *gorm.DB, userID string) (*Subscription, error) {
	var sub Subscription
	err := db.WithContext(ctx).Where("user_id = ?", userID).Take(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoSubscription
	}
	if err != nil {
		return nil, fmt.Errorf("find subscription: %w", err)
	}
	return &sub, nil
}
