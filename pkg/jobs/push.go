package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/astrapersonal/astra-api/pkg/domain"
	"github.com/astrapersonal/astra-api/pkg/models"
	"github.com/astrapersonal/astra-api/pkg/store"
	"github.com/astrapersonal/astra-api/pkg/telegram"
	"gorm.io/gorm"
)

const (
	pushPause    = 100 * time.Millisecond
	audioCaption = "🎧 Il tuo oroscopo in audio"
)

// SendTelegram pushes today's completed horoscope to every active chat.
// Users without one are skipped silently.
func (r *Runner) SendTelegram(ctx context.Context) (*models.SendTelegramResponse, error) {
	ctx = context.WithoutCancel(ctx)
	today := r.horoscopes.Today()
	day := today.Format(store.DateLayout)

	job, err := r.startJob(ctx, store.JobTelegramPush, day)
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	var conns []store.TelegramConnection
	err = r.db.WithContext(ctx).
		Where("status = ?", store.TelegramActive).
		Order("created_at").
		Find(&conns).Error
	if err != nil {
		r.finishJob(ctx, job, store.JobFailed, 0, 0, 0, []ItemError{{Error: err.Error()}})
		return nil, domain.NewInternalError(err)
	}

	var stats RunStats
	for i := range conns {
		res := r.pushOne(ctx, &conns[i], today)
		stats.Add(res)
		if res.Outcome == OutcomeOK {
			r.sleep(ctx, pushPause)
		}
	}

	r.finishJob(ctx, job, store.JobCompleted, stats.Processed, stats.Success, stats.Failed, stats.Errors)
	r.logger.Info("✅ telegram push completed", "date", day, "sent", stats.Success, "failed", stats.Failed, "skipped", stats.Skipped)

	return &models.SendTelegramResponse{OK: true, Sent: stats.Success, Failed: stats.Failed}, nil
}

func (r *Runner) pushOne(ctx context.Context, conn *store.TelegramConnection, today time.Time) ItemResult {
	day := today.Format(store.DateLayout)
	db := r.db.WithContext(ctx)

	var h store.DailyHoroscope
	err := db.Where("user_id = ? AND horoscope_date = ? AND status = ?", conn.UserID, day, store.HoroscopeCompleted).
		Take(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return itemSkipped(conn.UserID)
	}
	if err != nil {
		return itemFailed(conn.UserID, err)
	}

	var p store.Profile
	if err := db.Where("id = ?", conn.UserID).Take(&p).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return itemFailed(conn.UserID, err)
	}

	text := telegram.DailyPushMessage(today, p.FirstName, p.SunSign, &h)
	err = r.messenger.SendMessage(ctx, conn.ChatID, text)
	r.metrics.RecordTelegramMessage(err == nil)
	if err != nil {
		return itemFailed(conn.UserID, err)
	}

	if conn.SendVoice && h.AudioURL != nil && *h.AudioURL != "" {
		if err := r.messenger.SendAudio(ctx, conn.ChatID, *h.AudioURL, audioCaption); err != nil {
			r.logger.Warn("telegram audio push failed", "user_id", conn.UserID, "error", err)
		}
	}

	sentAt := r.now().UTC()
	err = db.Model(&store.DailyHoroscope{}).
		Where("id = ?", h.ID).
		Updates(map[string]any{"telegram_sent": true, "telegram_sent_at": sentAt}).Error
	if err != nil {
		return itemFailed(conn.UserID, fmt.Errorf("mark horoscope sent: %w", err))
	}
	err = db.Model(&store.TelegramConnection{}).
		Where("user_id = ?", conn.UserID).
		Update("last_message_at", sentAt).Error
	if err != nil {
		return itemFailed(conn.UserID, fmt.Errorf("update last message: %w", err))
	}
	return itemOK(conn.UserID)
}
