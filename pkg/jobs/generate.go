package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/astrapersonal/astra-api/pkg/cache"
	"github.com/astrapersonal/astra-api/pkg/domain"
	"github.com/astrapersonal/astra-api/pkg/ephemeris"
	"github.com/astrapersonal/astra-api/pkg/models"
	"github.com/astrapersonal/astra-api/pkg/store"
)

const (
	generatePause = 300 * time.Millisecond
	transitsTTL   = 24 * time.Hour
)

// GenerateDaily writes today's horoscope for every active, onboarded user with
// birth data. Users that already have today's row are counted as successes.
func (r *Runner) GenerateDaily(ctx context.Context) (*models.GenerateDailyResponse, error) {
	ctx = context.WithoutCancel(ctx)
	today := r.horoscopes.Today()
	day := today.Format(store.DateLayout)

	job, err := r.startJob(ctx, store.JobDailyGeneration, day)
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	var profiles []store.Profile
	err = r.db.WithContext(ctx).
		Where("is_active = ? AND onboarding_completed = ? AND birth_date IS NOT NULL", true, true).
		Order("created_at").
		Find(&profiles).Error
	if err != nil {
		r.finishJob(ctx, job, store.JobFailed, 0, 0, 0, []ItemError{{Error: err.Error()}})
		return nil, domain.NewInternalError(err)
	}

	r.logger.Info("🕐 daily horoscope generation started", "date", day, "users", len(profiles))

	// Same sky for everyone: one transit snapshot per run
	planetary := r.dailyTransits(ctx, day)

	var stats RunStats
	for i := range profiles {
		res := r.generateOne(ctx, &profiles[i], planetary, today)
		stats.Add(res)
		if res.Outcome == OutcomeOK {
			r.sleep(ctx, generatePause)
		}
	}

	success := stats.Success + stats.Skipped
	r.finishJob(ctx, job, store.JobCompleted, stats.Processed, success, stats.Failed, stats.Errors)
	r.logger.Info("✅ daily horoscope generation completed",
		"date", day, "processed", stats.Processed, "success", success, "failed", stats.Failed)

	return &models.GenerateDailyResponse{
		OK:        true,
		Date:      day,
		Processed: stats.Processed,
		Success:   success,
		Failed:    stats.Failed,
	}, nil
}

func (r *Runner) generateOne(ctx context.Context, p *store.Profile, planetary ephemeris.Chart, today time.Time) ItemResult {
	existing, err := r.horoscopes.FindForDay(ctx, p.ID, today.Format(store.DateLayout))
	if err != nil {
		r.metrics.RecordHoroscope("failed")
		return itemFailed(p.ID, err)
	}
	if existing != nil {
		r.metrics.RecordHoroscope("skipped")
		return itemSkipped(p.ID)
	}

	if _, err := r.horoscopes.Generate(ctx, p, planetary, today); err != nil {
		r.logger.Warn("horoscope generation failed", "user_id", p.ID, "error", err)
		r.metrics.RecordHoroscope("failed")
		return itemFailed(p.ID, err)
	}
	r.metrics.RecordHoroscope("generated")
	return itemOK(p.ID)
}

func transitsKey(day string) string {
	return "transits:" + day
}

// dailyTransits returns the day's transit snapshot at the default coordinates,
// read through the cache when one is configured
func (r *Runner) dailyTransits(ctx context.Context, day string) ephemeris.Chart {
	key := transitsKey(day)
	if r.cache != nil {
		var cached ephemeris.Chart
		err := r.cache.GetJSON(ctx, key, &cached)
		r.metrics.RecordCache("transits", err == nil && !cached.IsEmpty())
		if err == nil && !cached.IsEmpty() {
			return cached
		}
		if err != nil && !errors.Is(err, cache.ErrMiss) {
			r.logger.Warn("transit cache read failed", "key", key, "error", err)
		}
	}

	chart := r.transits.Transits(ctx, ephemeris.BirthData{}, day)
	if chart.IsEmpty() || r.cache == nil {
		return chart
	}
	if err := r.cache.SetJSON(ctx, key, chart, transitsTTL); err != nil {
		r.logger.Warn("transit cache write failed", "key", key, "error", err)
	}
	return chart
}
