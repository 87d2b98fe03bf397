package jobs

import (
	"context"

	"github.com/astrapersonal/astra-api/pkg/domain"
	"github.com/astrapersonal/astra-api/pkg/models"
	"github.com/astrapersonal/astra-api/pkg/store"
)

// CheckTrials moves every trial past its end date to the free plan
func (r *Runner) CheckTrials(ctx context.Context) (*models.CheckTrialsResponse, error) {
	ctx = context.WithoutCancel(ctx)
	day := r.horoscopes.Today().Format(store.DateLayout)

	job, err := r.startJob(ctx, store.JobTrialCheck, day)
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	res := r.db.WithContext(ctx).
		Model(&store.Subscription{}).
		Where("status = ? AND trial_end < ?", store.SubscriptionTrial, r.now().UTC()).
		Updates(map[string]any{
			"status": store.SubscriptionExpired,
			"plan":   store.PlanFree,
		})
	if res.Error != nil {
		r.finishJob(ctx, job, store.JobFailed, 0, 0, 0, []ItemError{{Error: res.Error.Error()}})
		return nil, domain.NewInternalError(res.Error)
	}

	expired := int(res.RowsAffected)
	r.finishJob(ctx, job, store.JobCompleted, expired, expired, 0, nil)
	r.logger.Info("✅ trial check completed", "expired", expired)

	return &models.CheckTrialsResponse{OK: true, ExpiredCount: expired}, nil
}
