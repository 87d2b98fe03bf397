// Package jobs runs the daily batch jobs: horoscope generation, the Telegram
// push and the trial sweep. Jobs run on demand from the scheduler endpoints or
// on the in-process cron.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/astrapersonal/astra-api/pkg/cache"
	"github.com/astrapersonal/astra-api/pkg/ephemeris"
	"github.com/astrapersonal/astra-api/pkg/logger"
	"github.com/astrapersonal/astra-api/pkg/metrics"
	"github.com/astrapersonal/astra-api/pkg/store"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxErrorLog = 50

// HoroscopeGenerator produces and reads daily horoscopes
type HoroscopeGenerator interface {
	Today() time.Time
	FindForDay(ctx context.Context, userID, day string) (*store.DailyHoroscope, error)
	Generate(ctx context.Context, p *store.Profile, planetary ephemeris.Chart, day time.Time) (*store.DailyHoroscope, error)
}

// TransitProvider computes the day's transits
type TransitProvider interface {
	Transits(ctx context.Context, b ephemeris.BirthData, date string) ephemeris.Chart
}

// Messenger delivers bot messages
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendAudio(ctx context.Context, chatID int64, audioURL, caption string) error
}

// Outcome is the result of one batch item
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeSkipped
	OutcomeFailed
)

// ItemResult is what one batch item reports back to the run
type ItemResult struct {
	UserID  string
	Outcome Outcome
	Err     error
}

func itemOK(userID string) ItemResult { return ItemResult{UserID: userID, Outcome: OutcomeOK} }
func itemSkipped(userID string) ItemResult { return ItemResult{UserID: userID, Outcome: OutcomeSkipped} }

func itemFailed(userID string, err error) ItemResult {
	return ItemResult{UserID: userID, Outcome: OutcomeFailed, Err: err}
}

// ItemError is one entry of a job's error log
type ItemError struct {
	UserID string `json:"user_id"`
	Error  string `json:"error"`
}

// RunStats accumulates item results
type RunStats struct {
	Processed int
	Success   int
	Skipped   int
	Failed    int
	Errors    []ItemError
}

// Add folds one item result into the stats. The error log keeps the first 50 failures.
func (s *RunStats) Add(r ItemResult) {
	s.Processed++
	switch r.Outcome {
	case OutcomeOK:
		s.Success++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
		if len(s.Errors) < maxErrorLog {
			msg := "unknown error"
			if r.Err != nil {
				msg = r.Err.Error()
			}
			s.Errors = append(s.Errors, ItemError{UserID: r.UserID, Error: msg})
		}
	}
}

// Runner executes the batch jobs. A started run ignores cancellation of its
// context and works through the whole user list.
type Runner struct {
	db         *gorm.DB
	horoscopes HoroscopeGenerator
	transits   TransitProvider
	messenger  Messenger
	cache      *cache.Client
	metrics    *metrics.Metrics
	logger     logger.Logger
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration)
}

// NewRunner creates a new job runner. c and m may be nil.
func NewRunner(db *gorm.DB, horoscopes HoroscopeGenerator, transits TransitProvider, messenger Messenger, c *cache.Client, m *metrics.Metrics, log logger.Logger) *Runner {
	if log == nil {
		log = logger.Default()
	}
	return &Runner{
		db:         db,
		horoscopes: horoscopes,
		transits:   transits,
		messenger:  messenger,
		cache:      c,
		metrics:    m,
		logger:     log,
		now:        time.Now,
		sleep:      sleepContext,
	}
}

func (r *Runner) startJob(ctx context.Context, jobType, day string) (*store.SchedulerJob, error) {
	job := &store.SchedulerJob{
		JobType: jobType,
		JobDate: day,
		Status:  store.JobRunning,
	}
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, fmt.Errorf("record %s start: %w", jobType, err)
	}
	return job, nil
}

func (r *Runner) finishJob(ctx context.Context, job *store.SchedulerJob, status string, processed, success, failedCount int, errs []ItemError) {
	if errs == nil {
		errs = []ItemError{}
	}
	errorLog, err := json.Marshal(map[string]any{"errors": errs})
	if err != nil {
		errorLog = []byte(`{"errors":[]}`)
	}

	completedAt := r.now().UTC()
	err = r.db.WithContext(ctx).Model(job).Updates(map[string]any{
		"status":          status,
		"completed_at":    completedAt,
		"users_processed": processed,
		"users_success":   success,
		"users_failed":    failedCount,
		"error_log":       datatypes.JSON(errorLog),
	}).Error
	if err != nil {
		r.logger.Error("failed to record job completion", "job_id", job.ID, "job_type", job.JobType, "error", err)
	}
	r.metrics.RecordJobRun(job.JobType, status)
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
