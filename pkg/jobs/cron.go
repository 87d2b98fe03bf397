package jobs

import (
	"context"
	"time"

	"github.com/astrapersonal/astra-api/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Schedules of the daily jobs, in the scheduler time zone
const (
	GenerateDailySchedule = "0 5 * * *"
	SendTelegramSchedule  = "0 7 * * *"
	CheckTrialsSchedule   = "0 9 * * *"
)

// CronManager manages scheduled jobs
type CronManager struct {
	cron   *cron.Cron
	runner *Runner
	logger logger.Logger
}

// NewCronManager creates a new cron manager firing in loc
func NewCronManager(runner *Runner, loc *time.Location, log logger.Logger) *CronManager {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.Default()
	}

	return &CronManager{
		cron:   cron.New(cron.WithLocation(loc)),
		runner: runner,
		logger: log,
	}
}

// SetupJobs configures all scheduled jobs
func (cm *CronManager) SetupJobs() error {
	cm.logger.Info("Setting up cron jobs...")

	jobs := []struct {
		name     string
		schedule string
		run      func(ctx context.Context) error
	}{
		{"generate-daily", GenerateDailySchedule, func(ctx context.Context) error {
			_, err := cm.runner.GenerateDaily(ctx)
			return err
		}},
		{"send-telegram", SendTelegramSchedule, func(ctx context.Context) error {
			_, err := cm.runner.SendTelegram(ctx)
			return err
		}},
		{"check-trials", CheckTrialsSchedule, func(ctx context.Context) error {
			_, err := cm.runner.CheckTrials(ctx)
			return err
		}},
	}

	for _, j := range jobs {
		if _, err := cm.cron.AddFunc(j.schedule, cm.wrap(j.name, j.run)); err != nil {
			return err
		}
	}

	cm.logger.Info("✅ Cron jobs configured successfully",
		"generate_daily", GenerateDailySchedule,
		"send_telegram", SendTelegramSchedule,
		"check_trials", CheckTrialsSchedule,
	)
	return nil
}

func (cm *CronManager) wrap(name string, run func(ctx context.Context) error) func() {
	return func() {
		cm.logger.Info("🕐 Running scheduled job", "job", name)

		start := time.Now()
		if err := run(context.Background()); err != nil {
			cm.logger.Error("❌ Scheduled job failed", "job", name, "error", err)
			return
		}
		cm.logger.Info("✅ Scheduled job completed", "job", name, "duration", time.Since(start).String())
	}
}

// Start starts the cron scheduler
func (cm *CronManager) Start() {
	cm.logger.Info("🚀 Starting cron scheduler...")
	cm.cron.Start()
}

// Stop stops the cron scheduler. The returned context is done once running jobs finish.
func (cm *CronManager) Stop() context.Context {
	cm.logger.Info("🛑 Stopping cron scheduler...")
	return cm.cron.Stop()
}

// Entries returns the registered schedule entries
func (cm *CronManager) Entries() []cron.Entry {
	return cm.cron.Entries()
}
