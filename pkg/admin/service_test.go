package admin

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/astrapersonal/astra-api/pkg/domain"
	"github.com/astrapersonal/astra-api/pkg/logger"
	"github.com/astrapersonal/astra-api/pkg/models"
	"github.com/astrapersonal/astra-api/pkg/store"
	"github.com/astrapersonal/astra-api/pkg/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var rome = time.FixedZone("CEST", 2*60*60)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := storetest.Open(t)
	return NewService(db, rome, logger.Nop()), db
}

func seedGeo(t *testing.T, db *gorm.DB, id, country, region, postal string) {
	t.Helper()
	storetest.SeedProfile(t, db, id, func(p *store.Profile) {
		p.RegCountry = country
		p.RegRegion = region
		p.RegPostalCode = postal
	})
}

func TestDashboard(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	now := time.Now()

	storetest.SeedProfile(t, db, "u1")
	storetest.SeedProfile(t, db, "u2")
	storetest.SeedProfile(t, db, "u3")
	storetest.SeedSubscription(t, db, "u1", 0, func(s *store.Subscription) { s.Status = store.SubscriptionTrial })
	storetest.SeedSubscription(t, db, "u2", 0)
	storetest.SeedSubscription(t, db, "u3", 0, func(s *store.Subscription) { s.Status = store.SubscriptionExpired })

	require.NoError(t, db.Create(&store.TelegramConnection{UserID: "u1", ChatID: 1, Status: store.TelegramActive}).Error)
	require.NoError(t, db.Create(&store.TelegramConnection{UserID: "u2", ChatID: 2, Status: store.TelegramPaused}).Error)

	require.NoError(t, db.Create(&store.LunaSession{UserID: "u1", Status: store.SessionEnded}).Error)
	old := store.LunaSession{UserID: "u1", Status: store.SessionEnded}
	old.CreatedAt = now.Add(-72 * time.Hour).UTC()
	require.NoError(t, db.Create(&old).Error)

	day := now.In(rome).Format(store.DateLayout)
	require.NoError(t, db.Create(&store.DailyHoroscope{UserID: "u1", HoroscopeDate: day, Status: store.HoroscopeCompleted}).Error)
	require.NoError(t, db.Create(&store.DailyHoroscope{UserID: "u1", HoroscopeDate: "2020-01-01", Status: store.HoroscopeCompleted}).Error)

	for i := 0; i < 7; i++ {
		require.NoError(t, db.Create(&store.SchedulerJob{JobType: store.JobTrialCheck, Status: store.JobCompleted}).Error)
	}

	resp, err := svc.Dashboard(ctx)
	require.NoError(t, err)

	assert.Equal(t, models.DashboardUsers{Total: 3, Trial: 1, Active: 1, Expired: 1, TelegramConnected: 1}, resp.Users)
	assert.Equal(t, int64(1), resp.Today.LunaSessions)
	assert.Equal(t, int64(1), resp.Today.HoroscopesGenerated)
	assert.Len(t, resp.LastJobs, 5)
}

func TestListUsers(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	seedGeo(t, db, "u1", "IT", "Lazio", "00100")
	seedGeo(t, db, "u2", "IT", "Lombardia", "20100")
	seedGeo(t, db, "u3", "CH", "Ticino", "6900")
	require.NoError(t, db.Model(&store.Profile{}).Where("id = ?", "u2").Update("last_name", "Verdi").Error)
	storetest.SeedSubscription(t, db, "u1", 25)

	t.Run("defaults", func(t *testing.T) {
		resp, err := svc.ListUsers(ctx, UserFilter{})
		require.NoError(t, err)
		assert.Equal(t, 1, resp.Page)
		assert.Equal(t, 50, resp.Limit)
		assert.Len(t, resp.Users, 3)
	})

	t.Run("joined subscription fields", func(t *testing.T) {
		resp, err := svc.ListUsers(ctx, UserFilter{Plan: "premium"})
		require.NoError(t, err)
		require.Len(t, resp.Users, 1)
		assert.Equal(t, "u1", resp.Users[0].ID)
		assert.Equal(t, store.SubscriptionActive, resp.Users[0].SubStatus)
		assert.Equal(t, 25, resp.Users[0].LunaMinutesBalance)
	})

	t.Run("users without subscription", func(t *testing.T) {
		resp, err := svc.ListUsers(ctx, UserFilter{Country: "CH"})
		require.NoError(t, err)
		require.Len(t, resp.Users, 1)
		assert.Equal(t, "", resp.Users[0].Plan)
		assert.Equal(t, 0, resp.Users[0].LunaMinutesBalance)
	})

	t.Run("search is case insensitive", func(t *testing.T) {
		resp, err := svc.ListUsers(ctx, UserFilter{Country: "IT", Search: "VERDI"})
		require.NoError(t, err)
		require.Len(t, resp.Users, 1)
		assert.Equal(t, "u2", resp.Users[0].ID)
	})

	t.Run("limit is capped", func(t *testing.T) {
		resp, err := svc.ListUsers(ctx, UserFilter{Page: 2, Limit: 1000})
		require.NoError(t, err)
		assert.Equal(t, 200, resp.Limit)
		assert.Empty(t, resp.Users)
	})
}

func TestUserDetail(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	storetest.SeedProfile(t, db, "u1")
	storetest.SeedSubscription(t, db, "u1", 10)
	require.NoError(t, db.Create(&store.PartnerProfile{UserID: "u1", Name: "Marco", IsActive: true}).Error)
	require.NoError(t, db.Create(&store.TelegramConnection{UserID: "u1", ChatID: 42, Status: store.TelegramActive}).Error)
	for i := 0; i < 12; i++ {
		require.NoError(t, db.Create(&store.LunaSession{UserID: "u1", Status: store.SessionEnded}).Error)
	}

	resp, err := svc.UserDetail(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", resp.Profile.ID)
	require.NotNil(t, resp.Subscription)
	assert.Equal(t, 10, resp.Subscription.LunaMinutesBalance)
	assert.Len(t, resp.Partners, 1)
	require.NotNil(t, resp.Telegram)
	assert.Equal(t, int64(42), resp.Telegram.ChatID)
	assert.Len(t, resp.LunaSessions, 10)
	assert.Empty(t, resp.Orders)

	_, err = svc.UserDetail(ctx, "missing")
	assert.True(t, domain.IsNotFound(err))
}

func TestOverrideSubscription(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	storetest.SeedProfile(t, db, "u1")
	storetest.SeedSubscription(t, db, "u1", 10)
	notes := "rimborso"

	err := svc.OverrideSubscription(ctx, "admin-1", "u1", models.SubscriptionOverrideRequest{
		Plan:           "premium_plus",
		Status:         store.SubscriptionActive,
		LunaMinutesAdd: 30,
		AdminNotes:     &notes,
	})
	require.NoError(t, err)

	sub, err := store.FindSubscription(ctx, db, "u1")
	require.NoError(t, err)
	assert.Equal(t, "premium_plus", sub.Plan)
	assert.True(t, sub.ManuallyManaged)
	assert.Equal(t, 40, sub.LunaMinutesBalance)
	require.NotNil(t, sub.AdminNotes)
	assert.Equal(t, "rimborso", *sub.AdminNotes)

	var action store.AdminAction
	require.NoError(t, db.Where("target_user_id = ?", "u1").Take(&action).Error)
	assert.Equal(t, ActionSubscriptionOverride, action.ActionType)
	assert.Equal(t, "admin-1", action.AdminUserID)
	assert.Equal(t, "Piano: premium_plus, Stato: active", action.Description)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(action.Payload, &payload))
	assert.Equal(t, float64(30), payload["luna_minutes_add"])

	err = svc.OverrideSubscription(ctx, "admin-1", "nobody", models.SubscriptionOverrideRequest{Plan: "free", Status: store.SubscriptionActive})
	assert.True(t, domain.IsNotFound(err))

	var count int64
	require.NoError(t, db.Model(&store.AdminAction{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestBan(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	storetest.SeedProfile(t, db, "u1")
	require.NoError(t, svc.Ban(ctx, "admin-1", "u1"))

	var p store.Profile
	require.NoError(t, db.Where("id = ?", "u1").Take(&p).Error)
	assert.False(t, p.IsActive)

	var action store.AdminAction
	require.NoError(t, db.Where("target_user_id = ?", "u1").Take(&action).Error)
	assert.Equal(t, ActionBan, action.ActionType)
	assert.Equal(t, "Account disattivato", action.Description)

	assert.True(t, domain.IsNotFound(svc.Ban(ctx, "admin-1", "missing")))
}

func TestGeoSummaryAndUsersByArea(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	seedGeo(t, db, "u1", "IT", "Lazio", "00100")
	seedGeo(t, db, "u2", "IT", "Lazio", "00118")
	seedGeo(t, db, "u3", "IT", "Lombardia", "20100")
	seedGeo(t, db, "u4", "", "", "")

	rows, err := svc.GeoSummary(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, models.GeoSummaryRow{RegCountry: "IT", RegRegion: "Lazio", Users: 2}, rows[0])

	users, err := svc.UsersByArea(ctx, "IT", "Lazio", "")
	require.NoError(t, err)
	assert.Len(t, users, 2)

	users, err = svc.UsersByArea(ctx, "IT", "Lazio", "00118")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "u2", users[0].ID)

	_, err = svc.UsersByArea(ctx, "", "Lazio", "")
	assert.True(t, domain.IsValidation(err))
}

func TestSegments(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	seedGeo(t, db, "u1", "IT", "Lazio", "00100")
	seedGeo(t, db, "u2", "IT", "Lombardia", "20100")
	seedGeo(t, db, "u3", "CH", "Ticino", "6900")
	storetest.SeedSubscription(t, db, "u1", 0)
	storetest.SeedSubscription(t, db, "u2", 0, func(s *store.Subscription) { s.Plan = store.PlanFree })

	seg, err := svc.CreateSegment(ctx, models.SegmentRequest{
		Name:            "Italia premium",
		TargetCountries: []string{"IT"},
		TargetPlans:     []string{"premium"},
		OfferPayload:    map[string]any{"discount": 20},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `["IT"]`, string(seg.TargetCountries))
	assert.Nil(t, seg.TargetRegions)

	resp, err := svc.AssignSegment(ctx, seg.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Assigned)

	// A second run matches again without duplicating rows
	resp, err = svc.AssignSegment(ctx, seg.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Assigned)

	var assignments []store.UserSegmentAssignment
	require.NoError(t, db.Find(&assignments).Error)
	require.Len(t, assignments, 1)
	assert.Equal(t, "u1", assignments[0].UserID)

	everyone, err := svc.CreateSegment(ctx, models.SegmentRequest{Name: "Tutti"})
	require.NoError(t, err)
	resp, err = svc.AssignSegment(ctx, everyone.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Assigned)

	list, err := svc.ListSegments(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = svc.AssignSegment(ctx, "missing")
	assert.True(t, domain.IsNotFound(err))
}

func TestSchedulerLogsLimit(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		require.NoError(t, db.Create(&store.SchedulerJob{JobType: store.JobDailyGeneration, Status: store.JobCompleted}).Error)
	}

	jobs, err := svc.SchedulerLogs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, jobs, 20)

	jobs, err = svc.SchedulerLogs(ctx, 500)
	require.NoError(t, err)
	assert.Len(t, jobs, 25)
}
