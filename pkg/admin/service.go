// Package admin implements the CRM back office: key figures, user management,
// geographic breakdowns and marketing segments.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/astrapersonal/astra-api/pkg/domain"
	"github.com/astrapersonal/astra-api/pkg/logger"
	"github.com/astrapersonal/astra-api/pkg/models"
	"github.com/astrapersonal/astra-api/pkg/store"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200

	defaultLogLimit = 20
	maxLogLimit     = 100

	dashboardJobs  = 5
	detailSessions = 10
)

// Audit action types
const (
	ActionSubscriptionOverride = "subscription_override"
	ActionBan                  = "ban"
)

const crmColumns = `profiles.id, profiles.email, profiles.first_name, profiles.last_name,
	profiles.sun_sign, profiles.is_active, profiles.reg_city, profiles.reg_region,
	profiles.reg_country, profiles.reg_postal_code, profiles.last_login_at, profiles.created_at,
	COALESCE(subscriptions.plan, '') AS plan,
	COALESCE(subscriptions.status, '') AS sub_status,
	COALESCE(subscriptions.luna_minutes_balance, 0) AS luna_minutes_balance`

// UserFilter narrows the CRM user list
type UserFilter struct {
	Page    int
	Limit   int
	Country string
	Plan    string
	Search  string
}

// Service handles admin operations
type Service struct {
	db       *gorm.DB
	location *time.Location
	logger   logger.Logger
	now      func() time.Time
}

// NewService creates a new admin service. Dashboard days are taken in loc.
func NewService(db *gorm.DB, loc *time.Location, log logger.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		db:       db,
		location: loc,
		logger:   log,
		now:      time.Now,
	}
}

func (s *Service) crmUsers(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("profiles").
		Select(crmColumns).
		Joins("LEFT JOIN subscriptions ON subscriptions.user_id = profiles.id")
}

// Dashboard returns the CRM key figures
func (s *Service) Dashboard(ctx context.Context) (*models.DashboardResponse, error) {
	db := s.db.WithContext(ctx)
	resp := &models.DashboardResponse{LastJobs: []store.SchedulerJob{}}

	local := s.now().In(s.location)
	day := local.Format(store.DateLayout)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.location).UTC()

	counts := []struct {
		dst   *int64
		query *gorm.DB
	}{
		{&resp.Users.Total, db.Model(&store.Profile{})},
		{&resp.Users.Trial, db.Model(&store.Subscription{}).Where("status = ?", store.SubscriptionTrial)},
		{&resp.Users.Active, db.Model(&store.Subscription{}).Where("status = ?", store.SubscriptionActive)},
		{&resp.Users.Expired, db.Model(&store.Subscription{}).Where("status = ?", store.SubscriptionExpired)},
		{&resp.Users.TelegramConnected, db.Model(&store.TelegramConnection{}).Where("status = ?", store.TelegramActive)},
		{&resp.Today.LunaSessions, db.Model(&store.LunaSession{}).Where("created_at >= ?", midnight)},
		{&resp.Today.HoroscopesGenerated, db.Model(&store.DailyHoroscope{}).Where("horoscope_date = ?", day)},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dst).Error; err != nil {
			return nil, domain.NewInternalError(err)
		}
	}

	err := db.Order("created_at DESC").Limit(dashboardJobs).Find(&resp.LastJobs).Error
	if err != nil {
		return nil, domain.NewInternalError(err)
	}
	return resp, nil
}

// ListUsers returns one page of users, newest first
func (s *Service) ListUsers(ctx context.Context, f UserFilter) (*models.UserListResponse, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}

	q := s.crmUsers(ctx)
	if f.Country != "" {
		q = q.Where("profiles.reg_country = ?", f.Country)
	}
	if f.Plan != "" {
		q = q.Where("subscriptions.plan = ?", f.Plan)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(profiles.email) LIKE ? OR LOWER(profiles.first_name) LIKE ? OR LOWER(profiles.last_name) LIKE ?", like, like, like)
	}

	users := []models.CRMUser{}
	err := q.Order("profiles.created_at DESC").
		Offset((f.Page - 1) * f.Limit).
		Limit(f.Limit).
		Scan(&users).Error
	if err != nil {
		return nil, domain.NewInternalError(err)
	}
	return &models.UserListResponse{Users: users, Page: f.Page, Limit: f.Limit}, nil
}

// UserDetail returns everything recorded about one user
func (s *Service) UserDetail(ctx context.Context, userID string) (*models.UserDetailResponse, error) {
	db := s.db.WithContext(ctx)

	var p store.Profile
	err := db.Where("id = ?", userID).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewNotFoundError("user")
	}
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	resp := &models.UserDetailResponse{
		Profile:      &p,
		Partners:     []store.PartnerProfile{},
		LunaSessions: []store.LunaSession{},
		Orders:       []store.ServiceOrder{},
		Reports:      []store.GeneratedReport{},
	}

	sub, err := store.FindSubscription(ctx, s.db, userID)
	switch {
	case err == nil:
		resp.Subscription = sub
	case !errors.Is(err, store.ErrNoSubscription):
		return nil, domain.NewInternalError(err)
	}

	var conn store.TelegramConnection
	err = db.Where("user_id = ?", userID).Order("created_at DESC").Take(&conn).Error
	switch {
	case err == nil:
		resp.Telegram = &conn
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, domain.NewInternalError(err)
	}

	queries := []struct {
		dst   any
		query *gorm.DB
	}{
		{&resp.Partners, db.Where("user_id = ?", userID).Order("created_at")},
		{&resp.LunaSessions, db.Where("user_id = ?", userID).Order("created_at DESC").Limit(detailSessions)},
		{&resp.Orders, db.Where("user_id = ?", userID).Order("created_at DESC")},
		{&resp.Reports, db.Select("id", "user_id", "service_type", "status", "created_at").Where("user_id = ?", userID).Order("created_at DESC")},
	}
	for _, q := range queries {
		if err := q.query.Find(q.dst).Error; err != nil {
			return nil, domain.NewInternalError(err)
		}
	}
	return resp, nil
}

// OverrideSubscription applies a manual plan change, optionally grants
// minutes, and records the action
func (s *Service) OverrideSubscription(ctx context.Context, adminID, userID string, req models.SubscriptionOverrideRequest) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&store.Subscription{}).
			Where("user_id = ?", userID).
			Updates(map[string]any{
				"plan":             req.Plan,
				"status":           req.Status,
				"manually_managed": true,
				"admin_notes":      req.AdminNotes,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return store.ErrNoSubscription
		}

		if req.LunaMinutesAdd > 0 {
			if err := store.AddLunaMinutes(ctx, tx, userID, req.LunaMinutesAdd); err != nil {
				return err
			}
		}

		return s.audit(tx, adminID, userID, ActionSubscriptionOverride,
			fmt.Sprintf("Piano: %s, Stato: %s", req.Plan, req.Status), req)
	})
	if errors.Is(err, store.ErrNoSubscription) {
		return domain.NewNotFoundError("subscription")
	}
	if err != nil {
		return domain.NewInternalError(err)
	}

	s.logger.Info("subscription overridden", "admin_id", adminID, "user_id", userID, "plan", req.Plan, "status", req.Status, "minutes_added", req.LunaMinutesAdd)
	return nil
}

// Ban deactivates a user account
func (s *Service) Ban(ctx context.Context, adminID, userID string) error {
	errNoProfile := errors.New("profile not found")
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&store.Profile{}).Where("id = ?", userID).Update("is_active", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errNoProfile
		}
		return s.audit(tx, adminID, userID, ActionBan, "Account disattivato", nil)
	})
	if errors.Is(err, errNoProfile) {
		return domain.NewNotFoundError("user")
	}
	if err != nil {
		return domain.NewInternalError(err)
	}

	s.logger.Warn("user banned", "admin_id", adminID, "user_id", userID)
	return nil
}

func (s *Service) audit(tx *gorm.DB, adminID, userID, action, description string, payload any) error {
	entry := store.AdminAction{
		AdminUserID:  adminID,
		TargetUserID: userID,
		ActionType:   action,
		Description:  description,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode audit payload: %w", err)
		}
		entry.Payload = datatypes.JSON(raw)
	}
	return tx.Create(&entry).Error
}

// GeoSummary counts users per registration country and region
func (s *Service) GeoSummary(ctx context.Context) ([]models.GeoSummaryRow, error) {
	rows := []models.GeoSummaryRow{}
	err := s.db.WithContext(ctx).
		Model(&store.Profile{}).
		Select("reg_country, reg_region, COUNT(*) AS users").
		Where("reg_country <> ''").
		Group("reg_country, reg_region").
		Order("users DESC, reg_country, reg_region").
		Scan(&rows).Error
	if err != nil {
		return nil, domain.NewInternalError(err)
	}
	return rows, nil
}

// UsersByArea lists the users registered from a country, optionally narrowed
// to a region and postal code
func (s *Service) UsersByArea(ctx context.Context, country, region, postalCode string) ([]models.CRMUser, error) {
	if country == "" {
		return nil, domain.NewValidationError("country is required")
	}

	q := s.crmUsers(ctx).Where("profiles.reg_country = ?", country)
	if region != "" {
		q = q.Where("profiles.reg_region = ?", region)
	}
	if postalCode != "" {
		q = q.Where("profiles.reg_postal_code = ?", postalCode)
	}

	users := []models.CRMUser{}
	if err := q.Order("profiles.created_at DESC").Scan(&users).Error; err != nil {
		return nil, domain.NewInternalError(err)
	}
	return users, nil
}

// SchedulerLogs returns the most recent batch job rows
func (s *Service) SchedulerLogs(ctx context.Context, limit int) ([]store.SchedulerJob, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}

	jobs := []store.SchedulerJob{}
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&jobs).Error
	if err != nil {
		return nil, domain.NewInternalError(err)
	}
	return jobs, nil
}
