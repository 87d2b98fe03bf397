// Package profiles manages the caller's profile, natal data and partners
package profiles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/astrapersonal/astra-api/pkg/domain"
	"github.com/astrapersonal/astra-api/pkg/ephemeris"
	"github.com/astrapersonal/astra-api/pkg/geoip"
	"github.com/astrapersonal/astra-api/pkg/logger"
	"github.com/astrapersonal/astra-api/pkg/models"
	"github.com/astrapersonal/astra-api/pkg/store"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TrialPeriod is the length of the free trial granted at registration
const TrialPeriod = 7 * 24 * time.Hour

// ChartProvider computes natal charts
type ChartProvider interface {
	NatalChart(ctx context.Context, b ephemeris.BirthData) ephemeris.Chart
}

// GeoLocator resolves client IPs
type GeoLocator interface {
	Lookup(ctx context.Context, ip string) (*geoip.Location, error)
}

// Service handles profile business logic
type Service struct {
	db     *gorm.DB
	charts ChartProvider
	geo    GeoLocator
	logger logger.Logger
	now    func() time.Time
}

// NewService creates a new profile service
func NewService(db *gorm.DB, charts ChartProvider, geo GeoLocator, log logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		db:     db,
		charts: charts,
		geo:    geo,
		logger: log,
		now:    time.Now,
	}
}

// Account carries the identity fields known at registration or login
type Account struct {
	UserID    string
	Email     string
	FirstName string
	LastName  string
}

// EnsureAccount creates the profile if missing and, when withTrial is set,
// a trial subscription. Existing rows are left untouched.
func (s *Service) EnsureAccount(ctx context.Context, a Account, withTrial bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		profile := store.Profile{
			ID:                 a.UserID,
			Email:              a.Email,
			FirstName:          a.FirstName,
			LastName:           a.LastName,
			PreferredLanguage:  "it",
			ReportFormat:       "both",
			NotificationsEmail: true,
			NotificationsPush:  true,
			IsActive:           true,
		}
		if err := tx.Where(store.Profile{ID: a.UserID}).FirstOrCreate(&profile).Error; err != nil {
			return fmt.Errorf("ensure profile: %w", err)
		}

		if !withTrial {
			return nil
		}

		trialEnd := s.now().Add(TrialPeriod)
		sub := store.Subscription{
			UserID:   a.UserID,
			Plan:     store.PlanTrial,
			Status:   store.SubscriptionTrial,
			TrialEnd: &trialEnd,
		}
		if err := tx.Where(store.Subscription{UserID: a.UserID}).FirstOrCreate(&sub).Error; err != nil {
			return fmt.Errorf("ensure subscription: %w", err)
		}
		return nil
	})
}

// RecordLogin stores the login time and client IP
func (s *Service) RecordLogin(ctx context.Context, userID, ip string) error {
	now := s.now().UTC()
	err := s.db.WithContext(ctx).
		Model(&store.Profile{}).
		Where("id = ?", userID).
		Updates(map[string]any{"last_login_at": now, "last_login_ip": ip}).Error
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	return nil
}

// Get returns the caller's profile
func (s *Service) Get(ctx context.Context, userID string) (*store.Profile, error) {
	var p store.Profile
	err := s.db.WithContext(ctx).Where("id = ?", userID).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewNotFoundError("profile")
	}
	if err != nil {
		return nil, domain.NewInternalError(err)
	}
	return &p, nil
}

// Update applies the non-nil fields of req
func (s *Service) Update(ctx context.Context, userID string, req models.ProfileUpdateRequest) error {
	updates := map[string]any{}
	setIf(updates, "first_name", req.FirstName)
	setIf(updates, "last_name", req.LastName)
	setIf(updates, "gender", req.Gender)
	setIf(updates, "phone", req.Phone)
	setIf(updates, "preferred_language", req.PreferredLanguage)
	setIf(updates, "report_format", req.ReportFormat)
	setIf(updates, "notifications_email", req.NotificationsEmail)
	setIf(updates, "notifications_push", req.NotificationsPush)

	return s.updateProfile(ctx, userID, updates)
}

// SaveBirthData stores the natal data, derives the sun sign and fetches the natal chart.
// Onboarding is complete once both birth date and city are known.
func (s *Service) SaveBirthData(ctx context.Context, userID string, req models.BirthDataRequest) (*models.BirthDataResponse, error) {
	updates := map[string]any{
		"birth_time_unknown": req.BirthTimeUnknown,
		"birth_city":         req.BirthCity,
		"birth_country":      req.BirthCountry,
	}
	setIf(updates, "birth_date", req.BirthDate)
	setIf(updates, "birth_time", req.BirthTime)
	setIf(updates, "birth_lat", req.BirthLat)
	setIf(updates, "birth_lng", req.BirthLng)
	setIf(updates, "birth_timezone", req.BirthTimezone)

	resp := &models.BirthDataResponse{OK: true}

	if req.BirthDate != nil {
		sign, ok := SunSignFromString(*req.BirthDate)
		if !ok {
			return nil, domain.NewValidationError("birth_date must be YYYY-MM-DD")
		}
		updates["sun_sign"] = sign
		resp.SunSign = sign

		if req.BirthCity != "" {
			updates["onboarding_completed"] = true
		}

		if chart := s.natalChart(ctx, req); !chart.IsEmpty() {
			if raw, err := json.Marshal(chart); err == nil {
				updates["natal_chart"] = datatypes.JSON(raw)
			}
		}
	}

	if err := s.updateProfile(ctx, userID, updates); err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *Service) natalChart(ctx context.Context, req models.BirthDataRequest) ephemeris.Chart {
	if s.charts == nil {
		return nil
	}
	b := ephemeris.BirthData{
		Date:      *req.BirthDate,
		Latitude:  req.BirthLat,
		Longitude: req.BirthLng,
	}
	if req.BirthTime != nil && !req.BirthTimeUnknown {
		b.Time = *req.BirthTime
	}
	if req.BirthTimezone != nil {
		b.Timezone = *req.BirthTimezone
	}
	return s.charts.NatalChart(ctx, b)
}

// SaveRegistrationGeo geolocates ip and stores it on the profile.
// A failed lookup is not an error; the returned geo is nil.
func (s *Service) SaveRegistrationGeo(ctx context.Context, userID, ip string) (*models.GeoInfo, error) {
	if s.geo == nil {
		return nil, nil
	}

	loc, err := s.geo.Lookup(ctx, ip)
	if err != nil {
		s.logger.Warn("geo lookup failed", "user_id", userID, "error", err)
		return nil, nil
	}

	geo := &models.GeoInfo{
		RegCity:       loc.City,
		RegRegion:     loc.Region,
		RegCountry:    loc.CountryCode,
		RegPostalCode: loc.Postal,
		RegLat:        loc.Latitude,
		RegLng:        loc.Longitude,
		RegISP:        loc.Org,
	}

	err = s.updateProfile(ctx, userID, map[string]any{
		"reg_ip":          ip,
		"reg_city":        geo.RegCity,
		"reg_region":      geo.RegRegion,
		"reg_country":     geo.RegCountry,
		"reg_postal_code": geo.RegPostalCode,
		"reg_lat":         geo.RegLat,
		"reg_lng":         geo.RegLng,
		"reg_isp":         geo.RegISP,
	})
	if err != nil {
		return nil, err
	}
	return geo, nil
}

// LifeSituation is the stored shape of the life context
type LifeSituation struct {
	RelationshipStatus *string  `json:"relationship_status"`
	WorkSituation      *string  `json:"work_situation"`
	Goals              []string `json:"goals"`
	SensitiveTopics    []string `json:"sensitive_topics"`
	Notes              string   `json:"notes"`
}

// UpdateLifeSituation replaces the life context used to ground Luna
func (s *Service) UpdateLifeSituation(ctx context.Context, userID string, req models.LifeSituationRequest) error {
	ls := LifeSituation{
		RelationshipStatus: req.RelationshipStatus,
		WorkSituation:      req.WorkSituation,
		Goals:              req.Goals,
		SensitiveTopics:    req.SensitiveTopics,
		Notes:              req.Notes,
	}
	if ls.Goals == nil {
		ls.Goals = []string{}
	}
	if ls.SensitiveTopics == nil {
		ls.SensitiveTopics = []string{}
	}

	raw, err := json.Marshal(ls)
	if err != nil {
		return domain.NewInternalError(err)
	}
	return s.updateProfile(ctx, userID, map[string]any{"life_situation": datatypes.JSON(raw)})
}

func (s *Service) updateProfile(ctx context.Context, userID string, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&store.Profile{}).Where("id = ?", userID).Updates(updates)
	if res.Error != nil {
		return domain.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.NewNotFoundError("profile")
	}
	return nil
}

// setIf copies *v into m[key] when v is non-nil
func setIf[T any](m map[string]any, key string, v *T) {
	if v != nil {
		m[key] = *v
	}
}
