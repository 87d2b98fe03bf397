package models

import (
	"time"

	"github.com/astrapersonal/astra-api/pkg/store"
)

// SubscriptionOverrideRequest is a manual subscription change by an admin
type SubscriptionOverrideRequest struct {
	Plan           string  `json:"plan" validate:"required,max=32"`
	Status         string  `json:"status" validate:"required,oneof=trial active expired cancelled paused"`
	LunaMinutesAdd int     `json:"luna_minutes_add" validate:"gte=0,lte=10000"`
	AdminNotes     *string `json:"admin_notes,omitempty" validate:"omitempty,max=2000"`
}

// SegmentRequest creates a marketing segment
type SegmentRequest struct {
	Name              string         `json:"name" validate:"required,max=120"`
	Description       *string        `json:"description,omitempty"`
	TargetCountries   []string       `json:"target_countries"`
	TargetRegions     []string       `json:"target_regions"`
	TargetPostalCodes []string       `json:"target_postal_codes"`
	TargetPlans       []string       `json:"target_plans"`
	OfferType         *string        `json:"offer_type,omitempty"`
	OfferPayload      map[string]any `json:"offer_payload,omitempty"`
	ValidFrom         *string        `json:"valid_from,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ValidUntil        *string        `json:"valid_until,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// AssignResponse reports how many users a segment received
type AssignResponse struct {
	OK       bool `json:"ok"`
	Assigned int  `json:"assigned"`
}

// DashboardResponse holds the CRM key figures
type DashboardResponse struct {
	Users    DashboardUsers       `json:"users"`
	Today    DashboardToday       `json:"today"`
	LastJobs []store.SchedulerJob `json:"last_jobs"`
}

// DashboardUsers counts profiles by subscription state
type DashboardUsers struct {
	Total             int64 `json:"total"`
	Trial             int64 `json:"trial"`
	Active            int64 `json:"active"`
	Expired           int64 `json:"expired"`
	TelegramConnected int64 `json:"telegram_connected"`
}

// DashboardToday counts today's activity
type DashboardToday struct {
	LunaSessions        int64 `json:"luna_sessions"`
	HoroscopesGenerated int64 `json:"horoscopes_generated"`
}

// CRMUser is one row of the admin user list
type CRMUser struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	SunSign            string     `json:"sun_sign"`
	IsActive           bool       `json:"is_active"`
	RegCity            string     `json:"reg_city"`
	RegRegion          string     `json:"reg_region"`
	RegCountry         string     `json:"reg_country"`
	RegPostalCode      string     `json:"reg_postal_code"`
	Plan               string     `json:"plan"`
	SubStatus          string     `json:"sub_status"`
	LunaMinutesBalance int        `json:"luna_minutes_balance"`
	LastLoginAt        *time.Time `json:"last_login_at"`
	CreatedAt          time.Time  `json:"created_at"`
}

// UserListResponse is a page of CRM users
type UserListResponse struct {
	Users []CRMUser `json:"users"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
}

// GeoSummaryRow counts users per country and region
type GeoSummaryRow struct {
	RegCountry string `json:"reg_country"`
	RegRegion  string `json:"reg_region"`
	Users      int64  `json:"users"`
}

// UserDetailResponse is everything the CRM shows for one user
type UserDetailResponse struct {
	Profile      *store.Profile            `json:"profile"`
	Subscription *store.Subscription       `json:"subscription"`
	Partners     []store.PartnerProfile    `json:"partners"`
	Telegram     *store.TelegramConnection `json:"telegram"`
	LunaSessions []store.LunaSession       `json:"luna_sessions"`
	Orders       []store.ServiceOrder      `json:"orders"`
	Reports      []store.GeneratedReport   `json:"reports"`
}
