// Package store holds the typed row records persisted in the relational store
// and the few store operations that must be atomic.
package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Subscription lifecycle states
const (
	SubscriptionTrial     = "trial"
	SubscriptionActive    = "active"
	SubscriptionExpired   = "expired"
	SubscriptionCancelled = "cancelled"
	SubscriptionPaused    = "paused"

	PlanFree  = "free"
	PlanTrial = "trial"
)

// Luna session states and end reasons
const (
	SessionActive = "active"
	SessionPaused = "paused"
	SessionEnded  = "ended"

	EndedByUser   = "user_ended"
	EndedByExpiry = "time_expired"

	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Telegram connection states
const (
	TelegramActive  = "active"
	TelegramPaused  = "paused"
	TelegramBlocked = "blocked"
)

// Order and job states
const (
	OrderPending = "pending"
	OrderPaid    = "paid"

	HoroscopeCompleted = "completed"

	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"

	JobDailyGeneration = "daily_generation"
	JobTelegramPush    = "telegram_push"
	JobTrialCheck      = "trial_check"
)

// DateLayout is the calendar-date format used for date keyed rows
const DateLayout = "2006-01-02"

// Base carries the generated identifier and timestamps shared by most rows
type Base struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID when the caller did not provide one
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// Profile is the caller's personal and natal data. ID equals the identity provider user id.
type Profile struct {
	ID                  string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Email               string         `gorm:"index" json:"email"`
	FirstName           string         `json:"first_name"`
	LastName            string         `json:"last_name"`
	Gender              string         `json:"gender,omitempty"`
	Phone               string         `json:"phone,omitempty"`
	PreferredLanguage   string         `gorm:"type:varchar(8)" json:"preferred_language"`
	ReportFormat        string         `gorm:"type:varchar(16)" json:"report_format"`
	NotificationsEmail  bool           `json:"notifications_email"`
	NotificationsPush   bool           `json:"notifications_push"`
	BirthDate           *string        `gorm:"type:varchar(10)" json:"birth_date"`
	BirthTime           *string        `gorm:"type:varchar(8)" json:"birth_time"`
	BirthTimeUnknown    bool           `json:"birth_time_unknown"`
	BirthCity           string         `json:"birth_city"`
	BirthCountry        string         `json:"birth_country"`
	BirthLat            *float64       `json:"birth_lat"`
	BirthLng            *float64       `json:"birth_lng"`
	BirthTimezone       *string        `json:"birth_timezone"`
	SunSign             string         `json:"sun_sign"`
	MoonSign            string         `json:"moon_sign"`
	Ascendant           string         `json:"ascendant"`
	NatalChart          datatypes.JSON `json:"natal_chart,omitempty"`
	LifeSituation       datatypes.JSON `json:"life_situation,omitempty"`
	OnboardingCompleted bool           `json:"onboarding_completed"`
	IsActive            bool           `gorm:"index" json:"is_active"`
	TelegramLinkToken   *string        `gorm:"index" json:"-"`
	RegIP               string         `json:"reg_ip,omitempty"`
	RegCity             string         `json:"reg_city,omitempty"`
	RegRegion           string         `json:"reg_region,omitempty"`
	RegCountry          string         `gorm:"index" json:"reg_country,omitempty"`
	RegPostalCode       string         `json:"reg_postal_code,omitempty"`
	RegLat              *float64       `json:"reg_lat,omitempty"`
	RegLng              *float64       `json:"reg_lng,omitempty"`
	RegISP              string         `json:"reg_isp,omitempty"`
	LastLoginAt         *time.Time     `json:"last_login_at,omitempty"`
	LastLoginIP         string         `json:"last_login_ip,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }

// Subscription is one-to-one with Profile and owns the Luna minute balance
type Subscription struct {
	Base
	UserID               string     `gorm:"type:varchar(36);uniqueIndex" json:"user_id"`
	Plan                 string     `gorm:"type:varchar(32)" json:"plan"`
	Status               string     `gorm:"type:varchar(16);index" json:"status"`
	LunaMinutesBalance   int        `gorm:"not null" json:"luna_minutes_balance"`
	LunaMinutesUsed      int        `gorm:"not null" json:"luna_minutes_used"`
	StripeCustomerID     *string    `gorm:"index" json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID *string    `gorm:"index" json:"stripe_subscription_id,omitempty"`
	TrialEnd             *time.Time `json:"trial_end,omitempty"`
	CancelledAt          *time.Time `json:"cancelled_at,omitempty"`
	ManuallyManaged      bool       `json:"manually_managed"`
	AdminNotes           *string    `json:"admin_notes,omitempty"`
}

func (Subscription) TableName() string { return "subscriptions" }

// LunaSession is one metered conversation. ContextSnapshot is written once at start.
type LunaSession struct {
	Base
	UserID          string         `gorm:"type:varchar(36);index" json:"user_id"`
	PartnerID       *string        `gorm:"type:varchar(36)" json:"partner_id,omitempty"`
	Status          string         `gorm:"type:varchar(16);index" json:"status"`
	VoiceUsed       bool           `json:"voice_used"`
	ContextSnapshot datatypes.JSON `json:"context_snapshot,omitempty"`
	MessagesCount   int            `gorm:"not null" json:"messages_count"`
	EndedAt         *time.Time     `json:"ended_at,omitempty"`
	EndedReason     *string        `json:"ended_reason,omitempty"`
	DurationMinutes *int           `json:"duration_minutes,omitempty"`
	MinutesCharged  *int           `json:"minutes_charged,omitempty"`
}

func (LunaSession) TableName() string { return "luna_sessions" }

// LunaMessage is an append-only conversation turn
type LunaMessage struct {
	Base
	SessionID  string  `gorm:"type:varchar(36);index" json:"session_id"`
	UserID     string  `gorm:"type:varchar(36)" json:"user_id"`
	Role       string  `gorm:"type:varchar(16)" json:"role"`
	Content    string  `gorm:"type:text" json:"content"`
	AudioURL   *string `json:"audio_url,omitempty"`
	TokensUsed *int    `json:"tokens_used,omitempty"`
}

func (LunaMessage) TableName() string { return "luna_messages" }

// PartnerProfile is soft deleted through IsActive
type PartnerProfile struct {
	Base
	UserID            string   `gorm:"type:varchar(36);index" json:"user_id"`
	Name              string   `json:"name"`
	RelationshipType  string   `json:"relationship_type"`
	RelationshipStart *string  `gorm:"type:varchar(10)" json:"relationship_start,omitempty"`
	BirthDate         *string  `gorm:"type:varchar(10)" json:"birth_date,omitempty"`
	BirthTime         *string  `gorm:"type:varchar(8)" json:"birth_time,omitempty"`
	BirthTimeUnknown  bool     `json:"birth_time_unknown"`
	BirthCity         *string  `json:"birth_city,omitempty"`
	BirthCountry      *string  `json:"birth_country,omitempty"`
	BirthLat          *float64 `json:"birth_lat,omitempty"`
	BirthLng          *float64 `json:"birth_lng,omitempty"`
	BirthTimezone     *string  `json:"birth_timezone,omitempty"`
	SunSign           string   `json:"sun_sign,omitempty"`
	MoonSign          string   `json:"moon_sign,omitempty"`
	Ascendant         string   `json:"ascendant,omitempty"`
	Notes             *string  `json:"notes,omitempty"`
	IsActive          bool     `gorm:"index" json:"is_active"`
}

func (PartnerProfile) TableName() string { return "partner_profiles" }

// DailyHoroscope is unique per (user, calendar date)
type DailyHoroscope struct {
	Base
	UserID         string         `gorm:"type:varchar(36);uniqueIndex:ux_daily_horoscopes_user_date,priority:1" json:"user_id"`
	HoroscopeDate  string         `gorm:"type:varchar(10);uniqueIndex:ux_daily_horoscopes_user_date,priority:2" json:"horoscope_date"`
	TextContent    string         `gorm:"type:text" json:"text_content"`
	SectionGeneral string         `gorm:"type:text" json:"section_general"`
	SectionLove    string         `gorm:"type:text" json:"section_love"`
	SectionWork    string         `gorm:"type:text" json:"section_work"`
	SectionHealth  string         `gorm:"type:text" json:"section_health"`
	OverallScore   int            `json:"overall_score"`
	PlanetaryData  datatypes.JSON `json:"planetary_data,omitempty"`
	Status         string         `gorm:"type:varchar(16)" json:"status"`
	GeneratedAt    *time.Time     `json:"generated_at,omitempty"`
	TelegramSent   bool           `json:"telegram_sent"`
	TelegramSentAt *time.Time     `json:"telegram_sent_at,omitempty"`
	AudioURL       *string        `json:"audio_url,omitempty"`
}

func (DailyHoroscope) TableName() string { return "daily_horoscopes" }

// SchedulerJob is the bookkeeping row of one batch run
type SchedulerJob struct {
	Base
	JobType        string         `gorm:"type:varchar(32);index" json:"job_type"`
	JobDate        string         `gorm:"type:varchar(10)" json:"job_date"`
	Status         string         `gorm:"type:varchar(16)" json:"status"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	UsersProcessed int            `json:"users_processed"`
	UsersSuccess   int            `json:"users_success"`
	UsersFailed    int            `json:"users_failed"`
	ErrorLog       datatypes.JSON `json:"error_log,omitempty"`
}

func (SchedulerJob) TableName() string { return "scheduler_jobs" }

// TelegramConnection links a chat to a profile
type TelegramConnection struct {
	Base
	UserID        string     `gorm:"type:varchar(36);index" json:"user_id"`
	ChatID        int64      `gorm:"uniqueIndex" json:"chat_id"`
	Username      string     `json:"username"`
	FirstName     string     `json:"first_name"`
	Status        string     `gorm:"type:varchar(16);index" json:"status"`
	SendVoice     bool       `json:"send_voice"`
	ConnectedAt   *time.Time `json:"connected_at,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}

func (TelegramConnection) TableName() string { return "telegram_connections" }

// LunaMinutePack is a purchase intent for Luna minutes
type LunaMinutePack struct {
	Base
	UserID              string     `gorm:"type:varchar(36);index" json:"user_id"`
	PackName            string     `json:"pack_name"`
	MinutesPurchased    int        `json:"minutes_purchased"`
	PriceEUR            float64    `json:"price_eur"`
	OrderStatus         string     `gorm:"type:varchar(16)" json:"order_status"`
	StripeSessionID     *string    `gorm:"index" json:"stripe_session_id,omitempty"`
	StripePaymentIntent *string    `json:"stripe_payment_intent,omitempty"`
	PaidAt              *time.Time `json:"paid_at,omitempty"`
	IsConsumed          bool       `json:"is_consumed"`
}

func (LunaMinutePack) TableName() string { return "luna_minute_packs" }

// ServiceOrder is a one-off report purchase
type ServiceOrder struct {
	Base
	UserID      string     `gorm:"type:varchar(36);index" json:"user_id"`
	ServiceType string     `json:"service_type"`
	PartnerID   *string    `gorm:"type:varchar(36)" json:"partner_id,omitempty"`
	OrderStatus string     `gorm:"type:varchar(16)" json:"order_status"`
	Status      string     `gorm:"type:varchar(16)" json:"status"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
}

func (ServiceOrder) TableName() string { return "services_orders" }

// GeneratedReport is produced downstream from a paid ServiceOrder
type GeneratedReport struct {
	Base
	UserID      string `gorm:"type:varchar(36);index" json:"user_id"`
	ServiceType string `json:"service_type"`
	Status      string `json:"status"`
}

func (GeneratedReport) TableName() string { return "generated_reports" }

// ProcessedEvent is the webhook idempotency ledger, keyed by provider event id
type ProcessedEvent struct {
	EventID     string    `gorm:"primaryKey;type:varchar(255)" json:"event_id"`
	EventType   string    `json:"event_type"`
	ProcessedAt time.Time `json:"processed_at"`
}

func (ProcessedEvent) TableName() string { return "processed_events" }

// AdminAction is the audit trail of admin operations
type AdminAction struct {
	Base
	AdminUserID  string         `gorm:"type:varchar(36)" json:"admin_user_id"`
	TargetUserID string         `gorm:"type:varchar(36);index" json:"target_user_id"`
	ActionType   string         `json:"action_type"`
	Description  string         `json:"description"`
	Payload      datatypes.JSON `json:"payload,omitempty"`
}

func (AdminAction) TableName() string { return "admin_actions" }

// MarketingSegment targets users by geography and plan
type MarketingSegment struct {
	Base
	Name              string         `json:"name"`
	Description       *string        `json:"description,omitempty"`
	TargetCountries   datatypes.JSON `json:"target_countries,omitempty"`
	TargetRegions     datatypes.JSON `json:"target_regions,omitempty"`
	TargetPostalCodes datatypes.JSON `json:"target_postal_codes,omitempty"`
	TargetPlans       datatypes.JSON `json:"target_plans,omitempty"`
	OfferType         *string        `json:"offer_type,omitempty"`
	OfferPayload      datatypes.JSON `json:"offer_payload,omitempty"`
	ValidFrom         *string        `json:"valid_from,omitempty"`
	ValidUntil        *string        `json:"valid_until,omitempty"`
}

func (MarketingSegment) TableName() string { return "marketing_segments" }

// UserSegmentAssignment is unique per (user, segment)
type UserSegmentAssignment struct {
	UserID    string    `gorm:"primaryKey;type:varchar(36)" json:"user_id"`
	SegmentID string    `gorm:"primaryKey;type:varchar(36)" json:"segment_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (UserSegmentAssignment) TableName() string { return "user_segment_assignments" }

// All lists every record for schema migration
func All() []any {
	return []any{
		&Profile{},
		&Subscription{},
		&LunaSession{},
		&LunaMessage{},
		&PartnerProfile{},
		&DailyHoroscope{},
		&SchedulerJob{},
		&TelegramConnection{},
		&LunaMinutePack{},
		&ServiceOrder{},
		&GeneratedReport{},
		&ProcessedEvent{},
		&AdminAction{},
		&MarketingSegment{},
		&UserSegmentAssignment{},
	}
}

// AutoMigrate creates or updates the tables for every record
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}
