package models

// ProfileUpdateRequest updates personal data and preferences; nil fields are left untouched
type ProfileUpdateRequest struct {
	FirstName          *string `json:"first_name,omitempty" validate:"omitempty,max=100"`
	LastName           *string `json:"last_name,omitempty" validate:"omitempty,max=100"`
	Gender             *string `json:"gender,omitempty" validate:"omitempty,max=32"`
	Phone              *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	PreferredLanguage  *string `json:"preferred_language,omitempty" validate:"omitempty,oneof=it en"`
	ReportFormat       *string `json:"report_format,omitempty" validate:"omitempty,oneof=text audio both"`
	NotificationsEmail *bool   `json:"notifications_email,omitempty"`
	NotificationsPush  *bool   `json:"notifications_push,omitempty"`
}

// BirthDataRequest saves the natal data collected during onboarding
type BirthDataRequest struct {
	BirthDate        *string  `json:"birth_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	BirthTime        *string  `json:"birth_time,omitempty" validate:"omitempty,datetime=15:04"`
	BirthTimeUnknown bool     `json:"birth_time_unknown"`
	BirthCity        string   `json:"birth_city" validate:"required,max=120"`
	BirthCountry     string   `json:"birth_country" validate:"required,max=120"`
	BirthLat         *float64 `json:"birth_lat,omitempty" validate:"omitempty,latitude"`
	BirthLng         *float64 `json:"birth_lng,omitempty" validate:"omitempty,longitude"`
	BirthTimezone    *string  `json:"birth_timezone,omitempty" validate:"omitempty,timezone"`
}

// BirthDataResponse reports the derived sun sign
type BirthDataResponse struct {
	OK      bool   `json:"ok"`
	SunSign string `json:"sun_sign,omitempty"`
}

// LifeSituationRequest is the free-form life context used to ground Luna
type LifeSituationRequest struct {
	RelationshipStatus *string  `json:"relationship_status"`
	WorkSituation      *string  `json:"work_situation"`
	Goals              []string `json:"goals"`
	SensitiveTopics    []string `json:"sensitive_topics"`
	Notes              string   `json:"notes"`
}

// GeoInfo is the registration geolocation derived from the client IP
type GeoInfo struct {
	RegCity       string   `json:"reg_city"`
	RegRegion     string   `json:"reg_region"`
	RegCountry    string   `json:"reg_country"`
	RegPostalCode string   `json:"reg_postal_code"`
	RegLat        *float64 `json:"reg_lat"`
	RegLng        *float64 `json:"reg_lng"`
	RegISP        string   `json:"reg_isp"`
}

// GeoResponse is returned by the registration geolocation endpoint
type GeoResponse struct {
	OK  bool     `json:"ok"`
	Geo *GeoInfo `json:"geo"`
}

// PartnerRequest creates or updates a partner profile
type PartnerRequest struct {
	Name              string   `json:"name" validate:"required,max=120"`
	RelationshipType  string   `json:"relationship_type" validate:"omitempty,max=32"`
	RelationshipStart *string  `json:"relationship_start,omitempty" validate:"omitempty,datetime=2006-01-02"`
	BirthDate         *string  `json:"birth_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	BirthTime         *string  `json:"birth_time,omitempty" validate:"omitempty,datetime=15:04"`
	BirthTimeUnknown  bool     `json:"birth_time_unknown"`
	BirthCity         *string  `json:"birth_city,omitempty"`
	BirthCountry      *string  `json:"birth_country,omitempty"`
	BirthLat          *float64 `json:"birth_lat,omitempty" validate:"omitempty,latitude"`
	BirthLng          *float64 `json:"birth_lng,omitempty" validate:"omitempty,longitude"`
	BirthTimezone     *string  `json:"birth_timezone,omitempty"`
	Notes             *string  `json:"notes,omitempty" validate:"omitempty,max=2000"`
}
