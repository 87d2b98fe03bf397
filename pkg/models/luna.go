package models

import "time"

// StartSessionRequest opens a Luna session
type StartSessionRequest struct {
	PartnerID *string `json:"partner_id,omitempty"`
	UseVoice  bool    `json:"use_voice"`
}

// StartSessionResponse is returned when a session opens
type StartSessionResponse struct {
	SessionID        string    `json:"session_id"`
	MinutesAvailable int       `json:"minutes_available"`
	StartedAt        time.Time `json:"started_at"`
}

// SendMessageRequest is one user turn
type SendMessageRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Message   string `json:"message" validate:"required,max=4000"`
}

// SendMessageResponse carries Luna's reply
type SendMessageResponse struct {
	Reply            string  `json:"reply"`
	AudioURL         *string `json:"audio_url"`
	MinutesRemaining int     `json:"minutes_remaining"`
}

// EndSessionRequest closes a session
type EndSessionRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

// EndSessionResponse reports the billed duration
type EndSessionResponse struct {
	OK               bool `json:"ok"`
	DurationMinutes  int  `json:"duration_minutes"`
	MinutesCharged   int  `json:"minutes_charged"`
	MinutesRemaining int  `json:"minutes_remaining"`
}

// BalanceResponse reports the caller's Luna minutes
type BalanceResponse struct {
	Balance   int `json:"balance"`
	UsedTotal int `json:"used_total"`
}
