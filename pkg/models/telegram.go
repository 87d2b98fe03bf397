package models

import "time"

// LinkTokenResponse contains the deep link used to connect the bot
type LinkTokenResponse struct {
	Token        string `json:"token"`
	Link         string `json:"link"`
	Instructions string `json:"instructions"`
}

// TelegramStatusResponse describes the caller's chat connection
type TelegramStatusResponse struct {
	Connected     bool       `json:"connected"`
	ChatID        int64      `json:"chat_id,omitempty"`
	Username      string     `json:"username,omitempty"`
	Status        string     `json:"status,omitempty"`
	SendVoice     bool       `json:"send_voice,omitempty"`
	ConnectedAt   *time.Time `json:"connected_at,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}

// SetupWebhookResponse reports the webhook registration result
type SetupWebhookResponse struct {
	OK         bool   `json:"ok"`
	WebhookURL string `json:"webhook_url"`
}
