package models

// GenerateDailyResponse summarises a horoscope generation run
type GenerateDailyResponse struct {
	OK        bool   `json:"ok"`
	Date      string `json:"date"`
	Processed int    `json:"processed"`
	Success   int    `json:"success"`
	Failed    int    `json:"failed"`
}

// SendTelegramResponse summarises a push run
type SendTelegramResponse struct {
	OK     bool `json:"ok"`
	Sent   int  `json:"sent"`
	Failed int  `json:"failed"`
}

// CheckTrialsResponse summarises a trial sweep
type CheckTrialsResponse struct {
	OK           bool `json:"ok"`
	ExpiredCount int  `json:"expired_count"`
}
