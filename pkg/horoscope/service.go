// Package horoscope generates and serves personalized daily horoscopes
package horoscope

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/astrapersonal/astra-api/pkg/ai/llm"
	"github.com/astrapersonal/astra-api/pkg/domain"
	"github.com/astrapersonal/astra-api/pkg/ephemeris"
	"github.com/astrapersonal/astra-api/pkg/logger"
	"github.com/astrapersonal/astra-api/pkg/store"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	generationMaxTokens = 1000
	defaultHistoryLimit = 7
	maxHistoryLimit     = 60
)

// TransitProvider computes the day's transits
type TransitProvider interface {
	Transits(ctx context.Context, b ephemeris.BirthData, date string) ephemeris.Chart
}

// Service generates and reads daily horoscopes
type Service struct {
	db       *gorm.DB
	llm      llm.Client
	transits TransitProvider
	location *time.Location
	logger   logger.Logger
	now      func() time.Time
}

// NewService creates a new horoscope service. Calendar days are taken in loc.
func NewService(db *gorm.DB, client llm.Client, transits TransitProvider, loc *time.Location, log logger.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		db:       db,
		llm:      client,
		transits: transits,
		location: loc,
		logger:   log,
		now:      time.Now,
	}
}

// Today returns the calendar date in the service time zone
func (s *Service) Today() time.Time {
	return s.now().In(s.location)
}

// FindForDay returns the user's horoscope for day, or nil when none exists
func (s *Service) FindForDay(ctx context.Context, userID, day string) (*store.DailyHoroscope, error) {
	var h store.DailyHoroscope
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND horoscope_date = ?", userID, day).
		Take(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find horoscope: %w", err)
	}
	return &h, nil
}

// Generate asks the model for p's horoscope on day and upserts it
func (s *Service) Generate(ctx context.Context, p *store.Profile, planetary ephemeris.Chart, day time.Time) (*store.DailyHoroscope, error) {
	resp, err := s.llm.Chat(ctx, llm.ChatRequest{
		Messages:  []llm.ChatMessage{{Role: llm.RoleUser, Content: BuildPrompt(p, planetary, day)}},
		MaxTokens: generationMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	content, err := ParseResponse(resp.Message)
	if err != nil {
		return nil, err
	}

	planetaryJSON, err := json.Marshal(planetary)
	if err != nil {
		return nil, fmt.Errorf("marshal planetary data: %w", err)
	}

	generatedAt := s.now().UTC()
	row := store.DailyHoroscope{
		UserID:         p.ID,
		HoroscopeDate:  day.Format(store.DateLayout),
		TextContent:    content.FullText,
		SectionGeneral: content.SectionGeneral,
		SectionLove:    content.SectionLove,
		SectionWork:    content.SectionWork,
		SectionHealth:  content.SectionHealth,
		OverallScore:   content.OverallScore,
		PlanetaryData:  datatypes.JSON(planetaryJSON),
		Status:         store.HoroscopeCompleted,
		GeneratedAt:    &generatedAt,
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "horoscope_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"text_content", "section_general", "section_love", "section_work",
			"section_health", "overall_score", "planetary_data", "status",
			"generated_at", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("upsert horoscope: %w", err)
	}

	// The generated id is not the stored one when the upsert hit an existing row
	return s.FindForDay(ctx, p.ID, row.HoroscopeDate)
}

// GetToday returns today's horoscope for the caller, generating it on demand
func (s *Service) GetToday(ctx context.Context, userID string) (*store.DailyHoroscope, error) {
	today := s.Today()
	day := today.Format(store.DateLayout)

	existing, err := s.FindForDay(ctx, userID, day)
	if err != nil {
		return nil, domain.NewInternalError(err)
	}
	if existing != nil && existing.Status == store.HoroscopeCompleted {
		return existing, nil
	}

	var p store.Profile
	err = s.db.WithContext(ctx).Where("id = ?", userID).Take(&p).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewInternalError(err)
	}
	if err != nil || p.BirthDate == nil {
		return nil, domain.NewBadRequestError("Completa prima i tuoi dati natali per ricevere l'oroscopo personalizzato.")
	}

	planetary := s.transits.Transits(ctx, NatalInput(&p), day)

	h, err := s.Generate(ctx, &p, planetary, today)
	if err != nil {
		s.logger.Error("on-demand horoscope generation failed", "user_id", userID, "error", err)
		return nil, domain.NewInternalError(err)
	}
	return h, nil
}

// History returns the caller's most recent completed horoscopes, newest first
func (s *Service) History(ctx context.Context, userID string, limit int) ([]store.DailyHoroscope, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows := []store.DailyHoroscope{}
	err := s.db.WithContext(ctx).
		Select("id", "user_id", "horoscope_date", "section_general", "section_love", "section_work", "overall_score", "audio_url", "status").
		Where("user_id = ? AND status = ?", userID, store.HoroscopeCompleted).
		Order("horoscope_date DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domain.NewInternalError(err)
	}
	return rows, nil
}

// NatalInput maps a profile's birth data to the ephemeris input
func NatalInput(p *store.Profile) ephemeris.BirthData {
	b := ephemeris.BirthData{
		Latitude:  p.BirthLat,
		Longitude: p.BirthLng,
	}
	if p.BirthDate != nil {
		b.Date = *p.BirthDate
	}
	if p.BirthTime != nil && !p.BirthTimeUnknown {
		b.Time = *p.BirthTime
	}
	if p.BirthTimezone != nil {
		b.Timezone = *p.BirthTimezone
	}
	return b
}
