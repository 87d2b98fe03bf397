// Package luna implements the metered Luna conversation: start, turn and end
// of a session, with minutes billed once at end.
package luna

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/astrapersonal/astra-api/pkg/ai/llm"
	"github.com/astrapersonal/astra-api/pkg/domain"
	"github.com/astrapersonal/astra-api/pkg/logger"
	"github.com/astrapersonal/astra-api/pkg/metrics"
	"github.com/astrapersonal/astra-api/pkg/models"
	"github.com/astrapersonal/astra-api/pkg/store"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	replyMaxTokens       = 500
	previousSessionsSeen = 3
)

// Speaker synthesizes a reply and returns its audio URL
type Speaker interface {
	Speak(ctx context.Context, key, text string) (string, error)
}

// snapshot is the immutable grounding stored on the session
type snapshot struct {
	Context string `json:"context"`
}

// Service runs the session metering protocol
type Service struct {
	db      *gorm.DB
	llm     llm.Client
	speaker Speaker
	metrics *metrics.Metrics
	logger  logger.Logger
	now     func() time.Time
}

// NewService creates a new Luna service. speaker and m may be nil.
func NewService(db *gorm.DB, client llm.Client, speaker Speaker, m *metrics.Metrics, log logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		db:      db,
		llm:     client,
		speaker: speaker,
		metrics: m,
		logger:  log,
		now:     time.Now,
	}
}

// ChargeableMinutes bills elapsed time in whole minutes rounded up, at least one
func ChargeableMinutes(elapsed time.Duration) int {
	if elapsed <= 0 {
		return 1
	}
	return max(1, int(math.Ceil(elapsed.Seconds()/60)))
}

// Start opens a session for userID after checking the balance
func (s *Service) Start(ctx context.Context, userID string, req models.StartSessionRequest) (*models.StartSessionResponse, error) {
	sub, err := store.FindSubscription(ctx, s.db, userID)
	if errors.Is(err, store.ErrNoSubscription) {
		return nil, domain.NewNoSubscriptionError()
	}
	if err != nil {
		return nil, domain.NewInternalError(err)
	}
	if sub.LunaMinutesBalance < 1 {
		return nil, domain.NewInsufficientBalanceError()
	}

	userContext, partnerID, err := s.buildContext(ctx, userID, req.PartnerID)
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	raw, err := json.Marshal(snapshot{Context: userContext})
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	session := store.LunaSession{
		Base:            store.Base{CreatedAt: s.now().UTC()},
		UserID:          userID,
		PartnerID:       partnerID,
		Status:          store.SessionActive,
		VoiceUsed:       req.UseVoice,
		ContextSnapshot: datatypes.JSON(raw),
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, domain.NewInternalError(err)
	}

	s.metrics.RecordSessionStarted()
	s.logger.Info("luna session started", "user_id", userID, "session_id", session.ID, "voice", req.UseVoice)

	return &models.StartSessionResponse{
		SessionID:        session.ID,
		MinutesAvailable: sub.LunaMinutesBalance,
		StartedAt:        session.CreatedAt,
	}, nil
}

// buildContext gathers the grounding data. Only an active partner owned by the
// caller is used; its id is returned so the session can reference it.
func (s *Service) buildContext(ctx context.Context, userID string, partnerRef *string) (string, *string, error) {
	db := s.db.WithContext(ctx)

	var profile store.Profile
	err := db.Where("id = ?", userID).Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NoProfileContext, nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("load profile: %w", err)
	}

	var partner *store.PartnerProfile
	if partnerRef != nil && *partnerRef != "" {
		var p store.PartnerProfile
		err := db.Where("id = ? AND user_id = ? AND is_active = ?", *partnerRef, userID, true).Take(&p).Error
		switch {
		case err == nil:
			partner = &p
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return "", nil, fmt.Errorf("load partner: %w", err)
		}
	}

	var recent []store.LunaSession
	err = db.Select("id", "created_at").
		Where("user_id = ? AND status = ?", userID, store.SessionEnded).
		Order("created_at DESC").
		Limit(previousSessionsSeen).
		Find(&recent).Error
	if err != nil {
		return "", nil, fmt.Errorf("load previous sessions: %w", err)
	}

	prev := PreviousSessions{Count: len(recent)}
	if len(recent) > 0 {
		prev.LastDate = recent[0].CreatedAt.Format(store.DateLayout)
	}

	var partnerID *string
	if partner != nil {
		partnerID = &partner.ID
	}
	return BuildContext(&profile, partner, prev), partnerID, nil
}

// Turn answers one user message inside an active session. The balance is
// checked but not changed; exhaustion pauses the session once.
func (s *Service) Turn(ctx context.Context, userID string, req models.SendMessageRequest) (*models.SendMessageResponse, error) {
	db := s.db.WithContext(ctx)

	var session store.LunaSession
	err := db.Where("id = ? AND user_id = ? AND status = ?", req.SessionID, userID, store.SessionActive).Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewSessionNotFoundError()
	}
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	sub, err := store.FindSubscription(ctx, s.db, userID)
	if err != nil && !errors.Is(err, store.ErrNoSubscription) {
		return nil, domain.NewInternalError(err)
	}
	if sub == nil || sub.LunaMinutesBalance < 1 {
		if err := s.pauseExhausted(ctx, session.ID); err != nil {
			return nil, domain.NewInternalError(err)
		}
		return nil, domain.NewInsufficientBalanceError()
	}

	var history []store.LunaMessage
	err = db.Select("role", "content").
		Where("session_id = ?", session.ID).
		Order("created_at ASC").
		Find(&history).Error
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	messages := make([]llm.ChatMessage, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, llm.ChatMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.ChatMessage{Role: llm.RoleUser, Content: req.Message})

	var snap snapshot
	if len(session.ContextSnapshot) > 0 {
		_ = json.Unmarshal(session.ContextSnapshot, &snap)
	}

	resp, err := s.llm.Chat(ctx, llm.ChatRequest{
		System:    SystemPrompt(snap.Context),
		Messages:  messages,
		MaxTokens: replyMaxTokens,
	})
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	userMsg := store.LunaMessage{
		Base:      store.Base{CreatedAt: s.now().UTC()},
		SessionID: session.ID,
		UserID:    userID,
		Role:      store.RoleUser,
		Content:   req.Message,
	}
	if err := db.Create(&userMsg).Error; err != nil {
		return nil, domain.NewInternalError(err)
	}

	assistantID := uuid.NewString()
	var audioURL *string
	if session.VoiceUsed && s.speaker != nil {
		key := fmt.Sprintf("luna/%s/%s.mp3", session.ID, assistantID)
		url, err := s.speaker.Speak(ctx, key, resp.Message)
		if err != nil {
			s.logger.Warn("luna voice synthesis failed", "session_id", session.ID, "error", err)
		} else {
			audioURL = &url
		}
	}

	tokens := resp.TokensUsed
	assistantMsg := store.LunaMessage{
		Base:       store.Base{ID: assistantID, CreatedAt: userMsg.CreatedAt.Add(time.Microsecond)},
		SessionID:  session.ID,
		UserID:     userID,
		Role:       store.RoleAssistant,
		Content:    resp.Message,
		AudioURL:   audioURL,
		TokensUsed: &tokens,
	}
	if err := db.Create(&assistantMsg).Error; err != nil {
		return nil, domain.NewInternalError(err)
	}

	err = db.Model(&store.LunaSession{}).
		Where("id = ?", session.ID).
		Update("messages_count", gorm.Expr("messages_count + ?", 1)).Error
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	s.metrics.RecordTurn()

	remaining, _, err := s.balance(ctx, userID)
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	return &models.SendMessageResponse{
		Reply:            resp.Message,
		AudioURL:         audioURL,
		MinutesRemaining: remaining,
	}, nil
}

// pauseExhausted moves an active session to paused. Only the first caller wins.
func (s *Service) pauseExhausted(ctx context.Context, sessionID string) error {
	res := s.db.WithContext(ctx).
		Model(&store.LunaSession{}).
		Where("id = ? AND status = ?", sessionID, store.SessionActive).
		Updates(map[string]any{
			"status":       store.SessionPaused,
			"ended_reason": store.EndedByExpiry,
		})
	if res.Error != nil {
		return fmt.Errorf("pause session: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		s.metrics.RecordSessionEnded(store.EndedByExpiry, 0)
		s.logger.Info("luna session paused, minutes exhausted", "session_id", sessionID)
	}
	return nil
}

// End closes a session and debits its rounded-up duration
func (s *Service) End(ctx context.Context, userID, sessionID string) (*models.EndSessionResponse, error) {
	db := s.db.WithContext(ctx)

	var session store.LunaSession
	err := db.Where("id = ? AND user_id = ? AND status <> ?", sessionID, userID, store.SessionEnded).Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewSessionNotFoundError()
	}
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	now := s.now().UTC()
	minutes := ChargeableMinutes(now.Sub(session.CreatedAt))

	err = db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&store.LunaSession{}).
			Where("id = ? AND status <> ?", session.ID, store.SessionEnded).
			Updates(map[string]any{
				"status":           store.SessionEnded,
				"ended_at":         now,
				"ended_reason":     store.EndedByUser,
				"duration_minutes": minutes,
				"minutes_charged":  minutes,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.NewSessionNotFoundError()
		}

		err := store.DeductLunaMinutes(ctx, tx, userID, minutes)
		if errors.Is(err, store.ErrNoSubscription) {
			return nil
		}
		return err
	})
	if domain.IsSessionNotFound(err) {
		return nil, err
	}
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	s.metrics.RecordSessionEnded(store.EndedByUser, minutes)
	s.logger.Info("luna session ended", "user_id", userID, "session_id", session.ID, "minutes", minutes)

	remaining, _, err := s.balance(ctx, userID)
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	return &models.EndSessionResponse{
		OK:               true,
		DurationMinutes:  minutes,
		MinutesCharged:   minutes,
		MinutesRemaining: remaining,
	}, nil
}

// Balance returns the caller's minutes, zeros without a subscription
func (s *Service) Balance(ctx context.Context, userID string) (*models.BalanceResponse, error) {
	balance, used, err := s.balance(ctx, userID)
	if err != nil {
		return nil, domain.NewInternalError(err)
	}
	return &models.BalanceResponse{Balance: balance, UsedTotal: used}, nil
}

func (s *Service) balance(ctx context.Context, userID string) (int, int, error) {
	sub, err := store.FindSubscription(ctx, s.db, userID)
	if errors.Is(err, store.ErrNoSubscription) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}
	return sub.LunaMinutesBalance, sub.LunaMinutesUsed, nil
}
