package telegram

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/astrapersonal/astra-api/pkg/cache"
	"github.com/astrapersonal/astra-api/pkg/domain"
	"github.com/astrapersonal/astra-api/pkg/logger"
	"github.com/astrapersonal/astra-api/pkg/metrics"
	"github.com/astrapersonal/astra-api/pkg/models"
	"github.com/astrapersonal/astra-api/pkg/store"
	tgmodels "github.com/go-telegram/bot/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	botUsernameKey = "telegram:bot_username"
	botUsernameTTL = 24 * time.Hour
)

var errInvalidToken = errors.New("invalid link token")

// Config holds the bot settings that appear in replies and registration
type Config struct {
	FrontendURL string
	WebhookURL  string
	Location    *time.Location
}

// Service handles bot updates and account linking
type Service struct {
	db        *gorm.DB
	transport Transport
	cache     *cache.Client
	metrics   *metrics.Metrics
	cfg       Config
	logger    logger.Logger
	now       func() time.Time
	newToken  func() (string, error)
}

// NewService creates a new bot service. cache and m may be nil.
func NewService(db *gorm.DB, transport Transport, c *cache.Client, m *metrics.Metrics, cfg Config, log logger.Logger) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		db:        db,
		transport: transport,
		cache:     c,
		metrics:   m,
		cfg:       cfg,
		logger:    log,
		now:       time.Now,
		newToken:  randomToken,
	}
}

// HandleUpdate answers one inbound update. Failures are logged, never returned,
// so the webhook always acknowledges.
func (s *Service) HandleUpdate(ctx context.Context, upd *tgmodels.Update) {
	if upd == nil {
		return
	}
	msg := upd.Message
	if msg == nil {
		msg = upd.EditedMessage
	}
	if msg == nil {
		return
	}

	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	var username, firstName string
	if msg.From != nil {
		username = msg.From.Username
		firstName = msg.From.FirstName
	}

	var reply string
	switch {
	case strings.HasPrefix(text, "/start"):
		_, token, _ := strings.Cut(text, " ")
		token = strings.TrimSpace(token)
		if token != "" {
			reply = s.link(ctx, chatID, token, username, firstName)
		} else {
			reply = s.start(ctx, chatID)
		}
	case text == "/stop":
		reply = s.stop(ctx, chatID)
	case text == "/oroscopo":
		reply = s.today(ctx, chatID)
	case text == "/saldo":
		reply = s.balance(ctx, chatID)
	case text == "/aiuto" || text == "/help":
		reply = fmt.Sprintf(msgHelp, s.cfg.FrontendURL)
	default:
		reply = fallbackMessage(s.cfg.FrontendURL)
	}

	s.send(ctx, chatID, reply)
}

func (s *Service) link(ctx context.Context, chatID int64, token, username, firstName string) string {
	var linkedName string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p store.Profile
		err := tx.Where("telegram_link_token = ?", token).Take(&p).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errInvalidToken
		}
		if err != nil {
			return err
		}

		// Consuming the token is conditional so it links exactly one chat
		res := tx.Model(&store.Profile{}).
			Where("id = ? AND telegram_link_token = ?", p.ID, token).
			Update("telegram_link_token", nil)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errInvalidToken
		}

		connectedAt := s.now().UTC()
		conn := store.TelegramConnection{
			UserID:      p.ID,
			ChatID:      chatID,
			Username:    username,
			FirstName:   firstName,
			Status:      store.TelegramActive,
			ConnectedAt: &connectedAt,
		}
		linkedName = p.FirstName
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chat_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id", "username", "first_name", "status", "connected_at", "updated_at"}),
		}).Create(&conn).Error
	})

	switch {
	case errors.Is(err, errInvalidToken):
		return msgInvalidToken
	case err != nil:
		s.logger.Error("telegram link failed", "chat_id", chatID, "error", err)
		return msgLinkFailed
	}

	s.logger.Info("telegram chat linked", "chat_id", chatID)
	return linkedMessage(linkedName)
}

func (s *Service) start(ctx context.Context, chatID int64) string {
	conn, err := s.connectionByChat(ctx, chatID)
	if err != nil {
		s.logger.Warn("telegram connection lookup failed", "chat_id", chatID, "error", err)
	}
	if conn == nil || conn.Status == store.TelegramBlocked {
		return fmt.Sprintf(msgWelcome, s.cfg.FrontendURL)
	}

	if conn.Status == store.TelegramPaused {
		err := s.db.WithContext(ctx).Model(&store.TelegramConnection{}).
			Where("chat_id = ?", chatID).
			Update("status", store.TelegramActive).Error
		if err != nil {
			s.logger.Error("telegram resume failed", "chat_id", chatID, "error", err)
		}
	}
	return msgAlreadyConnected
}

func (s *Service) stop(ctx context.Context, chatID int64) string {
	err := s.db.WithContext(ctx).Model(&store.TelegramConnection{}).
		Where("chat_id = ?", chatID).
		Update("status", store.TelegramPaused).Error
	if err != nil {
		s.logger.Error("telegram pause failed", "chat_id", chatID, "error", err)
	}
	return msgStop
}

func (s *Service) today(ctx context.Context, chatID int64) string {
	conn, err := s.connectionByChat(ctx, chatID)
	if err != nil {
		s.logger.Error("telegram connection lookup failed", "chat_id", chatID, "error", err)
	}
	if conn == nil || conn.Status != store.TelegramActive {
		return notLinkedMessage(s.cfg.FrontendURL)
	}

	day := s.now().In(s.cfg.Location).Format(store.DateLayout)
	var h store.DailyHoroscope
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND horoscope_date = ? AND status = ?", conn.UserID, day, store.HoroscopeCompleted).
		Take(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return msgNotReady
	}
	if err != nil {
		s.logger.Error("telegram horoscope lookup failed", "user_id", conn.UserID, "error", err)
		return msgNotReady
	}
	return todayMessage(&h, s.cfg.FrontendURL)
}

func (s *Service) balance(ctx context.Context, chatID int64) string {
	conn, err := s.connectionByChat(ctx, chatID)
	if err != nil {
		s.logger.Error("telegram connection lookup failed", "chat_id", chatID, "error", err)
	}
	if conn == nil {
		return notLinkedShortMessage(s.cfg.FrontendURL)
	}

	sub, err := store.FindSubscription(ctx, s.db, conn.UserID)
	if err != nil {
		if !errors.Is(err, store.ErrNoSubscription) {
			s.logger.Error("telegram balance lookup failed", "user_id", conn.UserID, "error", err)
		}
		return msgNoSubscription
	}
	return balanceMessage(sub, s.cfg.FrontendURL)
}

func (s *Service) connectionByChat(ctx context.Context, chatID int64) (*store.TelegramConnection, error) {
	var conn store.TelegramConnection
	err := s.db.WithContext(ctx).Where("chat_id = ?", chatID).Take(&conn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func (s *Service) send(ctx context.Context, chatID int64, text string) {
	err := s.transport.SendMessage(ctx, chatID, text)
	s.metrics.RecordTelegramMessage(err == nil)
	if err != nil {
		s.logger.Warn("telegram reply failed", "chat_id", chatID, "error", err)
	}
}

// GenerateLinkToken issues a fresh single-use token for the caller and the
// deep link that delivers it to the bot
func (s *Service) GenerateLinkToken(ctx context.Context, userID string) (*models.LinkTokenResponse, error) {
	token, err := s.newToken()
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	res := s.db.WithContext(ctx).Model(&store.Profile{}).
		Where("id = ?", userID).
		Update("telegram_link_token", token)
	if res.Error != nil {
		return nil, domain.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, domain.NewNotFoundError("profile")
	}

	bot := s.botUsername(ctx)
	return &models.LinkTokenResponse{
		Token:        token,
		Link:         fmt.Sprintf("https://t.me/%s?start=%s", bot, token),
		Instructions: fmt.Sprintf("Clicca il link o invia /start %s al bot @%s", token, bot),
	}, nil
}

func (s *Service) botUsername(ctx context.Context) string {
	if s.cache != nil {
		name, err := s.cache.Get(ctx, botUsernameKey)
		s.metrics.RecordCache("bot_username", err == nil && name != "")
		if err == nil && name != "" {
			return name
		}
	}

	name, err := s.transport.BotUsername(ctx)
	if err != nil || name == "" {
		s.logger.Warn("bot username lookup failed", "error", err)
		return defaultBotUsername
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, botUsernameKey, name, botUsernameTTL); err != nil {
			s.logger.Warn("bot username cache write failed", "error", err)
		}
	}
	return name
}

// Disconnect blocks every chat linked to the caller
func (s *Service) Disconnect(ctx context.Context, userID string) error {
	err := s.db.WithContext(ctx).Model(&store.TelegramConnection{}).
		Where("user_id = ?", userID).
		Update("status", store.TelegramBlocked).Error
	if err != nil {
		return domain.NewInternalError(err)
	}
	return nil
}

// Status describes the caller's most recent chat connection
func (s *Service) Status(ctx context.Context, userID string) (*models.TelegramStatusResponse, error) {
	var conn store.TelegramConnection
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("connected_at DESC").
		Take(&conn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.TelegramStatusResponse{Status: "not_connected"}, nil
	}
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	return &models.TelegramStatusResponse{
		Connected:     conn.Status == store.TelegramActive,
		ChatID:        conn.ChatID,
		Username:      conn.Username,
		Status:        conn.Status,
		SendVoice:     conn.SendVoice,
		ConnectedAt:   conn.ConnectedAt,
		LastMessageAt: conn.LastMessageAt,
	}, nil
}

// SetupWebhook registers the configured webhook URL with the Bot API
func (s *Service) SetupWebhook(ctx context.Context) (*models.SetupWebhookResponse, error) {
	if err := s.transport.SetWebhook(ctx, s.cfg.WebhookURL); err != nil {
		return nil, domain.NewInternalError(err)
	}
	s.logger.Info("telegram webhook registered", "url", s.cfg.WebhookURL)
	return &models.SetupWebhookResponse{OK: true, WebhookURL: s.cfg.WebhookURL}, nil
}

func randomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate link token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
