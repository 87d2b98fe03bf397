package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/astrapersonal/astra-api/pkg/cache"
	"github.com/astrapersonal/astra-api/pkg/domain"
	"github.com/astrapersonal/astra-api/pkg/logger"
	"github.com/astrapersonal/astra-api/pkg/store"
	"github.com/astrapersonal/astra-api/pkg/store/storetest"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type sentMessage struct {
	chatID int64
	text   string
}

type fakeTransport struct {
	mu          sync.Mutex
	messages    []sentMessage
	username    string
	usernameErr error
	getMeCalls  int
	webhookURL  string
}

func (f *fakeTransport) SendMessage(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, sentMessage{chatID, text})
	return nil
}

func (f *fakeTransport) SendAudio(context.Context, int64, string, string) error { return nil }

func (f *fakeTransport) BotUsername(context.Context) (string, error) {
	f.getMeCalls++
	return f.username, f.usernameErr
}

func (f *fakeTransport) SetWebhook(_ context.Context, url string) error {
	f.webhookURL = url
	return nil
}

func (f *fakeTransport) last(t *testing.T) sentMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.messages)
	return f.messages[len(f.messages)-1]
}

var fixedNow = time.Date(2026, 10, 15, 5, 0, 0, 0, time.UTC)

func newService(t *testing.T, c *cache.Client) (*Service, *gorm.DB, *fakeTransport) {
	t.Helper()
	db := storetest.Open(t)
	tr := &fakeTransport{username: "AstraTestBot"}
	svc := NewService(db, tr, c, nil, Config{
		FrontendURL: "https://astra.example",
		WebhookURL:  "https://api.astra.example/api/telegram/webhook",
		Location:    time.FixedZone("CEST", 2*60*60),
	}, logger.Nop())
	svc.now = func() time.Time { return fixedNow }
	return svc, db, tr
}

func update(chatID int64, text string) *tgmodels.Update {
	return &tgmodels.Update{
		Message: &tgmodels.Message{
			Chat: tgmodels.Chat{ID: chatID},
			From: &tgmodels.User{Username: "giulia_r", FirstName: "Giulia"},
			Text: text,
		},
	}
}

func seedConnection(t *testing.T, db *gorm.DB, userID string, chatID int64, status string) {
	t.Helper()
	require.NoError(t, db.Create(&store.TelegramConnection{UserID: userID, ChatID: chatID, Status: status}).Error)
}

func TestLinkToken_SingleUse(t *testing.T) {
	svc, db, tr := newService(t, nil)
	svc.newToken = func() (string, error) { return "tok-123", nil }
	storetest.SeedProfile(t, db, "u-1")
	ctx := context.Background()

	resp, err := svc.GenerateLinkToken(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "https://t.me/AstraTestBot?start=tok-123", resp.Link)
	assert.Contains(t, resp.Instructions, "/start tok-123")

	svc.HandleUpdate(ctx, update(42, "/start tok-123"))
	assert.Contains(t, tr.last(t).text, "Account collegato con successo, Giulia!")

	var conn store.TelegramConnection
	require.NoError(t, db.Where("chat_id = ?", 42).Take(&conn).Error)
	assert.Equal(t, "u-1", conn.UserID)
	assert.Equal(t, store.TelegramActive, conn.Status)
	assert.Equal(t, "giulia_r", conn.Username)

	var p store.Profile
	require.NoError(t, db.Take(&p, "id = ?", "u-1").Error)
	assert.Nil(t, p.TelegramLinkToken)

	svc.HandleUpdate(ctx, update(99, "/start tok-123"))
	assert.Equal(t, msgInvalidToken, tr.last(t).text)

	var count int64
	db.Model(&store.TelegramConnection{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestLink_RelinksExistingChat(t *testing.T) {
	svc, db, tr := newService(t, nil)
	token := "fresh"
	storetest.SeedProfile(t, db, "u-2", func(p *store.Profile) { p.TelegramLinkToken = &token })
	seedConnection(t, db, "u-1", 42, store.TelegramBlocked)

	svc.HandleUpdate(context.Background(), update(42, "/start fresh"))
	assert.Contains(t, tr.last(t).text, "Account collegato")

	var conn store.TelegramConnection
	require.NoError(t, db.Where("chat_id = ?", 42).Take(&conn).Error)
	assert.Equal(t, "u-2", conn.UserID)
	assert.Equal(t, store.TelegramActive, conn.Status)
	require.NotNil(t, conn.ConnectedAt)
}

func TestStartStop(t *testing.T) {
	svc, db, tr := newService(t, nil)
	ctx := context.Background()

	svc.HandleUpdate(ctx, update(7, "/start"))
	assert.Contains(t, tr.last(t).text, "Benvenuto su Astra Personal")
	assert.Contains(t, tr.last(t).text, "https://astra.example/collegamento-telegram")

	seedConnection(t, db, "u-1", 42, store.TelegramActive)
	svc.HandleUpdate(ctx, update(42, "/start"))
	assert.Equal(t, msgAlreadyConnected, tr.last(t).text)

	svc.HandleUpdate(ctx, update(42, "/stop"))
	assert.Equal(t, msgStop, tr.last(t).text)
	var conn store.TelegramConnection
	require.NoError(t, db.Where("chat_id = ?", 42).Take(&conn).Error)
	assert.Equal(t, store.TelegramPaused, conn.Status)

	svc.HandleUpdate(ctx, update(42, "/start"))
	require.NoError(t, db.Where("chat_id = ?", 42).Take(&conn).Error)
	assert.Equal(t, store.TelegramActive, conn.Status)
}

func TestTodayCommand(t *testing.T) {
	svc, db, tr := newService(t, nil)
	ctx := context.Background()

	svc.HandleUpdate(ctx, update(42, "/oroscopo"))
	assert.Contains(t, tr.last(t).text, "devi prima collegare")

	seedConnection(t, db, "u-1", 42, store.TelegramActive)
	svc.HandleUpdate(ctx, update(42, "/oroscopo"))
	assert.Equal(t, msgNotReady, tr.last(t).text)

	require.NoError(t, db.Create(&store.DailyHoroscope{
		UserID:        "u-1",
		HoroscopeDate: "2026-10-15",
		TextContent:   "Cielo sereno.",
		SectionLove:   "Amore in crescita.",
		OverallScore:  4,
		Status:        store.HoroscopeCompleted,
	}).Error)
	svc.HandleUpdate(ctx, update(42, "/oroscopo"))
	msg := tr.last(t).text
	assert.Contains(t, msg, "Cielo sereno.")
	assert.Contains(t, msg, "*Amore:* Amore in crescita.")
	assert.Contains(t, msg, "⭐⭐⭐⭐\n")
}

func TestBalanceCommand(t *testing.T) {
	svc, db, tr := newService(t, nil)
	ctx := context.Background()

	svc.HandleUpdate(ctx, update(42, "/saldo"))
	assert.Contains(t, tr.last(t).text, "Account non collegato")

	seedConnection(t, db, "u-1", 42, store.TelegramPaused)
	svc.HandleUpdate(ctx, update(42, "/saldo"))
	assert.Equal(t, msgNoSubscription, tr.last(t).text)

	storetest.SeedSubscription(t, db, "u-1", 25)
	svc.HandleUpdate(ctx, update(42, "/saldo"))
	msg := tr.last(t).text
	assert.Contains(t, msg, "*25 min*")
	assert.Contains(t, msg, "*PREMIUM*")
	assert.Contains(t, msg, "https://astra.example/luna")
}

func TestHelpAndFallback(t *testing.T) {
	svc, _, tr := newService(t, nil)
	ctx := context.Background()

	svc.HandleUpdate(ctx, update(1, "/help"))
	assert.Contains(t, tr.last(t).text, "Comandi Astra Personal")
	svc.HandleUpdate(ctx, update(1, "/aiuto"))
	assert.Contains(t, tr.last(t).text, "Comandi Astra Personal")

	svc.HandleUpdate(ctx, update(1, "ciao"))
	assert.Contains(t, tr.last(t).text, "Sono il bot di Astra Personal")

	svc.HandleUpdate(ctx, &tgmodels.Update{})
	assert.Len(t, tr.messages, 3)
}

func TestBotUsername_CachedInRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	c := &cache.Client{Redis: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	svc, db, tr := newService(t, c)
	storetest.SeedProfile(t, db, "u-1")
	ctx := context.Background()

	_, err := svc.GenerateLinkToken(ctx, "u-1")
	require.NoError(t, err)
	_, err = svc.GenerateLinkToken(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 1, tr.getMeCalls)

	cached, err := mr.Get(botUsernameKey)
	require.NoError(t, err)
	assert.Equal(t, "AstraTestBot", cached)
}

func TestBotUsername_Fallback(t *testing.T) {
	svc, db, tr := newService(t, nil)
	tr.usernameErr = errors.New("timeout")
	storetest.SeedProfile(t, db, "u-1")

	resp, err := svc.GenerateLinkToken(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Contains(t, resp.Link, "https://t.me/AstraPersonalBot?start=")
}

func TestGenerateLinkToken_UnknownProfile(t *testing.T) {
	svc, _, _ := newService(t, nil)
	_, err := svc.GenerateLinkToken(context.Background(), "ghost")
	assert.True(t, domain.IsNotFound(err))
}

func TestDisconnectAndStatus(t *testing.T) {
	svc, db, _ := newService(t, nil)
	ctx := context.Background()

	st, err := svc.Status(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "not_connected", st.Status)
	assert.False(t, st.Connected)

	connectedAt := fixedNow
	require.NoError(t, db.Create(&store.TelegramConnection{
		UserID: "u-1", ChatID: 42, Username: "giulia_r", Status: store.TelegramActive, ConnectedAt: &connectedAt,
	}).Error)

	st, err = svc.Status(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, st.Connected)
	assert.Equal(t, int64(42), st.ChatID)

	require.NoError(t, svc.Disconnect(ctx, "u-1"))
	st, err = svc.Status(ctx, "u-1")
	require.NoError(t, err)
	assert.False(t, st.Connected)
	assert.Equal(t, store.TelegramBlocked, st.Status)
}

func TestSetupWebhook(t *testing.T) {
	svc, _, tr := newService(t, nil)
	resp, err := svc.SetupWebhook(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, "https://api.astra.example/api/telegram/webhook", tr.webhookURL)
}

func TestDailyPushMessage(t *testing.T) {
	h := &store.DailyHoroscope{TextContent: "Testo.", SectionLove: "A", SectionWork: "L"}
	msg := DailyPushMessage(time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), "Giulia", "Bilancia", h)
	assert.Contains(t, msg, "Oroscopo di oggi — 15 ottobre 2026")
	assert.Contains(t, msg, "per Giulia • Bilancia")
	assert.Contains(t, msg, "⭐⭐⭐ — Voto del giorno")

	assert.Equal(t, "⭐⭐⭐⭐⭐", Stars(5))
}
