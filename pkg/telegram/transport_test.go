package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	tgbot "github.com/go-telegram/bot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "123456:ABC-test"

func newTestTransport(t *testing.T, handler http.HandlerFunc) *BotTransport {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	tr, err := NewBotTransport(testToken, tgbot.WithServerURL(server.URL))
	require.NoError(t, err)
	return tr
}

func TestNewBotTransport_RequiresToken(t *testing.T) {
	_, err := NewBotTransport("")
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestBotTransport_SendMessage(t *testing.T) {
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot"+testToken+"/sendMessage", r.URL.Path)
		assert.Equal(t, "42", r.FormValue("chat_id"))
		assert.Equal(t, "Markdown", r.FormValue("parse_mode"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`))
	})

	require.NoError(t, tr.SendMessage(context.Background(), 42, "*ciao*"))
}

func TestBotTransport_SendMessageError(t *testing.T) {
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`))
	})

	assert.Error(t, tr.SendMessage(context.Background(), 42, "ciao"))
}

func TestBotTransport_SendAudio(t *testing.T) {
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot"+testToken+"/sendAudio", r.URL.Path)
		assert.Equal(t, "42", r.FormValue("chat_id"))
		assert.Equal(t, "https://cdn.example/a.mp3", r.FormValue("audio"))
		assert.Equal(t, "Markdown", r.FormValue("parse_mode"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"result":{"message_id":2,"date":0,"chat":{"id":42,"type":"private"}}}`))
	})

	require.NoError(t, tr.SendAudio(context.Background(), 42, "https://cdn.example/a.mp3", "🎧 Il tuo oroscopo!"))
}

func TestBotTransport_BotUsername(t *testing.T) {
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot"+testToken+"/getMe", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Astra","username":"AstraPersonalBot"}}`))
	})

	name, err := tr.BotUsername(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AstraPersonalBot", name)
}

func TestBotTransport_SetWebhook(t *testing.T) {
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot"+testToken+"/setWebhook", r.URL.Path)
		assert.Equal(t, "https://api.astra.example/api/telegram/webhook", r.FormValue("url"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"result":true,"description":"Webhook was set"}`))
	})

	require.NoError(t, tr.SetWebhook(context.Background(), "https://api.astra.example/api/telegram/webhook"))
}
