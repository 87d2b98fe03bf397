package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/astrapersonal/astra-api/pkg/logger"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handle func(req openai.ChatCompletionRequest) (int, any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openai.ChatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		status, body := handle(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func completion(text string, tokens int) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message:      openai.ChatCompletionMessage{Role: "assistant", Content: text},
			FinishReason: openai.FinishReasonStop,
		}},
		Usage: openai.Usage{PromptTokens: tokens - 10, CompletionTokens: 10, TotalTokens: tokens},
	}
}

func TestChat_SendsSystemAndHistory(t *testing.T) {
	var captured openai.ChatCompletionRequest
	srv := newTestServer(t, func(req openai.ChatCompletionRequest) (int, any) {
		captured = req
		return http.StatusOK, completion("Ciao, sono Luna.", 120)
	})

	client := NewOpenAIClient(Config{APIKey: "test-key", BaseURL: srv.URL, Model: "test-model"}, logger.Nop())

	resp, err := client.Chat(context.Background(), ChatRequest{
		System: "Sei Luna",
		Messages: []ChatMessage{
			{Role: RoleUser, Content: "Ciao"},
			{Role: RoleAssistant, Content: "Ciao!"},
			{Role: RoleUser, Content: "Come va?"},
		},
		MaxTokens: 500,
	})
	require.NoError(t, err)

	assert.Equal(t, "Ciao, sono Luna.", resp.Message)
	assert.Equal(t, 120, resp.TokensUsed)
	assert.Equal(t, "test-model", captured.Model)
	assert.Equal(t, 500, captured.MaxTokens)
	require.Len(t, captured.Messages, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, captured.Messages[0].Role)
	assert.Equal(t, "Sei Luna", captured.Messages[0].Content)
	assert.Equal(t, "Come va?", captured.Messages[3].Content)
}

func TestComplete(t *testing.T) {
	srv := newTestServer(t, func(req openai.ChatCompletionRequest) (int, any) {
		assert.Len(t, req.Messages, 1)
		return http.StatusOK, completion(`{"overall_score": 4}`, 50)
	})

	client := NewOpenAIClient(Config{APIKey: "test-key", BaseURL: srv.URL}, logger.Nop())

	text, err := client.Complete(context.Background(), "Genera l'oroscopo")
	require.NoError(t, err)
	assert.Equal(t, `{"overall_score": 4}`, text)
}

func TestChat_ProviderError(t *testing.T) {
	srv := newTestServer(t, func(openai.ChatCompletionRequest) (int, any) {
		return http.StatusTooManyRequests, map[string]any{
			"error": map[string]any{"message": "rate limited", "type": "rate_limit_error"},
		}
	})

	client := NewOpenAIClient(Config{APIKey: "test-key", BaseURL: srv.URL}, logger.Nop())

	_, err := client.Chat(context.Background(), ChatRequest{Messages: []ChatMessage{{Role: RoleUser, Content: "x"}}})
	assert.Error(t, err)
}

func TestChat_NoChoices(t *testing.T) {
	srv := newTestServer(t, func(openai.ChatCompletionRequest) (int, any) {
		return http.StatusOK, openai.ChatCompletionResponse{}
	})

	client := NewOpenAIClient(Config{APIKey: "test-key", BaseURL: srv.URL}, logger.Nop())

	_, err := client.Chat(context.Background(), ChatRequest{Messages: []ChatMessage{{Role: RoleUser, Content: "x"}}})
	assert.ErrorContains(t, err, "no choices")
}
