package horoscope

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/astrapersonal/astra-api/pkg/ai/llm"
	"github.com/astrapersonal/astra-api/pkg/domain"
	"github.com/astrapersonal/astra-api/pkg/ephemeris"
	"github.com/astrapersonal/astra-api/pkg/logger"
	"github.com/astrapersonal/astra-api/pkg/store"
	"github.com/astrapersonal/astra-api/pkg/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const sampleReply = "```json\n" + `{
  "section_general": "Giornata luminosa.",
  "section_love": "Venere ti sorride.",
  "section_work": "Marte ti spinge.",
  "section_health": "Energia alta.",
  "overall_score": 4,
  "full_text": "Oggi il cielo ti sostiene."
}` + "\n```"

type fakeLLM struct {
	mu    sync.Mutex
	reply string
	err   error
	reqs  []llm.ChatRequest
}

func (f *fakeLLM) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Message: f.reply, TokensUsed: 300}, nil
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string, _ ...string) (string, error) {
	resp, err := f.Chat(ctx, llm.ChatRequest{Messages: []llm.ChatMessage{{Role: llm.RoleUser, Content: prompt}}})
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

type fakeTransits struct {
	calls int
}

func (f *fakeTransits) Transits(context.Context, ephemeris.BirthData, string) ephemeris.Chart {
	f.calls++
	return ephemeris.Chart{"moon": "Scorpione"}
}

var fixedNow = time.Date(2026, 10, 15, 6, 30, 0, 0, time.UTC)

func newService(t *testing.T, model *fakeLLM) (*Service, *gorm.DB, *fakeTransits) {
	t.Helper()
	db := storetest.Open(t)
	transits := &fakeTransits{}
	rome := time.FixedZone("CEST", 2*60*60)
	svc := NewService(db, model, transits, rome, logger.Nop())
	svc.now = func() time.Time { return fixedNow }
	return svc, db, transits
}

func withBirth(p *store.Profile) {
	d := "1990-08-10"
	p.BirthDate = &d
	p.SunSign = "Leone"
	p.OnboardingCompleted = true
}

func TestParseResponse(t *testing.T) {
	c, err := ParseResponse(sampleReply)
	require.NoError(t, err)
	assert.Equal(t, "Giornata luminosa.", c.SectionGeneral)
	assert.Equal(t, 4, c.OverallScore)
	assert.Equal(t, "Oggi il cielo ti sostiene.", c.FullText)

	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"missing score", `{"full_text":"x"}`, 3},
		{"too high", `{"overall_score": 9}`, 5},
		{"too low", `{"overall_score": -2}`, 1},
		{"fractional", `{"overall_score": 3.6}`, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseResponse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.OverallScore)
		})
	}

	_, err = ParseResponse("Ecco il tuo oroscopo!")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestBuildPrompt(t *testing.T) {
	p := &store.Profile{FirstName: "Giulia", SunSign: "Leone"}
	withBirth(p)

	prompt := BuildPrompt(p, nil, fixedNow)
	assert.Contains(t, prompt, "- Nome: Giulia")
	assert.Contains(t, prompt, "- Luna: N/D")
	assert.Contains(t, prompt, "(15/10/2026)")
	assert.Contains(t, prompt, "Posizioni non disponibili")

	big := ephemeris.Chart{"blob": strings.Repeat("x", 5000)}
	prompt = BuildPrompt(p, big, fixedNow)
	assert.Less(t, len(prompt), 5000)
}

func TestGenerate_UpsertKeepsOneRowPerDay(t *testing.T) {
	model := &fakeLLM{reply: sampleReply}
	svc, db, _ := newService(t, model)
	p := storetest.SeedProfile(t, db, "u-1", withBirth)
	ctx := context.Background()

	first, err := svc.Generate(ctx, p, ephemeris.Chart{"sun": "Bilancia"}, svc.Today())
	require.NoError(t, err)
	assert.Equal(t, "2026-10-15", first.HoroscopeDate)
	assert.Equal(t, store.HoroscopeCompleted, first.Status)

	model.reply = `{"section_general":"Cambio di rotta.","overall_score":2}`
	second, err := svc.Generate(ctx, p, nil, svc.Today())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Cambio di rotta.", second.SectionGeneral)
	assert.Equal(t, 2, second.OverallScore)

	var count int64
	db.Model(&store.DailyHoroscope{}).Where("user_id = ?", "u-1").Count(&count)
	assert.Equal(t, int64(1), count)

	require.Len(t, model.reqs, 2)
	assert.Equal(t, generationMaxTokens, model.reqs[0].MaxTokens)
}

func TestGetToday_ReturnsExisting(t *testing.T) {
	model := &fakeLLM{reply: sampleReply}
	svc, db, transits := newService(t, model)
	storetest.SeedProfile(t, db, "u-1", withBirth)
	require.NoError(t, db.Create(&store.DailyHoroscope{
		UserID: "u-1", HoroscopeDate: "2026-10-15", Status: store.HoroscopeCompleted, OverallScore: 5,
	}).Error)

	h, err := svc.GetToday(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, 5, h.OverallScore)
	assert.Empty(t, model.reqs)
	assert.Zero(t, transits.calls)
}

func TestGetToday_GeneratesOnDemand(t *testing.T) {
	model := &fakeLLM{reply: sampleReply}
	svc, db, transits := newService(t, model)
	storetest.SeedProfile(t, db, "u-1", withBirth)

	h, err := svc.GetToday(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "Venere ti sorride.", h.SectionLove)
	assert.Equal(t, 1, transits.calls)
	assert.JSONEq(t, `{"moon":"Scorpione"}`, string(h.PlanetaryData))
}

func TestGetToday_RequiresBirthData(t *testing.T) {
	svc, db, _ := newService(t, &fakeLLM{reply: sampleReply})
	storetest.SeedProfile(t, db, "u-1")

	_, err := svc.GetToday(context.Background(), "u-1")
	assert.Equal(t, domain.ErrCodeBadRequest, domain.GetErrorCode(err))

	_, err = svc.GetToday(context.Background(), "nobody")
	assert.Equal(t, domain.ErrCodeBadRequest, domain.GetErrorCode(err))
}

func TestGetToday_ModelFailureIsInternal(t *testing.T) {
	svc, db, _ := newService(t, &fakeLLM{err: errors.New("overloaded")})
	storetest.SeedProfile(t, db, "u-1", withBirth)

	_, err := svc.GetToday(context.Background(), "u-1")
	assert.True(t, domain.IsInternal(err))
}

func TestHistory(t *testing.T) {
	svc, db, _ := newService(t, &fakeLLM{})
	storetest.SeedProfile(t, db, "u-1")

	for _, day := range []string{"2026-10-10", "2026-10-12", "2026-10-11", "2026-10-13"} {
		require.NoError(t, db.Create(&store.DailyHoroscope{UserID: "u-1", HoroscopeDate: day, Status: store.HoroscopeCompleted}).Error)
	}
	require.NoError(t, db.Create(&store.DailyHoroscope{UserID: "u-1", HoroscopeDate: "2026-10-14", Status: "failed"}).Error)

	rows, err := svc.History(context.Background(), "u-1", 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "2026-10-13", rows[0].HoroscopeDate)
	assert.Equal(t, "2026-10-11", rows[2].HoroscopeDate)

	rows, err = svc.History(context.Background(), "u-1", 0)
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}
