package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/astrapersonal/astra-api/pkg/ephemeris"
	"github.com/astrapersonal/astra-api/pkg/horoscope"
	"github.com/astrapersonal/astra-api/pkg/logger"
	"github.com/astrapersonal/astra-api/pkg/store"
	"github.com/astrapersonal/astra-api/pkg/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const horoscopeReply = `{"section_general":"Giornata luminosa.","section_love":"Venere ti sorride.","section_work":"Marte ti spinge.","section_health":"Energia alta.","overall_score":4,"full_text":"Oggi il cielo ti sostiene."}`

type emptyTransits struct{}

func (emptyTransits) Transits(context.Context, ephemeris.BirthData, string) ephemeris.Chart {
	return ephemeris.Chart{}
}

func setupHoroscope(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t, nil)
	handler := NewHoroscopeHandler(horoscope.NewService(h.db, stubLLM{reply: horoscopeReply}, emptyTransits{}, time.UTC, logger.Nop()))
	h.e.GET("/api/horoscope/today", handler.Today)
	h.e.GET("/api/horoscope/history", handler.History)
	return h
}

func TestHoroscopeToday(t *testing.T) {
	h := setupHoroscope(t)
	birth := "1992-07-30"
	storetest.SeedProfile(t, h.db, "u-1", func(p *store.Profile) { p.BirthDate = &birth })
	storetest.SeedProfile(t, h.db, "u-2")

	rec := h.do(http.MethodGet, "/api/horoscope/today", "", h.token("u-2", "u-2@example.com"))
	assertStatus(t, http.StatusBadRequest, rec)

	token := h.token("u-1", "u-1@example.com")
	rec = h.do(http.MethodGet, "/api/horoscope/today", "", token)
	assertStatus(t, http.StatusOK, rec)
	today := decode[store.DailyHoroscope](t, rec)
	assert.Equal(t, "Venere ti sorride.", today.SectionLove)
	assert.Equal(t, 4, today.OverallScore)

	rec = h.do(http.MethodGet, "/api/horoscope/history?limit=3", "", token)
	assertStatus(t, http.StatusOK, rec)
	history := decode[[]store.DailyHoroscope](t, rec)
	require.Len(t, history, 1)
	assert.Equal(t, today.HoroscopeDate, history[0].HoroscopeDate)
}
