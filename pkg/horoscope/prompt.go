package horoscope

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/astrapersonal/astra-api/pkg/ephemeris"
	"github.com/astrapersonal/astra-api/pkg/store"
)

const maxPlanetaryChars = 2000

const promptTemplate = `Sei un astrologo esperto. Genera un oroscopo giornaliero PERSONALIZZATO in italiano.

DATI NATALI UTENTE:
- Nome: %s
- Segno Solare: %s
- Luna: %s
- Ascendente: %s
- Data nascita: %s

POSIZIONI PLANETARIE OGGI (%s):
%s

GENERA un oroscopo strutturato in JSON con questo formato esatto:
{
  "section_general": "testo 2-3 frasi sulla giornata generale",
  "section_love": "testo 2 frasi su amore e relazioni",
  "section_work": "testo 2 frasi su lavoro e carriera",
  "section_health": "testo 1-2 frasi su salute ed energia",
  "overall_score": <numero da 1 a 5>,
  "full_text": "testo completo narrativo di 150-200 parole che integra tutto"
}

L'oroscopo deve essere SPECIFICO per questa persona, non generico per il segno.
Rispondi SOLO con il JSON, niente altro.`

// ErrMalformedResponse is returned when the model output is not the expected JSON
var ErrMalformedResponse = errors.New("malformed horoscope response")

// Content is the six-key document the model is asked to produce
type Content struct {
	SectionGeneral string `json:"section_general"`
	SectionLove    string `json:"section_love"`
	SectionWork    string `json:"section_work"`
	SectionHealth  string `json:"section_health"`
	OverallScore   int    `json:"overall_score"`
	FullText       string `json:"full_text"`
}

// BuildPrompt renders the generation prompt for one user and day
func BuildPrompt(p *store.Profile, planetary ephemeris.Chart, day time.Time) string {
	positions := "Posizioni non disponibili"
	if !planetary.IsEmpty() {
		if raw, err := json.MarshalIndent(planetary, "", "  "); err == nil {
			positions = truncate(string(raw), maxPlanetaryChars)
		}
	}

	birthDate := ""
	if p.BirthDate != nil {
		birthDate = *p.BirthDate
	}

	return fmt.Sprintf(promptTemplate,
		p.FirstName,
		orND(p.SunSign),
		orND(p.MoonSign),
		orND(p.Ascendant),
		birthDate,
		day.Format("02/01/2006"),
		positions,
	)
}

// ParseResponse extracts the horoscope from the model output. Markdown fences
// are stripped and the score is clamped to 1..5 (3 when missing).
func ParseResponse(text string) (*Content, error) {
	text = stripFences(strings.TrimSpace(text))

	var raw struct {
		Content
		Score *float64 `json:"overall_score"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	c := raw.Content
	c.OverallScore = 3
	if raw.Score != nil {
		c.OverallScore = min(max(int(math.Round(*raw.Score)), 1), 5)
	}
	return &c, nil
}

func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if i := strings.Index(text, "\n"); i >= 0 {
		text = text[i+1:]
	}
	if i := strings.LastIndex(text, "```"); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func orND(s string) string {
	if s == "" {
		return "N/D"
	}
	return s
}
