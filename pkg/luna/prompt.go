package luna

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/astrapersonal/astra-api/pkg/store"
)

const userContextPlaceholder = "{user_context}"

const systemPromptTemplate = `Sei Luna, una consulente astrologica AI empatica, perspicace e autentica.

CARATTERE:
- Parli in italiano, con calore e profondità
- Non sei generica: ogni risposta è personalizzata sui dati reali dell'utente
- Sei diretta quando serve, gentile sempre
- Non inventi: se non hai dati sufficienti, lo dici

DATI A TUA DISPOSIZIONE:
{user_context}

COME USI I DATI:
- Conosci il tema natale dell'utente, quindi puoi parlare di pianeti, case, aspetti
- Conosci la situazione di vita, quindi puoi contestualizzare ogni risposta
- Se c'è un partner puoi analizzare la dinamica di coppia
- Sai i transiti del momento, quindi puoi dire cosa sta succedendo ORA nel cielo

REGOLE:
- Non inventare mai posizioni planetarie che non ti sono state fornite
- Non fare diagnosi mediche o consulenze legali
- Se la domanda è fuori dall'astrologia, porta gentilmente il discorso sui temi astrologici
- Risposte concise ma ricche (max 200 parole per messaggio, salvo richiesta diversa)
- Timer: sei consapevole che la sessione ha un tempo limitato, aiuta l'utente a usarlo bene`

// NoProfileContext is the grounding text used when the caller has no profile
const NoProfileContext = "Dati utente non disponibili."

const maxNatalChartChars = 1500

// SystemPrompt embeds the session's grounding context into Luna's instructions
func SystemPrompt(userContext string) string {
	return strings.Replace(systemPromptTemplate, userContextPlaceholder, userContext, 1)
}

// PreviousSessions summarizes the caller's recent ended sessions
type PreviousSessions struct {
	Count    int
	LastDate string
}

// BuildContext renders the grounding text frozen into a session at start
func BuildContext(p *store.Profile, partner *store.PartnerProfile, prev PreviousSessions) string {
	if p == nil {
		return NoProfileContext
	}

	var b strings.Builder

	b.WriteString("\nUTENTE:\n")
	fmt.Fprintf(&b, "- Nome: %s %s\n", orND(p.FirstName), p.LastName)
	fmt.Fprintf(&b, "- Data nascita: %s\n", orND(deref(p.BirthDate)))
	fmt.Fprintf(&b, "- Ora nascita: %s\n", orDefault(deref(p.BirthTime), "sconosciuta"))
	fmt.Fprintf(&b, "- Luogo nascita: %s, %s\n", orND(p.BirthCity), p.BirthCountry)
	fmt.Fprintf(&b, "- Segno Solare: %s\n", orND(p.SunSign))
	fmt.Fprintf(&b, "- Luna: %s\n", orND(p.MoonSign))
	fmt.Fprintf(&b, "- Ascendente: %s\n", orND(p.Ascendant))

	b.WriteString("\nSITUAZIONE DI VITA:\n")
	b.WriteString(compactJSON(p.LifeSituation, "{}"))
	b.WriteString("\n")

	if len(p.NatalChart) > 0 {
		b.WriteString("\nTEMA NATALE:\n")
		b.WriteString(truncate(compactJSON(p.NatalChart, ""), maxNatalChartChars))
		b.WriteString("\n")
	}

	if partner != nil {
		b.WriteString("\nPARTNER:\n")
		fmt.Fprintf(&b, "- Nome: %s\n", orND(partner.Name))
		fmt.Fprintf(&b, "- Tipo relazione: %s\n", orND(partner.RelationshipType))
		fmt.Fprintf(&b, "- Data nascita: %s\n", orND(deref(partner.BirthDate)))
		fmt.Fprintf(&b, "- Segno Solare: %s\n", orND(partner.SunSign))
		fmt.Fprintf(&b, "- Luna: %s\n", orND(partner.MoonSign))
		fmt.Fprintf(&b, "- Ascendente: %s\n", orND(partner.Ascendant))
	}

	if prev.Count > 0 {
		fmt.Fprintf(&b, "\nSESSIONI PRECEDENTI: %d sessioni totali. Ultima: %s", prev.Count, prev.LastDate)
	}

	return b.String()
}

func compactJSON(raw []byte, fallback string) string {
	if len(raw) == 0 {
		return fallback
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return fallback
	}
	out, err := json.Marshal(v)
	if err != nil {
		return fallback
	}
	return string(out)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orND(s string) string {
	return orDefault(s, "N/D")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
