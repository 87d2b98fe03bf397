package telegram

import (
	"fmt"
	"strings"
	"time"

	"github.com/astrapersonal/astra-api/pkg/store"
)

const defaultBotUsername = "AstraPersonalBot"

const msgWelcome = `🌙 *Benvenuto su Astra Personal!*

Sono il tuo assistente astrologico personale.

Per collegare il tuo account e ricevere il tuo oroscopo personale ogni mattina, vai su:
👉 %s/collegamento-telegram

Ti verrà fornito un codice da inviarmi qui.

*Comandi disponibili:*
/oroscopo — Oroscopo di oggi
/saldo — Minuti Luna disponibili
/stop — Interrompi le notifiche
/aiuto — Mostra questo messaggio`

const msgAlreadyConnected = `✅ Il tuo account è già collegato!

*Comandi disponibili:*
/oroscopo — Oroscopo di oggi
/saldo — I tuoi minuti Luna
/stop — Interrompi le notifiche
/aiuto — Mostra l'elenco comandi`

const msgStop = `🔕 Notifiche sospese.

Non riceverai più l'oroscopo giornaliero su Telegram.

Per riattivarle in qualsiasi momento, scrivi /start oppure vai nelle impostazioni del sito.`

const msgHelp = `🌟 *Comandi Astra Personal*

/oroscopo — Ricevi l'oroscopo di oggi
/saldo — Controlla i tuoi minuti Luna
/stop — Sospendi le notifiche giornaliere
/start — Riattiva le notifiche
/aiuto — Mostra questo messaggio

Per parlare con Luna o accedere ai servizi:
👉 %s`

const (
	msgInvalidToken   = "❌ Codice non valido o scaduto. Genera un nuovo codice dal sito."
	msgLinkFailed     = "❌ Errore nel collegamento. Riprova dal sito."
	msgNotReady       = "⏳ Il tuo oroscopo di oggi non è ancora pronto. Riprova tra qualche minuto."
	msgNoSubscription = "Nessun abbonamento trovato."
)

var italianMonths = [...]string{
	"gennaio", "febbraio", "marzo", "aprile", "maggio", "giugno",
	"luglio", "agosto", "settembre", "ottobre", "novembre", "dicembre",
}

// Stars renders a horoscope score as stars, three when unset
func Stars(score int) string {
	if score <= 0 {
		score = 3
	}
	return strings.Repeat("⭐", score)
}

// ItalianDate formats day as "15 ottobre 2026"
func ItalianDate(day time.Time) string {
	return fmt.Sprintf("%d %s %d", day.Day(), italianMonths[day.Month()-1], day.Year())
}

// DailyPushMessage is the morning horoscope pushed to linked chats
func DailyPushMessage(day time.Time, firstName, sunSign string, h *store.DailyHoroscope) string {
	var who []string
	if firstName != "" {
		who = append(who, "per "+firstName)
	}
	if sunSign != "" {
		who = append(who, "• "+sunSign)
	}

	return fmt.Sprintf(`🌙 *Oroscopo di oggi — %s*
%s

%s

❤️ *Amore:* %s
💼 *Lavoro:* %s

%s — Voto del giorno

_Vuoi approfondire? Parla con Luna_ ✨`,
		ItalianDate(day), strings.Join(who, " "),
		h.TextContent, h.SectionLove, h.SectionWork, Stars(h.OverallScore))
}

func todayMessage(h *store.DailyHoroscope, frontendURL string) string {
	return fmt.Sprintf(`🌙 *Il tuo oroscopo di oggi*

%s

❤️ *Amore:* %s
💼 *Lavoro:* %s

%s

_Vuoi approfondire? Parla con Luna su %s_ ✨`,
		h.TextContent, h.SectionLove, h.SectionWork, Stars(h.OverallScore), frontendURL)
}

func linkedMessage(firstName string) string {
	name := ""
	if firstName != "" {
		name = ", " + firstName
	}
	return fmt.Sprintf("✅ *Account collegato con successo%s!*\n\n"+
		"Riceverai il tuo oroscopo personale ogni mattina alle 07:00 🌙\n\n"+
		"Scrivi /oroscopo per ricevere subito quello di oggi.", name)
}

func balanceMessage(sub *store.Subscription, frontendURL string) string {
	return fmt.Sprintf("💫 *Il tuo saldo Luna*\n\n"+
		"⏱ Minuti disponibili: *%d min*\n"+
		"📋 Piano: *%s*\n"+
		"📊 Stato: *%s*\n\n"+
		"Per acquistare minuti: %s/luna",
		sub.LunaMinutesBalance, strings.ToUpper(sub.Plan), sub.Status, frontendURL)
}

func notLinkedMessage(frontendURL string) string {
	return fmt.Sprintf("Per ricevere il tuo oroscopo personale devi prima collegare il tuo account.\n\n👉 %s/collegamento-telegram", frontendURL)
}

func notLinkedShortMessage(frontendURL string) string {
	return fmt.Sprintf("Account non collegato.\n👉 %s/collegamento-telegram", frontendURL)
}

func fallbackMessage(frontendURL string) string {
	return fmt.Sprintf("Ciao! 🌙 Sono il bot di Astra Personal.\n\n"+
		"Scrivi /aiuto per vedere i comandi disponibili.\n"+
		"Per parlare con Luna: %s", frontendURL)
}
