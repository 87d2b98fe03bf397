package errors

import (
	stderrors "errors"
	"log"
	"net/http"

	"github.com/astrapersonal/astra-api/pkg/domain"
	"github.com/astrapersonal/astra-api/pkg/models"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	"golang.org/x/text/language"
)

var supported = language.NewMatcher([]language.Tag{
	language.Italian, // default
	language.English,
})

// messages holds the fixed user-facing text per error code
var messages = map[string]map[language.Tag]string{
	domain.ErrCodeUnauthenticated: {
		language.Italian: "Token di autenticazione mancante",
		language.English: "Missing authentication token",
	},
	domain.ErrCodeTokenExpired: {
		language.Italian: "Token scaduto, effettua di nuovo il login",
		language.English: "Token expired, please log in again",
	},
	domain.ErrCodeInvalidSignature: {
		language.Italian: "Token non valido",
		language.English: "Invalid token",
	},
	domain.ErrCodeUnauthorized: {
		language.Italian: "Non sei autorizzato ad accedere a questa risorsa",
		language.English: "You are not authorized to access this resource",
	},
	domain.ErrCodeInsufficientBalance: {
		language.Italian: "Minuti Luna esauriti. Acquista un pacchetto per continuare.",
		language.English: "Luna minutes exhausted. Buy a pack to continue.",
	},
	domain.ErrCodeNoSubscription: {
		language.Italian: "Nessun abbonamento trovato",
		language.English: "No subscription found",
	},
	domain.ErrCodeForbidden: {
		language.Italian: "Non hai i permessi per accedere a questa risorsa",
		language.English: "You do not have permission to access this resource",
	},
	domain.ErrCodeSessionNotFound: {
		language.Italian: "Sessione non trovata o già terminata",
		language.English: "Session not found or already ended",
	},
	domain.ErrCodeNotFound: {
		language.Italian: "La risorsa richiesta non è stata trovata",
		language.English: "The requested resource was not found",
	},
	domain.ErrCodeValidation: {
		language.Italian: "Dati non validi. Controlla i campi e riprova.",
		language.English: "Invalid request data. Please check your input and try again.",
	},
	domain.ErrCodeInvalidWebhookSignature: {
		language.Italian: "Firma del webhook non valida",
		language.English: "Invalid webhook signature",
	},
	domain.ErrCodeInternal: {
		language.Italian: "Si è verificato un errore interno. Riprova più tardi.",
		language.English: "An internal error occurred. Please try again later.",
	},
}

// statuses maps error codes to HTTP status codes
var statuses = map[string]int{
	domain.ErrCodeUnauthenticated:         http.StatusUnauthorized,
	domain.ErrCodeTokenExpired:            http.StatusUnauthorized,
	domain.ErrCodeInvalidSignature:        http.StatusUnauthorized,
	domain.ErrCodeUnauthorized:            http.StatusUnauthorized,
	domain.ErrCodeInsufficientBalance:     http.StatusPaymentRequired,
	domain.ErrCodeNoSubscription:          http.StatusForbidden,
	domain.ErrCodeForbidden:               http.StatusForbidden,
	domain.ErrCodeSessionNotFound:         http.StatusNotFound,
	domain.ErrCodeNotFound:                http.StatusNotFound,
	domain.ErrCodeValidation:              http.StatusBadRequest,
	domain.ErrCodeBadRequest:              http.StatusBadRequest,
	domain.ErrCodeInvalidWebhookSignature: http.StatusBadRequest,
	domain.ErrCodeConflict:                http.StatusConflict,
	domain.ErrCodeInternal:                http.StatusInternalServerError,
}

// Status returns the HTTP status for an error code
func Status(code string) int {
	if s, ok := statuses[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Language picks Italian or English from the Accept-Language header
func Language(c echo.Context) language.Tag {
	tags, _, _ := language.ParseAcceptLanguage(c.Request().Header.Get("Accept-Language"))
	_, idx, conf := supported.Match(tags...)
	if conf == language.No || idx != 1 {
		return language.Italian
	}
	return language.English
}

// Message returns the localized text for code, or "" when the code has no fixed text
func Message(c echo.Context, code string) string {
	return messages[code][Language(c)]
}

// FromDomain writes the JSON error body for err.
// Codes with fixed text are localized; BAD_REQUEST and CONFLICT carry the service's own message.
func FromDomain(c echo.Context, err error) error {
	var de *domain.DomainError
	if !stderrors.As(err, &de) || de.Code == domain.ErrCodeInternal {
		return InternalError(c, err)
	}

	msg := Message(c, de.Code)
	if msg == "" || (de.Code == domain.ErrCodeForbidden && de.Message != "") {
		msg = de.Message
	}

	if de.Err != nil {
		log.Printf("[%s] Path: %s, Error: %v", de.Code, c.Request().URL.Path, de.Err)
	}

	return c.JSON(Status(de.Code), models.ErrorResponse{
		Error:   de.Code,
		Message: msg,
	})
}

// ValidationError returns a generic validation error without exposing internal details
func ValidationError(c echo.Context, err error) error {
	log.Printf("[VALIDATION ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)

	return c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   domain.ErrCodeValidation,
		Message: Message(c, domain.ErrCodeValidation),
	})
}

// BadRequestError returns a 400 with a caller-facing message
func BadRequestError(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   domain.ErrCodeBadRequest,
		Message: message,
	})
}

// InternalError returns a generic internal server error and reports err to Sentry
func InternalError(c echo.Context, err error) error {
	log.Printf("[INTERNAL ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)

	if hub := sentryecho.GetHubFromContext(c); hub != nil && err != nil {
		hub.CaptureException(err)
	}

	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   domain.ErrCodeInternal,
		Message: Message(c, domain.ErrCodeInternal),
	})
}

// UnauthorizedError returns a generic unauthorized error
func UnauthorizedError(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
		Error:   domain.ErrCodeUnauthorized,
		Message: Message(c, domain.ErrCodeUnauthorized),
	})
}

// ForbiddenError returns a forbidden error with the given reason
func ForbiddenError(c echo.Context, reason string) error {
	if reason == "" {
		reason = Message(c, domain.ErrCodeForbidden)
	}
	return c.JSON(http.StatusForbidden, models.ErrorResponse{
		Error:   domain.ErrCodeForbidden,
		Message: reason,
	})
}

// NotFoundError returns a generic not found error
func NotFoundError(c echo.Context) error {
	return c.JSON(http.StatusNotFound, models.ErrorResponse{
		Error:   domain.ErrCodeNotFound,
		Message: Message(c, domain.ErrCodeNotFound),
	})
}
