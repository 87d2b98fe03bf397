package middleware

import (
	"crypto/subtle"

	apierrors "github.com/astrapersonal/astra-api/pkg/api/errors"
	"github.com/astrapersonal/astra-api/pkg/auth"
	"github.com/labstack/echo/v4"
)

// CronSecretHeader carries the shared secret of scheduled job triggers
const CronSecretHeader = "x-cron-secret"

// RequireAdmin ensures the caller's email is on the admin list.
// It must run after the identity middleware.
func RequireAdmin(isAdmin func(email string) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := auth.IdentityFrom(c.Request().Context())
			if !ok {
				return apierrors.UnauthorizedError(c)
			}

			if !isAdmin(id.Email) {
				return apierrors.ForbiddenError(c, "Accesso riservato agli amministratori")
			}

			return next(c)
		}
	}
}

// RequireCronSecret rejects requests whose x-cron-secret header does not match secret
func RequireCronSecret(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := c.Request().Header.Get(CronSecretHeader)
			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				return apierrors.UnauthorizedError(c)
			}
			return next(c)
		}
	}
}
