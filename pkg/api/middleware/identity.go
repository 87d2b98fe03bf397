package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	apierrors "github.com/astrapersonal/astra-api/pkg/api/errors"
	"github.com/astrapersonal/astra-api/pkg/auth"
	"github.com/labstack/echo/v4"
)

// PublicPaths bypass bearer verification entirely
var PublicPaths = map[string]bool{
	"/":                     true,
	"/health":               true,
	"/metrics":              true,
	"/docs":                 true,
	"/openapi.json":         true,
	"/api/webhooks/stripe":  true,
	"/api/telegram/webhook": true,
	"/api/auth/register":    true,
	"/api/auth/login":       true,
	"/api/auth/refresh":     true,
}

// PublicPrefixes bypass bearer verification; the scheduler group carries its own secret check
var PublicPrefixes = []string{
	"/docs/",
	"/api/scheduler/",
}

// IsPublic reports whether a request skips identity verification
func IsPublic(r *http.Request) bool {
	if r.Method == http.MethodOptions {
		return true
	}
	path := r.URL.Path
	if PublicPaths[path] {
		return true
	}
	for _, p := range PublicPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Identity verifies the bearer token of every non-public request and attaches
// the caller identity to the request context.
func Identity(verifier *auth.Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if IsPublic(req) {
				return next(c)
			}

			token, err := auth.ParseBearer(req.Header.Get("Authorization"))
			if err != nil {
				return apierrors.FromDomain(c, err)
			}

			ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
			id, err := verifier.Verify(ctx, token)
			cancel()
			if err != nil {
				return apierrors.FromDomain(c, err)
			}

			// Kept for logout, which revokes the presented token
			c.Set("token", token)
			c.SetRequest(req.WithContext(auth.WithIdentity(req.Context(), id)))

			return next(c)
		}
	}
}

// CallerFrom returns the identity attached by Identity
func CallerFrom(c echo.Context) (*auth.Identity, bool) {
	return auth.IdentityFrom(c.Request().Context())
}
