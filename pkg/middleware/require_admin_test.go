package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/astrapersonal/astra-api/pkg/auth"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestRequireAdmin(t *testing.T) {
	isAdmin := func(email string) bool { return email == "admin@astra.app" }

	tests := []struct {
		name     string
		identity *auth.Identity
		want     int
	}{
		{"no identity", nil, http.StatusUnauthorized},
		{"regular user", &auth.Identity{UserID: "u-1", Email: "user@astra.app"}, http.StatusForbidden},
		{"admin", &auth.Identity{UserID: "u-2", Email: "admin@astra.app"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/api/admin/dashboard", nil)
			if tt.identity != nil {
				req = req.WithContext(auth.WithIdentity(req.Context(), tt.identity))
			}
			rec := httptest.NewRecorder()

			assert.NoError(t, RequireAdmin(isAdmin)(okHandler)(e.NewContext(req, rec)))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequireCronSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		header string
		want   int
	}{
		{"missing header", "s3cret", "", http.StatusUnauthorized},
		{"wrong header", "s3cret", "guess", http.StatusUnauthorized},
		{"matching header", "s3cret", "s3cret", http.StatusOK},
		{"unconfigured secret never matches", "", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/api/scheduler/generate-daily", nil)
			if tt.header != "" {
				req.Header.Set(CronSecretHeader, tt.header)
			}
			rec := httptest.NewRecorder()

			assert.NoError(t, RequireCronSecret(tt.secret)(okHandler)(e.NewContext(req, rec)))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
