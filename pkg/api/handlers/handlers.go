// Package handlers implements the HTTP routers of the API
package handlers

import (
	"context"
	"net/http"
	"time"

	apierrors "github.com/astrapersonal/astra-api/pkg/api/errors"
	apimiddleware "github.com/astrapersonal/astra-api/pkg/api/middleware"
	"github.com/astrapersonal/astra-api/pkg/auth"
	"github.com/astrapersonal/astra-api/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Per-request deadlines
const (
	defaultTimeout = 10 * time.Second
	// model completion plus speech synthesis
	lunaTimeout = 75 * time.Second
	// on-demand horoscope generation calls the ephemeris and the model
	horoscopeTimeout = 60 * time.Second
)

func newValidator() *validator.Validate {
	return validator.New()
}

// caller returns the verified identity or writes a 401
func caller(c echo.Context) (*auth.Identity, error) {
	id, ok := apimiddleware.CallerFrom(c)
	if !ok || id.UserID == "" {
		return nil, apierrors.UnauthorizedError(c)
	}
	return id, nil
}

func requestContext(c echo.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), timeout)
}

// bindAndValidate decodes the body into req and runs its validate tags.
// On failure it writes the error response and returns false.
func bindAndValidate(c echo.Context, v *validator.Validate, req any) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if err := v.Struct(req); err != nil {
		return false, apierrors.ValidationError(c, err)
	}
	return true, nil
}

func ok(c echo.Context) error {
	return c.JSON(http.StatusOK, models.OKResponse{OK: true})
}
