package handlers

import (
	"errors"
	"net/http"
	"strings"

	apierrors "github.com/astrapersonal/astra-api/pkg/api/errors"
	"github.com/astrapersonal/astra-api/pkg/auth"
	"github.com/astrapersonal/astra-api/pkg/domain"
	"github.com/astrapersonal/astra-api/pkg/logger"
	"github.com/astrapersonal/astra-api/pkg/metrics"
	custommiddleware "github.com/astrapersonal/astra-api/pkg/middleware"
	"github.com/astrapersonal/astra-api/pkg/models"
	"github.com/astrapersonal/astra-api/pkg/profiles"
	"github.com/astrapersonal/astra-api/pkg/supabase"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

const (
	msgRegistered        = "Registrazione completata. Controlla la tua email per confermare l'account."
	msgAlreadyRegistered = "Email già registrata. Effettua il login."
	msgBadCredentials    = "Email o password non corretti"
	msgBadRefresh        = "Refresh token non valido o scaduto"
	msgLoggedOut         = "Logout effettuato"
)

// AuthHandler proxies the identity provider's token endpoints
type AuthHandler struct {
	provider  supabase.AuthClient
	profiles  *profiles.Service
	verifier  *auth.Verifier
	blacklist *auth.TokenBlacklist
	metrics   *metrics.Metrics
	logger    logger.Logger
	validator *validator.Validate
}

// NewAuthHandler creates a new auth handler. blacklist and m may be nil.
func NewAuthHandler(provider supabase.AuthClient, profileService *profiles.Service, verifier *auth.Verifier, blacklist *auth.TokenBlacklist, m *metrics.Metrics, log logger.Logger) *AuthHandler {
	if log == nil {
		log = logger.Default()
	}
	return &AuthHandler{
		provider:  provider,
		profiles:  profileService,
		verifier:  verifier,
		blacklist: blacklist,
		metrics:   m,
		logger:    log,
		validator: newValidator(),
	}
}

// Register godoc
// @Summary Register a new user
// @Description Create an account with the identity provider, a profile with a trial subscription, and the registration geolocation
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body models.RegisterRequest true "Registration data"
// @Success 200 {object} models.RegisterResponse
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Router /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req models.RegisterRequest
	if valid, err := bindAndValidate(c, h.validator, &req); !valid {
		return err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	metadata := map[string]string{}
	if req.FirstName != "" {
		metadata["first_name"] = req.FirstName
	}
	if req.LastName != "" {
		metadata["last_name"] = req.LastName
	}

	result, err := h.provider.SignUp(ctx, req.Email, req.Password, metadata)
	if err != nil {
		var apiErr *supabase.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			return apierrors.BadRequestError(c, apiErr.Message)
		}
		return apierrors.InternalError(c, err)
	}

	if result.AlreadyRegistered {
		return c.JSON(http.StatusOK, models.RegisterResponse{
			Email:             req.Email,
			AlreadyRegistered: true,
			Message:           msgAlreadyRegistered,
		})
	}

	account := profiles.Account{
		UserID:    result.User.ID,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
	if err := h.profiles.EnsureAccount(ctx, account, true); err != nil {
		return apierrors.InternalError(c, err)
	}

	ip := custommiddleware.ClientIP(c.Request())
	if _, err := h.profiles.SaveRegistrationGeo(ctx, account.UserID, ip); err != nil {
		h.logger.Warn("failed to save registration geo", "user_id", account.UserID, "error", err)
	}

	h.logger.Info("user registered", "user_id", account.UserID)
	return c.JSON(http.StatusOK, models.RegisterResponse{
		UserID:  account.UserID,
		Email:   req.Email,
		Message: msgRegistered,
	})
}

// Login godoc
// @Summary Log in
// @Description Exchange email and password for an access token
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Credentials"
// @Success 200 {object} models.TokenResponse
// @Failure 401 {object} models.ErrorResponse "Invalid credentials"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req models.LoginRequest
	if valid, err := bindAndValidate(c, h.validator, &req); !valid {
		return err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	session, err := h.provider.SignInWithPassword(ctx, req.Email, req.Password)
	if err != nil {
		h.metrics.RecordLoginAttempt(false)
		if errors.Is(err, supabase.ErrInvalidCredentials) {
			return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   domain.ErrCodeUnauthorized,
				Message: msgBadCredentials,
			})
		}
		return apierrors.InternalError(c, err)
	}
	h.metrics.RecordLoginAttempt(true)

	userID := session.User.ID
	if userID != "" {
		// Accounts created outside this API get their profile on first login
		if err := h.profiles.EnsureAccount(ctx, profiles.Account{UserID: userID, Email: session.User.Email}, false); err != nil {
			h.logger.Error("failed to ensure profile", "user_id", userID, "error", err)
		}
		if err := h.profiles.RecordLogin(ctx, userID, custommiddleware.ClientIP(c.Request())); err != nil {
			h.logger.Error("failed to record login", "user_id", userID, "error", err)
		}
	}

	return c.JSON(http.StatusOK, models.TokenResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresIn:    session.ExpiresIn,
		UserID:       userID,
	})
}

// Refresh godoc
// @Summary Refresh the access token
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body models.RefreshRequest true "Refresh token"
// @Success 200 {object} models.TokenResponse
// @Failure 401 {object} models.ErrorResponse "Invalid refresh token"
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req models.RefreshRequest
	if valid, err := bindAndValidate(c, h.validator, &req); !valid {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	session, err := h.provider.Refresh(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, supabase.ErrInvalidCredentials) {
			return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   domain.ErrCodeUnauthorized,
				Message: msgBadRefresh,
			})
		}
		return apierrors.InternalError(c, err)
	}

	return c.JSON(http.StatusOK, models.TokenResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresIn:    session.ExpiresIn,
	})
}

// Logout godoc
// @Summary Log out
// @Description Revoke the session at the identity provider and blacklist the presented token until it expires
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.OKResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	token, _ := c.Get("token").(string)
	if token == "" {
		return apierrors.UnauthorizedError(c)
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	if err := h.provider.Logout(ctx, token); err != nil {
		h.logger.Warn("identity provider logout failed", "error", err)
	}

	if h.blacklist != nil {
		expiresAt, err := h.verifier.ExpiresAt(token)
		if err == nil {
			err = h.blacklist.RevokeUntil(ctx, token, expiresAt)
		}
		if err != nil {
			h.logger.Error("failed to blacklist token", "error", err)
		}
	}

	return c.JSON(http.StatusOK, models.OKResponse{OK: true, Message: msgLoggedOut})
}

// Me godoc
// @Summary Current identity
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.MeResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	id, err := caller(c)
	if id == nil {
		return err
	}
	return c.JSON(http.StatusOK, models.MeResponse{
		UserID: id.UserID,
		Email:  id.Email,
		Role:   id.Role,
	})
}
