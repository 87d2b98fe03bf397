package handlers

import (
	"net/http"

	apierrors "github.com/astrapersonal/astra-api/pkg/api/errors"
	custommiddleware "github.com/astrapersonal/astra-api/pkg/middleware"
	"github.com/astrapersonal/astra-api/pkg/models"
	"github.com/astrapersonal/astra-api/pkg/profiles"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// ProfileHandler serves the caller's profile and partners
type ProfileHandler struct {
	profiles  *profiles.Service
	validator *validator.Validate
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profileService *profiles.Service) *ProfileHandler {
	return &ProfileHandler{
		profiles:  profileService,
		validator: newValidator(),
	}
}

// GetProfile godoc
// @Summary Get my profile
// @Tags Profiles
// @Produce json
// @Security BearerAuth
// @Success 200 {object} store.Profile
// @Failure 404 {object} models.ErrorResponse
// @Router /profiles/me [get]
func (h *ProfileHandler) GetProfile(c echo.Context) error {
	id, err := caller(c)
	if id == nil {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	p, err := h.profiles.Get(ctx, id.UserID)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// UpdateProfile godoc
// @Summary Update my profile
// @Tags Profiles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.ProfileUpdateRequest true "Fields to change"
// @Success 200 {object} models.OKResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /profiles/me [patch]
func (h *ProfileHandler) UpdateProfile(c echo.Context) error {
	id, err := caller(c)
	if id == nil {
		return err
	}
	var req models.ProfileUpdateRequest
	if valid, err := bindAndValidate(c, h.validator, &req); !valid {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	if err := h.profiles.Update(ctx, id.UserID, req); err != nil {
		return apierrors.FromDomain(c, err)
	}
	return ok(c)
}

// SaveBirthData godoc
// @Summary Save my birth data
// @Description Stores the natal data, derives the sun sign and fetches the natal chart
// @Tags Profiles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.BirthDataRequest true "Birth data"
// @Success 200 {object} models.BirthDataResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /profiles/me/birth-data [post]
func (h *ProfileHandler) SaveBirthData(c echo.Context) error {
	id, err := caller(c)
	if id == nil {
		return err
	}
	var req models.BirthDataRequest
	if valid, err := bindAndValidate(c, h.validator, &req); !valid {
		return err
	}

	// the ephemeris call has its own 15s deadline
	ctx, cancel := requestContext(c, 2*defaultTimeout)
	defer cancel()

	resp, err := h.profiles.SaveBirthData(ctx, id.UserID, req)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// SaveGeo godoc
// @Summary Geolocate my registration
// @Description Looks up the client IP and stores city, region and country on the profile
// @Tags Profiles
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.GeoResponse
// @Router /profiles/me/geo [post]
func (h *ProfileHandler) SaveGeo(c echo.Context) error {
	id, err := caller(c)
	if id == nil {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	geo, err := h.profiles.SaveRegistrationGeo(ctx, id.UserID, custommiddleware.ClientIP(c.Request()))
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, models.GeoResponse{OK: true, Geo: geo})
}

// UpdateLifeSituation godoc
// @Summary Update my life situation
// @Tags Profiles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.LifeSituationRequest true "Life situation"
// @Success 200 {object} models.OKResponse
// @Router /profiles/me/life-situation [patch]
func (h *ProfileHandler) UpdateLifeSituation(c echo.Context) error {
	id, err := caller(c)
	if id == nil {
		return err
	}
	var req models.LifeSituationRequest
	if valid, err := bindAndValidate(c, h.validator, &req); !valid {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	if err := h.profiles.UpdateLifeSituation(ctx, id.UserID, req); err != nil {
		return apierrors.FromDomain(c, err)
	}
	return ok(c)
}

// ListPartners godoc
// @Summary List my partners
// @Tags Profiles
// @Produce json
// @Security BearerAuth
// @Success 200 {array} store.PartnerProfile
// @Router /profiles/me/partners [get]
func (h *ProfileHandler) ListPartners(c echo.Context) error {
	id, err := caller(c)
	if id == nil {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	partners, err := h.profiles.ListPartners(ctx, id.UserID)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, partners)
}

// CreatePartner godoc
// @Summary Add a partner
// @Tags Profiles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.PartnerRequest true "Partner"
// @Success 201 {object} store.PartnerProfile
// @Failure 400 {object} models.ErrorResponse
// @Router /profiles/me/partners [post]
func (h *ProfileHandler) CreatePartner(c echo.Context) error {
	id, err := caller(c)
	if id == nil {
		return err
	}
	var req models.PartnerRequest
	if valid, err := bindAndValidate(c, h.validator, &req); !valid {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	partner, err := h.profiles.CreatePartner(ctx, id.UserID, req)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusCreated, partner)
}

// UpdatePartner godoc
// @Summary Update a partner
// @Tags Profiles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Partner ID"
// @Param request body models.PartnerRequest true "Partner"
// @Success 200 {object} models.OKResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /profiles/me/partners/{id} [patch]
func (h *ProfileHandler) UpdatePartner(c echo.Context) error {
	id, err := caller(c)
	if id == nil {
		return err
	}
	var req models.PartnerRequest
	if valid, err := bindAndValidate(c, h.validator, &req); !valid {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	if err := h.profiles.UpdatePartner(ctx, id.UserID, c.Param("id"), req); err != nil {
		return apierrors.FromDomain(c, err)
	}
	return ok(c)
}

// DeletePartner godoc
// @Summary Remove a partner
// @Description Soft delete: the partner is deactivated
// @Tags Profiles
// @Produce json
// @Security BearerAuth
// @Param id path string true "Partner ID"
// @Success 200 {object} models.OKResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /profiles/me/partners/{id} [delete]
func (h *ProfileHandler) DeletePartner(c echo.Context) error {
	id, err := caller(c)
	if id == nil {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	if err := h.profiles.DeletePartner(ctx, id.UserID, c.Param("id")); err != nil {
		return apierrors.FromDomain(c, err)
	}
	return ok(c)
}
