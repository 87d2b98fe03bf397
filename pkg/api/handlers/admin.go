package handlers

import (
	"net/http"
	"strconv"

	"github.com/astrapersonal/astra-api/pkg/admin"
	apierrors "github.com/astrapersonal/astra-api/pkg/api/errors"
	"github.com/astrapersonal/astra-api/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// AdminHandler handles the CRM endpoints. Routes are mounted behind RequireAdmin.
type AdminHandler struct {
	admin     *admin.Service
	validator *validator.Validate
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(adminService *admin.Service) *AdminHandler {
	return &AdminHandler{
		admin:     adminService,
		validator: newValidator(),
	}
}

// Dashboard godoc
// @Summary CRM key figures
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.DashboardResponse
// @Failure 403 {object} models.ErrorResponse "Forbidden - Admin access required"
// @Router /admin/dashboard [get]
func (h *AdminHandler) Dashboard(c echo.Context) error {
	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	resp, err := h.admin.Dashboard(ctx)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// ListUsers godoc
// @Summary List users
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number (default: 1)"
// @Param limit query int false "Items per page (default: 50, max: 200)"
// @Param country query string false "Registration country code"
// @Param plan query string false "Subscription plan"
// @Param search query string false "Matches email, first or last name"
// @Success 200 {object} models.UserListResponse
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	resp, err := h.admin.ListUsers(ctx, admin.UserFilter{
		Page:    page,
		Limit:   limit,
		Country: c.QueryParam("country"),
		Plan:    c.QueryParam("plan"),
		Search:  c.QueryParam("search"),
	})
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// GetUser godoc
// @Summary User detail
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} models.UserDetailResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/users/{id} [get]
func (h *AdminHandler) GetUser(c echo.Context) error {
	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	resp, err := h.admin.UserDetail(ctx, c.Param("id"))
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// OverrideSubscription godoc
// @Summary Override a subscription
// @Description Sets plan and status by hand, optionally grants Luna minutes, and records an audit row
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body models.SubscriptionOverrideRequest true "Override"
// @Success 200 {object} models.OKResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/users/{id}/subscription [patch]
func (h *AdminHandler) OverrideSubscription(c echo.Context) error {
	id, err := caller(c)
	if id == nil {
		return err
	}
	var req models.SubscriptionOverrideRequest
	if valid, err := bindAndValidate(c, h.validator, &req); !valid {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	if err := h.admin.OverrideSubscription(ctx, id.UserID, c.Param("id"), req); err != nil {
		return apierrors.FromDomain(c, err)
	}
	return ok(c)
}

// BanUser godoc
// @Summary Ban a user
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} models.OKResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/users/{id}/ban [post]
func (h *AdminHandler) BanUser(c echo.Context) error {
	id, err := caller(c)
	if id == nil {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	if err := h.admin.Ban(ctx, id.UserID, c.Param("id")); err != nil {
		return apierrors.FromDomain(c, err)
	}
	return ok(c)
}

// GeoSummary godoc
// @Summary Users per country and region
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.GeoSummaryRow
// @Router /admin/geo/summary [get]
func (h *AdminHandler) GeoSummary(c echo.Context) error {
	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	rows, err := h.admin.GeoSummary(ctx)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, rows)
}

// UsersByArea godoc
// @Summary Users in an area
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param country query string true "Registration country code"
// @Param region query string false "Region"
// @Param postal_code query string false "Postal code"
// @Success 200 {array} models.CRMUser
// @Failure 400 {object} models.ErrorResponse
// @Router /admin/geo/users-by-area [get]
func (h *AdminHandler) UsersByArea(c echo.Context) error {
	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	users, err := h.admin.UsersByArea(ctx, c.QueryParam("country"), c.QueryParam("region"), c.QueryParam("postal_code"))
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, users)
}

// ListSegments godoc
// @Summary Marketing segments
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} store.MarketingSegment
// @Router /admin/segments [get]
func (h *AdminHandler) ListSegments(c echo.Context) error {
	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	segments, err := h.admin.ListSegments(ctx)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, segments)
}

// CreateSegment godoc
// @Summary Create a marketing segment
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.SegmentRequest true "Segment"
// @Success 201 {object} store.MarketingSegment
// @Failure 400 {object} models.ErrorResponse
// @Router /admin/segments [post]
func (h *AdminHandler) CreateSegment(c echo.Context) error {
	var req models.SegmentRequest
	if valid, err := bindAndValidate(c, h.validator, &req); !valid {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	seg, err := h.admin.CreateSegment(ctx, req)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusCreated, seg)
}

// AssignSegment godoc
// @Summary Assign matching users to a segment
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Segment ID"
// @Success 200 {object} models.AssignResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/segments/{id}/assign [post]
func (h *AdminHandler) AssignSegment(c echo.Context) error {
	ctx, cancel := requestContext(c, 3*defaultTimeout)
	defer cancel()

	resp, err := h.admin.AssignSegment(ctx, c.Param("id"))
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// SchedulerLogs godoc
// @Summary Recent batch job runs
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Rows (default: 20, max: 100)"
// @Success 200 {array} store.SchedulerJob
// @Router /admin/scheduler/logs [get]
func (h *AdminHandler) SchedulerLogs(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	jobs, err := h.admin.SchedulerLogs(ctx, limit)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, jobs)
}
