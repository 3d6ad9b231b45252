package authorization

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hcbs/hcbs/internal/platform/apperr"
	"github.com/hcbs/hcbs/internal/platform/auth"
	"github.com/hcbs/hcbs/pkg/pagination"
)

var validate = validator.New()

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("billing"))
	g.GET("/authorizations", h.List)
	g.GET("/authorizations/:id", h.Get)
	g.POST("/authorizations", h.Create)
	g.PUT("/authorizations/:id", h.Update)
	g.DELETE("/authorizations/:id", h.Delete)
	g.POST("/authorizations/:id/status", h.UpdateStatus)
	g.POST("/authorizations/:id/utilization", h.TrackUtilization)
	g.POST("/authorizations/:id/validate-service", h.ValidateService)
	g.POST("/authorizations/find-match", h.FindMatch)
}

func httpError(err error) error {
	switch {
	case apperr.IsNotFound(err):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case apperr.BusinessCode(err) != "":
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) Create(c echo.Context) error {
	var a Authorization
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), &a); err != nil {
		if apperr.BusinessCode(err) != "" {
			return httpError(err)
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var a Authorization
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a.ID = id
	if err := h.svc.Update(c.Request().Context(), &a); err != nil {
		if apperr.BusinessCode(err) != "" || apperr.IsNotFound(err) {
			return httpError(err)
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.UpdateStatus(c.Request().Context(), id, Status(req.Status))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type trackUtilizationRequest struct {
	Units      int  `json:"units" validate:"gte=0"`
	IsAddition bool `json:"is_addition"`
}

func (h *Handler) TrackUtilization(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req trackUtilizationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.TrackUtilization(c.Request().Context(), id, req.Units, req.IsAddition)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type validateServiceRequest struct {
	ServiceID uuid.UUID `json:"service_id" validate:"required"`
}

func (h *Handler) ValidateService(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req validateServiceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.ValidateServiceByID(c.Request().Context(), req.ServiceID, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) FindMatch(c echo.Context) error {
	var req validateServiceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.FindMatchingAuthorizationByServiceID(c.Request().Context(), req.ServiceID)
	if err != nil {
		return httpError(err)
	}
	if a == nil {
		return c.JSON(http.StatusOK, map[string]interface{}{"match": nil})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"match": a})
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	clientID, err := uuid.Parse(c.QueryParam("client_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "client_id is required")
	}
	items, total, err := h.svc.ListByClient(c.Request().Context(), clientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
