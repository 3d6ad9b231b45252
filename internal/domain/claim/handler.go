package claim

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
	g.GET("/claims", h.List)
	g.GET("/claims/:id", h.Get)
	g.GET("/claims/:id/services", h.Services)
	g.GET("/claims/:id/history", h.StatusHistory)
	g.POST("/claims/convert", h.Convert)
	g.POST("/claims/batch-convert", h.BatchConvert)
	g.POST("/claims/:id/status", h.TransitionStatus)
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

type convertRequest struct {
	ServiceIDs []uuid.UUID `json:"service_ids" validate:"required,min=1"`
	PayerID    uuid.UUID   `json:"payer_id" validate:"required"`
	Notes      *string     `json:"notes"`
}

func (h *Handler) Convert(c echo.Context) error {
	var req convertRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	created, err := h.svc.ConvertServicesToClaim(c.Request().Context(), req.ServiceIDs, req.PayerID, req.Notes)
	if err != nil {
		if apperr.BusinessCode(err) != "" || apperr.IsNotFound(err) {
			return httpError(err)
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, created)
}

type batchConvertRequest struct {
	Groups []ConvertGroup `json:"groups" validate:"required,min=1"`
}

func (h *Handler) BatchConvert(c echo.Context) error {
	var req batchConvertRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	report := h.svc.BatchConvertServicesToClaims(c.Request().Context(), req.Groups)
	return c.JSON(http.StatusOK, report)
}

type transitionRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note"`
}

func (h *Handler) TransitionStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	updated, err := h.svc.TransitionStatus(c.Request().Context(), id, Status(req.Status), req.Note)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	cl, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) Services(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.Services(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) StatusHistory(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.StatusHistory(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
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
