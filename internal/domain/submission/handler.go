package submission

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hcbs/hcbs/internal/platform/apperr"
	"github.com/hcbs/hcbs/internal/platform/auth"
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
	g.POST("/claims/:id/submit", h.Submit)
	g.POST("/submissions/batch", h.SubmitBatch)
	g.GET("/claims/:id/submissions", h.Attempts)
}

func httpError(err error) error {
	var ie *apperr.IntegrationError
	switch {
	case apperr.IsNotFound(err):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case apperr.BusinessCode(err) != "":
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &ie):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) Submit(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	res, err := h.svc.SubmitClaim(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	// Requirement failures are a normal outcome; the result carries them.
	return c.JSON(http.StatusOK, res)
}

type batchRequest struct {
	ClaimIDs []uuid.UUID `json:"claim_ids" validate:"required,min=1"`
}

func (h *Handler) SubmitBatch(c echo.Context) error {
	var req batchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.SubmitBatch(c.Request().Context(), req.ClaimIDs)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Attempts(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.Attempts(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}
