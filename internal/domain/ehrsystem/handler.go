package ehrsystem

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/providerhub/internal/schema"
	"github.com/ehr/providerhub/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/ehr-systems", h.List)
	api.GET("/ehr-systems/:id", h.Get)
	api.POST("/ehr-systems", h.Create)
	api.PUT("/ehr-systems/:id", h.Update)
	api.DELETE("/ehr-systems/:id", h.Delete)
	api.GET("/providers/:id/ehr-systems", h.ListByProvider)
}

func (h *Handler) Create(c echo.Context) error {
	in, err := decodeInsert(c)
	if err != nil {
		return err
	}
	sys, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, sys)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sys, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sys)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	in, err := decodeInsert(c)
	if err != nil {
		return err
	}
	sys, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sys)
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

func (h *Handler) List(c echo.Context) error {
	p := pagination.FromContext(c)
	systems, total, err := h.svc.List(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if systems == nil {
		systems = []*EhrSystem{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(systems, total, p.Limit, p.Offset).WithLinks(c))
}

func (h *Handler) ListByProvider(c echo.Context) error {
	providerID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || providerID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid provider id")
	}
	p := pagination.FromContext(c)
	systems, total, err := h.svc.ListByProvider(c.Request().Context(), providerID, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if systems == nil {
		systems = []*EhrSystem{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(systems, total, p.Limit, p.Offset).WithLinks(c))
}

func decodeInsert(c echo.Context) (*InsertEhrSystem, error) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "could not read request body")
	}
	in, err := schema.DecodeInsert[InsertEhrSystem](body)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return in, nil
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "ehr system not found")
	case errors.Is(err, ErrDuplicate):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrProviderNotFound):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
