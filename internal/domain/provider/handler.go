package provider

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

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
	api.GET("/providers", h.List)
	api.GET("/providers/:id", h.Get)
	api.POST("/providers", h.Create)
	api.PUT("/providers/:id", h.Update)
	api.DELETE("/providers/:id", h.Delete)
	api.POST("/providers/:id/refresh", h.Refresh)
}

// providerResponse adds the derived last fetch time to the row.
type providerResponse struct {
	*Provider
	LastDataFetch *time.Time `json:"last_data_fetch"`
}

func toResponse(p *Provider) providerResponse {
	return providerResponse{Provider: p, LastDataFetch: p.LastDataFetch}
}

func (h *Handler) List(c echo.Context) error {
	p := pagination.FromContext(c)
	providers, total, err := h.svc.Search(c.Request().Context(), c.QueryParam("q"), p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]providerResponse, 0, len(providers))
	for _, pr := range providers {
		out = append(out, toResponse(pr))
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(out, total, p.Limit, p.Offset).WithLinks(c))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, toResponse(p))
}

func (h *Handler) Create(c echo.Context) error {
	in, err := decodeInsert(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, toResponse(p))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	in, err := decodeInsert(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, toResponse(p))
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Refresh(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	res, err := h.svc.Refresh(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func decodeInsert(c echo.Context) (*InsertProvider, error) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "could not read request body")
	}
	in, err := schema.DecodeInsert[InsertProvider](body)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return in, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "provider not found")
	case errors.Is(err, ErrDuplicate):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrRefreshInProgress):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		if errors.Is(err, ErrInvalid) || errors.Is(err, schema.ErrValidationRejected) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
