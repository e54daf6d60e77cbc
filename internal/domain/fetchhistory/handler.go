package fetchhistory

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ehr/providerhub/internal/platform/blobstore"
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
	api.POST("/fetch-history", h.Create)
	api.GET("/fetch-history/:id", h.Get)
	api.GET("/fetch-history/:id/snapshot", h.DownloadSnapshot)
	api.GET("/providers/:id/fetch-history", h.ListByProvider)
}

func (h *Handler) Create(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not read request body")
	}
	in, err := schema.DecodeInsert[InsertFetch](body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	f, err := h.svc.Record(c.Request().Context(), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, f)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	f, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) ListByProvider(c echo.Context) error {
	providerID, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListByProvider(c.Request().Context(), providerID, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Fetch{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset).WithLinks(c))
}

// DownloadSnapshot streams the provider snapshot the fetch stored.
func (h *Handler) DownloadSnapshot(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	key, err := h.svc.SnapshotKey(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return blobstore.Serve(c, h.svc.blobs, key, fmt.Sprintf("fetch-%d.json", id))
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
		return echo.NewHTTPError(http.StatusNotFound, "fetch history entry not found")
	case errors.Is(err, ErrNoSnapshot):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrProviderNotFound):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, schema.ErrValidationRejected):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
