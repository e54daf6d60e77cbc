package directory

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// SessionHeader carries the directory session token. A bearer token in
// Authorization is accepted as well.
const SessionHeader = "X-Directory-Session"

const sessionKey = "directory_session"

type Handler struct {
	sessions *Sessions
}

func NewHandler(sessions *Sessions) *Handler {
	return &Handler{sessions: sessions}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/directory")
	g.POST("/sessions", h.CreateSession)
	g.GET("/form", h.Form)

	cur := g.Group("/sessions/current", h.requireSession)
	cur.GET("", h.GetState)
	cur.DELETE("", h.CloseSession)
	cur.POST("/delete-request", h.RequestDelete)
	cur.POST("/delete-confirm", h.ConfirmDelete)
	cur.POST("/delete-cancel", h.CancelDelete)
	cur.POST("/providers/:id/refresh", h.Refresh)
	cur.GET("/notifications", h.Notifications)
}

func sessionToken(c echo.Context) string {
	if tok := c.Request().Header.Get(SessionHeader); tok != "" {
		return tok
	}
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}

func (h *Handler) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tok := sessionToken(c)
		if tok == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing session token")
		}
		sess, err := h.sessions.Resolve(tok)
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, err.Error())
			}
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		c.Set(sessionKey, sess)
		return next(c)
	}
}

func current(c echo.Context) *Session {
	sess, _ := c.Get(sessionKey).(*Session)
	return sess
}

type sessionResponse struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	State     State  `json:"state"`
}

func (h *Handler) CreateSession(c echo.Context) error {
	sess, token, err := h.sessions.Create(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusCreated, sessionResponse{Token: token, SessionID: sess.ID, State: sess.View.State()})
}

// GetState renders the session. A q parameter, when present, replaces the
// search query first.
func (h *Handler) GetState(c echo.Context) error {
	view := current(c).View
	if _, ok := c.QueryParams()["q"]; ok {
		view.SetQuery(c.QueryParam("q"))
	}
	return c.JSON(http.StatusOK, view.State())
}

func (h *Handler) CloseSession(c echo.Context) error {
	if err := h.sessions.Close(sessionToken(c)); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

type deleteRequest struct {
	ID string `json:"id"`
}

func (h *Handler) RequestDelete(c echo.Context) error {
	var req deleteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "id is required")
	}
	view := current(c).View
	view.RequestDelete(req.ID)
	return c.JSON(http.StatusOK, view.State())
}

func (h *Handler) ConfirmDelete(c echo.Context) error {
	view := current(c).View
	if err := view.ConfirmDelete(c.Request().Context()); err != nil {
		return operationError(c, err, view)
	}
	return c.JSON(http.StatusOK, view.State())
}

func (h *Handler) CancelDelete(c echo.Context) error {
	view := current(c).View
	view.CancelDelete()
	return c.JSON(http.StatusOK, view.State())
}

func (h *Handler) Refresh(c echo.Context) error {
	view := current(c).View
	if err := view.Refresh(c.Request().Context(), c.Param("id")); err != nil {
		return operationError(c, err, view)
	}
	return c.JSON(http.StatusOK, view.State())
}

func (h *Handler) Notifications(c echo.Context) error {
	limit := 20
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 {
		limit = v
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data": current(c).Feed.Recent(limit),
	})
}

// Form resolves the create/edit form route for an optional id.
func (h *Handler) Form(c echo.Context) error {
	return c.JSON(http.StatusOK, ParseFormRoute(c.QueryParams()))
}

type operationErrorResponse struct {
	Message string `json:"message"`
	State   State  `json:"state"`
}

func operationError(c echo.Context, err error, view *View) error {
	var opErr *OperationFailed
	if !errors.As(err, &opErr) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	status := http.StatusUnprocessableEntity
	if errors.Is(err, ErrRefreshInProgress) || opErr.Message == msgRefreshInProgress {
		status = http.StatusConflict
	}
	return c.JSON(status, operationErrorResponse{Message: opErr.Message, State: view.State()})
}
