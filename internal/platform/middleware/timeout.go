package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Skipper reports whether a middleware should let the request through
// untouched.
type Skipper func(c echo.Context) bool

// RequestTimeout sets a deadline on each request context and writes a 504
// when the handler has not returned by then. Requests matched by any skipper
// (snapshot downloads, for instance) run without a deadline. A non-positive
// timeout disables the middleware.
func RequestTimeout(timeout time.Duration, skip ...Skipper) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if timeout <= 0 {
			return next
		}
		return func(c echo.Context) error {
			for _, s := range skip {
				if s(c) {
					return next(c)
				}
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			done := make(chan error, 1)
			go func() { done <- next(c) }()

			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return ctx.Err()
				}
				if c.Response().Committed {
					return nil
				}
				return c.JSON(http.StatusGatewayTimeout, map[string]string{
					"message":    "request processing exceeded the allowed time limit",
					"request_id": c.Response().Header().Get(RequestIDHeader),
				})
			}
		}
	}
}

// PathSuffix skips requests whose registered route ends with suffix.
func PathSuffix(suffix string) Skipper {
	return func(c echo.Context) bool {
		p := c.Path()
		return len(p) >= len(suffix) && p[len(p)-len(suffix):] == suffix
	}
}
