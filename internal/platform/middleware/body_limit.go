package middleware

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/docker/go-units"
	"github.com/labstack/echo/v4"
)

const defaultBodyLimit int64 = 1 << 20

// BodyLimit rejects request bodies larger than limit with 413. The limit is a
// human-readable size such as "512KB", "1MB" or "10MiB"; an empty or
// unparseable value falls back to 1MB.
func BodyLimit(limit string) echo.MiddlewareFunc {
	maxBytes := parseLimit(limit)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}

			if req.ContentLength > maxBytes {
				return payloadTooLargeError(c, maxBytes)
			}

			// Content-Length may be absent or wrong.
			req.Body = &limitedReadCloser{
				ReadCloser: req.Body,
				remaining:  maxBytes,
			}
			return next(c)
		}
	}
}

type limitedReadCloser struct {
	io.ReadCloser
	remaining int64
	exceeded  bool
}

func (r *limitedReadCloser) Read(p []byte) (n int, err error) {
	if r.exceeded {
		return 0, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}

	toRead := int64(len(p))
	if toRead > r.remaining+1 {
		toRead = r.remaining + 1
	}

	n, err = r.ReadCloser.Read(p[:toRead])
	r.remaining -= int64(n)

	if r.remaining < 0 {
		r.exceeded = true
		return 0, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}
	return n, err
}

func payloadTooLargeError(c echo.Context, limit int64) error {
	return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{
		"message": fmt.Sprintf("request body exceeds maximum allowed size of %s", units.HumanSize(float64(limit))),
	})
}

func parseLimit(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultBodyLimit
	}
	n, err := units.RAMInBytes(s)
	if err != nil || n <= 0 {
		return defaultBodyLimit
	}
	return n
}
