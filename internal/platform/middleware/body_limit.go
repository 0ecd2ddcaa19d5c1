package middleware

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// BodyLimit caps the request body at a human-readable size ("1M", "512K",
// "2G"; a bare number means bytes). Oversized requests answer 413. The
// Content-Length header is checked up front; the body reader enforces the
// limit for chunked requests and lying clients.
func BodyLimit(maxSize string) echo.MiddlewareFunc {
	limit := parseSize(maxSize)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}

			if req.ContentLength > limit {
				return c.JSON(http.StatusRequestEntityTooLarge, map[string]interface{}{
					"error": fmt.Sprintf("request body exceeds maximum allowed size of %d bytes", limit),
				})
			}

			req.Body = &cappedBody{body: req.Body, remaining: limit}
			return next(c)
		}
	}
}

// cappedBody errors once more than remaining bytes have been read.
type cappedBody struct {
	body      io.ReadCloser
	remaining int64
	exceeded  bool
}

func (b *cappedBody) Read(p []byte) (int, error) {
	if b.exceeded {
		return 0, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}

	// Read one byte past the cap so overflow is detectable.
	if allowed := b.remaining + 1; int64(len(p)) > allowed {
		p = p[:allowed]
	}
	n, err := b.body.Read(p)
	b.remaining -= int64(n)
	if b.remaining < 0 {
		b.exceeded = true
		return 0, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}
	return n, err
}

func (b *cappedBody) Close() error {
	return b.body.Close()
}

// parseSize converts "512K"/"1M"/"2G" (optionally with a B suffix) to bytes.
// Unparseable input falls back to 1 MB.
func parseSize(s string) int64 {
	const fallback = 1 << 20

	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return fallback
	}

	var shift uint
	switch {
	case strings.HasSuffix(s, "G") || strings.HasSuffix(s, "GB"):
		shift = 30
		s = strings.TrimRight(s, "GB")
	case strings.HasSuffix(s, "M") || strings.HasSuffix(s, "MB"):
		shift = 20
		s = strings.TrimRight(s, "MB")
	case strings.HasSuffix(s, "K") || strings.HasSuffix(s, "KB"):
		shift = 10
		s = strings.TrimRight(s, "KB")
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fallback
	}
	return n << shift
}
