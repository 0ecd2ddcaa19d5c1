package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout puts a deadline on the request context and answers 504 when
// a handler overruns it. Handlers needing longer (report exports) can derive
// their own context from the request.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			done := make(chan error, 1)
			go func() { done <- next(c) }()

			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				if ctx.Err() != context.DeadlineExceeded {
					// Client disconnect or other cancellation.
					return ctx.Err()
				}
				if c.Response().Committed {
					// Partial write already happened; nothing left to send.
					return nil
				}
				return c.JSON(http.StatusGatewayTimeout, map[string]interface{}{
					"error": "request processing exceeded the allowed time limit",
				})
			}
		}
	}
}
