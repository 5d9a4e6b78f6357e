package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Logger emits one structured event per request after the handler chain
// finishes. The expand and resolve endpoints key on their "url" query
// parameter, so it is logged alongside the usual request fields.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			err := next(c)

			evt := logger.Info()
			if err != nil {
				evt = logger.Error().Err(err)
			}

			rid, _ := c.Get("request_id").(string)
			evt = evt.
				Str("request_id", rid).
				Str("method", req.Method).
				Str("path", req.URL.Path)
			if vsURL := c.QueryParam("url"); vsURL != "" {
				evt = evt.Str("value_set", vsURL)
			}
			evt.
				Int("status", c.Response().Status).
				Int64("bytes_out", c.Response().Size).
				Dur("elapsed", time.Since(start)).
				Msg("request completed")

			return err
		}
	}
}
