package echoapi

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/cadence/core"
)

// requestLogger logs every request once it has been handled.
func requestLogger(logger core.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)
			if err != nil {
				ctx.Error(err)
			}

			req, res := ctx.Request(), ctx.Response()
			logger.Info("HTTP request", map[string]interface{}{
				"method":      req.Method,
				"path":        req.URL.Path,
				"status":      res.Status,
				"duration":    time.Since(start).String(),
				"remote_addr": ctx.RealIP(),
			})
			return nil
		}
	}
}
