package middleware

import (
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"
)

// RequestLogger logs one line per request with status, method, path, query,
// ip, latency and user agent.  Errors returned by handlers are rendered
// first so that the logged status is the one the client received.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
    log = log.Named("http")
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            req := c.Request()

            if err := next(c); err != nil {
                c.Error(err)
            }

            fields := []zap.Field{
                zap.Int("status", c.Response().Status),
                zap.String("method", req.Method),
                zap.String("path", req.URL.Path),
                zap.String("query", req.URL.RawQuery),
                zap.String("ip", c.RealIP()),
                zap.Duration("latency", time.Since(start)),
                zap.String("user-agent", req.UserAgent()),
            }
            if a, ok := ActorFrom(c); ok {
                fields = append(fields, zap.Uint64("user_id", a.ID))
            }
            log.Info("HTTP Request", fields...)
            return nil
        }
    }
}
