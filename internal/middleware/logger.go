package middleware

import (
	"time" // latency rounding

	"github.com/labstack/echo/v4"            // Echo middleware types
	"github.com/labstack/echo/v4/middleware" // built-in request logger hooks
	"go.uber.org/zap"                        // structured logging
)

// RequestLogger logs one line per request, at a level chosen by the status.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogMethod:    true,
		LogURI:       true,
		LogRoutePath: true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogError:     true,
		HandleError:  true, // let echo render the error before the status is read
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("request_id", v.RequestID),
				zap.Int("status", v.Status),
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.String("route", v.RoutePath),
				zap.String("ip", v.RemoteIP),
				zap.String("user_id", UserID(c)), // empty before JWTAuth
				zap.Duration("latency", v.Latency.Round(time.Microsecond)),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			// 5xx is ours, 4xx is the caller's.
			switch {
			case v.Status >= 500:
				log.Error("server error", fields...)
			case v.Status >= 400:
				log.Warn("client error", fields...)
			default:
				log.Info("request completed", fields...)
			}
			return nil
		},
	})
}
