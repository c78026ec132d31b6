package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-court-reservation/internal/pkg/apperror"
	"github.com/sanosuguru/go-court-reservation/internal/pkg/metrics"
)

// PrometheusMiddleware はHTTPメトリクスを収集するミドルウェア
func PrometheusMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}
			method := c.Request().Method
			statusCode := strconv.Itoa(responseStatus(c, err))

			m.HTTPRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
			m.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// responseStatus はエラーハンドラーが返すことになるステータスを推定する
func responseStatus(c echo.Context, err error) int {
	if err == nil {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return apperror.HTTPStatus(apperror.KindOf(err))
}
