package middleware

import (
	"crypto/subtle"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sanosuguru/go-court-reservation/internal/config"
)

// MetricsConfig はメトリクス認証の設定
type MetricsConfig struct {
	User     string
	Password string
}

// NewMetricsConfig は認証設定からメトリクス認証設定を作る
func NewMetricsConfig(auth *config.AuthConfig) MetricsConfig {
	return MetricsConfig{User: auth.MetricsUser, Password: auth.MetricsPass}
}

// IsEnabled は認証が有効かどうかを返す
func (c MetricsConfig) IsEnabled() bool {
	return c.User != "" && c.Password != ""
}

// MetricsBasicAuth は /metrics エンドポイント用の Basic 認証ミドルウェア
// ユーザーとパスワードの両方が設定されている場合のみ認証を要求する（未設定はローカル開発用）
func MetricsBasicAuth(cfg MetricsConfig) echo.MiddlewareFunc {
	if !cfg.IsEnabled() {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}

	return middleware.BasicAuth(func(username, password string, c echo.Context) (bool, error) {
		userMatch := subtle.ConstantTimeCompare([]byte(username), []byte(cfg.User)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(password), []byte(cfg.Password)) == 1
		return userMatch && passMatch, nil
	})
}
