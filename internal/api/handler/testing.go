package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-court-reservation/internal/api"
	"github.com/sanosuguru/go-court-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-court-reservation/internal/domain/tariff"
)

// NewTestEcho はテスト用のEchoインスタンスを作成する
func NewTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	return e
}

// WithTestActor はテスト用に認証済みの呼び出し元を設定する
func WithTestActor(c echo.Context, tenantID string, caps ...tariff.Capability) {
	middleware.SetActor(c, &middleware.Actor{UserID: "user-test", TenantID: tenantID, Capabilities: caps})
}
