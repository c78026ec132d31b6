package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-court-reservation/internal/pkg/logger"
)

// HealthCheck は依存先の疎通確認
type HealthCheck func(ctx context.Context) error

// HealthHandler はヘルスチェックハンドラー
type HealthHandler struct {
	checks map[string]HealthCheck
}

// NewHealthHandler はHealthHandlerを作成する
// checks には名前ごとの依存先の確認を渡す（DB・Redis など）
func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// HealthResponse はヘルスチェックのレスポンス
type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
}

// Check はヘルスチェックを行う
// @Summary ヘルスチェック
// @Description アプリケーションと依存先の健全性を確認する
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Check(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := HealthResponse{Status: "ok", Timestamp: time.Now().Format(time.RFC3339)}
	code := http.StatusOK
	for _, name := range names {
		if resp.Components == nil {
			resp.Components = make(map[string]string, len(names))
		}
		if err := h.checks[name](ctx); err != nil {
			logger.FromContext(ctx).Warn("ヘルスチェック失敗", zap.String("component", name), zap.Error(err))
			resp.Components[name] = "down"
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Components[name] = "ok"
	}
	return c.JSON(code, resp)
}
