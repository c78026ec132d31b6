package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-court-reservation/internal/pkg/apperror"
	"github.com/sanosuguru/go-court-reservation/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      int    `json:"code,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
// apperror は分類に応じたステータスで返し、それ以外は詳細を隠して 500 にする
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code, resp := toErrorResponse(err)

	// エラーログを出力（5xx エラーの場合）
	if code >= 500 {
		logger.FromContext(c.Request().Context()).Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	if err := c.JSON(code, resp); err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}

func toErrorResponse(err error) (int, ErrorResponse) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		message := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			message = m
		}
		return he.Code, ErrorResponse{Error: message, Code: he.Code}
	}

	var ae *apperror.Error
	if errors.As(err, &ae) && ae.Kind != apperror.KindInternal {
		code := apperror.HTTPStatus(ae.Kind)
		message := ae.Message
		if message == "" {
			message = http.StatusText(code)
		}
		return code, ErrorResponse{Error: message, Code: code, ErrorCode: apperror.CodeOf(err)}
	}

	return http.StatusInternalServerError, ErrorResponse{
		Error: "内部サーバーエラー",
		Code:  http.StatusInternalServerError,
	}
}
