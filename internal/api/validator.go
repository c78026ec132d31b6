package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-court-reservation/internal/domain/timerange"
)

// CustomValidator はEcho用のカスタムバリデーター
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator は新しいバリデーターを作成する
// clock（HH:MM）と date（YYYY-MM-DD）のタグを追加で登録する
func NewValidator() *CustomValidator {
	v := validator.New()
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := timerange.ParseClock(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		_, err := timerange.ParseDate(fl.Field().String())
		return err == nil
	})
	return &CustomValidator{validator: v}
}

// Validate はリクエストのバリデーションを実行する
func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
