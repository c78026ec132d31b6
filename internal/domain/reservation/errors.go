package reservation

import "github.com/sanosuguru/go-court-reservation/internal/pkg/apperror"

// Reservation ドメインのエラー定義
var (
	ErrReservationNotFound  = apperror.New(apperror.KindNotFound, "reservation_not_found", "予約が見つかりません")
	ErrOverlap              = apperror.New(apperror.KindConflict, "slot_unavailable", "この時間帯は既に予約されています")
	ErrInvalidTransition    = apperror.New(apperror.KindConflict, "invalid_transition", "現在の状態ではこの操作はできません")
	ErrDuplicateKey         = apperror.New(apperror.KindConflict, "duplicate_request", "同じ冪等性キーの予約が既に存在します")
	ErrTenantIDRequired     = apperror.New(apperror.KindValidation, "", "テナントIDは必須です")
	ErrResourceIDRequired   = apperror.New(apperror.KindValidation, "", "コートIDは必須です")
	ErrInvalidRange         = apperror.New(apperror.KindValidation, "", "予約時間帯が不正です")
	ErrInvalidAmount        = apperror.New(apperror.KindValidation, "", "金額が不正です")
	ErrInvalidHold          = apperror.New(apperror.KindValidation, "", "仮押さえ時間が不正です")
	ErrInvalidPaymentMethod = apperror.New(apperror.KindValidation, "", "入金方法が不正です")
)
