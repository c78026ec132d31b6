package tariff

import "github.com/sanosuguru/go-court-reservation/internal/pkg/apperror"

// Tariff ドメインのエラー定義
var (
	ErrPlanNotFound        = apperror.New(apperror.KindNotFound, "plan_not_found", "料金プランが見つかりません")
	ErrResourceNotFound    = apperror.New(apperror.KindNotFound, "resource_not_found", "コートが見つかりません")
	ErrNoApplicableRule    = apperror.New(apperror.KindConflict, "pricing_not_configured", "この時間帯の料金が設定されていません")
	ErrNotTileable         = apperror.New(apperror.KindConflict, "pricing_not_configured", "料金ルールで時間帯を分割できません")
	ErrAmbiguousCarryOver  = apperror.New(apperror.KindConflict, "pricing_not_configured", "前日の深夜ルールと当日のルールが重複しています")
	ErrUnsupportedDuration = apperror.New(apperror.KindValidation, "unsupported_duration", "対応していない予約時間です")
	ErrOverrideForbidden   = apperror.New(apperror.KindForbidden, "forbidden", "利用者区分の指定にはスタッフ権限が必要です")
	ErrPlanIDRequired      = apperror.New(apperror.KindValidation, "", "料金プランIDは必須です")
	ErrInvalidSegment      = apperror.New(apperror.KindValidation, "", "利用者区分が不正です")
	ErrInvalidWindow       = apperror.New(apperror.KindValidation, "", "適用時間帯が不正です")
	ErrInvalidBucket       = apperror.New(apperror.KindValidation, "", "時間枠が不正です")
	ErrInvalidPrice        = apperror.New(apperror.KindValidation, "", "料金が不正です")
)
