package recurring

import "github.com/sanosuguru/go-court-reservation/internal/pkg/apperror"

// Recurring ドメインのエラー定義
var (
	ErrTemplateNotFound  = apperror.New(apperror.KindNotFound, "template_not_found", "定期予約が見つかりません")
	ErrTemplateInactive  = apperror.New(apperror.KindConflict, "template_inactive", "定期予約は無効化されています")
	ErrResourceRequired  = apperror.New(apperror.KindValidation, "", "テナントIDとコートIDは必須です")
	ErrInvalidDayOfWeek  = apperror.New(apperror.KindValidation, "", "曜日が不正です")
	ErrInvalidSlot       = apperror.New(apperror.KindValidation, "", "開始時刻または時間が不正です")
	ErrInvalidSegment    = apperror.New(apperror.KindValidation, "", "利用者区分が不正です")
	ErrInvalidValidity   = apperror.New(apperror.KindValidation, "", "有効期間が不正です")
	ErrInvalidAction     = apperror.New(apperror.KindValidation, "", "例外の種類が不正です")
	ErrEmptyOverride     = apperror.New(apperror.KindValidation, "", "変更内容が指定されていません")
	ErrInvalidWeeksAhead = apperror.New(apperror.KindValidation, "", "生成週数は1〜52の範囲で指定してください")
	ErrInvalidPolicy     = apperror.New(apperror.KindValidation, "", "衝突時のポリシーが不正です")
	ErrWrongWeekday      = apperror.New(apperror.KindValidation, "", "例外日がテンプレートの曜日と一致しません")
)
