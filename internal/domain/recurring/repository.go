package recurring

import (
	"context"
	"time"
)

// Repository は定期予約テンプレートのリポジトリ
type Repository interface {
	Create(ctx context.Context, t *Template) error
	GetByID(ctx context.Context, id string) (*Template, error)
	// SetActive は有効フラグを更新する
	SetActive(ctx context.Context, id string, active bool, at time.Time) error
	// UpsertException は (テンプレート, 日付) 単位で例外を登録・更新する
	UpsertException(ctx context.Context, e *Exception) error
	// ExceptionsInRange は [from, to] の例外を日付をキーに返す
	ExceptionsInRange(ctx context.Context, templateID string, from, to time.Time) (map[string]*Exception, error)
}
