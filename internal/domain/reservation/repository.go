package reservation

import (
	"context"
	"time"

	"github.com/sanosuguru/go-court-reservation/internal/domain/transaction"
)

// Repository は予約リポジトリのインターフェース
type Repository interface {
	// Insert は重複する期限切れ仮押さえを expired にしたうえで予約を挿入する（トランザクション必須）
	// 確定済みまたは期限内の仮押さえと重なる場合は ErrOverlap を返す
	Insert(ctx context.Context, tx transaction.Tx, r *Reservation, now time.Time) error

	// GetByID はIDから予約を取得する
	GetByID(ctx context.Context, id string) (*Reservation, error)

	// GetByIdempotencyKey は冪等性キーから予約を取得する
	GetByIdempotencyKey(ctx context.Context, key string) (*Reservation, error)

	// ListActiveInRange は [from, to) と重なる、確定済みまたは期限内の仮押さえを返す
	ListActiveInRange(ctx context.Context, resourceID string, from, to, now time.Time) ([]*Reservation, error)

	// UpdateStatus は現在の状態が from のいずれかの場合のみ状態を変更する
	UpdateStatus(ctx context.Context, id string, from []Status, change StatusChange) (bool, error)

	// ExpireStaleHolds は期限切れの仮押さえを expired にし、失効した予約のコートIDを返す（1件につき1つ）
	ExpireStaleHolds(ctx context.Context, now time.Time) ([]string, error)

	// LastDateForTemplate は定期予約テンプレートから生成された最後の予約日を返す（なければ nil）
	LastDateForTemplate(ctx context.Context, templateID string) (*time.Time, error)

	// CancelByTemplate は fromDate 以降のテンプレート由来の有効な予約をキャンセルし、件数を返す
	CancelByTemplate(ctx context.Context, templateID string, fromDate time.Time, change StatusChange) (int, error)

	// AddPayment は入金を記録し、内金の支払額に加算する
	AddPayment(ctx context.Context, p *Payment) error
}
