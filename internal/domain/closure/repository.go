package closure

import (
	"context"
	"time"
)

// Repository は閉鎖設定の読み取りインターフェース
type Repository interface {
	// ListForRange は [fromDate, toDate] の日付に宣言された、コート指定またはテナント全体の有効な閉鎖を返す
	ListForRange(ctx context.Context, tenantID, resourceID string, fromDate, toDate time.Time) ([]*Closure, error)
}
