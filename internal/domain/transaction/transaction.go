package transaction

import "context"

// Tx は予約台帳への書き込み単位
// reservation.Repository.Insert に渡し、重複判定と挿入を同じ単位で確定させる
type Tx interface {
	Commit() error
	// Rollback はコミット後に呼ばれても害がないこと（defer で呼ぶため）
	Rollback() error
}

// Manager は Postgres とインメモリの台帳で実装が分かれる
type Manager interface {
	Begin(ctx context.Context) (Tx, error)
}
