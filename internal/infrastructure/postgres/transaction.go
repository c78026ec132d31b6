package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-court-reservation/internal/domain/transaction"
)

// TxWrapper は台帳書き込み用の sqlx.Tx
type TxWrapper struct {
	*sqlx.Tx
}

func (t *TxWrapper) Commit() error {
	return t.Tx.Commit()
}

func (t *TxWrapper) Rollback() error {
	return t.Tx.Rollback()
}

type TxManager struct {
	db   *sqlx.DB
	opts *sql.TxOptions
}

// NewTxManager は READ COMMITTED で開始するマネージャーを返す
// 同じコートの重複は reservations_no_overlap 制約が挿入時に弾くため、これ以上の分離レベルは要らない
func NewTxManager(db *sqlx.DB) *TxManager {
	return &TxManager{db: db, opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted}}
}

func (m *TxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	tx, err := m.db.BeginTxx(ctx, m.opts)
	if err != nil {
		return nil, err
	}
	return &TxWrapper{Tx: tx}, nil
}

// UnwrapTx は台帳リポジトリが使う sqlx.Tx を取り出す
// インメモリ実装の Tx が渡された場合は nil
func UnwrapTx(tx transaction.Tx) *sqlx.Tx {
	if wrapper, ok := tx.(*TxWrapper); ok {
		return wrapper.Tx
	}
	return nil
}

var _ transaction.Manager = (*TxManager)(nil)
