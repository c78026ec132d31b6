package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/sanosuguru/go-court-reservation/internal/config"
)

// NewConnection は台帳用の接続プールを開く
// プールの上限と寿命は DB_MAX_OPEN_CONNS などの設定に従う
func NewConnection(cfg *config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗しました: %w", err)
	}
	applyPool(db, cfg)
	return db, nil
}

// 0 以下の値は database/sql の既定（無制限）のままにする
func applyPool(db *sqlx.DB, cfg *config.DatabaseConfig) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}

// Ping はヘルスチェック用
func Ping(ctx context.Context, db *sqlx.DB) error {
	return db.PingContext(ctx)
}
