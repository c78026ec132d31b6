package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrator はスキーママイグレーションを実行する
type Migrator struct {
	m *migrate.Migrate
}

// NewMigrator は sourceURL（例: file://migrations）のマイグレーションを db に適用する Migrator を作成する
func NewMigrator(db *sql.DB, sourceURL string) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("マイグレーションドライバー作成エラー: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(sourceURL, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("マイグレーションインスタンス作成エラー: %w", err)
	}
	return &Migrator{m: m}, nil
}

// Up は未適用のマイグレーションをすべて適用する
func (g *Migrator) Up() error {
	if err := g.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("マイグレーション実行エラー: %w", err)
	}
	return nil
}

// Down は steps 件のマイグレーションを戻す
func (g *Migrator) Down(steps int) error {
	if steps <= 0 {
		return fmt.Errorf("戻す件数は1以上を指定してください")
	}
	if err := g.m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("マイグレーション巻き戻しエラー: %w", err)
	}
	return nil
}

// Version は現在のスキーマバージョンを返す。未適用なら 0
func (g *Migrator) Version() (uint, bool, error) {
	v, dirty, err := g.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("バージョン取得エラー: %w", err)
	}
	return v, dirty, nil
}

// RunMigrations はデータベースマイグレーションを実行する
func RunMigrations(db *sql.DB, sourceURL string) error {
	g, err := NewMigrator(db, sourceURL)
	if err != nil {
		return err
	}
	return g.Up()
}
