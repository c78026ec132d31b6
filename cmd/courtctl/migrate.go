package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sanosuguru/go-court-reservation/internal/infrastructure/postgres"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "データベースのスキーマを管理する",
	}
	cmd.AddCommand(migrateUpCmd())
	cmd.AddCommand(migrateDownCmd())
	cmd.AddCommand(migrateVersionCmd())
	return cmd
}

func withMigrator(fn func(*postgres.Migrator) error) error {
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		return fmt.Errorf("データベース接続エラー: %w", err)
	}
	defer db.Close()

	m, err := postgres.NewMigrator(db.DB, cfg.Storage.MigrationsPath)
	if err != nil {
		return err
	}
	return fn(m)
}

func migrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "未適用のマイグレーションをすべて適用する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(m *postgres.Migrator) error {
				if err := m.Up(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "マイグレーションを適用しました")
				return nil
			})
		},
	}
}

func migrateDownCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "down",
		Short: "マイグレーションを指定件数だけ戻す",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps <= 0 {
				return fmt.Errorf("--steps は1以上を指定してください")
			}
			return withMigrator(func(m *postgres.Migrator) error {
				if err := m.Down(steps); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "マイグレーションを%d件戻しました\n", steps)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "戻す件数")
	return cmd
}

func migrateVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "現在のスキーマバージョンを表示する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(m *postgres.Migrator) error {
				v, dirty, err := m.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", v, dirty)
				return nil
			})
		},
	}
}
