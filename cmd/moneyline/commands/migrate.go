package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KevinGoltermann/moneyline-sub000/pkg/database"
)

// migrateCmd applies the embedded schema migrations
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "DB 스키마 마이그레이션",
	Long: `내장된 SQL 마이그레이션을 순서대로 적용합니다.

이미 적용된 버전은 schema_migrations 테이블로 건너뜁니다.

Example:
  go run ./cmd/moneyline migrate
  go run ./cmd/moneyline migrate status`,
	RunE: runMigrate,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "마이그레이션 적용 현황",
	RunE:  runMigrateStatus,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

func connect(ctx context.Context) (*database.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.StoreDriver == "memory" {
		return nil, fmt.Errorf("❌ STORE_DRIVER=memory has no schema to migrate")
	}
	db, err := database.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("❌ Failed to connect to database: %w", err)
	}
	return db, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Moneyline Migrations ===")

	ctx := context.Background()
	db, err := connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := db.Migrate(ctx)
	for _, v := range applied {
		fmt.Printf("✅ Applied %s\n", v)
	}
	if err != nil {
		return fmt.Errorf("❌ Migration failed: %w", err)
	}
	if len(applied) == 0 {
		fmt.Println("✅ Schema is up to date")
	}
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	db, err := connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	migrations, err := database.Migrations()
	if err != nil {
		return err
	}
	applied, err := db.AppliedVersions(ctx)
	if err != nil {
		return err
	}
	done := make(map[string]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	for _, m := range migrations {
		mark := "⏳ pending"
		if done[m.Version] {
			mark = "✅ applied"
		}
		fmt.Printf("  %-40s %s\n", m.Version, mark)
	}
	return nil
}
