package cmd

import (
	"fmt"

	"github.com/jmehdipour/subhub/internal/db"
	"github.com/jmehdipour/subhub/internal/logger"
	"github.com/spf13/cobra"
)

var migrateSkipClickHouse bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply MySQL migrations and create the ClickHouse audit table",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.Log

		sqlDB, err := db.OpenMySQL(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer sqlDB.Close()

		if err := db.MigrateMySQL(sqlDB); err != nil {
			return err
		}
		log.Info("mysql migrations applied")

		if migrateSkipClickHouse {
			return nil
		}
		chDB, err := db.OpenClickHouse(cfg.ClickHouse)
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		defer chDB.Close()

		if err := db.MigrateClickHouse(cmd.Context(), chDB); err != nil {
			return err
		}
		log.Info("clickhouse schema ready")
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateSkipClickHouse, "skip-clickhouse", false, "only migrate MySQL")
}
