package cmd

import (
	"fmt"

	"github.com/jmehdipour/subhub/internal/db"
	"github.com/jmehdipour/subhub/internal/logger"
	"github.com/jmehdipour/subhub/internal/model"
	"github.com/jmehdipour/subhub/internal/repository"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed deleted-account records for local customer.deleted testing",
	RunE: func(cmd *cobra.Command, args []string) error {
		sqlDB, err := db.OpenMySQL(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		repo := repository.NewAccountsRepository(sqlDB)
		for _, acc := range demoDeletedAccounts() {
			if err := repo.SaveDeleted(cmd.Context(), acc); err != nil {
				return fmt.Errorf("seed %s/%s: %w", acc.UserID, acc.CustomerID, err)
			}
			logger.Log.Info("seeded deleted account",
				zap.String("user_id", acc.UserID), zap.String("customer_id", acc.CustomerID))
		}
		return nil
	},
}

// demoDeletedAccounts are deterministic rows matching the fixtures used when
// replaying customer.deleted events with the stripe CLI.
func demoDeletedAccounts() []model.DeletedAccount {
	return []model.DeletedAccount{
		{UserID: "user_demo_1", CustomerID: "cus_demo_1", OriginSystem: "web", SubscriptionIDs: []string{"sub_demo_1"}},
		{UserID: "user_demo_2", CustomerID: "cus_demo_2", OriginSystem: "mobile", SubscriptionIDs: []string{"sub_demo_2", "sub_demo_3"}},
		{UserID: "user_demo_3", CustomerID: "cus_demo_3", OriginSystem: "support"},
	}
}
