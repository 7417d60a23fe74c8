package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/coursedesk/internal/config"
	"github.com/JonMunkholm/coursedesk/internal/kv"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply key-value store migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			storage := cfg.Storage
			if strings.EqualFold(storage.Driver, config.DriverMemory) {
				fmt.Fprintln(cmd.OutOrStdout(), "memory store has no migrations")
				return nil
			}

			storage.AutoMigrate = true
			store, err := kv.Open(cmd.Context(), storage)
			if err != nil {
				return err
			}
			defer store.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", storage.Driver)
			return nil
		},
	}
}
