package main

import (
	"fmt"

	"github.com/kdimtricp/lanepilot/internal/database"
	"github.com/kdimtricp/lanepilot/internal/logging"
	"github.com/spf13/cobra"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and show their status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if dbPath == "" {
				dbPath = cfg.Storage.DBPath
			}
			if dbPath == database.MemoryPath {
				fmt.Fprintln(cmd.OutOrStdout(), "storage.db_path is in memory; migrations run on every start")
			}

			logger := logging.Init(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
			db, err := database.NewDB(database.Config{SQLitePath: dbPath, Logger: logger})
			if err != nil {
				return err
			}
			defer db.Close()

			states, err := db.MigrationStatus()
			if err != nil {
				return err
			}

			rows := make([][]string, len(states))
			for i, s := range states {
				status := "pending"
				if s.Applied {
					status = "applied"
				}
				rows[i] = []string{s.Version, s.Name, status}
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Version", "Migration", "Status"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite file, overrides storage.db_path")
	return cmd
}
