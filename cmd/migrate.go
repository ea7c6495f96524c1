package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qninhdt/c3/server/internal/config"
	"github.com/qninhdt/c3/server/internal/db"
)

// newMigrateCmd applies the schema without starting the server
func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg := config.DefaultConfig()
			if loaded, err := config.Load(path); err == nil {
				cfg = loaded
			}
			if p, _ := cmd.Flags().GetString("db"); p != "" {
				cfg.Database.Path = p
			}

			database, err := db.NewDB(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("failed to migrate %s: %w", cfg.Database.Path, err)
			}
			defer database.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date: %s\n", cfg.Database.Path)
			return nil
		},
	}
	cmd.Flags().String("db", "", "database path, overriding the config")
	return cmd
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the config file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			if err := config.DefaultConfig().Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	})
	return cmd
}
