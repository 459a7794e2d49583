package main

import (
	"fmt"

	"github.com/haldane/foreman/internal/config"
	"github.com/haldane/foreman/internal/db"
	"github.com/spf13/cobra"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management",
	}
	cmd.AddCommand(newDBInitCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create or update tables and seed users from config",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			conn, err := db.Connect(cfg.Database)
			if err != nil {
				return err
			}

			if err := db.AutoMigrate(conn); err != nil {
				return err
			}
			if err := db.SeedUsers(conn, cfg.Users); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Database %s initialized (%d users seeded)\n",
				cfg.Database.Database, len(cfg.Users))
			return nil
		},
	}
}
