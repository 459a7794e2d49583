package main

import (
	"fmt"
	"time"

	"github.com/haldane/foreman/internal/auth"
	"github.com/haldane/foreman/internal/clock"
	"github.com/haldane/foreman/internal/models"
	"github.com/haldane/foreman/internal/session"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newWorkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "work",
		Short: "Work session tracking",
	}
	cmd.PersistentFlags().String("as", "", "acting user ID")

	cmd.AddCommand(workSubCmd("start <id>", "Start working on an item", session.Start))
	cmd.AddCommand(workSubCmd("pause <id>", "Pause the work session", session.Pause))
	cmd.AddCommand(workSubCmd("resume <id>", "Resume a paused session", session.Resume))
	cmd.AddCommand(workSubCmd("finish <id>", "Finish work and hand the item to QA", session.Finish))
	return cmd
}

// workSubCmd builds one tracker subcommand around a session operation.
func workSubCmd(use, short string, op func(*gorm.DB, clock.Clock, string, *auth.Actor) (*models.WorkItem, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := setup(cmd)
			if err != nil {
				return err
			}
			actor, err := actorFromFlag(cmd, cc.db)
			if err != nil {
				return err
			}

			wi, err := op(cc.db, cc.clock, args[0], actor)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: status=%s working=%v total=%s\n",
				wi.ID, wi.Status, wi.IsWorking,
				(time.Duration(wi.TotalTimeSeconds) * time.Second).String())
			return nil
		},
	}
}
