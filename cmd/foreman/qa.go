package main

import (
	"fmt"

	"github.com/haldane/foreman/internal/auth"
	"github.com/haldane/foreman/internal/clock"
	"github.com/haldane/foreman/internal/models"
	"github.com/haldane/foreman/internal/review"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newQaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qa",
		Short: "QA review track",
	}
	cmd.PersistentFlags().String("as", "", "acting user ID")

	cmd.AddCommand(newQaAssignCmd())
	cmd.AddCommand(qaSubCmd("start <id>", "Claim an item and start testing", review.StartTesting))
	cmd.AddCommand(qaSubCmd("pause <id>", "Pause testing", review.PauseTesting))
	cmd.AddCommand(qaSubCmd("resume <id>", "Resume paused testing", review.ResumeTesting))
	cmd.AddCommand(qaSubCmd("finish <id>", "Finish testing (no decision yet)", review.FinishTesting))
	cmd.AddCommand(newQaDecisionCmd("approve <id>", "Approve the item", review.Approve))
	cmd.AddCommand(newQaDecisionCmd("reject <id>", "Reject the item back to the developer", review.Reject))
	return cmd
}

func newQaAssignCmd() *cobra.Command {
	var qaUser string

	cmd := &cobra.Command{
		Use:   "assign <id>",
		Short: "Assign an item to a QA reviewer and start testing",
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

			wi, err := review.Assign(cc.db, cc.clock, args[0], actor, qaUser)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: qa=%s reviewer=%s\n", wi.ID, wi.QaStatus, wi.QaAssignedTo)
			return nil
		},
	}

	cmd.Flags().StringVar(&qaUser, "qa-user", "", "QA user to assign (defaults to the acting user)")
	return cmd
}

func qaSubCmd(use, short string, op func(*gorm.DB, clock.Clock, string, *auth.Actor) (*models.WorkItem, error)) *cobra.Command {
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

			fmt.Fprintf(cmd.OutOrStdout(), "%s: qa=%s\n", wi.ID, wi.QaStatus)
			return nil
		},
	}
}

func newQaDecisionCmd(use, short string, op reviewDecision) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
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

			wi, err := op(cc.db, cc.clock, cc.gateway, args[0], actor, notes)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: status=%s qa=%s\n", wi.ID, wi.Status, wi.QaStatus)
			return nil
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "review notes")
	return cmd
}
