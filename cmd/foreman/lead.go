package main

import (
	"fmt"

	"github.com/haldane/foreman/internal/auth"
	"github.com/haldane/foreman/internal/clock"
	"github.com/haldane/foreman/internal/models"
	"github.com/haldane/foreman/internal/notify"
	"github.com/haldane/foreman/internal/review"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// reviewDecision is the shared shape of review decisions taking notes.
type reviewDecision func(*gorm.DB, clock.Clock, notify.Gateway, string, *auth.Actor, string) (*models.WorkItem, error)

func newLeadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lead",
		Short: "Team leader review track",
	}
	cmd.PersistentFlags().String("as", "", "acting user ID")

	cmd.AddCommand(leadSubCmd("approve <id>", "Grant final approval (terminal)", review.FinalApprove))
	cmd.AddCommand(leadSubCmd("request-changes <id>", "Send the item back to the developer", review.RequestChanges))
	return cmd
}

func leadSubCmd(use, short string, op reviewDecision) *cobra.Command {
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

			fmt.Fprintf(cmd.OutOrStdout(), "%s: status=%s final=%v changes=%v\n",
				wi.ID, wi.Status, wi.LeadFinalApproval, wi.LeadRequestedChanges)
			return nil
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "review notes")
	return cmd
}
