package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/haldane/foreman/internal/item"
	"github.com/haldane/foreman/internal/models"
	"github.com/spf13/cobra"
)

func newItemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Work item management",
	}
	cmd.AddCommand(newItemCreateCmd())
	cmd.AddCommand(newItemListCmd())
	cmd.AddCommand(newItemShowCmd())
	return cmd
}

func newItemCreateCmd() *cobra.Command {
	var (
		description string
		itemType    string
		project     string
		owner       string
		createdBy   string
	)

	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a work item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := setup(cmd)
			if err != nil {
				return err
			}

			wi, err := item.Create(cc.db, item.CreateOpts{
				Title:       args[0],
				Description: description,
				Type:        models.ItemType(itemType),
				Project:     project,
				Owner:       owner,
				CreatedBy:   createdBy,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s: %s [%s/%s]\n", wi.ID, wi.Title, wi.Project, wi.Type)
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "item description")
	cmd.Flags().StringVar(&itemType, "type", "task", "item type (task or bug)")
	cmd.Flags().StringVar(&project, "project", "", "project the item belongs to")
	cmd.Flags().StringVar(&owner, "owner", "", "assignee user ID")
	cmd.Flags().StringVar(&createdBy, "created-by", "", "creator user ID")
	cmd.MarkFlagRequired("project")
	return cmd
}

func newItemListCmd() *cobra.Command {
	var (
		project string
		status  string
		owner   string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work items",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := setup(cmd)
			if err != nil {
				return err
			}

			items, err := item.List(cc.db, item.ListFilters{
				Project: project,
				Status:  models.Status(status),
				Owner:   owner,
			})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tQA\tOWNER\tTIME")
			for _, wi := range items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					wi.ID, wi.Title, wi.Status, wi.QaStatus, wi.Owner,
					(time.Duration(wi.TotalTimeSeconds) * time.Second).String())
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "filter by project")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&owner, "owner", "", "filter by owner")
	return cmd
}

func newItemShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a work item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := setup(cmd)
			if err != nil {
				return err
			}

			wi, err := item.Get(cc.db, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", wi.ID, wi.Title)
			fmt.Fprintf(out, "  project: %s  type: %s  owner: %s\n", wi.Project, wi.Type, wi.Owner)
			fmt.Fprintf(out, "  status: %s  qa: %s  approval: %s\n", wi.Status, wi.QaStatus, wi.ApprovalStatus)
			fmt.Fprintf(out, "  working: %v  total time: %s  alerts: %d\n",
				wi.IsWorking, (time.Duration(wi.TotalTimeSeconds) * time.Second).String(), wi.AlertCount)
			if wi.AutoPaused {
				fmt.Fprintf(out, "  auto-paused: %s (%s)\n", wi.AutoPausedAt.Format(time.RFC3339), wi.AutoPauseCause)
			}
			if wi.AutoClosedAt != nil {
				fmt.Fprintf(out, "  auto-closed: %s (%s)\n", wi.AutoClosedAt.Format(time.RFC3339), wi.CloseCause)
			}
			if wi.QaAssignedTo != "" {
				fmt.Fprintf(out, "  qa reviewer: %s\n", wi.QaAssignedTo)
			}
			if wi.LeadReviewedBy != "" {
				fmt.Fprintf(out, "  lead: %s final=%v changes=%v\n", wi.LeadReviewedBy, wi.LeadFinalApproval, wi.LeadRequestedChanges)
			}
			return nil
		},
	}
}
