package main

import (
	"fmt"
	"time"

	"github.com/haldane/foreman/internal/sweep"
	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one escalation sweep now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := setup(cmd)
			if err != nil {
				return err
			}

			th := sweep.Thresholds{
				AlertAfter:    cc.cfg.Sweep.AlertAfter(),
				AlertInterval: cc.cfg.Sweep.AlertInterval(),
				MaxAlerts:     cc.cfg.Sweep.MaxAlerts,
				CloseAfter:    cc.cfg.Sweep.CloseAfter(),
			}

			report, err := sweep.RunWith(cc.db, time.Now(), cc.gateway, th)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Sweep: scanned=%d closed=%d alerted=%d paused=%d failures=%d\n",
				report.Scanned, report.Closed, report.Alerted, report.Paused, report.Failures)
			return nil
		},
	}
}
