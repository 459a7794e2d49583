package main

import (
	"os/signal"
	"syscall"

	"github.com/haldane/foreman/internal/server"
	"github.com/haldane/foreman/internal/sweep"
	"github.com/haldane/foreman/internal/sweepd"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and the scheduled escalation sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := setup(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			th := sweep.Thresholds{
				AlertAfter:    cc.cfg.Sweep.AlertAfter(),
				AlertInterval: cc.cfg.Sweep.AlertInterval(),
				MaxAlerts:     cc.cfg.Sweep.MaxAlerts,
				CloseAfter:    cc.cfg.Sweep.CloseAfter(),
			}

			errCh := make(chan error, 2)
			go func() {
				errCh <- server.Start(ctx, server.StartOpts{
					DB:         cc.db,
					Port:       cc.cfg.Server.Port,
					Clock:      cc.clock,
					Gateway:    cc.gateway,
					Thresholds: th,
				})
			}()
			go func() {
				errCh <- sweepd.Run(ctx, cc.db, cc.cfg, cc.gateway)
			}()

			// First failure (or clean shutdown) wins; the shared context
			// takes the other goroutine down.
			err = <-errCh
			stop()
			<-errCh
			return err
		},
	}
}
