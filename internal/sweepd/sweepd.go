// Package sweepd schedules the escalation sweep on a fixed cadence. The
// sweeper itself owns no schedule; this daemon is the external
// infrastructure that invokes it.
package sweepd

import (
	"context"
	"fmt"
	"time"

	"github.com/haldane/foreman/internal/config"
	"github.com/haldane/foreman/internal/notify"
	"github.com/haldane/foreman/internal/sweep"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Run starts the sweep scheduler and blocks until ctx is cancelled. Each
// tick runs one sweep with the configured thresholds at the tick's wall
// time.
func Run(ctx context.Context, db *gorm.DB, cfg *config.Config, gw notify.Gateway) error {
	if db == nil {
		return fmt.Errorf("sweepd: db is required")
	}
	if cfg == nil {
		return fmt.Errorf("sweepd: config is required")
	}

	th := sweep.Thresholds{
		AlertAfter:    cfg.Sweep.AlertAfter(),
		AlertInterval: cfg.Sweep.AlertInterval(),
		MaxAlerts:     cfg.Sweep.MaxAlerts,
		CloseAfter:    cfg.Sweep.CloseAfter(),
	}

	c := cron.New(cron.WithParser(cronParser))
	_, err := c.AddFunc(cfg.Sweep.Cadence, func() {
		report, err := sweep.RunWith(db, time.Now(), gw, th)
		if err != nil {
			log.Error().Err(err).Msg("sweepd: sweep failed")
			return
		}
		if report.Failures > 0 {
			log.Warn().Int("failures", report.Failures).Msg("sweepd: sweep completed with failures")
		}
	})
	if err != nil {
		return fmt.Errorf("sweepd: schedule sweep: %w", err)
	}

	log.Info().Str("cadence", cfg.Sweep.Cadence).Msg("sweepd: scheduler starting")
	c.Start()

	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	log.Info().Msg("sweepd: scheduler stopped")
	return nil
}
