package main

import (
	"fmt"

	"github.com/haldane/foreman/internal/auth"
	"github.com/haldane/foreman/internal/clock"
	"github.com/haldane/foreman/internal/config"
	"github.com/haldane/foreman/internal/db"
	"github.com/haldane/foreman/internal/notify"
	notifydiscord "github.com/haldane/foreman/internal/notify/discord"
	notifyslack "github.com/haldane/foreman/internal/notify/slack"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// cmdContext bundles what every operational subcommand needs.
type cmdContext struct {
	cfg     *config.Config
	db      *gorm.DB
	clock   clock.Clock
	gateway notify.Gateway
}

// setup loads config, connects the database, and wires the notification
// gateway with whichever platforms are configured.
func setup(cmd *cobra.Command) (*cmdContext, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	conn, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}

	var pushers []notify.Pusher
	if cfg.Notifiers.Slack.BotToken != "" {
		pushers = append(pushers, notifyslack.New(cfg.Notifiers.Slack))
	}
	if cfg.Notifiers.Discord.BotToken != "" {
		dp, err := notifydiscord.New(cfg.Notifiers.Discord)
		if err != nil {
			return nil, err
		}
		pushers = append(pushers, dp)
	}

	return &cmdContext{
		cfg:     cfg,
		db:      conn,
		clock:   clock.Real{},
		gateway: notify.NewOutbox(conn, pushers...),
	}, nil
}

// actorFromFlag resolves the --as flag into a capability set.
func actorFromFlag(cmd *cobra.Command, conn *gorm.DB) (*auth.Actor, error) {
	userID, _ := cmd.Flags().GetString("as")
	if userID == "" {
		return nil, fmt.Errorf("--as <user-id> is required")
	}
	return auth.Resolve(conn, userID)
}
