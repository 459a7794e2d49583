// Package slack implements the notify.Pusher for Slack.
package slack

import (
	"context"
	"fmt"

	"github.com/haldane/foreman/internal/config"
	"github.com/haldane/foreman/internal/models"
	slackapi "github.com/slack-go/slack"
)

// client abstracts the Slack API methods we use, enabling test mocks.
type client interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Pusher posts notifications as colored attachments to a Slack channel.
type Pusher struct {
	client    client
	channelID string
}

// New creates a Pusher from Slack config.
func New(cfg config.SlackConfig) *Pusher {
	return &Pusher{
		client:    slackapi.New(cfg.BotToken),
		channelID: cfg.ChannelID,
	}
}

func (p *Pusher) Name() string { return "slack" }

// Push posts the notification to the configured channel.
func (p *Pusher) Push(ctx context.Context, n *models.Notification) error {
	att := slackapi.Attachment{
		Color: colorFor(n.Kind),
		Title: n.Subject,
		Text:  n.Body,
		Fields: []slackapi.AttachmentField{
			{Title: "Recipient", Value: n.Recipient, Short: true},
			{Title: "Items", Value: n.ItemIDs, Short: true},
		},
	}

	_, _, err := p.client.PostMessageContext(ctx, p.channelID,
		slackapi.MsgOptionText(n.Subject, false),
		slackapi.MsgOptionAttachments(att),
	)
	if err != nil {
		return fmt.Errorf("slack: post %s notification: %w", n.Kind, err)
	}
	return nil
}

// colorFor maps notification kinds to attachment sidebar colors.
func colorFor(kind models.NotificationKind) string {
	switch kind {
	case models.KindAlert:
		return "#f2c744" // warning yellow
	case models.KindAutoPause, models.KindAutoClose, models.KindQaRejected, models.KindLeadChangesRequested:
		return "#d13838" // error red
	case models.KindQaApproved, models.KindLeadApproved:
		return "#36a64f" // success green
	default:
		return "#439fe0" // info blue
	}
}
