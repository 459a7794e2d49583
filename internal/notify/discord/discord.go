// Package discord implements the notify.Pusher for Discord.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/haldane/foreman/internal/config"
	"github.com/haldane/foreman/internal/models"
)

// sender abstracts the discordgo method we use, enabling test mocks.
type sender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Pusher posts notifications as embeds to a Discord channel.
type Pusher struct {
	session   sender
	channelID string
}

// New creates a Pusher from Discord config. The session uses REST calls
// only; no gateway connection is opened.
func New(cfg config.DiscordConfig) (*Pusher, error) {
	s, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	return &Pusher{session: s, channelID: cfg.ChannelID}, nil
}

func (p *Pusher) Name() string { return "discord" }

// Push posts the notification to the configured channel.
func (p *Pusher) Push(ctx context.Context, n *models.Notification) error {
	embed := &discordgo.MessageEmbed{
		Title:       n.Subject,
		Description: n.Body,
		Color:       colorFor(n.Kind),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Recipient", Value: n.Recipient, Inline: true},
			{Name: "Items", Value: orDash(n.ItemIDs), Inline: true},
		},
	}

	_, err := p.session.ChannelMessageSendEmbed(p.channelID, embed, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: post %s notification: %w", n.Kind, err)
	}
	return nil
}

// orDash substitutes a dash for empty embed field values, which Discord
// rejects.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// colorFor maps notification kinds to embed colors.
func colorFor(kind models.NotificationKind) int {
	switch kind {
	case models.KindAlert:
		return 0xf2c744
	case models.KindAutoPause, models.KindAutoClose, models.KindQaRejected, models.KindLeadChangesRequested:
		return 0xd13838
	case models.KindQaApproved, models.KindLeadApproved:
		return 0x36a64f
	default:
		return 0x439fe0
	}
}
