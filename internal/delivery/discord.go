package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"lana/internal/core"
)

type messageSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordDeliverer posts push notifications to a Discord channel.
type DiscordDeliverer struct {
	sender    messageSender
	channelID string
}

func NewDiscordDeliverer(token, channelID string) (*DiscordDeliverer, error) {
	if token == "" || channelID == "" {
		return nil, errors.New("discord token and channel ID are required")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create Discord session: %w", err)
	}
	return &DiscordDeliverer{sender: session, channelID: channelID}, nil
}

func (d *DiscordDeliverer) Deliver(ctx context.Context, n core.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := d.sender.ChannelMessageSend(d.channelID, formatMessage(n), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send Discord message: %w", err)
	}
	return nil
}

func formatMessage(n core.Notification) string {
	switch n.Kind {
	case core.KindBudgetExceeded:
		return "**Budget alert**\n" + n.Message
	case core.KindScheduledPayment:
		return "**Upcoming payment**\n" + n.Message
	default:
		return n.Message
	}
}
