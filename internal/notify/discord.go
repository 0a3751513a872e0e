package notify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// discordSession abstracts the discordgo.Session methods we use.
type discordSession interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts events to a channel as embeds.
type Discord struct {
	sess        discordSession
	channelID   string
	baseBackoff time.Duration
}

// DiscordOpts holds parameters for creating a Discord notifier.
type DiscordOpts struct {
	BotToken  string
	ChannelID string
	// For testing: inject a mock session instead of the real Discord API.
	Session discordSession
}

// NewDiscord creates a Discord notifier. It uses the REST API only and never
// opens a gateway connection.
func NewDiscord(opts DiscordOpts) (*Discord, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("notify: discord bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("notify: discord channel is required")
	}
	sess := opts.Session
	if sess == nil {
		s, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("notify: discord session: %w", err)
		}
		sess = s
	}
	return &Discord{sess: sess, channelID: opts.ChannelID, baseBackoff: 2 * time.Second}, nil
}

// Notify implements Notifier.
func (d *Discord) Notify(ctx context.Context, evt Event) error {
	embed := eventToEmbed(evt)
	err := retryWithBackoff(ctx, d.baseBackoff, discordRateLimited, func() error {
		_, sendErr := d.sess.ChannelMessageSendEmbed(d.channelID, embed, discordgo.WithContext(ctx))
		return sendErr
	})
	if err != nil {
		return fmt.Errorf("notify: discord send: %w", err)
	}
	return nil
}

func discordRateLimited(err error) (time.Duration, bool) {
	restErr, ok := err.(*discordgo.RESTError)
	if !ok || restErr.Response == nil || restErr.Response.StatusCode != http.StatusTooManyRequests {
		return 0, false
	}
	return 0, true
}

// eventToEmbed converts an Event to a Discord Embed.
func eventToEmbed(evt Event) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       evt.Title,
		Description: evt.Body,
		Color:       parseHexColor(evt.Color()),
		Footer:      &discordgo.MessageEmbedFooter{Text: evt.Kind},
	}
	for _, f := range evt.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Short,
		})
	}
	return embed
}

// parseHexColor converts a hex color string (e.g. "#36a64f") to an int.
func parseHexColor(hex string) int {
	v, err := strconv.ParseInt(strings.TrimPrefix(hex, "#"), 16, 32)
	if err != nil {
		return 0
	}
	return int(v)
}
