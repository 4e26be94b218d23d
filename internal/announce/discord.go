package announce

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/rostrum/internal/models"
)

// discordSession abstracts the discordgo methods we use, enabling test
// mocks. Announcements are plain REST sends; the gateway connection is
// never opened.
type discordSession interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord announces finished debates to a Discord channel.
type Discord struct {
	sess      discordSession
	channelID string
}

// DiscordOpts holds parameters for creating a Discord announcer.
type DiscordOpts struct {
	BotToken  string
	ChannelID string
	// For testing: inject a mock session instead of the real Discord API.
	Session discordSession
}

// NewDiscord creates a Discord announcer.
func NewDiscord(opts DiscordOpts) (*Discord, error) {
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("discord: channel id is required")
	}
	sess := opts.Session
	if sess == nil {
		if opts.BotToken == "" {
			return nil, fmt.Errorf("discord: bot token is required")
		}
		dg, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("discord: create session: %w", err)
		}
		sess = dg
	}
	return &Discord{sess: sess, channelID: opts.ChannelID}, nil
}

func (d *Discord) Name() string { return "discord" }

// Announce posts the verdict as an embed.
func (d *Discord) Announce(ctx context.Context, a Announcement) error {
	embed := &discordgo.MessageEmbed{
		Title:       a.Headline(),
		Description: a.Summary,
		Color:       discordColor(a.Winner),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Debater A", Value: a.DebaterA, Inline: true},
			{Name: "Debater B", Value: a.DebaterB, Inline: true},
			{Name: "Rounds", Value: fmt.Sprintf("%d", a.Rounds), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "session " + a.SessionID},
	}
	if _, err := d.sess.ChannelMessageSendEmbed(d.channelID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: send embed: %w", err)
	}
	return nil
}

func discordColor(winner string) int {
	if winner == models.WinnerTie {
		return 0x95a5a6
	}
	return 0x2ecc71
}
