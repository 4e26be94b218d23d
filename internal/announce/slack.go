package announce

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/rostrum/internal/models"
)

// slackClient abstracts the Slack API methods we use, enabling test
// mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Slack announces finished debates to a Slack channel via the Web API.
type Slack struct {
	client    slackClient
	channelID string
}

// SlackOpts holds parameters for creating a Slack announcer.
type SlackOpts struct {
	BotToken  string // xoxb-... Slack bot token
	ChannelID string
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// NewSlack creates a Slack announcer.
func NewSlack(opts SlackOpts) (*Slack, error) {
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("slack: channel id is required")
	}
	client := opts.Client
	if client == nil {
		if opts.BotToken == "" {
			return nil, fmt.Errorf("slack: bot token is required")
		}
		client = slackapi.New(opts.BotToken)
	}
	return &Slack{client: client, channelID: opts.ChannelID}, nil
}

func (s *Slack) Name() string { return "slack" }

// Announce posts the verdict as a Block Kit attachment.
func (s *Slack) Announce(ctx context.Context, a Announcement) error {
	attachment := slackapi.Attachment{
		Title: a.Headline(),
		Text:  a.Summary,
		Color: slackColor(a.Winner),
		Fields: []slackapi.AttachmentField{
			{Title: "Debater A", Value: a.DebaterA, Short: true},
			{Title: "Debater B", Value: a.DebaterB, Short: true},
			{Title: "Rounds", Value: fmt.Sprintf("%d", a.Rounds), Short: true},
		},
		Footer: "session " + a.SessionID,
	}
	_, _, err := s.client.PostMessageContext(ctx, s.channelID, slackapi.MsgOptionAttachments(attachment))
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

func slackColor(winner string) string {
	if winner == models.WinnerTie {
		return "#95a5a6"
	}
	return "good"
}
