package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/zulandar/rostrum/internal/announce"
	"github.com/zulandar/rostrum/internal/config"
	"github.com/zulandar/rostrum/internal/db"
	"github.com/zulandar/rostrum/internal/debate"
	"github.com/zulandar/rostrum/internal/hub"
	"github.com/zulandar/rostrum/internal/judge"
	"github.com/zulandar/rostrum/internal/server"
	"github.com/zulandar/rostrum/internal/token"
)

// sweepSchedule prunes expired unused invitations hourly.
const sweepSchedule = "@every 1h"

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Rostrum API and realtime server",
		Long:  "Connects to the database, migrates the schema, and serves the HTTP API and websocket hub until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "rostrum.yaml", "path to Rostrum config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	// Optional .env for local development; secrets stay out of yaml.
	godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.Database.Name, err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	tokens, err := token.NewService(token.ServiceOpts{
		DB:            gormDB,
		Secret:        cfg.Tokens.Secret,
		TransportTTL:  cfg.Tokens.TransportTTL,
		InvitationTTL: cfg.Tokens.InvitationTTL,
		BaseURL:       cfg.Server.BaseURL,
	})
	if err != nil {
		return err
	}

	gateway, err := judge.NewHTTPGateway(judge.HTTPGatewayOpts{
		Endpoint: cfg.Judge.Endpoint,
		Timeout:  cfg.Judge.Timeout,
	})
	if err != nil {
		return err
	}

	announcer, err := buildAnnouncer(cfg.Announce)
	if err != nil {
		return err
	}

	orch, err := debate.New(debate.Opts{
		DB:        gormDB,
		Tokens:    tokens,
		Gateway:   gateway,
		Announcer: announcer,
	})
	if err != nil {
		return err
	}
	socketHub := hub.New(hub.Opts{
		Orchestrator: orch,
		Heartbeat:    cfg.Server.HeartbeatInterval,
	})

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(sweepSchedule, func() {
		if n, err := tokens.SweepExpired(); err != nil {
			log.Printf("invitation sweep: %v", err)
		} else if n > 0 {
			log.Printf("invitation sweep: removed %d expired tokens", n)
		}
	}); err != nil {
		return fmt.Errorf("schedule invitation sweep: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	fmt.Fprintf(out, "Rostrum listening on :%d\n", cfg.Server.Port)
	return server.Start(ctx, server.StartOpts{
		Orchestrator: orch,
		Tokens:       tokens,
		Hub:          socketHub,
		Port:         cfg.Server.Port,
		RetryLimit:   cfg.RateLimit.RetryPerMinute,
	})
}

// buildAnnouncer assembles the configured chat platforms. Returns nil
// when none are configured so the orchestrator skips announcing.
func buildAnnouncer(cfg config.AnnounceConfig) (debate.Announcer, error) {
	var adapters []announce.Adapter
	if cfg.Discord.Token != "" {
		d, err := announce.NewDiscord(announce.DiscordOpts{
			BotToken:  cfg.Discord.Token,
			ChannelID: cfg.Discord.ChannelID,
		})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, d)
	}
	if cfg.Slack.Token != "" {
		s, err := announce.NewSlack(announce.SlackOpts{
			BotToken:  cfg.Slack.Token,
			ChannelID: cfg.Slack.ChannelID,
		})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, s)
	}
	multi := announce.NewMulti(adapters...)
	if !multi.Enabled() {
		return nil, nil
	}
	return multi, nil
}
