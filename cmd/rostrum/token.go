package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/rostrum/internal/config"
	"github.com/zulandar/rostrum/internal/db"
	"github.com/zulandar/rostrum/internal/token"
)

// newTokenCmd mints a transport token from the command line, mainly for
// poking at the websocket endpoint during development.
func newTokenCmd() *cobra.Command {
	var (
		configPath string
		userID     string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a transport token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			gormDB, err := db.Connect(cfg.Database)
			if err != nil {
				return fmt.Errorf("connect to %s: %w", cfg.Database.Name, err)
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
			raw, err := tokens.IssueTransport(userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), raw)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "rostrum.yaml", "path to Rostrum config file")
	cmd.Flags().StringVarP(&userID, "user", "u", "", "user identity to mint the token for")
	return cmd
}
