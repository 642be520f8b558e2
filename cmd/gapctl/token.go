package main

import (
	"errors"
	"fmt"
	"time"

	"GapWatchAPI/internal/config"
	"GapWatchAPI/internal/middleware"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func TokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the write endpoints",
		Long:  "Mint a bearer token signed with JWT_SECRET and issued by JWT_ISSUER. A .env file in the working directory is honoured.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			sec := config.FromEnv().Security
			if sec.JWTSecret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			if subject == "" {
				return errors.New("--subject is required")
			}
			tok, err := middleware.IssueToken(sec.JWTSecret, sec.JWTIssuer, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject, e.g. the producer name")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime, 0 for no expiry")
	return cmd
}
