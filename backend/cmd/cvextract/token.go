package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AnTengye/cvintake/backend/middleware"
	"github.com/spf13/cobra"
)

var (
	tokenSubject string
	tokenRole    string
	tokenHours   int
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for the intake API",
	Long:  `Signs a token with auth.jwt_secret. Use role "admin" for the review routes and "scheduler" for the scheduled e-mail trigger.`,
	Args:  cobra.NoArgs,
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVarP(&tokenSubject, "subject", "s", "", "Name of the caller the token is issued to")
	tokenCmd.Flags().StringVarP(&tokenRole, "role", "r", middleware.RoleAdmin, "Token role (admin, scheduler)")
	tokenCmd.Flags().IntVar(&tokenHours, "hours", 0, "Lifetime in hours (default auth.token_expire_hours)")
	tokenCmd.MarkFlagRequired("subject")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	if strings.TrimSpace(tokenSubject) == "" {
		return errors.New("--subject must not be empty")
	}
	if tokenRole != middleware.RoleAdmin && tokenRole != middleware.RoleScheduler {
		return fmt.Errorf("unknown role %q", tokenRole)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is not configured")
	}

	authCfg := cfg.Auth
	if tokenHours > 0 {
		authCfg.TokenExpireHours = tokenHours
	}

	token, expiresAt, err := middleware.GenerateToken(tokenSubject, tokenRole, &authCfg)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	cmd.PrintErrf("expires %s\n", expiresAt.UTC().Format(time.RFC3339))
	return nil
}
