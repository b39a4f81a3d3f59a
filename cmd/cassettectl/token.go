package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spec-kit/cassette-service/internal/auth"
	"github.com/spec-kit/cassette-service/internal/config"
	"github.com/spec-kit/cassette-service/internal/domain"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token signed with AUTH_JWT_SECRET",
	RunE:  runToken,
}

var (
	tokenSubject string
	tokenRole    string
	tokenSystem  bool
)

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "staff id the token is issued to")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(domain.OrgRolePengelola), "PENGELOLA, REPAIR_CENTER, BANK or ADMIN")
	tokenCmd.Flags().BoolVar(&tokenSystem, "system", false, "issue a SYSTEM token instead of a STAFF token")
	_ = tokenCmd.MarkFlagRequired("subject")
}

func runToken(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	subject := domain.SubjectTypeStaff
	if tokenSystem {
		subject = domain.SubjectTypeSystem
	}
	tm := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTLMinutes)
	token, expiresAt, err := tm.GenerateToken(tokenSubject, subject, domain.OrgRole(strings.ToUpper(tokenRole)))
	if err != nil {
		return err
	}
	if outputJSON {
		return printJSON(map[string]any{"access_token": token, "expires_at": expiresAt})
	}
	fmt.Println(token)
	return nil
}
