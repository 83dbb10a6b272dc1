package main

import (
	"fmt"
	"time"

	"cafe/internal/auth"
	"cafe/internal/config"

	"github.com/spf13/cobra"
)

var (
	tokenUserID int64
	tokenTTL    time.Duration
)

// 管理者の認証基盤は外部にある。これは開発・運用確認用。
var adminTokenCmd = &cobra.Command{
	Use:   "admin-token",
	Short: "Issue an admin JWT signed with JWT_SECRET (for development)",
	RunE:  runAdminToken,
}

func init() {
	adminTokenCmd.Flags().Int64Var(&tokenUserID, "user-id", 1, "admin user id (sub claim)")
	adminTokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 12*time.Hour, "token lifetime")
}

func runAdminToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}
	if tokenUserID <= 0 {
		return fmt.Errorf("--user-id must be positive")
	}

	tok, err := auth.NewVerifier(cfg.JWTSecret).Issue(tokenUserID, auth.RoleAdmin, tokenTTL)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
