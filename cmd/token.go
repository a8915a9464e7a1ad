package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"ledger-backend/config"
	"ledger-backend/middlewares"
)

// newTokenCommand mints a bearer token for local testing and service accounts.
func newTokenCommand(opts *rootOptions) *cobra.Command {
	var (
		tenant, user, name string
		ttl                time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an API bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.RequireJWTSecret(); err != nil {
				return err
			}
			token, err := middlewares.GenerateJWT([]byte(cfg.JWTSecret), tenant, user, name, ttl)
			if err != nil {
				return err
			}
			return newPrinter(opts, cmd.OutOrStdout()).print(map[string]any{
				"token":      token,
				"expires_at": time.Now().Add(ttl).UTC().Format(time.RFC3339),
			})
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant id")
	cmd.Flags().StringVar(&user, "user", "", "user id (token subject)")
	cmd.Flags().StringVar(&name, "name", "", "display name recorded on audit fields")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
