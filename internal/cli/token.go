package cli

import (
	"time"

	dashboardhttp "content-sync/internal/dashboard/adapter/http"

	"github.com/spf13/cobra"
)

// TokenOptions holds flags for the token command.
type TokenOptions struct {
	*RootOptions
	Subject string
	TTL     time.Duration
}

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin token signed with ADMIN_JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			auth := dashboardhttp.NewAdminAuth(cfg.Auth, commandLogger(cmd, opts.Verbose))
			token, err := auth.IssueToken(opts.Subject, opts.TTL)
			if err != nil {
				return WrapExitError(ExitCommandError, "cannot issue token", err)
			}
			out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
			return out.Success(map[string]interface{}{
				"token":      token,
				"subject":    opts.Subject,
				"expires_at": time.Now().Add(opts.TTL).UTC(),
			}, token)
		},
	}
	cmd.Flags().StringVar(&opts.Subject, "subject", "admin", "token subject")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
