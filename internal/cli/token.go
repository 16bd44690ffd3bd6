package cli

import (
	"io"
	"time"

	"github.com/spf13/cobra"

	"lead-intake/internal/common/auth"
	"lead-intake/internal/common/config"
)

type tokenOptions struct {
	Subject string
	Roles   []string
	TTL     time.Duration
}

// NewTokenCommand mints an admin bearer token with the configured secret.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &tokenOptions{}

	cmd := &cobra.Command{
		Use:          "token",
		Short:        "Issue a bearer token for the admin API",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			return runToken(rootOpts, opts, cfg.Auth, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Subject, "subject", "operator", "token subject")
	cmd.Flags().StringSliceVar(&opts.Roles, "role", []string{auth.RoleAdmin}, "granted role (repeatable)")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}

func runToken(rootOpts *RootOptions, opts *tokenOptions, ac config.AuthConfig, out io.Writer) error {
	token, err := auth.Issue(auth.JWTConfig{Secret: []byte(ac.JWTSecret), Issuer: ac.Issuer}, opts.Subject, opts.Roles, opts.TTL)
	if err != nil {
		return err
	}
	return write(out, rootOpts.Format, map[string]interface{}{
		"token":     token,
		"subject":   opts.Subject,
		"roles":     opts.Roles,
		"expiresIn": opts.TTL.String(),
	}, func(w io.Writer) error {
		line(w, "%s", token)
		return nil
	})
}
