package cli

import (
	"errors"
	"io"

	"github.com/spf13/cobra"

	"lead-intake/internal/app"
	"lead-intake/internal/common/logger"
)

func NewPurgeCommand(rootOpts *RootOptions) *cobra.Command {
	var ids []string

	cmd := &cobra.Command{
		Use:          "purge --id <record-id> [--id <record-id>...]",
		Short:        "Permanently delete records from the local and remote stores",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(ids) == 0 {
				return errors.New("at least one --id is required")
			}
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			log := logger.NewStructured(cfg.Logging.Level, "console", "intakectl")
			defer log.Sync()

			a, err := app.Build(cmd.Context(), cfg, log, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			res, err := a.Store.Purge(cmd.Context(), ids)
			if err != nil {
				return err
			}
			return write(cmd.OutOrStdout(), rootOpts.Format, res, func(w io.Writer) error {
				line(w, "deleted %d local, %d remote", res.Local, res.Remote)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&ids, "id", nil, "record id to delete (repeatable)")
	return cmd
}
