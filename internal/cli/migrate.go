package cli

import (
	"io"

	"github.com/spf13/cobra"

	"lead-intake/internal/common/database"
)

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "migrate",
		Short:        "Apply pending PostgreSQL migrations",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			pg, err := database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			defer pg.Close()

			applied, err := pg.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			return write(cmd.OutOrStdout(), rootOpts.Format, map[string]interface{}{"applied": applied}, func(w io.Writer) error {
				if len(applied) == 0 {
					line(w, "schema is up to date")
				}
				for _, v := range applied {
					line(w, "applied %s", v)
				}
				return nil
			})
		},
	}
}
