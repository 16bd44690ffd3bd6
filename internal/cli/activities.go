package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"lead-intake/internal/common/validation"
	"lead-intake/pkg/registry"
)

// NewActivitiesCommand lists the job types the workers serve and checks the
// registry, including that every input schema compiles.
func NewActivitiesCommand(rootOpts *RootOptions) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:          "activities",
		Short:        "List and validate the activity registry",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runActivities(rootOpts, path, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "registry file (default: the embedded registry)")
	return cmd
}

func runActivities(opts *RootOptions, path string, out io.Writer) error {
	var (
		reg *registry.ActivityRegistry
		err error
	)
	if path != "" {
		reg, err = registry.LoadRegistry(path)
	} else {
		reg, err = registry.Default()
	}
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	if err := reg.Validate(); err != nil {
		return err
	}
	if err := reg.RegisterInputSchemas(validation.NewValidator()); err != nil {
		return fmt.Errorf("input schema: %w", err)
	}

	return write(out, opts.Format, reg, func(w io.Writer) error {
		line(w, "registry %s (%d activities)", reg.Version, len(reg.Activities))
		for _, a := range reg.Activities {
			line(w, "  %-20s %-8s retries=%d timeout=%s", a.TaskType, a.Category, a.Retries, a.Timeout)
		}
		return nil
	})
}
