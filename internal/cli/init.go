package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/rollbook/internal/schema"
)

// InitResult is the output of the init command.
type InitResult struct {
	Database      string `json:"database"`
	PhotoRoot     string `json:"photo_root"`
	SchemaVersion int    `json:"schema_version"`
}

func (r InitResult) renderText(w io.Writer) {
	fmt.Fprintf(w, "Database ready at %s (schema version %d)\n", r.Database, r.SchemaVersion)
	fmt.Fprintf(w, "Photos stored under %s\n", r.PhotoRoot)
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create or migrate the database",
		Long: `Create the database if it does not exist, apply pending schema
migrations and seed the configured administrator when no credential exists.

Running init on an up-to-date database changes nothing.

Example:
  rollbook init --data-dir ./data`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(rootOpts, cmd)
		},
	}
}

func runInit(opts *RootOptions, cmd *cobra.Command) error {
	e, err := newEnv(opts, cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	svc, err := e.open(ctx)
	if err != nil {
		return err
	}
	defer e.close(svc)

	version, err := schema.Version(ctx, svc.DB())
	if err != nil {
		return e.out.Fail(err)
	}

	return e.out.Success(InitResult{
		Database:      e.cfg.DatabasePath(),
		PhotoRoot:     e.cfg.PhotoRoot(),
		SchemaVersion: version,
	})
}
