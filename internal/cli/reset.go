package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/rollbook/internal/maint"
)

// ResetOptions holds flags for the reset command.
type ResetOptions struct {
	*RootOptions
	Yes bool
}

// ResetResult wraps the maintenance report for output.
type ResetResult struct {
	maint.ResetReport
	Database        string `json:"database"`
	DatabaseMissing bool   `json:"database_missing,omitempty"`
}

func (r ResetResult) renderText(w io.Writer) {
	if r.DatabaseMissing {
		fmt.Fprintf(w, "Database file not found at %s. Nothing to reset\n", r.Database)
		return
	}
	fmt.Fprintf(w, "Removed %s, %s and %s\n",
		plural(r.Records, "record"), plural(r.Payments, "payment"), plural(r.Photos, "photo"))
	fmt.Fprintf(w, "Deleted photo directory %s\n", r.PhotoDir)
	if r.AdminCreated {
		fmt.Fprintln(w, "Seeded default administrator")
	} else {
		fmt.Fprintln(w, "Credentials kept")
	}
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all records, payments and photos",
		Long: `Delete every record, payment and photo attachment and restart their
ids at 1. Administrator credentials are kept; if none exist the configured
default is created. The photo directory is removed. When the database file
does not exist there is nothing to reset and nothing is created.

This cannot be undone. Stop any running application first.

Example:
  rollbook reset --yes`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Yes, "yes", false, "confirm the reset")

	return cmd
}

func runReset(opts *ResetOptions, cmd *cobra.Command) error {
	e, err := newEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	if !opts.Yes {
		_ = e.out.Error(ErrCodeRefused, "reset deletes all data; pass --yes to confirm", nil)
		return NewExitError(ExitCommandError, "reset not confirmed")
	}
	ctx := commandContext(cmd)

	dbPath := e.cfg.DatabasePath()
	if _, err := os.Stat(dbPath); errors.Is(err, fs.ErrNotExist) {
		e.log.Info("nothing to reset", zap.String("database", dbPath))
		return e.out.Success(ResetResult{Database: dbPath, DatabaseMissing: true})
	}

	svc, err := e.open(ctx)
	if err != nil {
		return err
	}
	defer e.close(svc)

	report, err := maint.Reset(ctx, svc.DB(), e.cfg.PhotoRoot(), e.seed(), e.log.Named("maint"))
	if err != nil {
		return e.out.Fail(err)
	}
	return e.out.Success(ResetResult{ResetReport: report, Database: dbPath})
}
