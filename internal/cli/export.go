package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/rollbook/internal/export"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Output string
}

// ExportResult is the output of the export command.
type ExportResult struct {
	Path     string `json:"path"`
	Records  int    `json:"records"`
	Payments int    `json:"payments"`
}

func (r ExportResult) renderText(w io.Writer) {
	fmt.Fprintf(w, "Exported %s and %s to %s\n",
		plural(int64(r.Records), "record"), plural(int64(r.Payments), "payment"), r.Path)
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export records and payments to a spreadsheet",
		Long: `Write an xlsx workbook with a Records sheet (every field plus amount
received and remaining) and a Payments sheet.

Example:
  rollbook export --out rollbook.xlsx`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "out", "o", "", "output xlsx file (required)")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func runExport(opts *ExportOptions, cmd *cobra.Command) error {
	e, err := newEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	svc, err := e.open(ctx)
	if err != nil {
		return err
	}
	defer e.close(svc)

	records, err := svc.Records().List(ctx)
	if err != nil {
		return e.out.Fail(err)
	}
	payments, err := svc.Ledger().All(ctx)
	if err != nil {
		return e.out.Fail(err)
	}

	if err := export.WriteFile(opts.Output, records, payments); err != nil {
		_ = e.out.Error(ErrCodeWriteFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to write export", err)
	}
	return e.out.Success(ExportResult{Path: opts.Output, Records: len(records), Payments: len(payments)})
}
