package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/roach88/rollbook/internal/ledger"
	"github.com/roach88/rollbook/internal/model"
)

// RecordSummary is one row of the records listing.
type RecordSummary struct {
	model.Record
	Received  decimal.Decimal `json:"amount_received"`
	Remaining decimal.Decimal `json:"remaining"`
}

// RecordsResult lists records newest first.
type RecordsResult struct {
	Records []RecordSummary `json:"records"`
}

func (r RecordsResult) renderText(w io.Writer) {
	if len(r.Records) == 0 {
		fmt.Fprintln(w, "No records")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tMOBILE\tTOTAL\tRECEIVED\tREMAINING")
	for _, s := range r.Records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Name, s.Mobile, money(s.TotalAmount), s.Received.StringFixed(2), s.Remaining.StringFixed(2))
	}
	tw.Flush()
}

// NewRecordsCommand creates the records command.
func NewRecordsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "records",
		Short: "List records with their balances",
		Long: `List every record, newest first, with its total, the amount received
and the amount remaining.

Example:
  rollbook records
  rollbook records --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecords(rootOpts, cmd)
		},
	}
}

func runRecords(opts *RootOptions, cmd *cobra.Command) error {
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

	list, err := svc.Records().List(ctx)
	if err != nil {
		return e.out.Fail(err)
	}
	payments, err := svc.Ledger().All(ctx)
	if err != nil {
		return e.out.Fail(err)
	}

	byRecord := make(map[int64][]model.Payment)
	for _, p := range payments {
		byRecord[p.RecordID] = append(byRecord[p.RecordID], p)
	}

	result := RecordsResult{Records: make([]RecordSummary, 0, len(list))}
	for _, r := range list {
		bal := ledger.BalanceOf(r.TotalAmount, byRecord[r.ID])
		result.Records = append(result.Records, RecordSummary{Record: r, Received: bal.Received, Remaining: bal.Remaining})
	}
	return e.out.Success(result)
}
