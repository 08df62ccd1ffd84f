package cli

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/roach88/rollbook/internal/model"
)

// StatsResult is the dashboard summary.
type StatsResult struct {
	model.DashboardStats
	Outstanding decimal.Decimal `json:"outstanding"`
}

func (r StatsResult) renderText(w io.Writer) {
	fmt.Fprintf(w, "Records:        %d\n", r.RecordCount)
	fmt.Fprintf(w, "Total owed:     %s\n", money(r.TotalOwed))
	fmt.Fprintf(w, "Total received: %s\n", money(r.TotalReceived))
	fmt.Fprintf(w, "Outstanding:    %s\n", r.Outstanding.StringFixed(2))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Recent payments:")
	if len(r.RecentPayments) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, p := range r.RecentPayments {
		fmt.Fprintf(w, "  #%-4d record %-4d %10s  %s\n", p.ID, p.RecordID, money(p.Amount), p.PaymentDate)
	}
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard totals and recent payments",
		Long: `Show the number of records, the total owed, the total received, the
outstanding balance and the five most recent payments.

Example:
  rollbook stats
  rollbook stats --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(rootOpts, cmd)
		},
	}
}

func runStats(opts *RootOptions, cmd *cobra.Command) error {
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

	// The service swallows errors for the dashboard; the CLI reports them.
	stats, err := svc.Ledger().DashboardStats(ctx)
	if err != nil {
		return e.out.Fail(err)
	}

	outstanding := decimal.NewFromFloat(stats.TotalOwed).Sub(decimal.NewFromFloat(stats.TotalReceived))
	return e.out.Success(StatsResult{DashboardStats: stats, Outstanding: outstanding})
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
