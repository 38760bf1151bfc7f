package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aristath/dreamengine/internal/di"
)

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one retest pass now",
		Long: `Runs a single budget-aware retest pass in this process and prints its
summary. A pass already running in this process is not joined.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withContainer(func(c *di.Container, _ *di.JobInstances) error {
				summary, err := c.RetestScheduler.RunOnce(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if opts.json {
					return printJSON(out, summary)
				}

				if summary.Rejected {
					fmt.Fprintln(out, "Retest pass rejected: another pass is running")
					return nil
				}
				fmt.Fprintf(out, "Candidates:  %d\n", summary.Candidates)
				fmt.Fprintf(out, "Processed:   %d\n", summary.Processed)
				fmt.Fprintf(out, "Skipped:     %d\n", summary.Skipped)
				fmt.Fprintf(out, "Failed:      %d\n", summary.Failed)
				fmt.Fprintf(out, "Run cost:    $%.2f\n", summary.RunCost)
				fmt.Fprintf(out, "Spent today: $%.2f\n", summary.TotalCost)
				if summary.BudgetExhausted {
					fmt.Fprintln(out, "Daily budget exhausted")
				}
				return nil
			})
		},
	}
}
