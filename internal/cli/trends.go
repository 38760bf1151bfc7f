package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aristath/dreamengine/internal/di"
	"github.com/aristath/dreamengine/internal/modules/analytics"
)

func newTrendsCmd(opts *options) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "trends <user-id>",
		Short: "Rank a user's dreams by impossibility improvement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 || days > 365 {
				return fmt.Errorf("--days must be between 1 and 365")
			}

			return opts.withContainer(func(c *di.Container, _ *di.JobInstances) error {
				report, err := c.AnalyticsService.Report(args[0], analytics.Options{
					Days:   days,
					Metric: analytics.MetricTrends,
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if opts.json {
					return printJSON(out, report.Trends)
				}

				if report.Trends == nil || len(report.Trends.ImpossibilityDecay) == 0 {
					fmt.Fprintln(out, "No dreams with two or more evaluations in range")
					return nil
				}

				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "DREAM\tTITLE\tSAMPLES\tFIRST\tLAST\tIMPROVEMENT\tSLOPE")
				for _, t := range report.Trends.ImpossibilityDecay {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%.1f\t%.1f\t%.1f\t%.2f\n",
						t.DreamID, t.Title, t.Samples, t.FirstScore, t.LastScore, t.TotalImprovement, t.Slope)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", analytics.DefaultDays, "Report window in days (1-365)")

	return cmd
}
