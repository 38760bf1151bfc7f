package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/dreamengine/internal/di"
	"github.com/aristath/dreamengine/internal/modules/costs"
)

const dateLayout = "2006-01-02"

func newCostsCmd(opts *options) *cobra.Command {
	var (
		start  string
		end    string
		userID string
		days   int
	)

	cmd := &cobra.Command{
		Use:   "costs",
		Short: "Summarize evaluation spend",
		Example: `  dreamctl costs
  dreamctl costs --days 7 --user user-1
  dreamctl costs --start 2026-01-01 --end 2026-01-31 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := costRange(time.Now(), start, end, days)
			if err != nil {
				return err
			}

			return opts.withContainer(func(c *di.Container, _ *di.JobInstances) error {
				summary, err := c.CostTracker.Summarize(from, to, userID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if opts.json {
					return printJSON(out, summary)
				}

				fmt.Fprintf(out, "Costs %s to %s\n\n", summary.Start.Format(dateLayout), summary.End.Format(dateLayout))
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "PROVIDER\tREQUESTS\tTOKENS\tCOST")
				providers := make([]string, 0, len(summary.Breakdown))
				for p := range summary.Breakdown {
					providers = append(providers, p)
				}
				sort.Strings(providers)
				for _, p := range providers {
					entry := summary.Breakdown[p]
					fmt.Fprintf(tw, "%s\t%d\t%d\t$%.2f\n", p, entry.Requests, entry.Tokens, entry.Cost)
				}
				fmt.Fprintf(tw, "TOTAL\t%d\t%d\t$%.2f\n", summary.TotalRequests, summary.TotalTokens, summary.TotalCost)
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "First day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "Last day, inclusive (YYYY-MM-DD)")
	cmd.Flags().IntVar(&days, "days", 30, "Days back from today when --start is not set")
	cmd.Flags().StringVarP(&userID, "user", "u", "", "Restrict to one user")

	return cmd
}

// costRange resolves the flags to an inclusive [start, end] window in local time
func costRange(now time.Time, start, end string, days int) (time.Time, time.Time, error) {
	to := now
	if end != "" {
		parsed, err := time.ParseInLocation(dateLayout, end, now.Location())
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --end %q (expected YYYY-MM-DD)", end)
		}
		to = parsed.AddDate(0, 0, 1).Add(-time.Millisecond)
	}

	if days <= 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("--days must be positive")
	}
	from := costs.StartOfDay(to).AddDate(0, 0, -days)
	if start != "" {
		parsed, err := time.ParseInLocation(dateLayout, start, now.Location())
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --start %q (expected YYYY-MM-DD)", start)
		}
		from = parsed
	}

	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date is before start date")
	}
	return from, to, nil
}
