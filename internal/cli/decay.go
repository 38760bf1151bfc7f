package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aristath/dreamengine/internal/di"
	"github.com/aristath/dreamengine/internal/modules/evaluation"
)

func newDecayCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "decay <dream-id>",
		Short: "Show impossibility decay for a dream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dreamID := args[0]

			return opts.withContainer(func(c *di.Container, _ *di.JobInstances) error {
				analysis, err := c.EvaluationService.Decay(dreamID)
				if errors.Is(err, evaluation.ErrNoHistory) {
					return fmt.Errorf("dream %s has no completed evaluations", dreamID)
				}
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if opts.json {
					return printJSON(out, analysis)
				}

				fmt.Fprintf(out, "Dream:         %s\n", dreamID)
				fmt.Fprintf(out, "Current score: %.1f\n", analysis.CurrentScore)
				if analysis.PreviousScore != nil {
					fmt.Fprintf(out, "Previous:      %.1f\n", *analysis.PreviousScore)
				} else {
					fmt.Fprintln(out, "Previous:      -")
				}
				fmt.Fprintf(out, "Decay rate:    %.2f%%\n", analysis.DecayRate)
				fmt.Fprintf(out, "Trend:         %s\n", analysis.TrendDirection)
				fmt.Fprintf(out, "Confidence:    %.0f\n", analysis.Confidence)
				fmt.Fprintf(out, "Samples:       %d\n", analysis.SampleCount)
				return nil
			})
		},
	}
}
