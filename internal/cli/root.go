// Package cli implements dreamctl, the operator command line for the engine.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/aristath/dreamengine/internal/config"
	"github.com/aristath/dreamengine/internal/di"
	"github.com/aristath/dreamengine/pkg/logger"
)

// Opener wires a container for one command invocation. The returned
// function releases it.
type Opener func() (*di.Container, *di.JobInstances, func(), error)

// DefaultOpener loads configuration from the environment and wires the
// engine against the configured data directory. Logs go to stderr.
func DefaultOpener() (*di.Container, *di.JobInstances, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
		Output: os.Stderr,
	})

	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return container, jobs, func() { _ = container.Close() }, nil
}

type options struct {
	open Opener
	json bool
}

// NewRootCmd builds the dreamctl command tree
func NewRootCmd(version string, open Opener) *cobra.Command {
	opts := &options{open: open}

	root := &cobra.Command{
		Use:   "dreamctl",
		Short: "Operate the dream evaluation engine",
		Long: `dreamctl triggers retest passes and reports on costs, impossibility decay
and per-user trends straight from the engine's databases.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&opts.json, "json", "j", false, "Output as JSON")

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newCostsCmd(opts))
	root.AddCommand(newDecayCmd(opts))
	root.AddCommand(newTrendsCmd(opts))

	return root
}

// withContainer opens a container, runs fn and releases it
func (o *options) withContainer(fn func(c *di.Container, jobs *di.JobInstances) error) error {
	container, jobs, release, err := o.open()
	if err != nil {
		return err
	}
	defer release()
	return fn(container, jobs)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
