package main

import (
	"github.com/spf13/cobra"
)

// rootOptions holds the persistent flags shared by every command
type rootOptions struct {
	configPath string
	logLevel   string
	pretty     bool
	metrics    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "entgraph",
		Short: "An in-process entity graph store",
		Long: `entgraph loads entity fixtures into an in-memory graph store.
Entities carry typed fields and edges; removing an entity cascades along
its edges according to each edge's deletion policy.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML config file")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.BoolVar(&opts.pretty, "pretty", false, "Pretty-print logs")
	flags.BoolVar(&opts.metrics, "metrics", false, "Print gathered metrics when the command finishes")

	cmd.AddCommand(
		newLoadCmd(opts),
		newQueryCmd(opts),
		newRemoveCmd(opts),
	)
	return cmd
}
