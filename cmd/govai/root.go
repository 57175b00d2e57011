package main

import (
	"github.com/spf13/cobra"
)

// NewRootCommand creates the root cobra command. Without a subcommand it
// analyzes the given URL or PROPOSAL_URL.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "govai [proposal_url]",
		Short: "Risk/benefit analysis of DAO governance proposals",
		Long: bold("govai") + ` fetches a governance proposal (Snapshot, Tally or any web page),
asks an LLM for a structured risk/benefit report weighed against your
principles, and stores the report as JSON.

` + bold("EXAMPLES:") + `
  govai init                                  # create principles.json
  govai https://snapshot.box/#/s:dao.eth/proposal/0x...
  govai serve                                 # job API on PORT
  govai view                                  # HTML report viewer on PAGE_PORT
  govai bench                                 # cost + latency comparison
  govai show reports/<file>.json              # render a report in the terminal`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, opts, args)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "YAML or JSON config file")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file read before the environment (empty to skip)")
	flags.BoolVarP(&opts.debug, "debug", "d", false, "Debug logging")
	flags.BoolVar(&opts.stream, "stream", false, "Stream the model response over server-sent events")

	rootCmd.AddCommand(
		newInitCommand(opts),
		newAnalyzeCommand(opts),
		newServeCommand(opts),
		newViewCommand(opts),
		newBenchCommand(opts),
		newShowCommand(opts),
	)
	return rootCmd
}
