package main

import (
	"github.com/spf13/cobra"
)

var (
	flagRepo      string
	flagDryRun    bool
	flagThreshold float64
	flagNoLLM     bool
	flagTrigger   string
)

var rootCmd = &cobra.Command{
	Use:   "atlas",
	Short: "atlas ingests git repositories into a hierarchical code knowledge base.",
	Long: `atlas walks a set of git repositories, parses their source into a
symbol/file/module/repo document hierarchy, summarizes and embeds each level,
and keeps the store in sync with upstream commits. Without a subcommand it
executes one ingestion run.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runIngestion,
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	rootCmd.Flags().StringVar(&flagRepo, "repo", "", "restrict the run to a single repository (owner/name)")
	rootCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "report what would change without writing anything")
	rootCmd.Flags().Float64Var(&flagThreshold, "threshold", 0, "change ratio above which a full re-ingest is forced (overrides config)")
	rootCmd.Flags().BoolVar(&flagNoLLM, "no-llm", false, "disable LLM enrichment, produce structural summaries only")
	rootCmd.Flags().StringVar(&flagTrigger, "trigger", "manual", "what started this run: manual, scheduled or webhook")
}
