// Package cli implements the docchat command-line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/docchat-cli/internal/app"
	"github.com/custodia-labs/docchat-cli/internal/logger"
)

var (
	// version is stamped at build time via -ldflags.
	version = "dev"

	// application is the composition root, injected by Execute.
	application *app.App

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "docchat",
	Short: "Chat with your PDF documents",
	Long: `docchat answers questions about a local PDF corpus.

Point it at a directory of PDFs, run 'docchat ingest' to build a local
vector index, then 'docchat chat' to ask questions. Answers are
generated by a configured LLM and grounded in the retrieved passages.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the CLI with the given application and version.
func Execute(a *app.App, ver string) error {
	application = a
	version = ver
	return rootCmd.Execute()
}
