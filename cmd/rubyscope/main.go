// rubyscope indexes Ruby workspaces and serves the result over LSP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbosity int
	var logFile string

	cmd := &cobra.Command{
		Use:           "rubyscope",
		Short:         "Ruby symbol indexer and language server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Logging must stay off stdout; the serve command speaks
			// LSP there.
			var path *string
			if logFile != "" {
				path = &logFile
			}
			commonlog.Configure(verbosity, path)
		},
	}

	cmd.PersistentFlags().IntVar(&verbosity, "verbose", 0, "log verbosity (0=errors and warnings, 1=info, 2=debug)")
	cmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to a file instead of stderr")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIndexCmd())
	return cmd
}
