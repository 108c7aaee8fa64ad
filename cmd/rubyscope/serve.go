package main

import (
	"github.com/spf13/cobra"

	"rubyscope/internal/server"
)

func newServeCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve LSP over stdio (invoked by editors)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return server.New("rubyscope", version, watch).RunStdio()
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", true, "watch the workspace for changes made outside the editor")
	return cmd
}
