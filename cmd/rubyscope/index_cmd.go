package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"rubyscope/internal/config"
	"rubyscope/internal/entry"
	"rubyscope/internal/index"
)

// declarationRecord is one line of --json output.
type declarationRecord struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	URI  string `json:"uri"`
	Line int    `json:"line"`
}

func newIndexCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a workspace once and print what was found",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := "."
			if len(args) > 0 {
				workspace = args[0]
			}
			workspace, err := filepath.Abs(workspace)
			if err != nil {
				return fmt.Errorf("resolving workspace: %w", err)
			}

			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ix := index.New(cfg)
			if err := ix.IndexAll(ctx); err != nil {
				return fmt.Errorf("indexing %s: %w", workspace, err)
			}

			if asJSON {
				return writeDeclarations(cmd, ix)
			}
			return writeSummary(cmd, ix)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit one JSON object per declaration")
	return cmd
}

func writeSummary(cmd *cobra.Command, ix *index.Index) error {
	counts := map[string]int{}
	total := 0
	for _, name := range ix.Names() {
		for _, e := range ix.EntriesFor(name) {
			counts[entryKind(e)]++
			total++
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d declarations under %d names\n", total, ix.Len())
	for _, kind := range []string{"class", "module", "singleton class", "method", "accessor", "constant", "alias", "variable"} {
		if counts[kind] > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "  %-16s %d\n", kind, counts[kind])
		}
	}
	return nil
}

func writeDeclarations(cmd *cobra.Command, ix *index.Index) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, name := range ix.Names() {
		for _, e := range ix.EntriesFor(name) {
			rec := declarationRecord{
				Name: name,
				Kind: entryKind(e),
				URI:  e.URI().String(),
				Line: e.NameLocation().Start.Line,
			}
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

func entryKind(e entry.Entry) string {
	switch v := e.(type) {
	case *entry.Namespace:
		return v.Kind().String()
	case *entry.Method, *entry.MethodAlias, *entry.UnresolvedMethodAlias:
		return "method"
	case *entry.Accessor:
		return "accessor"
	case *entry.Constant:
		return "constant"
	case *entry.Alias, *entry.UnresolvedAlias:
		return "alias"
	default:
		return "variable"
	}
}
