package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pthm/cfihos/internal/cli"
	"github.com/pthm/cfihos/pkg/scope"
	"github.com/pthm/cfihos/pkg/source"
	"github.com/pthm/cfihos/pkg/taxonomy"
)

var scopesResolve bool

var scopesCmd = &cobra.Command{
	Use:   "scopes [name...]",
	Short: "List configured scopes",
	Long: `List the scopes declared in the configuration. With --resolve the sources
are loaded and every scope is expanded to its dependency-closed entity set.`,
	Example: `  # List scopes
  cfihos scopes

  # Show the entities one scope resolves to
  cfihos scopes --resolve "pump skid"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		selected, err := selectScopes(cfg.Scopes, args)
		if err != nil {
			return cli.ConfigError("selecting scopes", err)
		}
		if len(selected) == 0 {
			if !quiet {
				fmt.Println("No scopes configured.")
			}
			return nil
		}

		var g *taxonomy.Graph
		if scopesResolve {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			batches, err := source.Load(ctx, cfg.SourceSpecs())
			if err != nil {
				return cli.ConfigError("loading sources", err)
			}
			g, err = taxonomy.Build(batches...)
			if err != nil {
				return cli.RunError("merging sources", err)
			}
		}

		failed := 0
		for _, s := range selected {
			fmt.Printf("%s (%s %s): %s\n", s.Name, s.ModelExternalID, s.ModelVersion, strings.Join(s.Subset, ", "))
			if g == nil {
				continue
			}
			resolved, err := s.Resolve(g)
			if err != nil {
				failed++
				fmt.Printf("  error: %v\n", err)
				continue
			}
			fmt.Printf("  %d entities: %s\n", resolved.Len(), strings.Join(resolved.IDs(), ", "))
		}

		if failed > 0 {
			return cli.ConfigError(fmt.Sprintf("%d scope(s) failed to resolve", failed), nil)
		}
		return nil
	},
}

func init() {
	scopesCmd.Flags().BoolVar(&scopesResolve, "resolve", false, "load sources and resolve each scope")
}

// selectScopes returns the named scopes, or all of them when names is empty.
func selectScopes(scopes []scope.Scope, names []string) ([]scope.Scope, error) {
	if len(names) == 0 {
		return scopes, nil
	}
	out := make([]scope.Scope, 0, len(names))
	for _, name := range names {
		s, err := scope.Find(scopes, name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
