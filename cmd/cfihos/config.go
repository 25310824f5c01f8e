package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/pthm/cfihos/internal/cli"
)

var (
	configShowSource bool
	configShowSpecs  bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration utilities",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	Long: `Show the effective configuration after merging defaults, config file, and
environment variables, followed by the sources as they will be loaded and the
result of validating the run settings.`,
	Example: `  # Show effective configuration
  cfihos config show

  # Show the config file path and resolved source files
  cfihos config show --source --sources`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return showConfig(os.Stdout, cfg, configPath, configShowSource, configShowSpecs)
	},
}

func init() {
	configShowCmd.Flags().BoolVar(&configShowSource, "source", false, "show config file source")
	configShowCmd.Flags().BoolVar(&configShowSpecs, "sources", true, "list resolved source files")
	configCmd.AddCommand(configShowCmd)
}

func showConfig(w io.Writer, c *cli.Config, path string, withPath, withSources bool) error {
	if withPath {
		if path != "" {
			fmt.Fprintf(w, "Config file: %s\n\n", path)
		} else {
			fmt.Fprintf(w, "Config file: (none, using defaults)\n\n")
		}
	}

	out, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	fmt.Fprint(w, string(out))

	if withSources {
		specs := c.SourceSpecs()
		fmt.Fprintf(w, "\nSources (%d, merged in this order):\n", len(specs))
		for i, s := range specs {
			fmt.Fprintf(w, "  %d. %s [%s, prefix %s]\n", i+1, s.Name, s.EffectiveFormat(), s.Prefix)
			if err := s.Validate(); err != nil {
				fmt.Fprintf(w, "     invalid: %v\n", err)
			}
			for _, f := range []string{s.Path, s.Entities, s.Properties} {
				if f == "" {
					continue
				}
				if _, err := os.Stat(f); err != nil {
					fmt.Fprintf(w, "     %s (not found)\n", f)
				} else {
					fmt.Fprintf(w, "     %s\n", f)
				}
			}
		}
	}

	core := c.Core()
	if err := core.Validate(); err != nil {
		fmt.Fprintf(w, "\nSettings: invalid\n  %s\n", strings.ReplaceAll(err.Error(), "; ", "\n  "))
		return nil
	}
	fmt.Fprintf(w, "\nSettings: valid (%s strategy, %s mode)\n", core.Strategy, core.Mode)
	return nil
}
