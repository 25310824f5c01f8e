package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pthm/cfihos/internal/cli"
)

var (
	// Global state set during PersistentPreRunE
	cfg        *cli.Config
	configPath string
	logger     = zap.NewNop()

	// Persistent flags
	cfgFile string
	verbose int
	quiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "cfihos",
	Short: "CFIHOS taxonomy to data model compiler",
	Long: `cfihos - CFIHOS taxonomy to data model compiler

cfihos merges CFIHOS-style entity and property sources, resolves inheritance,
assigns every property to a storage container and emits either the container
model or the views of a named scope.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for help/completion/version commands
		if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, configPath, err = cli.LoadConfig(cfgFile)
		if err != nil {
			return cli.ConfigError("loading configuration", err)
		}

		logger, err = cli.NewLogger(cfg.Log, verbose > 0)
		if err != nil {
			return cli.ConfigError("configuring logger", err)
		}
		if configPath != "" {
			logger.Debug("configuration loaded", zap.String("path", configPath))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
	SilenceUsage:  true, // Don't show usage on errors
	SilenceErrors: true, // We handle errors ourselves
}

// Command group IDs
const (
	groupModel   = "model"
	groupLedger  = "ledger"
	groupUtility = "utility"
)

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: auto-discover cfihos.yaml)")
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "increase verbosity (can be repeated)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupModel, Title: "Model:"},
		&cobra.Group{ID: groupLedger, Title: "Ledger:"},
		&cobra.Group{ID: groupUtility, Title: "Utility:"},
	)

	buildCmd.GroupID = groupModel
	validateCmd.GroupID = groupModel
	scopesCmd.GroupID = groupModel
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(scopesCmd)

	statusCmd.GroupID = groupLedger
	doctorCmd.GroupID = groupLedger
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(doctorCmd)

	configCmd.GroupID = groupUtility
	versionCmd.GroupID = groupUtility
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		cli.ExitWithError(err)
	}
}

// resolveString returns the first non-empty string from the provided values.
// Used to implement precedence: flag > config > default.
func resolveString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// resolveBool returns true if any of the provided values is true.
func resolveBool(values ...bool) bool {
	for _, v := range values {
		if v {
			return true
		}
	}
	return false
}
