package main

import (
	"fmt"
	"os"

	"github.com/open-edge-platform/function-packager/internal/utils/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	logLevel string
	verbose  bool
)

// flagSetByUser reports whether the user set the named flag explicitly.
func flagSetByUser(fs *pflag.FlagSet, name string) bool {
	f := fs.Lookup(name)
	return f != nil && f.Changed
}

// resolveRequestedLogLevel prefers the explicit --log-level flag and
// falls back to debug when --verbose was set.
func resolveRequestedLogLevel(cmd *cobra.Command) string {
	if logLevel != "" {
		return logLevel
	}
	if cmd != nil && flagSetByUser(cmd.Flags(), "verbose") {
		if v, err := cmd.Flags().GetBool("verbose"); err == nil && v {
			return "debug"
		}
	}
	return ""
}

// attachLoggingHooks initializes the logger before any subcommand runs.
func attachLoggingHooks(cmd *cobra.Command) {
	for _, sub := range cmd.Commands() {
		sub.PersistentPreRunE = func(c *cobra.Command, args []string) error {
			level := resolveRequestedLogLevel(c)
			if level == "" {
				level = "info"
			}
			return logger.Init(level)
		}
	}
}

// createRootCommand wires up the CLI.
func createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "function-packager",
		Short: "Package and validate serverless function archives",
		Long: `function-packager builds a deployable archive for a named serverless
function package (handler sources, shared libraries and pip dependencies)
and runs a battery of structural and import-resolution checks against the
result. A sibling check command audits infrastructure configuration
against the built artifacts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Shorthand for --log-level debug")

	rootCmd.AddCommand(createBuildCommand())
	rootCmd.AddCommand(createCheckCommand())
	rootCmd.AddCommand(createRegistryCommand())
	attachLoggingHooks(rootCmd)

	return rootCmd
}

func main() {
	defer logger.Sync()

	if err := createRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
