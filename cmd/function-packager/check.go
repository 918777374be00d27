package main

import (
	"fmt"

	"github.com/open-edge-platform/function-packager/internal/consistency"
	"github.com/spf13/cobra"
)

var (
	checkConfigFile   string
	checkSourceDir    string
	checkArtifactDir  string
	checkRegistryFile string
)

// createCheckCommand creates the check subcommand
func createCheckCommand() *cobra.Command {
	checkCmd := &cobra.Command{
		Use:   "check [flags] [PACKAGE...]",
		Short: "Audit infrastructure configuration against built artifacts",
		Long: `Check cross-references the package registry against the declared
infrastructure configuration, the built archives and every file that pins
the runtime or upstream source version. Each assertion is reported
individually; the exit status is zero only when no assertion fails.`,
		RunE: executeCheck,
	}

	checkCmd.Flags().StringVar(&checkConfigFile, "config", "infra.yaml",
		"Infrastructure configuration file")
	checkCmd.Flags().StringVar(&checkSourceDir, "source-dir", ".",
		"Directory containing the upstream source tree")
	checkCmd.Flags().StringVar(&checkArtifactDir, "artifact-dir", "dist",
		"Directory the built archives were written to")
	checkCmd.Flags().StringVar(&checkRegistryFile, "registry", "",
		"YAML package registry file (default: compiled-in registry)")

	return checkCmd
}

// executeCheck handles the check command logic
func executeCheck(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry(checkRegistryFile)
	if err != nil {
		return err
	}

	cfg, err := consistency.LoadConfig(checkConfigFile)
	if err != nil {
		return err
	}

	checker := &consistency.Checker{
		Registry:    reg,
		Config:      cfg,
		SourceDir:   checkSourceDir,
		ArtifactDir: checkArtifactDir,
	}

	report := checker.Check(args)
	fmt.Fprintln(cmd.OutOrStdout(), report.String())

	if report.Failed() {
		return fmt.Errorf("consistency check failed: %s", report.Summary())
	}
	return nil
}
