package main

import (
	"fmt"

	"github.com/open-edge-platform/function-packager/internal/pipeline"
	"github.com/open-edge-platform/function-packager/internal/registry"
	"github.com/open-edge-platform/function-packager/internal/utils/logger"
	"github.com/open-edge-platform/function-packager/internal/validator"
	"github.com/spf13/cobra"
)

var (
	buildSourceDir    string
	buildOutputDir    string
	buildWorkspaceDir string
	buildRegistryFile string
	buildMaxSize      int64
	buildMinSize      int64
	buildSkipImports  bool
)

// createBuildCommand creates the build subcommand
func createBuildCommand() *cobra.Command {
	buildCmd := &cobra.Command{
		Use:   "build [flags] PACKAGE",
		Short: "Build and validate one function package archive",
		Long: `Build runs the full pipeline for one named package: registry lookup,
dependency resolution, assembly, archive creation and validation. The
pipeline aborts at the first fatal error; validation failures are
reported per check and decide the exit status.`,
		Args: cobra.ExactArgs(1),
		RunE: executeBuild,
	}

	buildCmd.Flags().StringVar(&buildSourceDir, "source-dir", ".",
		"Directory containing source/<package>/ and source/lib/")
	buildCmd.Flags().StringVar(&buildOutputDir, "output-dir", "dist",
		"Directory the archive is written to")
	buildCmd.Flags().StringVar(&buildWorkspaceDir, "workspace-dir", "",
		"Base directory for per-package build workspaces (default under the system temp dir)")
	buildCmd.Flags().StringVar(&buildRegistryFile, "registry", "",
		"YAML package registry file (default: compiled-in registry)")
	buildCmd.Flags().Int64Var(&buildMaxSize, "max-size", validator.DefaultMaxSizeBytes,
		"Maximum archive size in bytes")
	buildCmd.Flags().Int64Var(&buildMinSize, "min-size", validator.DefaultMinSizeBytes,
		"Minimum archive size in bytes when dependencies are declared")
	buildCmd.Flags().BoolVar(&buildSkipImports, "skip-import-checks", false,
		"Skip the import-resolution battery (structural checks still run)")

	return buildCmd
}

// executeBuild handles the build command logic
func executeBuild(cmd *cobra.Command, args []string) error {
	log := logger.Logger()
	pkgName := args[0]

	reg, err := loadRegistry(buildRegistryFile)
	if err != nil {
		return err
	}

	p, err := pipeline.New(pipeline.Options{
		PackageName:  pkgName,
		SourceDir:    buildSourceDir,
		OutputDir:    buildOutputDir,
		WorkspaceDir: buildWorkspaceDir,
		Registry:     reg,
		Validation: validator.Options{
			MaxSizeBytes:     buildMaxSize,
			MinSizeBytes:     buildMinSize,
			SkipImportChecks: buildSkipImports,
		},
	})
	if err != nil {
		return err
	}

	log.Infof("building package %s from %s", pkgName, buildSourceDir)
	result, err := p.Run()
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Report.String())

	if result.Report.Failed() {
		return fmt.Errorf("validation failed for %s: %s", pkgName, result.Report.Summary())
	}

	log.Infof("✓ %s validated: %s (%d bytes)", pkgName, result.Artifact.Path, result.Artifact.SizeBytes)
	return nil
}

func loadRegistry(path string) (*registry.Registry, error) {
	if path == "" {
		return registry.Default(), nil
	}
	return registry.Load(path)
}
