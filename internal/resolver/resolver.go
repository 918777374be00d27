// Package resolver turns the upstream dependency manifest into packages
// materialized inside the build workspace.
package resolver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/open-edge-platform/function-packager/internal/manifest"
	"github.com/open-edge-platform/function-packager/internal/utils/logger"
	"github.com/open-edge-platform/function-packager/internal/utils/shell"
	"github.com/open-edge-platform/function-packager/internal/workspace"
)

// ResolutionError reports a failed lock or export step. Output carries
// the underlying tool's diagnostic verbatim so the operator sees exactly
// what pipenv or pip printed.
type ResolutionError struct {
	Step   string
	Output string
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("dependency resolution failed at %s: %v\n%s", e.Step, e.Err, strings.TrimSpace(e.Output))
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// InstallVerificationError reports the silent-empty-install failure
// mode: the installer exited zero but materialized nothing, usually
// because an environment marker in the exported list evaluated false for
// every entry under the build interpreter.
type InstallVerificationError struct {
	ExportedCount      int
	DeclaredConstraint string
	InterpreterVersion string
	InstallOutput      string
}

func (e *InstallVerificationError) Error() string {
	constraint := e.DeclaredConstraint
	if constraint == "" {
		constraint = "(none declared)"
	}
	return fmt.Sprintf(
		"install verification failed: %d dependencies exported but zero packages installed; "+
			"declared python_version constraint %s vs build interpreter %s\n%s",
		e.ExportedCount, constraint, e.InterpreterVersion, strings.TrimSpace(e.InstallOutput))
}

// Resolver materializes a manifest into a workspace using the pip and
// pipenv toolchain on PATH.
type Resolver struct {
	// PythonBin is the interpreter used for pip invocations.
	PythonBin string
	// PipenvBin is used for lock/export of declarative manifests.
	PipenvBin string
}

// New returns a resolver bound to the default toolchain.
func New() *Resolver {
	return &Resolver{PythonBin: "python3", PipenvBin: "pipenv"}
}

// Materialize installs the manifest found in srcDir into the workspace
// root and verifies the install actually produced packages. It returns
// the parsed dependency set for later validation stages.
func (r *Resolver) Materialize(ws *workspace.Workspace, srcDir string) (*manifest.DependencySet, error) {
	log := logger.Logger()

	deps, err := manifest.Load(srcDir)
	if err != nil {
		return nil, err
	}

	var installList string
	switch deps.Form() {
	case manifest.FormNone:
		log.Infof("no dependency manifest in %s, nothing to install", srcDir)
		return deps, nil
	case manifest.FormFlat:
		installList = filepath.Join(srcDir, manifest.RequirementsFile)
	case manifest.FormDeclarative:
		installList, err = r.exportDeclarative(ws, srcDir)
		if err != nil {
			return nil, err
		}
	}

	exported, err := manifest.ParseRequirements(installList)
	if err != nil {
		return nil, err
	}
	if len(exported) == 0 {
		log.Infof("manifest %s declares no installable dependencies", installList)
		return deps, nil
	}

	installCmd := fmt.Sprintf("%s -m pip install -r %s --target %s --no-compile",
		r.PythonBin, shell.Quote(installList), shell.Quote(ws.SitePackagesDir()))
	output, err := shell.ExecCmdWithStream(installCmd, srcDir, nil)
	if err != nil {
		return nil, &ResolutionError{Step: "pip install", Output: output, Err: err}
	}

	installed := CountInstalled(ws.SitePackagesDir())
	if installed == 0 {
		return nil, &InstallVerificationError{
			ExportedCount:      len(exported),
			DeclaredConstraint: deps.PythonVersion(),
			InterpreterVersion: r.interpreterVersion(),
			InstallOutput:      output,
		}
	}

	log.Infof("installed %d packages for %d exported dependencies", installed, len(exported))
	return deps, nil
}

// exportDeclarative locks the Pipfile if needed and exports the lock to
// a flat list inside the workspace.
func (r *Resolver) exportDeclarative(ws *workspace.Workspace, srcDir string) (string, error) {
	log := logger.Logger()

	lockPath := filepath.Join(srcDir, "Pipfile.lock")
	if _, err := os.Stat(lockPath); os.IsNotExist(err) {
		log.Infof("no Pipfile.lock, generating one")
		lockCmd := fmt.Sprintf("%s lock", r.PipenvBin)
		if output, err := shell.ExecCmd(lockCmd, srcDir, nil); err != nil {
			return "", &ResolutionError{Step: "pipenv lock", Output: output, Err: err}
		}
	}

	exportPath := filepath.Join(ws.Root, manifest.ExportFile)
	exportCmd := fmt.Sprintf("%s requirements > %s", r.PipenvBin, shell.Quote(exportPath))
	if output, err := shell.ExecCmd(exportCmd, srcDir, nil); err != nil {
		return "", &ResolutionError{Step: "pipenv requirements export", Output: output, Err: err}
	}

	return exportPath, nil
}

// interpreterVersion asks the build interpreter for its version so the
// verification error can show both sides of the constraint mismatch.
func (r *Resolver) interpreterVersion() string {
	output, err := shell.ExecCmd(r.PythonBin+" --version", "", nil)
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(output)
}

// CountInstalled counts installed-package metadata directories in the
// package-search path. pip writes one *.dist-info directory per package
// it actually installed, so zero means an empty install no matter what
// the exit status claimed.
func CountInstalled(root string) int {
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		if entry.IsDir() && strings.HasSuffix(entry.Name(), ".dist-info") {
			count++
		}
	}
	return count
}
