// Package workspace manages the ephemeral build directory a single
// pipeline invocation owns exclusively.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/open-edge-platform/function-packager/internal/utils/logger"
)

// Workspace is the per-package build directory. It is created fresh for
// every invocation; stages communicate only through its contents, and
// every stage receives the path explicitly rather than relying on the
// process working directory.
type Workspace struct {
	Root string
}

// Create makes a fresh workspace for pkgName under baseDir, destroying
// any prior contents for that package first so partial state from an
// earlier attempt can never leak into this one.
func Create(baseDir, pkgName string) (*Workspace, error) {
	log := logger.Logger()

	root := filepath.Join(baseDir, pkgName)
	if err := os.RemoveAll(root); err != nil {
		return nil, fmt.Errorf("failed to clear previous workspace %s: %w", root, err)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace %s: %w", root, err)
	}

	log.Debugf("created workspace %s", root)
	return &Workspace{Root: root}, nil
}

// SitePackagesDir is where pip installs dependency packages. It is the
// workspace root itself, so installed modules resolve at the archive's
// top level without any path manipulation at runtime.
func (w *Workspace) SitePackagesDir() string {
	return w.Root
}

// LibDir returns the shared-library directory inside the workspace,
// creating it on first use.
func (w *Workspace) LibDir() (string, error) {
	dir := filepath.Join(w.Root, "lib")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create lib dir %s: %w", dir, err)
	}
	return dir, nil
}

// Destroy removes the workspace and everything in it.
func (w *Workspace) Destroy() error {
	if err := os.RemoveAll(w.Root); err != nil {
		return fmt.Errorf("failed to destroy workspace %s: %w", w.Root, err)
	}
	return nil
}
