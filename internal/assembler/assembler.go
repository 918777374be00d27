// Package assembler copies handler and shared-library sources into the
// build workspace and applies the registry's naming rules.
package assembler

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/open-edge-platform/function-packager/internal/registry"
	"github.com/open-edge-platform/function-packager/internal/utils/logger"
	"github.com/open-edge-platform/function-packager/internal/workspace"
	"go.uber.org/multierr"
)

// PackagingError reports a missing handler, shared library or rename
// source. It always names the specific file so the failure is actionable.
type PackagingError struct {
	Package string
	Reason  string
}

func (e *PackagingError) Error() string {
	return fmt.Sprintf("packaging %s failed: %s", e.Package, e.Reason)
}

// Assemble copies every handler source file from srcDir into the
// workspace root, copies the descriptor's required shared libraries from
// libDir into lib/, and renames the handler when the registry says the
// published name differs from the source name. It never consults the
// dependency set: handler copying and dependency installation are
// independent.
func Assemble(ws *workspace.Workspace, desc registry.Descriptor, srcDir, libDir string) error {
	log := logger.Logger()

	copied, err := copyHandlerSources(ws.Root, srcDir)
	if err != nil {
		return err
	}
	if copied == 0 {
		return &PackagingError{
			Package: desc.Name,
			Reason:  fmt.Sprintf("no handler source files (*.py) found in %s", srcDir),
		}
	}
	log.Infof("copied %d handler files for %s", copied, desc.Name)

	if err := copySharedLibs(ws, desc, libDir); err != nil {
		return err
	}

	if desc.NeedsRename() {
		from := filepath.Join(ws.Root, desc.SourceHandler)
		to := filepath.Join(ws.Root, desc.PublishedHandler)
		if _, err := os.Stat(from); os.IsNotExist(err) {
			return &PackagingError{
				Package: desc.Name,
				Reason:  fmt.Sprintf("rename declared but source handler %s is missing", desc.SourceHandler),
			}
		}
		if err := os.Rename(from, to); err != nil {
			return fmt.Errorf("failed to rename handler %s to %s: %w", from, to, err)
		}
		log.Infof("renamed handler %s -> %s", desc.SourceHandler, desc.PublishedHandler)
	}

	return nil
}

// copyHandlerSources copies top-level *.py files from srcDir into dstDir
// and returns how many it copied.
func copyHandlerSources(dstDir, srcDir string) (int, error) {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read handler source dir %s: %w", srcDir, err)
	}

	copied := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".py") {
			continue
		}
		src := filepath.Join(srcDir, entry.Name())
		dst := filepath.Join(dstDir, entry.Name())
		if err := copyFile(dst, src); err != nil {
			return copied, err
		}
		copied++
	}
	return copied, nil
}

// copySharedLibs copies each required shared library into lib/ and
// reports every missing one, not just the first.
func copySharedLibs(ws *workspace.Workspace, desc registry.Descriptor, libDir string) error {
	if len(desc.RequiredSharedLibs) == 0 {
		return nil
	}

	wsLibDir, err := ws.LibDir()
	if err != nil {
		return err
	}

	var missing error
	for _, lib := range desc.RequiredSharedLibs {
		src := filepath.Join(libDir, lib)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			missing = multierr.Append(missing, &PackagingError{
				Package: desc.Name,
				Reason:  fmt.Sprintf("required shared library %s not found in %s", lib, libDir),
			})
			continue
		}
		if err := copyFile(filepath.Join(wsLibDir, lib), src); err != nil {
			return err
		}
	}
	return missing
}

func copyFile(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return out.Sync()
}
