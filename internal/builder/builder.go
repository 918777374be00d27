// Package builder strips build-time noise from the workspace and
// produces the deployable archive.
package builder

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/open-edge-platform/function-packager/internal/artifact"
	"github.com/open-edge-platform/function-packager/internal/manifest"
	"github.com/open-edge-platform/function-packager/internal/utils/logger"
	"github.com/open-edge-platform/function-packager/internal/workspace"
)

// noiseDirSuffixes are workspace directory names that must never reach
// the archive: bytecode caches, installer metadata and test trees.
var noiseDirNames = []string{"__pycache__", "tests", "test"}

var noiseDirSuffixes = []string{".dist-info", ".egg-info"}

var noiseFileSuffixes = []string{".pyc", ".pyo"}

var noiseFileNames = []string{manifest.ExportFile, "Pipfile.lock"}

// Clean removes known build-time noise from the workspace so the
// archive step only sees deployable content. Running it twice on the
// same workspace is a no-op the second time.
func Clean(ws *workspace.Workspace) error {
	log := logger.Logger()
	var doomed []string

	err := filepath.WalkDir(ws.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == ws.Root {
			return nil
		}
		if d.IsDir() && isNoiseDir(d.Name()) {
			doomed = append(doomed, path)
			return filepath.SkipDir
		}
		if !d.IsDir() && isNoiseFile(d.Name()) {
			doomed = append(doomed, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan workspace %s: %w", ws.Root, err)
	}

	for _, path := range doomed {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to remove build noise %s: %w", path, err)
		}
		log.Debugf("removed build noise %s", path)
	}
	return nil
}

func isNoiseDir(name string) bool {
	for _, n := range noiseDirNames {
		if name == n {
			return true
		}
	}
	for _, suffix := range noiseDirSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

func isNoiseFile(name string) bool {
	for _, n := range noiseFileNames {
		if name == n {
			return true
		}
	}
	for _, suffix := range noiseFileSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// Archive zips the workspace root into outDir, entries relative to the
// workspace root so the handler sits at the archive's top level. Entry
// order is the sorted walk order and header timestamps are fixed, so two
// builds of an identical workspace produce identical entry listings.
func Archive(ws *workspace.Workspace, outDir, pkgName string) (*artifact.Artifact, error) {
	log := logger.Logger()

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir %s: %w", outDir, err)
	}
	outPath := filepath.Join(outDir, pkgName+".zip")

	f, err := os.Create(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive %s: %w", outPath, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	var entries []string
	err = filepath.WalkDir(ws.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(ws.Root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
		hdr.SetMode(0644)
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("failed to add archive entry %s: %w", name, err)
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		if _, err := io.Copy(w, in); err != nil {
			return fmt.Errorf("failed to write archive entry %s: %w", name, err)
		}

		entries = append(entries, name)
		return nil
	})
	if err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive %s: %w", outPath, err)
	}
	if err := f.Sync(); err != nil {
		return nil, fmt.Errorf("failed to flush archive %s: %w", outPath, err)
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive %s: %w", outPath, err)
	}

	log.Infof("built archive %s (%d entries, %d bytes)", outPath, len(entries), info.Size())
	return &artifact.Artifact{Path: outPath, SizeBytes: info.Size(), Entries: entries}, nil
}
