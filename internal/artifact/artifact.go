// Package artifact models the produced archive as seen by the
// validation engine and the consistency checker. Artifacts are immutable
// once produced; everything here only inspects.
package artifact

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Artifact is one produced archive.
type Artifact struct {
	Path      string
	SizeBytes int64
	// Entries is the flat list of paths inside the archive, slash
	// separated, relative to the archive root.
	Entries []string
}

// Read reopens an existing archive and rebuilds its entry listing.
func Read(path string) (*Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive %s: %w", path, err)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	defer zr.Close()

	entries := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		entries = append(entries, f.Name)
	}

	return &Artifact{Path: path, SizeBytes: info.Size(), Entries: entries}, nil
}

// HasEntry reports whether the exact entry path exists in the archive.
func (a *Artifact) HasEntry(name string) bool {
	for _, entry := range a.Entries {
		if entry == name {
			return true
		}
	}
	return false
}

// HasTopLevel reports whether name exists at the archive root, not
// nested under any subdirectory.
func (a *Artifact) HasTopLevel(name string) bool {
	for _, entry := range a.Entries {
		if entry == name && !strings.Contains(entry, "/") {
			return true
		}
	}
	return false
}

// ContainsName reports whether any entry path contains name as a path
// segment or filename, used to find a normalized import name anywhere in
// the listing.
func (a *Artifact) ContainsName(name string) bool {
	for _, entry := range a.Entries {
		for _, segment := range strings.Split(entry, "/") {
			if segment == name || strings.TrimSuffix(segment, ".py") == name {
				return true
			}
		}
	}
	return false
}

// VerifyIntegrity decompresses every entry to prove the archive is
// readable end to end.
func (a *Artifact) VerifyIntegrity() error {
	zr, err := zip.OpenReader(a.Path)
	if err != nil {
		return fmt.Errorf("archive %s is not readable: %w", a.Path, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("archive entry %s is not readable: %w", f.Name, err)
		}
		if _, err := io.Copy(io.Discard, rc); err != nil {
			rc.Close()
			return fmt.Errorf("archive entry %s is corrupt: %w", f.Name, err)
		}
		rc.Close()
	}
	return nil
}

// Extract unpacks the archive into destDir, preserving relative paths.
func (a *Artifact) Extract(destDir string) error {
	zr, err := zip.OpenReader(a.Path)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", a.Path, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if err := extractEntry(f, destDir); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(f *zip.File, destDir string) error {
	// Entry names come from an archive we just built, but refuse
	// traversal anyway.
	dest := filepath.Join(destDir, filepath.FromSlash(f.Name))
	if !strings.HasPrefix(dest, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return fmt.Errorf("archive entry %s escapes extraction root", f.Name)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(dest, 0755)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return nil
}
