package artifact

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

func writeZip(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "a.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
	return path
}

func TestReadListsEntries(t *testing.T) {
	path := writeZip(t, map[string]string{
		"pkg1.py":        "x = 1\n",
		"lib/schemas.py": "x = 1\n",
	})

	art, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(art.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %v", art.Entries)
	}
	if art.SizeBytes <= 0 {
		t.Errorf("size not captured: %d", art.SizeBytes)
	}
}

func TestTopLevelVersusNested(t *testing.T) {
	path := writeZip(t, map[string]string{
		"pkg1.py":         "x = 1\n",
		"nested/other.py": "x = 1\n",
	})
	art, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if !art.HasTopLevel("pkg1.py") {
		t.Error("pkg1.py is at top level")
	}
	if art.HasTopLevel("other.py") {
		t.Error("other.py is nested, not top level")
	}
	if !art.HasEntry("nested/other.py") {
		t.Error("exact nested entry should match")
	}
}

func TestContainsName(t *testing.T) {
	path := writeZip(t, map[string]string{
		"requests/__init__.py": "x = 1\n",
		"six.py":               "x = 1\n",
	})
	art, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if !art.ContainsName("requests") {
		t.Error("requests present as a package directory")
	}
	if !art.ContainsName("six") {
		t.Error("six present as a single-file module")
	}
	if art.ContainsName("flask") {
		t.Error("flask is not in the archive")
	}
}

func TestVerifyIntegrityDetectsCorruption(t *testing.T) {
	path := writeZip(t, map[string]string{"pkg1.py": "x = 1\n"})

	art, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := art.VerifyIntegrity(); err != nil {
		t.Fatalf("intact archive failed integrity: %v", err)
	}

	// Truncate the archive body; the central directory offset now lies.
	info, _ := os.Stat(path)
	if err := os.Truncate(path, info.Size()/2); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if err := art.VerifyIntegrity(); err == nil {
		t.Error("truncated archive should fail integrity")
	}
}

func TestExtract(t *testing.T) {
	path := writeZip(t, map[string]string{
		"pkg1.py":        "print('hi')\n",
		"lib/schemas.py": "SCHEMA = {}\n",
	})
	art, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	dest := t.TempDir()
	if err := art.Extract(dest); err != nil {
		t.Fatalf("extract: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(dest, "lib", "schemas.py"))
	if err != nil {
		t.Fatalf("extracted file missing: %v", err)
	}
	if string(content) != "SCHEMA = {}\n" {
		t.Errorf("extracted content mangled: %q", content)
	}
}

func TestExtractRefusesTraversal(t *testing.T) {
	path := writeZip(t, map[string]string{"../escape.py": "x = 1\n"})
	art, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := art.Extract(t.TempDir()); err == nil {
		t.Error("expected traversal entry to be rejected")
	}
}
