package builder

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/open-edge-platform/function-packager/internal/workspace"
)

func newWorkspace(t *testing.T) *workspace.Workspace {
	t.Helper()
	ws, err := workspace.Create(t.TempDir(), "pkg1")
	if err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	return ws
}

func populate(t *testing.T, ws *workspace.Workspace, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(ws.Root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestCleanRemovesBuildNoise(t *testing.T) {
	ws := newWorkspace(t)
	populate(t, ws, map[string]string{
		"pkg1.py":                            "x = 1\n",
		"lib/schemas.py":                     "x = 1\n",
		"requests/__init__.py":               "x = 1\n",
		"requests/__pycache__/api.pyc":       "junk",
		"requests-2.31.0.dist-info/METADATA": "junk",
		"pytest.egg-info/PKG-INFO":           "junk",
		"requests/tests/test_api.py":         "junk",
		"leftover.pyc":                       "junk",
		"requirements-export.txt":            "requests==2.31.0\n",
		"Pipfile.lock":                       "{}",
	})

	if err := Clean(ws); err != nil {
		t.Fatalf("clean: %v", err)
	}

	gone := []string{
		"requests/__pycache__",
		"requests-2.31.0.dist-info",
		"pytest.egg-info",
		"requests/tests",
		"leftover.pyc",
		"requirements-export.txt",
		"Pipfile.lock",
	}
	for _, name := range gone {
		if _, err := os.Stat(filepath.Join(ws.Root, filepath.FromSlash(name))); !os.IsNotExist(err) {
			t.Errorf("%s should have been removed", name)
		}
	}

	kept := []string{"pkg1.py", "lib/schemas.py", "requests/__init__.py"}
	for _, name := range kept {
		if _, err := os.Stat(filepath.Join(ws.Root, filepath.FromSlash(name))); err != nil {
			t.Errorf("%s should have survived: %v", name, err)
		}
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	ws := newWorkspace(t)
	populate(t, ws, map[string]string{
		"pkg1.py":      "x = 1\n",
		"leftover.pyc": "junk",
	})

	if err := Clean(ws); err != nil {
		t.Fatalf("first clean: %v", err)
	}
	if err := Clean(ws); err != nil {
		t.Fatalf("second clean: %v", err)
	}
}

func TestArchiveEntriesRelativeToWorkspaceRoot(t *testing.T) {
	ws := newWorkspace(t)
	populate(t, ws, map[string]string{
		"pkg1.py":        "x = 1\n",
		"lib/schemas.py": "x = 1\n",
	})

	art, err := Archive(ws, t.TempDir(), "pkg1")
	if err != nil {
		t.Fatalf("archive: %v", err)
	}

	if !art.HasTopLevel("pkg1.py") {
		t.Errorf("handler not at archive top level: %v", art.Entries)
	}
	if !art.HasEntry("lib/schemas.py") {
		t.Errorf("lib entry missing: %v", art.Entries)
	}
	if art.SizeBytes <= 0 {
		t.Errorf("size not recorded: %d", art.SizeBytes)
	}
	if filepath.Base(art.Path) != "pkg1.zip" {
		t.Errorf("archive name not deterministic: %s", art.Path)
	}
}

func TestArchiveIsIdempotent(t *testing.T) {
	ws := newWorkspace(t)
	populate(t, ws, map[string]string{
		"pkg1.py":              "x = 1\n",
		"lib/schemas.py":       "x = 1\n",
		"requests/__init__.py": "x = 1\n",
	})

	first, err := Archive(ws, t.TempDir(), "pkg1")
	if err != nil {
		t.Fatalf("first archive: %v", err)
	}
	second, err := Archive(ws, t.TempDir(), "pkg1")
	if err != nil {
		t.Fatalf("second archive: %v", err)
	}

	if !reflect.DeepEqual(first.Entries, second.Entries) {
		t.Errorf("entry listings differ:\n%v\n%v", first.Entries, second.Entries)
	}
}

func TestArchiveIntegrity(t *testing.T) {
	ws := newWorkspace(t)
	populate(t, ws, map[string]string{"pkg1.py": "x = 1\n"})

	art, err := Archive(ws, t.TempDir(), "pkg1")
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if err := art.VerifyIntegrity(); err != nil {
		t.Errorf("fresh archive failed integrity: %v", err)
	}
}
