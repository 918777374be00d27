package consistency

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/open-edge-platform/function-packager/internal/registry"
	"github.com/open-edge-platform/function-packager/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRegistryYAML = `packages:
  - name: ingest
    publishedHandler: ingest.py
    sourceHandler: ingest_handler.py
    requiredSharedLibs:
      - schemas.py
  - name: notify
    publishedHandler: notify.py
`

func loadTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testRegistryYAML), 0644))
	reg, err := registry.Load(path)
	require.NoError(t, err)
	return reg
}

func writeArchive(t *testing.T, dir, name string, entries ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	f, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, entry := range entries {
		w, err := zw.Create(entry)
		require.NoError(t, err)
		_, err = w.Write([]byte("x = 1\n"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func resultFor(t *testing.T, report *validator.Report, id string) validator.CheckResult {
	t.Helper()
	for _, res := range report.Results {
		if res.ID == id {
			return res
		}
	}
	t.Fatalf("report has no check %s:\n%s", id, report.String())
	return validator.CheckResult{}
}

func TestCheckEverythingAgrees(t *testing.T) {
	srcDir := t.TempDir()
	artifactDir := filepath.Join(srcDir, "dist")

	writeTree(t, srcDir, map[string]string{
		".python-version": "3.12\n",
		"source/VERSION":  "2.14.0\n",
		"source/ingest/Pipfile": `[packages]
requests = "*"

[requires]
python_version = "3.12"
`,
	})
	writeArchive(t, artifactDir, "ingest.zip", "ingest.py", "lib/schemas.py")

	checker := &Checker{
		Registry: loadTestRegistry(t),
		Config: &Config{
			Runtime:       "python3.12",
			SourceVersion: "2.14.0",
			Functions: []FunctionConfig{
				{Name: "ingest", Handler: "ingest.handler"},
			},
		},
		SourceDir:   srcDir,
		ArtifactDir: artifactDir,
	}

	report := checker.Check(nil)
	assert.False(t, report.Failed(), report.String())

	passed, failed, warned := report.Counts()
	assert.Equal(t, 0, failed)
	assert.Equal(t, 0, warned)
	assert.Greater(t, passed, 0)
}

func TestCheckHandlerDeclarationMismatch(t *testing.T) {
	srcDir := t.TempDir()
	artifactDir := filepath.Join(srcDir, "dist")
	writeArchive(t, artifactDir, "ingest.zip", "ingest.py")

	checker := &Checker{
		Registry: loadTestRegistry(t),
		Config: &Config{
			Runtime: "python3.12",
			Functions: []FunctionConfig{
				// Config still references the upstream filename.
				{Name: "ingest", Handler: "ingest_handler.handler"},
			},
		},
		SourceDir:   srcDir,
		ArtifactDir: artifactDir,
	}

	report := checker.Check(nil)
	res := resultFor(t, report, "handler-declared:ingest")
	assert.Equal(t, validator.VerdictFail, res.Verdict)
	assert.True(t, report.Failed())
}

func TestCheckBuiltArtifactMissingHandler(t *testing.T) {
	srcDir := t.TempDir()
	artifactDir := filepath.Join(srcDir, "dist")
	// Handler nested instead of top level.
	writeArchive(t, artifactDir, "ingest.zip", "nested/ingest.py")

	checker := &Checker{
		Registry: loadTestRegistry(t),
		Config: &Config{
			Runtime:   "python3.12",
			Functions: []FunctionConfig{{Name: "ingest", Handler: "ingest.handler"}},
		},
		SourceDir:   srcDir,
		ArtifactDir: artifactDir,
	}

	report := checker.Check(nil)
	res := resultFor(t, report, "handler-built:ingest")
	assert.Equal(t, validator.VerdictFail, res.Verdict)
}

func TestCheckUnreadableArtifact(t *testing.T) {
	srcDir := t.TempDir()

	checker := &Checker{
		Registry: loadTestRegistry(t),
		Config: &Config{
			Runtime:   "python3.12",
			Functions: []FunctionConfig{{Name: "ingest", Handler: "ingest.handler"}},
		},
		SourceDir:   srcDir,
		ArtifactDir: filepath.Join(srcDir, "dist"),
	}

	report := checker.Check(nil)
	res := resultFor(t, report, "artifact-readable:ingest")
	assert.Equal(t, validator.VerdictFail, res.Verdict)
}

func TestCheckRuntimePinMismatch(t *testing.T) {
	srcDir := t.TempDir()
	artifactDir := filepath.Join(srcDir, "dist")
	writeTree(t, srcDir, map[string]string{".python-version": "3.11\n"})
	writeArchive(t, artifactDir, "notify.zip", "notify.py")

	checker := &Checker{
		Registry: loadTestRegistry(t),
		Config: &Config{
			Runtime:   "python3.12",
			Functions: []FunctionConfig{{Name: "notify", Handler: "notify.handler"}},
		},
		SourceDir:   srcDir,
		ArtifactDir: artifactDir,
	}

	report := checker.Check(nil)
	res := resultFor(t, report, "runtime-pin:.python-version")
	assert.Equal(t, validator.VerdictFail, res.Verdict)
}

func TestCheckMissingPinFilesWarn(t *testing.T) {
	srcDir := t.TempDir()
	artifactDir := filepath.Join(srcDir, "dist")
	writeArchive(t, artifactDir, "notify.zip", "notify.py")

	checker := &Checker{
		Registry: loadTestRegistry(t),
		Config: &Config{
			Runtime:   "python3.12",
			Functions: []FunctionConfig{{Name: "notify", Handler: "notify.handler"}},
		},
		SourceDir:   srcDir,
		ArtifactDir: artifactDir,
	}

	report := checker.Check(nil)
	assert.False(t, report.Failed(), report.String())

	res := resultFor(t, report, "runtime-pin:.python-version")
	assert.Equal(t, validator.VerdictWarn, res.Verdict)
	res = resultFor(t, report, "source-version-pins")
	assert.Equal(t, validator.VerdictWarn, res.Verdict)
}

func TestCheckSourceVersionMismatch(t *testing.T) {
	srcDir := t.TempDir()
	artifactDir := filepath.Join(srcDir, "dist")
	writeTree(t, srcDir, map[string]string{"source/VERSION": "2.15.0\n"})
	writeArchive(t, artifactDir, "notify.zip", "notify.py")

	checker := &Checker{
		Registry: loadTestRegistry(t),
		Config: &Config{
			Runtime:       "python3.12",
			SourceVersion: "2.14.0",
			Functions:     []FunctionConfig{{Name: "notify", Handler: "notify.handler"}},
		},
		SourceDir:   srcDir,
		ArtifactDir: artifactDir,
	}

	report := checker.Check(nil)
	res := resultFor(t, report, "source-version-pin:VERSION")
	assert.Equal(t, validator.VerdictFail, res.Verdict)
}

func TestCheckUnknownPackageSelection(t *testing.T) {
	srcDir := t.TempDir()

	checker := &Checker{
		Registry:    loadTestRegistry(t),
		Config:      &Config{Runtime: "python3.12"},
		SourceDir:   srcDir,
		ArtifactDir: srcDir,
	}

	report := checker.Check([]string{"mystery"})
	res := resultFor(t, report, "config-declared:mystery")
	assert.Equal(t, validator.VerdictFail, res.Verdict)
}
