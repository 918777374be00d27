// Package validator runs the ordered battery of structural and
// import-resolution checks against a produced artifact.
package validator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/open-edge-platform/function-packager/internal/artifact"
	"github.com/open-edge-platform/function-packager/internal/manifest"
	"github.com/open-edge-platform/function-packager/internal/registry"
	"github.com/open-edge-platform/function-packager/internal/utils/logger"
	"github.com/open-edge-platform/function-packager/internal/utils/shell"
	"github.com/schollz/progressbar/v3"
)

const (
	// DefaultMaxSizeBytes is the deployment platform's archive ceiling.
	DefaultMaxSizeBytes = 50 * 1024 * 1024
	// DefaultMinSizeBytes is the sanity floor applied when the manifest
	// declares runtime dependencies. An archive below it almost always
	// means the empty-install failure mode slipped through.
	DefaultMinSizeBytes = 256 * 1024
)

// Options configures one validation run.
type Options struct {
	MaxSizeBytes     int64
	MinSizeBytes     int64
	SkipImportChecks bool
	PythonBin        string
	ScratchDir       string
}

func (o Options) withDefaults() Options {
	if o.MaxSizeBytes == 0 {
		o.MaxSizeBytes = DefaultMaxSizeBytes
	}
	if o.MinSizeBytes == 0 {
		o.MinSizeBytes = DefaultMinSizeBytes
	}
	if o.PythonBin == "" {
		o.PythonBin = "python3"
	}
	if o.ScratchDir == "" {
		o.ScratchDir = os.TempDir()
	}
	return o
}

// disallowedSegments are path segments that must never appear in a
// shipped archive.
var disallowedSegments = []string{"__pycache__", "tests", "test"}

var disallowedSuffixes = []string{".pyc", ".pyo", ".dist-info", ".egg-info"}

// Validator runs the check battery. It only inspects artifacts, never
// mutates them.
type Validator struct {
	opts       Options
	reg        *registry.Registry
	classifier *Classifier
}

// New builds a validator over the given registry.
func New(reg *registry.Registry, opts Options) *Validator {
	return &Validator{
		opts:       opts.withDefaults(),
		reg:        reg,
		classifier: NewClassifier(reg.RuntimeProvided()),
	}
}

// Validate runs every check in its fixed order and aggregates the
// results. The returned error reports environmental trouble only (for
// example an unusable scratch directory); artifact problems always land
// in the report instead.
func (v *Validator) Validate(art *artifact.Artifact, desc registry.Descriptor, deps *manifest.DependencySet) (*Report, error) {
	report := &Report{}

	v.structuralChecks(report, art, desc, deps)
	v.integrityCheck(report, art)

	if v.opts.SkipImportChecks {
		report.Add("import-checks", VerdictWarn, "import-resolution checks skipped by flag")
		return report, nil
	}
	if err := v.importChecks(report, art, desc); err != nil {
		return report, err
	}
	return report, nil
}

func (v *Validator) structuralChecks(report *Report, art *artifact.Artifact, desc registry.Descriptor, deps *manifest.DependencySet) {
	if len(art.Entries) == 0 {
		report.Add("archive-non-empty", VerdictFail, "archive %s contains no entries", art.Path)
	} else {
		report.Add("archive-non-empty", VerdictPass, "%d entries", len(art.Entries))
	}

	if art.HasTopLevel(desc.PublishedHandler) {
		report.Add("handler-top-level", VerdictPass, "%s present at archive root", desc.PublishedHandler)
	} else if art.ContainsName(strings.TrimSuffix(desc.PublishedHandler, ".py")) {
		report.Add("handler-top-level", VerdictFail,
			"%s exists only nested under a subdirectory, runtime requires it at archive root", desc.PublishedHandler)
	} else {
		report.Add("handler-top-level", VerdictFail, "%s missing from archive", desc.PublishedHandler)
	}

	if art.SizeBytes < v.opts.MaxSizeBytes {
		report.Add("size-below-maximum", VerdictPass, "%d bytes < %d limit", art.SizeBytes, v.opts.MaxSizeBytes)
	} else {
		report.Add("size-below-maximum", VerdictFail, "%d bytes exceeds %d limit", art.SizeBytes, v.opts.MaxSizeBytes)
	}

	if len(deps.Runtime()) > 0 {
		if art.SizeBytes > v.opts.MinSizeBytes {
			report.Add("size-above-minimum", VerdictPass, "%d bytes > %d floor", art.SizeBytes, v.opts.MinSizeBytes)
		} else {
			report.Add("size-above-minimum", VerdictFail,
				"%d bytes under the %d floor despite %d declared dependencies, install likely produced nothing",
				art.SizeBytes, v.opts.MinSizeBytes, len(deps.Runtime()))
		}
	}

	for _, lib := range desc.RequiredSharedLibs {
		entry := "lib/" + lib
		if art.HasEntry(entry) {
			report.Add("shared-lib:"+lib, VerdictPass, "%s present", entry)
		} else {
			report.Add("shared-lib:"+lib, VerdictFail, "%s missing from archive", entry)
		}
	}

	for _, dep := range deps.Runtime() {
		if art.ContainsName(dep.ImportName) {
			report.Add("dependency-bundled:"+dep.DeclaredName, VerdictPass, "import name %s present", dep.ImportName)
		} else {
			report.Add("dependency-bundled:"+dep.DeclaredName, VerdictFail,
				"declared dependency %s (import name %s) not found in archive", dep.DeclaredName, dep.ImportName)
		}
	}

	if offenders := disallowedEntries(art); len(offenders) > 0 {
		report.Add("disallowed-paths", VerdictFail, "build-time noise in archive: %s", strings.Join(offenders, ", "))
	} else {
		report.Add("disallowed-paths", VerdictPass, "no build-time noise present")
	}

	devNames := v.reg.DevOnly()
	for _, dep := range deps.Dev() {
		devNames = append(devNames, dep.ImportName)
	}
	var bundledDev []string
	for _, name := range devNames {
		if art.ContainsName(manifest.NormalizeImportName(name)) {
			bundledDev = append(bundledDev, name)
		}
	}
	if len(bundledDev) > 0 {
		report.Add("dev-dependencies-absent", VerdictFail,
			"development-only dependencies bundled: %s", strings.Join(bundledDev, ", "))
	} else {
		report.Add("dev-dependencies-absent", VerdictPass, "no development-only dependencies bundled")
	}

	if desc.NeedsRename() {
		if art.HasTopLevel(desc.SourceHandler) {
			report.Add("pre-rename-absent", VerdictFail,
				"pre-rename handler %s still present alongside %s", desc.SourceHandler, desc.PublishedHandler)
		} else {
			report.Add("pre-rename-absent", VerdictPass, "pre-rename handler %s absent", desc.SourceHandler)
		}
	}
}

func disallowedEntries(art *artifact.Artifact) []string {
	var offenders []string
	for _, entry := range art.Entries {
		if isDisallowed(entry) {
			offenders = append(offenders, entry)
			if len(offenders) == 5 {
				offenders = append(offenders, "...")
				break
			}
		}
	}
	return offenders
}

func isDisallowed(entry string) bool {
	for _, segment := range strings.Split(entry, "/") {
		for _, bad := range disallowedSegments {
			if segment == bad {
				return true
			}
		}
		for _, suffix := range disallowedSuffixes {
			if strings.HasSuffix(segment, suffix) {
				return true
			}
		}
	}
	return false
}

func (v *Validator) integrityCheck(report *Report, art *artifact.Artifact) {
	if err := art.VerifyIntegrity(); err != nil {
		report.Add("archive-integrity", VerdictFail, "%v", err)
	} else {
		report.Add("archive-integrity", VerdictPass, "archive decompresses cleanly")
	}
}

// importChecks extracts the archive to a namespaced scratch directory
// and attempts to import the handler module, every shared-library module
// and each key dependency with the extraction root on PYTHONPATH.
func (v *Validator) importChecks(report *Report, art *artifact.Artifact, desc registry.Descriptor) error {
	log := logger.Logger()

	scratch := filepath.Join(v.opts.ScratchDir, "function-packager-"+uuid.NewString())
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return fmt.Errorf("failed to create scratch dir %s: %w", scratch, err)
	}
	defer os.RemoveAll(scratch)

	if err := art.Extract(scratch); err != nil {
		report.Add("archive-extraction", VerdictFail, "%v", err)
		return nil
	}

	modules := []string{moduleName(desc.PublishedHandler)}
	for _, lib := range desc.RequiredSharedLibs {
		modules = append(modules, "lib."+moduleName(lib))
	}
	modules = append(modules, v.reg.KeyDependencies()...)

	bar := progressbar.NewOptions(len(modules),
		progressbar.OptionSetDescription("import checks"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
	)

	for _, module := range modules {
		bar.Describe(fmt.Sprintf("importing %s", module))
		v.importCheck(report, scratch, module)
		bar.Add(1)
	}
	bar.Finish()

	log.Debugf("import battery finished for %s", desc.Name)
	return nil
}

func (v *Validator) importCheck(report *Report, scratch, module string) {
	cmd := fmt.Sprintf("%s -c %s", v.opts.PythonBin, shell.Quote("import "+module))
	output, err := shell.ExecCmd(cmd, scratch, []string{"PYTHONPATH=" + scratch})
	if err == nil {
		report.Add("import:"+module, VerdictPass, "module imported cleanly")
		return
	}

	errText := output
	if strings.TrimSpace(errText) == "" {
		errText = err.Error()
	}

	verdict, rule := v.classifier.Classify(errText)
	report.Add("import:"+module, verdict, "%s: %s", rule, lastLine(errText))
}

// lastLine trims a Python traceback down to its final line, which
// carries the exception type and message.
func lastLine(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func moduleName(filename string) string {
	return strings.TrimSuffix(filename, ".py")
}
