// Package consistency audits declared infrastructure configuration
// against the artifacts the pipeline actually built. It shares the
// package registry and the archive format with the build pipeline but
// runs independently, after the fact, over the same filesystem.
package consistency

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/open-edge-platform/function-packager/internal/artifact"
	"github.com/open-edge-platform/function-packager/internal/manifest"
	"github.com/open-edge-platform/function-packager/internal/registry"
	"github.com/open-edge-platform/function-packager/internal/utils/logger"
	"github.com/open-edge-platform/function-packager/internal/validator"
	"gopkg.in/yaml.v3"
)

// FunctionConfig is one function declaration in the infrastructure
// configuration file.
type FunctionConfig struct {
	Name string `yaml:"name"`
	// Handler is the runtime entry point in module.function form.
	Handler string `yaml:"handler"`
	// Artifact optionally overrides the archive path; defaults to
	// <artifactDir>/<name>.zip.
	Artifact string `yaml:"artifact,omitempty"`
}

// Config is the infrastructure configuration the checker audits.
type Config struct {
	// Runtime is the declared language runtime, e.g. "python3.12".
	Runtime string `yaml:"runtime"`
	// SourceVersion is the pinned upstream source tree version.
	SourceVersion string           `yaml:"sourceVersion,omitempty"`
	Functions     []FunctionConfig `yaml:"functions"`
}

// LoadConfig reads the infrastructure configuration file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// Checker cross-references registry, config, artifacts and version pins.
type Checker struct {
	Registry    *registry.Registry
	Config      *Config
	SourceDir   string
	ArtifactDir string
}

// Check runs every assertion for the named packages (all configured
// functions when names is empty) and aggregates the per-assertion
// verdicts exactly like the validation engine.
func (c *Checker) Check(names []string) *validator.Report {
	report := &validator.Report{}

	functions := c.Config.Functions
	if len(names) > 0 {
		functions = nil
		for _, name := range names {
			fn, ok := c.findFunction(name)
			if !ok {
				report.Add("config-declared:"+name, validator.VerdictFail,
					"package %s has no function declaration in the infrastructure config", name)
				continue
			}
			functions = append(functions, fn)
		}
	}

	for _, fn := range functions {
		c.checkFunction(report, fn)
	}
	c.checkRuntimePins(report)
	c.checkSourceVersionPins(report)

	return report
}

func (c *Checker) findFunction(name string) (FunctionConfig, bool) {
	for _, fn := range c.Config.Functions {
		if fn.Name == name {
			return fn, true
		}
	}
	return FunctionConfig{}, false
}

// checkFunction asserts the declared entry point and the built archive
// agree with the registry descriptor.
func (c *Checker) checkFunction(report *validator.Report, fn FunctionConfig) {
	log := logger.Logger()

	desc, err := c.Registry.Resolve(fn.Name)
	if err != nil {
		report.Add("registry-entry:"+fn.Name, validator.VerdictFail, "%v", err)
		return
	}

	declaredModule := fn.Handler
	if idx := strings.IndexByte(declaredModule, '.'); idx >= 0 {
		declaredModule = declaredModule[:idx]
	}
	wantModule := strings.TrimSuffix(desc.PublishedHandler, ".py")
	if declaredModule == wantModule {
		report.Add("handler-declared:"+fn.Name, validator.VerdictPass,
			"config handler %s matches registry handler %s", fn.Handler, desc.PublishedHandler)
	} else {
		report.Add("handler-declared:"+fn.Name, validator.VerdictFail,
			"config declares handler module %s but registry publishes %s", declaredModule, desc.PublishedHandler)
	}

	artPath := fn.Artifact
	if artPath == "" {
		artPath = filepath.Join(c.ArtifactDir, fn.Name+".zip")
	}
	art, err := artifact.Read(artPath)
	if err != nil {
		report.Add("artifact-readable:"+fn.Name, validator.VerdictFail, "%v", err)
		return
	}
	log.Debugf("audit %s: %d entries in %s", fn.Name, len(art.Entries), artPath)

	if art.HasTopLevel(desc.PublishedHandler) {
		report.Add("handler-built:"+fn.Name, validator.VerdictPass,
			"%s present at archive top level", desc.PublishedHandler)
	} else {
		report.Add("handler-built:"+fn.Name, validator.VerdictFail,
			"built archive %s lacks top-level %s", artPath, desc.PublishedHandler)
	}
}

// normalizeRuntime strips a leading language prefix so "python3.12",
// "3.12" and Pipfile python_version all compare equal.
func normalizeRuntime(v string) string {
	v = strings.TrimSpace(strings.ToLower(v))
	return strings.TrimPrefix(v, "python")
}

// checkRuntimePins asserts every file pinning the runtime version agrees
// with the infrastructure configuration.
func (c *Checker) checkRuntimePins(report *validator.Report) {
	declared := normalizeRuntime(c.Config.Runtime)
	if declared == "" {
		report.Add("runtime-pins", validator.VerdictFail, "infrastructure config declares no runtime")
		return
	}

	// .python-version pins the interpreter for the whole source tree.
	pinFile := filepath.Join(c.SourceDir, ".python-version")
	if raw, err := os.ReadFile(pinFile); err == nil {
		pinned := normalizeRuntime(strings.TrimSpace(string(raw)))
		if pinned == declared {
			report.Add("runtime-pin:.python-version", validator.VerdictPass,
				"pins %s, matching config runtime", pinned)
		} else {
			report.Add("runtime-pin:.python-version", validator.VerdictFail,
				"pins %s but config declares %s", pinned, declared)
		}
	} else {
		report.Add("runtime-pin:.python-version", validator.VerdictWarn, "no .python-version pin file")
	}

	// Every package Pipfile that pins python_version must agree too.
	for _, fn := range c.Config.Functions {
		pipfile := filepath.Join(c.SourceDir, "source", fn.Name, manifest.PipfileName)
		if _, err := os.Stat(pipfile); err != nil {
			continue
		}
		deps, err := manifest.ParsePipfile(pipfile)
		if err != nil {
			report.Add("runtime-pin:"+fn.Name, validator.VerdictFail, "unreadable Pipfile: %v", err)
			continue
		}
		if deps.PythonVersion() == "" {
			continue
		}
		pinned := normalizeRuntime(deps.PythonVersion())
		if pinned == declared {
			report.Add("runtime-pin:"+fn.Name, validator.VerdictPass,
				"Pipfile pins %s, matching config runtime", pinned)
		} else {
			report.Add("runtime-pin:"+fn.Name, validator.VerdictFail,
				"Pipfile pins %s but config declares %s", pinned, declared)
		}
	}
}

// checkSourceVersionPins asserts the upstream source version is pinned
// consistently wherever it appears.
func (c *Checker) checkSourceVersionPins(report *validator.Report) {
	declared := strings.TrimSpace(c.Config.SourceVersion)
	if declared == "" {
		report.Add("source-version-pins", validator.VerdictWarn,
			"infrastructure config pins no upstream source version")
		return
	}

	pinFile := filepath.Join(c.SourceDir, "source", "VERSION")
	raw, err := os.ReadFile(pinFile)
	if err != nil {
		report.Add("source-version-pin:VERSION", validator.VerdictWarn,
			"no VERSION pin file in source tree")
		return
	}
	pinned := strings.TrimSpace(string(raw))
	if pinned == declared {
		report.Add("source-version-pin:VERSION", validator.VerdictPass,
			"source tree pins %s, matching config", pinned)
	} else {
		report.Add("source-version-pin:VERSION", validator.VerdictFail,
			"source tree pins %s but config declares %s", pinned, declared)
	}
}
