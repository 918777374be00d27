// Package pipeline composes registry lookup, dependency resolution,
// assembly, artifact building and validation into one linear run per
// package.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/open-edge-platform/function-packager/internal/artifact"
	"github.com/open-edge-platform/function-packager/internal/assembler"
	"github.com/open-edge-platform/function-packager/internal/builder"
	"github.com/open-edge-platform/function-packager/internal/manifest"
	"github.com/open-edge-platform/function-packager/internal/registry"
	"github.com/open-edge-platform/function-packager/internal/resolver"
	"github.com/open-edge-platform/function-packager/internal/utils/logger"
	"github.com/open-edge-platform/function-packager/internal/validator"
	"github.com/open-edge-platform/function-packager/internal/workspace"
)

// InputError reports invalid invocation input. It is always raised
// before any workspace mutation.
type InputError struct {
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid input: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

func (e *InputError) Unwrap() error { return e.Err }

// Stage is one pipeline state. Each transition is guarded by the
// previous stage's success; the first fatal error moves to StageFailed.
type Stage int

const (
	StageInit Stage = iota
	StageResolve
	StageAssemble
	StageBuild
	StageValidate
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageInit:
		return "init"
	case StageResolve:
		return "resolve"
	case StageAssemble:
		return "assemble"
	case StageBuild:
		return "build"
	case StageValidate:
		return "validate"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Options configures one pipeline run.
type Options struct {
	PackageName  string
	SourceDir    string
	OutputDir    string
	WorkspaceDir string
	Registry     *registry.Registry
	Resolver     *resolver.Resolver
	Validation   validator.Options
}

// Result is what a completed run hands back to the caller. Report is
// present whenever validation ran; the caller derives its exit status
// from it alone.
type Result struct {
	Artifact *artifact.Artifact
	Report   *validator.Report
}

// Pipeline is one single-use run for one package. Two packages may run
// concurrently as long as their workspace paths differ; nothing here
// shares state beyond the filesystem workspace.
type Pipeline struct {
	opts  Options
	stage Stage

	desc registry.Descriptor
	ws   *workspace.Workspace
	deps *manifest.DependencySet
	art  *artifact.Artifact

	validationReport *validator.Report
}

// New validates the invocation input and prepares a run. Unknown
// package names and missing source directories fail here, before any
// workspace mutation.
func New(opts Options) (*Pipeline, error) {
	if opts.Registry == nil {
		opts.Registry = registry.Default()
	}
	if opts.Resolver == nil {
		opts.Resolver = resolver.New()
	}
	if opts.WorkspaceDir == "" {
		opts.WorkspaceDir = filepath.Join(os.TempDir(), "function-packager-build")
	}

	desc, err := opts.Registry.Resolve(opts.PackageName)
	if err != nil {
		return nil, &InputError{Reason: "unknown package name", Err: err}
	}

	pkgSrc := filepath.Join(opts.SourceDir, "source", opts.PackageName)
	if _, err := os.Stat(pkgSrc); err != nil {
		return nil, &InputError{Reason: fmt.Sprintf("handler source dir %s is not readable", pkgSrc), Err: err}
	}
	libSrc := filepath.Join(opts.SourceDir, "source", "lib")
	if _, err := os.Stat(libSrc); err != nil {
		return nil, &InputError{Reason: fmt.Sprintf("shared library dir %s is not readable", libSrc), Err: err}
	}

	return &Pipeline{opts: opts, stage: StageInit, desc: desc}, nil
}

// Run drives the state machine to completion. It aborts at the first
// fatal error; recovery is always a fresh re-invocation, which recreates
// the workspace from scratch.
func (p *Pipeline) Run() (*Result, error) {
	log := logger.Logger()

	for p.stage != StageDone && p.stage != StageFailed {
		next, err := p.step()
		if err != nil {
			log.Errorf("pipeline for %s failed in stage %s: %v", p.opts.PackageName, p.stage, err)
			p.stage = StageFailed
			return nil, err
		}
		log.Debugf("pipeline %s: %s -> %s", p.opts.PackageName, p.stage, next)
		p.stage = next
	}

	return &Result{Artifact: p.art, Report: p.validationReport}, nil
}

func (p *Pipeline) step() (Stage, error) {
	switch p.stage {
	case StageInit:
		ws, err := workspace.Create(p.opts.WorkspaceDir, p.opts.PackageName)
		if err != nil {
			return StageFailed, err
		}
		p.ws = ws
		return StageResolve, nil

	case StageResolve:
		deps, err := p.opts.Resolver.Materialize(p.ws, p.pkgSourceDir())
		if err != nil {
			return StageFailed, err
		}
		p.deps = deps
		return StageAssemble, nil

	case StageAssemble:
		err := assembler.Assemble(p.ws, p.desc, p.pkgSourceDir(), p.libSourceDir())
		if err != nil {
			return StageFailed, err
		}
		return StageBuild, nil

	case StageBuild:
		if err := builder.Clean(p.ws); err != nil {
			return StageFailed, err
		}
		art, err := builder.Archive(p.ws, p.opts.OutputDir, p.opts.PackageName)
		if err != nil {
			return StageFailed, err
		}
		p.art = art
		return StageValidate, nil

	case StageValidate:
		v := validator.New(p.opts.Registry, p.opts.Validation)
		report, err := v.Validate(p.art, p.desc, p.deps)
		if err != nil {
			return StageFailed, err
		}
		p.validationReport = report
		return StageDone, nil

	default:
		return StageFailed, fmt.Errorf("pipeline in unexpected stage %s", p.stage)
	}
}

func (p *Pipeline) pkgSourceDir() string {
	return filepath.Join(p.opts.SourceDir, "source", p.opts.PackageName)
}

func (p *Pipeline) libSourceDir() string {
	return filepath.Join(p.opts.SourceDir, "source", "lib")
}
