// Package registry holds the static package descriptor table. The
// descriptor is the single source of naming truth for the whole pipeline:
// every later stage consults it instead of re-deriving handler or library
// names, so the built artifact cannot drift from what the infrastructure
// configuration expects.
package registry

import (
	"fmt"
	"os"
	"sort"

	"github.com/open-edge-platform/function-packager/internal/config/validate"
	sigsyaml "sigs.k8s.io/yaml"
)

// Descriptor describes one deployable package by name.
type Descriptor struct {
	// Name is the package name the pipeline is invoked with.
	Name string `json:"name"`
	// PublishedHandler is the filename the deployment runtime expects at
	// the top of the archive.
	PublishedHandler string `json:"publishedHandler"`
	// SourceHandler is the filename as it exists in the upstream source
	// tree. When it differs from PublishedHandler the assembler renames.
	SourceHandler string `json:"sourceHandler"`
	// RequiredSharedLibs are the shared-library filenames that must be
	// bundled under lib/ for this package.
	RequiredSharedLibs []string `json:"requiredSharedLibs,omitempty"`
}

// NeedsRename reports whether the assembler must rename the handler file.
func (d Descriptor) NeedsRename() bool {
	return d.SourceHandler != "" && d.SourceHandler != d.PublishedHandler
}

// NotFoundError is returned when a package name has no descriptor.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("package %q is not in the package registry", e.Name)
}

// Registry is an immutable name to descriptor lookup table built once at
// startup. No component may mutate it after construction.
type Registry struct {
	packages        map[string]Descriptor
	runtimeProvided []string
	keyDependencies []string
	devOnly         []string
}

// registryFile is the on-disk YAML form of a registry override.
type registryFile struct {
	Packages        []Descriptor `json:"packages"`
	RuntimeProvided []string     `json:"runtimeProvided,omitempty"`
	KeyDependencies []string     `json:"keyDependencies,omitempty"`
	DevOnly         []string     `json:"devOnlyDependencies,omitempty"`
}

// Default returns the compiled-in registry.
func Default() *Registry {
	reg, err := build(defaultRegistry)
	if err != nil {
		// The compiled-in table is validated by unit tests; a failure here
		// is a programming error.
		panic(err)
	}
	return reg
}

// Load reads a YAML registry file, validates it against the embedded
// schema and builds an immutable registry from it. Allowlists absent from
// the file keep their compiled-in defaults.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file %s: %w", path, err)
	}

	jsonData, err := sigsyaml.YAMLToJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("registry file %s is not valid YAML: %w", path, err)
	}

	if err := validate.AgainstSchema("registry.schema.json", registrySchema, jsonData); err != nil {
		return nil, fmt.Errorf("registry file %s failed schema validation: %w", path, err)
	}

	var file registryFile
	if err := sigsyaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse registry file %s: %w", path, err)
	}

	if len(file.RuntimeProvided) == 0 {
		file.RuntimeProvided = defaultRegistry.RuntimeProvided
	}
	if len(file.KeyDependencies) == 0 {
		file.KeyDependencies = defaultRegistry.KeyDependencies
	}
	if len(file.DevOnly) == 0 {
		file.DevOnly = defaultRegistry.DevOnly
	}

	return build(file)
}

func build(file registryFile) (*Registry, error) {
	packages := make(map[string]Descriptor, len(file.Packages))
	for _, desc := range file.Packages {
		if desc.Name == "" {
			return nil, fmt.Errorf("registry entry with empty package name")
		}
		if desc.PublishedHandler == "" {
			return nil, fmt.Errorf("registry entry %q has no published handler", desc.Name)
		}
		if desc.SourceHandler == "" {
			desc.SourceHandler = desc.PublishedHandler
		}
		if _, dup := packages[desc.Name]; dup {
			return nil, fmt.Errorf("registry entry %q declared twice", desc.Name)
		}
		packages[desc.Name] = desc
	}

	return &Registry{
		packages:        packages,
		runtimeProvided: append([]string(nil), file.RuntimeProvided...),
		keyDependencies: append([]string(nil), file.KeyDependencies...),
		devOnly:         append([]string(nil), file.DevOnly...),
	}, nil
}

// Resolve looks up the descriptor for a package name.
func (r *Registry) Resolve(name string) (Descriptor, error) {
	desc, ok := r.packages[name]
	if !ok {
		return Descriptor{}, &NotFoundError{Name: name}
	}
	return desc, nil
}

// Names returns every registered package name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.packages))
	for name := range r.packages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RuntimeProvided returns the module names the deployment platform
// guarantees at runtime. These are deliberately never bundled.
func (r *Registry) RuntimeProvided() []string {
	return append([]string(nil), r.runtimeProvided...)
}

// KeyDependencies returns the modules that must be independently
// importable from the archive regardless of the handler's import graph.
func (r *Registry) KeyDependencies() []string {
	return append([]string(nil), r.keyDependencies...)
}

// DevOnly returns dependency names that must never appear in an archive.
func (r *Registry) DevOnly() []string {
	return append([]string(nil), r.devOnly...)
}
