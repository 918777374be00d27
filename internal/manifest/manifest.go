// Package manifest reads the upstream dependency declaration of a
// function package: either a flat pinned requirements.txt or a
// declarative Pipfile that still needs lock/export resolution.
package manifest

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	// RequirementsFile is the flat pinned-dependency list form.
	RequirementsFile = "requirements.txt"
	// PipfileName is the declarative form requiring export resolution.
	PipfileName = "Pipfile"
	// ExportFile is the name the resolver exports a Pipfile lock to.
	ExportFile = "requirements-export.txt"
)

// Form identifies which manifest variant a source directory carries.
type Form int

const (
	FormNone Form = iota
	FormFlat
	FormDeclarative
)

// Dependency is one declared upstream dependency.
type Dependency struct {
	// DeclaredName is the name exactly as written in the manifest.
	DeclaredName string
	// ImportName is the normalized module name expected inside the
	// archive entry listing.
	ImportName string
	// SourceConstraint is the version specifier or marker text, kept
	// verbatim for diagnostics.
	SourceConstraint string
}

// DependencySet is the ordered dependency list derived from a manifest.
type DependencySet struct {
	form          Form
	runtime       []Dependency
	dev           []Dependency
	pythonVersion string
}

// Form returns the manifest variant the set was derived from.
func (s *DependencySet) Form() Form { return s.form }

// Runtime returns the non-development dependencies in declaration order.
func (s *DependencySet) Runtime() []Dependency {
	return append([]Dependency(nil), s.runtime...)
}

// Dev returns the development-only dependencies in declaration order.
func (s *DependencySet) Dev() []Dependency {
	return append([]Dependency(nil), s.dev...)
}

// PythonVersion returns the declared interpreter constraint, empty when
// the manifest does not pin one.
func (s *DependencySet) PythonVersion() string { return s.pythonVersion }

// NormalizeImportName derives the module name pip materializes for a
// declared distribution name: extras stripped, case folded, hyphens and
// dots folded to underscores.
func NormalizeImportName(declared string) string {
	name := declared
	if idx := strings.IndexByte(name, '['); idx >= 0 {
		name = name[:idx]
	}
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, ".", "_")
	return name
}

// Detect reports which manifest form srcDir carries. A flat list wins
// when both are present, matching the resolver's install preference.
func Detect(srcDir string) Form {
	if _, err := os.Stat(filepath.Join(srcDir, RequirementsFile)); err == nil {
		return FormFlat
	}
	if _, err := os.Stat(filepath.Join(srcDir, PipfileName)); err == nil {
		return FormDeclarative
	}
	return FormNone
}

// Load parses the manifest found in srcDir into a DependencySet.
func Load(srcDir string) (*DependencySet, error) {
	switch Detect(srcDir) {
	case FormFlat:
		deps, err := ParseRequirements(filepath.Join(srcDir, RequirementsFile))
		if err != nil {
			return nil, err
		}
		return &DependencySet{form: FormFlat, runtime: deps}, nil
	case FormDeclarative:
		return ParsePipfile(filepath.Join(srcDir, PipfileName))
	default:
		return &DependencySet{form: FormNone}, nil
	}
}

// ParseRequirements reads a flat pinned list. Comments, blank lines and
// pip option lines are skipped.
func ParseRequirements(path string) ([]Dependency, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var deps []Dependency
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		name, constraint := splitRequirement(line)
		if name == "" {
			continue
		}
		deps = append(deps, Dependency{
			DeclaredName:     name,
			ImportName:       NormalizeImportName(name),
			SourceConstraint: constraint,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return deps, nil
}

// splitRequirement separates a requirement line into the distribution
// name and everything after it (specifiers, markers, hashes).
func splitRequirement(line string) (string, string) {
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}
	cut := len(line)
	for i, r := range line {
		if strings.ContainsRune("=<>!~; @", r) {
			cut = i
			break
		}
	}
	name := strings.TrimSpace(line[:cut])
	if idx := strings.IndexByte(name, '['); idx >= 0 {
		name = name[:idx]
	}
	return name, strings.TrimSpace(line[cut:])
}

// pipfileDoc mirrors the TOML sections the resolver cares about.
type pipfileDoc struct {
	Packages    map[string]interface{} `toml:"packages"`
	DevPackages map[string]interface{} `toml:"dev-packages"`
	Requires    struct {
		PythonVersion string `toml:"python_version"`
	} `toml:"requires"`
}

// ParsePipfile reads the declarative Pipfile form.
func ParsePipfile(path string) (*DependencySet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc pipfileDoc
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return &DependencySet{
		form:          FormDeclarative,
		runtime:       pipfileSection(doc.Packages),
		dev:           pipfileSection(doc.DevPackages),
		pythonVersion: doc.Requires.PythonVersion,
	}, nil
}

// pipfileSection converts one [packages]-style table into dependencies.
// Values are either a bare specifier string or an inline table with a
// version key and optional markers.
func pipfileSection(section map[string]interface{}) []Dependency {
	names := make([]string, 0, len(section))
	for name := range section {
		names = append(names, name)
	}
	sort.Strings(names)

	deps := make([]Dependency, 0, len(names))
	for _, name := range names {
		constraint := ""
		switch v := section[name].(type) {
		case string:
			constraint = v
		case map[string]interface{}:
			parts := make([]string, 0, len(v))
			for _, key := range sortedKeys(v) {
				parts = append(parts, fmt.Sprintf("%s=%v", key, v[key]))
			}
			constraint = strings.Join(parts, ", ")
		}
		deps = append(deps, Dependency{
			DeclaredName:     name,
			ImportName:       NormalizeImportName(name),
			SourceConstraint: constraint,
		})
	}
	return deps
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
