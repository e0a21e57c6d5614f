// Package deps reads check package dependencies from pyproject metadata.
package deps

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
)

// BasePackage is the published name of the shared base library every
// integration depends on.
const BasePackage = "checks-base"

// PyprojectFile is the dependency manifest inside each check directory.
const PyprojectFile = "pyproject.toml"

// Spec is a single version constraint, e.g. ">= 32.1.0".
type Spec struct {
	Operator string
	Version  string
}

func (s Spec) String() string {
	return s.Operator + s.Version
}

// Requirement is a parsed dependency entry.
type Requirement struct {
	Name   string
	Extras []string
	Specs  []Spec
}

// FirstSpec returns the leading version constraint, or nil when the
// requirement is unpinned.
func (r *Requirement) FirstSpec() *Spec {
	if len(r.Specs) == 0 {
		return nil
	}
	return &r.Specs[0]
}

type pyproject struct {
	Project struct {
		Name         string   `toml:"name"`
		Dependencies []string `toml:"dependencies"`
	} `toml:"project"`
}

var requirementPattern = regexp.MustCompile(`^\s*([A-Za-z0-9._-]+)\s*(?:\[([^\]]*)\])?\s*(.*)$`)
var specPattern = regexp.MustCompile(`^(===|==|!=|~=|>=|<=|>|<)\s*(.+)$`)

// normalizeName canonicalizes a package name the way package indexes do.
func normalizeName(name string) string {
	lowered := strings.ToLower(name)
	return strings.NewReplacer("_", "-", ".", "-").Replace(lowered)
}

func parseRequirement(raw string) (*Requirement, error) {
	m := requirementPattern.FindStringSubmatch(raw)
	if m == nil || m[1] == "" {
		return nil, fmt.Errorf("invalid requirement %q", raw)
	}

	req := &Requirement{Name: m[1]}
	if m[2] != "" {
		for _, extra := range strings.Split(m[2], ",") {
			extra = strings.TrimSpace(extra)
			if extra != "" {
				req.Extras = append(req.Extras, extra)
			}
		}
	}

	rest := strings.TrimSpace(m[3])
	if rest == "" {
		return req, nil
	}
	for _, part := range strings.Split(rest, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		sm := specPattern.FindStringSubmatch(part)
		if sm == nil {
			return nil, fmt.Errorf("invalid version spec %q in %q", part, raw)
		}
		req.Specs = append(req.Specs, Spec{Operator: sm[1], Version: strings.TrimSpace(sm[2])})
	}
	return req, nil
}

// ReadCheckBaseDependency returns the check's declared dependency on the
// base package.
func ReadCheckBaseDependency(checkDir string) (*Requirement, error) {
	path := filepath.Join(checkDir, PyprojectFile)

	var project pyproject
	if _, err := toml.DecodeFile(path, &project); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	for _, raw := range project.Project.Dependencies {
		req, err := parseRequirement(raw)
		if err != nil {
			// Only the base package matters here; a malformed entry for
			// it must surface, anything else is someone else's problem.
			if strings.Contains(normalizeName(raw), BasePackage) {
				return nil, err
			}
			continue
		}
		if normalizeName(req.Name) == BasePackage {
			return req, nil
		}
	}
	return nil, fmt.Errorf("no dependency on %s declared in %s", BasePackage, path)
}
