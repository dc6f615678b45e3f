package module

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"
)

// Module is the identity of a loadable module. Two modules are the same
// module iff their GUIDs match.
type Module struct {
	Name string
	GUID uuid.UUID
}

func (m Module) Equal(o Module) bool { return m.GUID == o.GUID }

func (m Module) String() string { return m.Name }

// Version is a major.minor.fix semantic version.
type Version struct {
	Major, Minor, Fix int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Fix)
}

// Less reports whether v orders before o.
func (v Version) Less(o Version) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	if v.Minor != o.Minor {
		return v.Minor < o.Minor
	}
	return v.Fix < o.Fix
}

// ParseVersion accepts "1", "1.2" or "1.2.3".
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) == 0 || len(parts) > 3 || parts[0] == "" {
		return Version{}, eris.Errorf("invalid version %q", s)
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, eris.Errorf("invalid version %q", s)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Fix: nums[2]}, nil
}

func (v Version) MarshalYAML() (any, error) {
	return v.String(), nil
}

func (v *Version) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseVersion(node.Value)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Dependency names a required module and the lowest acceptable version.
type Dependency struct {
	Name       string  `yaml:"name"`
	MinVersion Version `yaml:"version"`
}

// Info is everything known about a discovered module.
type Info struct {
	Module
	Description  string
	Authors      string
	Version      Version
	Dependencies []Dependency
	// Entry selects the plugin loader, e.g. "go:physics" or "lua:main.lua".
	// Modules without an entry carry no code.
	Entry string
	Dir   string
}

// foldName is the key used for case-insensitive module name lookup.
func foldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}
