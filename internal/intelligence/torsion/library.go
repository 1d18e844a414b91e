// Package torsion resolves candidate torsion angles for rotatable bonds from a
// hierarchical, pattern-matched rule library with a uniform grid fallback.
package torsion

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
)

// AngleEntry is one preferred dihedral of a rule, in degrees.
type AngleEntry struct {
	Angle      float64 `yaml:"angle"`
	Tolerance1 float64 `yaml:"tol1"`
	Tolerance2 float64 `yaml:"tol2"`
	Score      float64 `yaml:"score"`
}

// Rule maps a bond environment to preferred angles.
type Rule struct {
	Name    string       `yaml:"name"`
	Pattern string       `yaml:"pattern"`
	Angles  []AngleEntry `yaml:"angles"`

	compiled *Pattern
}

// Compiled returns the parsed pattern.
func (r *Rule) Compiled() *Pattern { return r.compiled }

// Category groups rules and subcategories. A category pattern, when present,
// must match the bond before anything below it is consulted.
type Category struct {
	Name       string      `yaml:"name"`
	Pattern    string      `yaml:"pattern,omitempty"`
	Rules      []*Rule     `yaml:"rules,omitempty"`
	Categories []*Category `yaml:"categories,omitempty"`

	compiled *Pattern
}

// Library is a named root category.
type Library struct {
	Name       string      `yaml:"name"`
	Categories []*Category `yaml:"categories"`
}

// NumRules returns the number of rules in the library.
func (l *Library) NumRules() int {
	n := 0
	var walk func(c *Category)
	walk = func(c *Category) {
		n += len(c.Rules)
		for _, sub := range c.Categories {
			walk(sub)
		}
	}
	for _, c := range l.Categories {
		walk(c)
	}
	return n
}

// NumCategories returns the number of categories at all levels.
func (l *Library) NumCategories() int {
	n := 0
	var walk func(c *Category)
	walk = func(c *Category) {
		n++
		for _, sub := range c.Categories {
			walk(sub)
		}
	}
	for _, c := range l.Categories {
		walk(c)
	}
	return n
}

// ParseLibrary decodes and compiles a YAML rule library.
func ParseLibrary(data []byte) (*Library, error) {
	var lib Library
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&lib); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTorsionLibraryInvalid, "cannot decode torsion library")
	}
	if err := lib.compile(); err != nil {
		return nil, err
	}
	return &lib, nil
}

// LoadLibrary reads a YAML rule library from disk.
func LoadLibrary(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTorsionLibraryLoad, "cannot read torsion library").WithDetail(path)
	}
	lib, err := ParseLibrary(data)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTorsionLibraryInvalid, "invalid torsion library").WithDetail(path)
	}
	if lib.Name == "" {
		lib.Name = path
	}
	return lib, nil
}

// Marshal encodes the library as YAML.
func (l *Library) Marshal() ([]byte, error) {
	return yaml.Marshal(l)
}

func (l *Library) compile() error {
	var walk func(c *Category, path string) error
	walk = func(c *Category, path string) error {
		path = path + "/" + c.Name
		if c.Name == "" {
			return invalid(path, "category without name")
		}
		if c.Pattern != "" {
			p, err := ParsePattern(c.Pattern)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeTorsionLibraryInvalid, "invalid category pattern").WithDetail(path)
			}
			c.compiled = p
		}
		for i, r := range c.Rules {
			if r.Pattern == "" {
				return invalid(path, fmt.Sprintf("rule %d has no pattern", i))
			}
			p, err := ParsePattern(r.Pattern)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeTorsionLibraryInvalid, "invalid rule pattern").WithDetailf("%s rule %q", path, r.Name)
			}
			r.compiled = p
			for _, a := range r.Angles {
				if a.Angle < -360 || a.Angle > 360 || a.Tolerance1 < 0 || a.Tolerance2 < 0 {
					return invalid(path, fmt.Sprintf("rule %q has an out of range angle entry", r.Name))
				}
			}
		}
		for _, sub := range c.Categories {
			if err := walk(sub, path); err != nil {
				return err
			}
		}
		return nil
	}
	for _, c := range l.Categories {
		if err := walk(c, ""); err != nil {
			return err
		}
	}
	return nil
}

func invalid(path, msg string) error {
	return errors.New(errors.ErrCodeTorsionLibraryInvalid, msg).WithDetail(path)
}

//go:embed default_library.yaml
var defaultLibraryYAML []byte

var (
	defaultOnce    sync.Once
	defaultLibrary *Library
)

// DefaultLibrary returns the built-in rule library. It panics if the embedded
// file is broken, which the package tests guard against.
func DefaultLibrary() *Library {
	defaultOnce.Do(func() {
		lib, err := ParseLibrary(defaultLibraryYAML)
		if err != nil {
			panic(err)
		}
		defaultLibrary = lib
	})
	return defaultLibrary
}

//Personal.AI order the ending
