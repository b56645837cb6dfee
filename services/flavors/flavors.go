// Package flavors holds the table of ready-made service definitions.
//
// A flavor is plain data: an image, its ports and the log substrings that
// mark it ready or failed. Spec turns one into a models.ServiceSpec.
package flavors

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ezenkico/useintest/models"
	"github.com/ezenkico/useintest/services/readiness"

	"gopkg.in/yaml.v3"
)

//go:embed flavors.yaml
var builtin []byte

// ErrUnknownFlavor is returned for names missing from the table.
var ErrUnknownFlavor = errors.New("unknown flavor")

type Flavor struct {
	Name        string `yaml:"-"`
	Description string `yaml:"description,omitempty"`

	Repository string `yaml:"repository"`
	Tag        string `yaml:"tag,omitempty"`
	Ports      []int  `yaml:"ports,omitempty"`

	// Substrings of a log line for each detector
	Ready            []string `yaml:"ready,omitempty"`
	PersistentErrors []string `yaml:"persistent_errors,omitempty"`
	TransientErrors  []string `yaml:"transient_errors,omitempty"`

	Probe *models.HTTPProbe `yaml:"probe,omitempty"`

	StartTimeout time.Duration `yaml:"start_timeout,omitempty"`
	MaxAttempts  int           `yaml:"max_attempts,omitempty"`

	Runtime  models.RuntimeOptions `yaml:"runtime,omitempty"`
	Users    []models.User         `yaml:"users,omitempty"`
	RootUser string                `yaml:"root_user,omitempty"`
}

// Spec builds the service spec of the flavor. Instances are stopped on exit.
func (f Flavor) Spec() models.ServiceSpec {
	return models.ServiceSpec{
		Repository:              f.Repository,
		Tag:                     f.Tag,
		Ports:                   f.Ports,
		ReadyDetector:           readiness.Contains(f.Ready...),
		PersistentErrorDetector: readiness.Contains(f.PersistentErrors...),
		TransientErrorDetector:  readiness.Contains(f.TransientErrors...),
		Probe:                   f.Probe,
		StartTimeout:            f.StartTimeout,
		MaxAttempts:             f.MaxAttempts,
		StopOnExit:              true,
		Runtime:                 f.Runtime,
		Users:                   f.Users,
		RootUser:                f.RootUser,
	}
}

type file struct {
	Flavors map[string]Flavor `yaml:"flavors"`
}

// Table maps flavor names to flavors.
type Table struct {
	flavors map[string]Flavor
}

// Parse reads a flavors document.
func Parse(data []byte) (*Table, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse flavors: %w", err)
	}

	t := &Table{flavors: make(map[string]Flavor, len(f.Flavors))}
	for name, fl := range f.Flavors {
		fl.Name = name
		if err := fl.Spec().Validate(); err != nil {
			return nil, fmt.Errorf("flavor %q: %w", name, err)
		}
		t.flavors[name] = fl
	}
	return t, nil
}

// Builtin returns the flavors shipped with the binary.
func Builtin() *Table {
	t, err := Parse(builtin)
	if err != nil {
		panic(err)
	}
	return t
}

// LoadFile returns the built-in flavors overridden by the flavors in path.
// An empty path returns the built-in flavors.
func LoadFile(path string) (*Table, error) {
	t := Builtin()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read flavors file %q: %w", path, err)
	}
	user, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load flavors file %q: %w", path, err)
	}
	t.Merge(user)
	return t, nil
}

// Merge adds the flavors of other, replacing those with the same name.
func (t *Table) Merge(other *Table) {
	for name, f := range other.flavors {
		t.flavors[name] = f
	}
}

// Names returns the flavor names in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.flavors))
	for name := range t.flavors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get looks up a flavor. The name may carry a ":tag" suffix replacing the
// flavor's image tag.
func (t *Table) Get(name string) (Flavor, error) {
	base, tag, hasTag := strings.Cut(name, ":")
	f, ok := t.flavors[base]
	if !ok {
		return Flavor{}, fmt.Errorf("%w %q (known: %s)", ErrUnknownFlavor, base, strings.Join(t.Names(), ", "))
	}
	if hasTag && tag != "" {
		f.Tag = tag
	}
	return f, nil
}

// Spec returns the service spec of the named flavor.
func (t *Table) Spec(name string) (models.ServiceSpec, error) {
	f, err := t.Get(name)
	if err != nil {
		return models.ServiceSpec{}, err
	}
	return f.Spec(), nil
}
