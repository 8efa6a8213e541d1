// Package manifest defines the on-disk YAML entities from spec §3.1/§6:
// PackageYml (package.yml) and PackageIndexRecord (package.index.yml), and
// their round-tripping codec. We reach for gopkg.in/yaml.v3 rather than the
// teacher's ghodss/yaml (a JSON-tag shim) because spec §6 requires block-
// style maps with a flow-style-only "keywords" array, which needs direct
// control over yaml.v3's `,flow` tag.
package manifest

import (
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Dependency is one entry of a "packages" or "dev-packages" list.
type Dependency struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// PackageYml is the manifest of one package (spec §3.1 PackageYml).
type PackageYml struct {
	Name        string       `yaml:"name"`
	Version     string       `yaml:"version"`
	Description string       `yaml:"description,omitempty"`
	Keywords    []string     `yaml:"keywords,omitempty,flow"`
	Packages    []Dependency `yaml:"packages,omitempty"`
	DevPackages []Dependency `yaml:"dev-packages,omitempty"`
}

// FindDependency returns the dependency entry for name in Packages, or nil.
func (p *PackageYml) FindDependency(name string) *Dependency {
	for i := range p.Packages {
		if p.Packages[i].Name == name {
			return &p.Packages[i]
		}
	}
	return nil
}

// UpsertDependency inserts or updates name's range in Packages.
func (p *PackageYml) UpsertDependency(name, version string) {
	if d := p.FindDependency(name); d != nil {
		d.Version = version
		return
	}
	p.Packages = append(p.Packages, Dependency{Name: name, Version: version})
}

// MoveToDev moves name's entry, if present, from Packages into DevPackages.
func (p *PackageYml) MoveToDev(name string) {
	for i := range p.Packages {
		if p.Packages[i].Name == name {
			dep := p.Packages[i]
			p.Packages = append(p.Packages[:i], p.Packages[i+1:]...)
			p.DevPackages = append(p.DevPackages, dep)
			return
		}
	}
}

// RemoveDependency removes name from both Packages and DevPackages.
func (p *PackageYml) RemoveDependency(name string) {
	p.Packages = removeDep(p.Packages, name)
	p.DevPackages = removeDep(p.DevPackages, name)
}

func removeDep(deps []Dependency, name string) []Dependency {
	out := deps[:0]
	for _, d := range deps {
		if d.Name != name {
			out = append(out, d)
		}
	}
	return out
}

// quotedScopedName marshals scoped package names ("@scope/name") as
// double-quoted scalars per spec §6, while leaving unscoped names bare.
type quotedScopedName string

func (n quotedScopedName) MarshalYAML() (interface{}, error) {
	s := string(n)
	if len(s) > 0 && s[0] == '@' {
		return yaml.Node{Kind: yaml.ScalarNode, Value: s, Tag: "!!str", Style: yaml.DoubleQuotedStyle}, nil
	}
	return s, nil
}

// Marshal serializes p as block-style YAML with scoped names quoted and
// Keywords flow-style, matching spec §6.
func Marshal(p *PackageYml) ([]byte, error) {
	node, err := toNode(p)
	if err != nil {
		return nil, errors.Wrap(err, "encode package.yml")
	}
	out, err := yaml.Marshal(node)
	if err != nil {
		return nil, errors.Wrap(err, "marshal package.yml")
	}
	return out, nil
}

func toNode(p *PackageYml) (*yaml.Node, error) {
	// Re-marshal through an intermediate yaml.Node tree so the Name field's quoting
	// rule is applied without needing a second parallel struct.
	type alias PackageYml
	raw, err := yaml.Marshal((*alias)(p))
	if err != nil {
		return nil, err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return &node, nil
	}
	doc := node.Content[0]
	quoteNameField(doc, "name", p.Name)
	for _, depsKey := range []string{"packages", "dev-packages"} {
		quoteDepNames(doc, depsKey)
	}
	return &node, nil
}

func quoteNameField(doc *yaml.Node, key, value string) {
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value == key {
			if len(value) > 0 && value[0] == '@' {
				doc.Content[i+1].Style = yaml.DoubleQuotedStyle
			}
			return
		}
	}
}

func quoteDepNames(doc *yaml.Node, key string) {
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value != key {
			continue
		}
		seq := doc.Content[i+1]
		for _, item := range seq.Content {
			quoteNameFieldInMap(item)
		}
	}
}

func quoteNameFieldInMap(item *yaml.Node) {
	for i := 0; i+1 < len(item.Content); i += 2 {
		if item.Content[i].Value == "name" && len(item.Content[i+1].Value) > 0 && item.Content[i+1].Value[0] == '@' {
			item.Content[i+1].Style = yaml.DoubleQuotedStyle
		}
	}
}

// Unmarshal parses package.yml bytes into a PackageYml.
func Unmarshal(data []byte) (*PackageYml, error) {
	var p PackageYml
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(err, "parse package.yml")
	}
	return &p, nil
}

// PackageIndexRecord is the per-workspace, per-package install map (spec
// §3.1 PackageIndexRecord, §4.9 C9). Keys ending in "/" are directory keys.
type PackageIndexRecord struct {
	Workspace WorkspaceRef        `yaml:"workspace"`
	Files     map[string][]string `yaml:"files"`
}

// WorkspaceRef identifies the workspace + installed package version an
// index record describes.
type WorkspaceRef struct {
	Hash    string `yaml:"hash"`
	Version string `yaml:"version"`
}

// Normalize sorts Files deterministically: keys lexicographically, and
// each value array lexicographically, satisfying spec §4.9's invariant
// that re-serialization round-trips.
func (r *PackageIndexRecord) Normalize() {
	for k, v := range r.Files {
		sorted := append([]string{}, v...)
		sort.Strings(sorted)
		r.Files[k] = sorted
	}
}

// SortedKeys returns r.Files's keys in lexicographic order.
func (r *PackageIndexRecord) SortedKeys() []string {
	keys := make([]string, 0, len(r.Files))
	for k := range r.Files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalIndex serializes a PackageIndexRecord, normalizing it first.
func MarshalIndex(r *PackageIndexRecord) ([]byte, error) {
	r.Normalize()
	out, err := yaml.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, "marshal package.index.yml")
	}
	return out, nil
}

// UnmarshalIndex parses package.index.yml bytes.
func UnmarshalIndex(data []byte) (*PackageIndexRecord, error) {
	r := &PackageIndexRecord{Files: map[string][]string{}}
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, errors.Wrap(err, "parse package.index.yml")
	}
	if r.Files == nil {
		r.Files = map[string][]string{}
	}
	return r, nil
}
