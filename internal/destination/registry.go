package destination

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"entrypass/internal/profile/models"
	"entrypass/internal/profile/validation"
	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
)

//go:embed configs/*.yaml
var builtin embed.FS

// Registry holds the configured destinations. It is immutable after Load.
type Registry struct {
	byID map[id.DestinationID]*Destination
}

// Load reads the built-in destinations, then any *.yaml in dir. A file in
// dir replaces the built-in destination with the same id.
func Load(dir string) (*Registry, error) {
	r := &Registry{byID: make(map[id.DestinationID]*Destination)}
	if err := r.loadFS(builtin, "configs"); err != nil {
		return nil, err
	}
	if dir != "" {
		if err := r.loadFS(os.DirFS(dir), "."); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// New builds a registry from already-decoded destinations. Used by tests.
func New(destinations ...*Destination) (*Registry, error) {
	r := &Registry{byID: make(map[id.DestinationID]*Destination)}
	for _, d := range destinations {
		if err := d.validate(); err != nil {
			return nil, err
		}
		r.byID[d.ID] = d
	}
	return r, nil
}

func (r *Registry) loadFS(fsys fs.FS, root string) error {
	paths, err := fs.Glob(fsys, filepath.ToSlash(filepath.Join(root, "*.yaml")))
	if err != nil {
		return fmt.Errorf("list destination configs: %w", err)
	}
	for _, p := range paths {
		raw, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("read destination config %s: %w", p, err)
		}
		d, err := Parse(raw)
		if err != nil {
			return fmt.Errorf("destination config %s: %w", p, err)
		}
		r.byID[d.ID] = d
	}
	return nil
}

// Parse decodes and validates one destination document. Unknown keys are
// rejected so a typo cannot silently drop a requirement.
func Parse(raw []byte) (*Destination, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var d Destination
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

func (d *Destination) validate() error {
	parsed, err := id.ParseDestinationID(string(d.ID))
	if err != nil {
		return fmt.Errorf("id %q: %w", d.ID, err)
	}
	d.ID = parsed
	if d.DateFormat == "" {
		d.DateFormat = "2006-01-02"
	}
	if !validation.IsCountry(d.Country) {
		return fmt.Errorf("%s: unknown country %q", d.ID, d.Country)
	}
	seen := map[string]bool{}
	for _, s := range d.Sections {
		kind, ok := KindOf(s.Name)
		if !ok {
			return fmt.Errorf("%s: unknown section %q", d.ID, s.Name)
		}
		if seen[s.Name] {
			return fmt.Errorf("%s: duplicate section %q", d.ID, s.Name)
		}
		seen[s.Name] = true
		if s.MinItems < 0 {
			return fmt.Errorf("%s: negative min_items in %q", d.ID, s.Name)
		}
		for _, f := range s.Required {
			if !models.HasField(kind, f) {
				return fmt.Errorf("%s: section %q has no field %q", d.ID, s.Name, f)
			}
		}
		for _, c := range s.Conditional {
			if !models.HasField(kind, c.Field) || !models.HasField(kind, c.When.Field) {
				return fmt.Errorf("%s: bad conditional %q in section %q", d.ID, c.Field, s.Name)
			}
		}
	}
	for _, rule := range d.Rules {
		if err := checkRef(rule.Field); err != nil {
			return fmt.Errorf("%s: rule %q: %w", d.ID, rule.Rule, err)
		}
		if !validation.IsKnownRule(rule.Rule) {
			return fmt.Errorf("%s: unknown rule %q", d.ID, rule.Rule)
		}
	}
	names := map[string]bool{}
	for _, c := range d.Categories {
		if c.Name == "" || names[c.Name] {
			return fmt.Errorf("%s: missing or duplicate category name %q", d.ID, c.Name)
		}
		names[c.Name] = true
		if err := checkRef(c.Source); err != nil {
			return fmt.Errorf("%s: category %q: %w", d.ID, c.Name, err)
		}
	}
	return nil
}

func checkRef(ref string) error {
	section, field := SplitField(ref)
	kind, ok := KindOf(section)
	if !ok || !models.HasField(kind, field) {
		return fmt.Errorf("unknown field %q", ref)
	}
	return nil
}

// Get returns the destination with the given id.
func (r *Registry) Get(destinationID id.DestinationID) (*Destination, error) {
	d, ok := r.byID[destinationID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "unknown destination")
	}
	return d, nil
}

// List returns every destination ordered by id.
func (r *Registry) List() []*Destination {
	out := make([]*Destination, 0, len(r.byID))
	for _, d := range r.byID {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.Compare(string(out[i].ID), string(out[j].ID)) < 0
	})
	return out
}
