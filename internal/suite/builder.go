package suite

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultPattern matches unit manifest files during discovery.
const DefaultPattern = "unit_*.yaml"

// Builder assembles a suite from the manifests under Root.
type Builder struct {
	// Root is the discovery root.
	Root string

	// Pattern is the glob matched against manifest base names. Empty means
	// DefaultPattern.
	Pattern string

	// Apps is the rig's application registry. When non-nil, every unit's
	// scope declaration is validated against it; nil passes scopes through
	// unchecked.
	Apps []string
}

// Build discovers units and selects them by label.
//
// With no labels, every discovered unit is taken in discovery order. With
// labels, each label is resolved by specificity (fully qualified unit,
// fully qualified group, module path exact or dotted prefix, then
// directory path) and the first form that matches wins. A label matching
// nothing fails the build with *AmbiguousLabelError.
//
// Extra units are appended verbatim after the selection; they bypass
// discovery and label resolution entirely.
func (b *Builder) Build(labels []string, extra []Unit) (*Suite, error) {
	pattern := b.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}

	units, err := b.discover(pattern)
	if err != nil {
		return nil, err
	}

	var selected []Unit
	if len(labels) == 0 {
		selected = units
	} else {
		seen := make(map[int]bool, len(units))
		for _, label := range labels {
			matches := resolveLabel(norm.NFC.String(label), units)
			if len(matches) == 0 {
				return nil, &AmbiguousLabelError{Label: label}
			}
			for _, idx := range matches {
				if !seen[idx] {
					seen[idx] = true
					selected = append(selected, units[idx])
				}
			}
		}
	}

	selected = append(selected, extra...)

	if b.Apps != nil {
		if err := b.validateScopes(selected); err != nil {
			return nil, err
		}
	}

	slog.Debug("suite built", "discovered", len(units), "selected", len(selected), "labels", len(labels), "extra", len(extra))
	return &Suite{Units: selected}, nil
}

// discover walks the root collecting units from every manifest whose base
// name matches pattern, in lexical walk order.
func (b *Builder) discover(pattern string) ([]Unit, error) {
	var units []Unit
	err := filepath.WalkDir(b.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ok, err := filepath.Match(pattern, d.Name())
		if err != nil {
			return fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		if !ok {
			return nil
		}

		m, err := LoadManifest(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(b.Root, filepath.Dir(p))
		if err != nil {
			return err
		}
		dir := path.Clean(filepath.ToSlash(rel))

		module := norm.NFC.String(m.Module)
		for _, group := range m.Groups {
			for _, mu := range group.Units {
				units = append(units, Unit{
					Module: module,
					Group:  norm.NFC.String(group.Name),
					Name:   norm.NFC.String(mu.Name),
					Apps:   normalizeApps(mu.Apps),
					Skip:   mu.Skip,
					Probes: mu.Probes,
					Dir:    dir,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovering units: %w", err)
	}
	return units, nil
}

// resolveLabel returns the discovered unit indexes a label selects, trying
// the most specific form first.
func resolveLabel(label string, units []Unit) []int {
	var matches []int

	for i, u := range units {
		if u.FQN() == label {
			matches = append(matches, i)
		}
	}
	if len(matches) > 0 {
		return matches
	}

	for i, u := range units {
		if u.Module+"."+u.Group == label {
			matches = append(matches, i)
		}
	}
	if len(matches) > 0 {
		return matches
	}

	for i, u := range units {
		if u.Module == label || strings.HasPrefix(u.Module, label+".") {
			matches = append(matches, i)
		}
	}
	if len(matches) > 0 {
		return matches
	}

	dir := path.Clean(filepath.ToSlash(label))
	for i, u := range units {
		if u.Dir == "" {
			continue
		}
		if dir == "." || u.Dir == dir || strings.HasPrefix(u.Dir+"/", dir+"/") {
			matches = append(matches, i)
		}
	}
	return matches
}

func (b *Builder) validateScopes(units []Unit) error {
	registered := make(map[string]bool, len(b.Apps))
	for _, app := range b.Apps {
		registered[norm.NFC.String(app)] = true
	}
	for _, u := range units {
		for _, app := range u.Apps {
			if !registered[norm.NFC.String(app)] {
				return &UnknownScopeError{Unit: u.FQN(), App: app}
			}
		}
	}
	return nil
}

func normalizeApps(apps []string) []string {
	if apps == nil {
		return nil
	}
	out := make([]string, len(apps))
	for i, app := range apps {
		out[i] = norm.NFC.String(app)
	}
	return out
}
