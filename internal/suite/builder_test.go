package suite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/testrig/internal/topology"
)

// buildTree writes the standard test layout and returns its root.
//
// Walk order is lexical, so sub/ is discovered before unit_checkout.yaml.
func buildTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	writeManifest(t, root, "unit_checkout.yaml", `
module: checkout
groups:
  - name: Cart
    units:
      - name: add_item
        apps: [cart]
      - name: remove_item
        apps: [cart]
  - name: Pricing
    units:
      - name: rounding
`)
	writeManifest(t, root, "sub/unit_billing.yaml", `
module: billing.core
groups:
  - name: Invoices
    units:
      - name: create
        apps: [billing]
`)
	writeManifest(t, root, "ignored.yaml", `
module: ignored
groups:
  - name: Nope
    units:
      - name: never
`)
	return root
}

func fqns(s *Suite) []string {
	out := make([]string, len(s.Units))
	for i, u := range s.Units {
		out[i] = u.FQN()
	}
	return out
}

func TestBuild_NoLabelsTakesEverything(t *testing.T) {
	b := &Builder{Root: buildTree(t)}

	s, err := b.Build(nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"billing.core.Invoices.create",
		"checkout.Cart.add_item",
		"checkout.Cart.remove_item",
		"checkout.Pricing.rounding",
	}, fqns(s))
}

func TestBuild_LabelsSelectExactly(t *testing.T) {
	b := &Builder{Root: buildTree(t)}

	s, err := b.Build([]string{"checkout.Cart.add_item", "checkout.Pricing.rounding"}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"checkout.Cart.add_item", "checkout.Pricing.rounding"}, fqns(s))
}

func TestBuild_GroupLabel(t *testing.T) {
	b := &Builder{Root: buildTree(t)}

	s, err := b.Build([]string{"checkout.Cart"}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"checkout.Cart.add_item", "checkout.Cart.remove_item"}, fqns(s))
}

func TestBuild_ModuleLabel(t *testing.T) {
	b := &Builder{Root: buildTree(t)}

	s, err := b.Build([]string{"checkout"}, nil)
	require.NoError(t, err)
	assert.Len(t, s.Units, 3)

	// A module label also matches dotted submodules.
	s, err = b.Build([]string{"billing"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"billing.core.Invoices.create"}, fqns(s))
}

func TestBuild_DirectoryLabel(t *testing.T) {
	b := &Builder{Root: buildTree(t)}

	s, err := b.Build([]string{"sub"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"billing.core.Invoices.create"}, fqns(s))

	s, err = b.Build([]string{"."}, nil)
	require.NoError(t, err)
	assert.Len(t, s.Units, 4)
}

func TestBuild_UnitLabelBeatsGroupLabel(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "unit_one.yaml", `
module: a
groups:
  - name: b
    units:
      - name: c
`)
	writeManifest(t, root, "unit_two.yaml", `
module: a.b
groups:
  - name: c
    units:
      - name: d
`)
	b := &Builder{Root: root}

	// "a.b.c" is both a unit FQN and a group FQN; the unit form wins.
	s, err := b.Build([]string{"a.b.c"}, nil)
	require.NoError(t, err)

	require.Len(t, s.Units, 1)
	assert.Equal(t, "a", s.Units[0].Module)
	assert.Equal(t, "c", s.Units[0].Name)
}

func TestBuild_UnresolvableLabel(t *testing.T) {
	b := &Builder{Root: buildTree(t)}

	_, err := b.Build([]string{"checkout.Cart", "no.such.unit"}, nil)

	var labelErr *AmbiguousLabelError
	require.ErrorAs(t, err, &labelErr)
	assert.Equal(t, "no.such.unit", labelErr.Label)
	assert.True(t, topology.IsConfigError(err))
}

func TestBuild_OverlappingLabelsDeduplicate(t *testing.T) {
	b := &Builder{Root: buildTree(t)}

	s, err := b.Build([]string{"checkout", "checkout.Cart.add_item"}, nil)
	require.NoError(t, err)
	assert.Len(t, s.Units, 3)
}

func TestBuild_LabelOrderPreserved(t *testing.T) {
	b := &Builder{Root: buildTree(t)}

	s, err := b.Build([]string{"checkout.Pricing", "checkout.Cart"}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"checkout.Pricing.rounding",
		"checkout.Cart.add_item",
		"checkout.Cart.remove_item",
	}, fqns(s))
}

func TestBuild_ExtrasAppendedVerbatim(t *testing.T) {
	b := &Builder{Root: buildTree(t)}
	extra := Unit{Module: "adhoc", Group: "Smoke", Name: "ping"}

	s, err := b.Build(nil, []Unit{extra})
	require.NoError(t, err)

	require.Len(t, s.Units, 5)
	assert.Equal(t, "adhoc.Smoke.ping", s.Units[4].FQN())

	// Extras bypass label resolution: a label never selects them.
	_, err = b.Build([]string{"adhoc.Smoke.ping"}, []Unit{extra})
	var labelErr *AmbiguousLabelError
	require.ErrorAs(t, err, &labelErr)
}

func TestBuild_ScopeRegistryValidation(t *testing.T) {
	root := buildTree(t)
	writeManifest(t, root, "unit_fraud.yaml", `
module: fraud
groups:
  - name: Checks
    units:
      - name: velocity
        apps: [fraud]
`)

	b := &Builder{Root: root, Apps: []string{"cart", "billing"}}

	_, err := b.Build(nil, nil)

	var scopeErr *UnknownScopeError
	require.ErrorAs(t, err, &scopeErr)
	assert.Equal(t, "fraud.Checks.velocity", scopeErr.Unit)
	assert.Equal(t, "fraud", scopeErr.App)
	assert.True(t, topology.IsConfigError(err))
}

func TestBuild_ScopeRegistryCoversExtras(t *testing.T) {
	b := &Builder{Root: buildTree(t), Apps: []string{"cart", "billing"}}
	extra := Unit{Module: "adhoc", Name: "probe", Apps: []string{"ghost"}}

	_, err := b.Build(nil, []Unit{extra})

	var scopeErr *UnknownScopeError
	require.ErrorAs(t, err, &scopeErr)
	assert.Equal(t, "ghost", scopeErr.App)
}

func TestBuild_NoRegistrySkipsScopeValidation(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "unit_x.yaml", `
module: x
groups:
  - name: G
    units:
      - name: u
        apps: [anything]
`)
	b := &Builder{Root: root}

	_, err := b.Build(nil, nil)
	assert.NoError(t, err)
}

func TestBuild_CustomPattern(t *testing.T) {
	root := buildTree(t)
	writeManifest(t, root, "spec_extra.yaml", `
module: specs
groups:
  - name: G
    units:
      - name: only
`)

	b := &Builder{Root: root, Pattern: "spec_*.yaml"}
	s, err := b.Build(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"specs.G.only"}, fqns(s))
}

func TestBuild_BadPattern(t *testing.T) {
	b := &Builder{Root: buildTree(t), Pattern: "["}

	_, err := b.Build(nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pattern")
}

func TestBuild_NormalizesLabels(t *testing.T) {
	root := t.TempDir()
	// Module written composed; label supplied decomposed.
	writeManifest(t, root, "unit_x.yaml", `
module: caf`+"é"+`
groups:
  - name: G
    units:
      - name: u
`)
	b := &Builder{Root: root}

	s, err := b.Build([]string{"café"}, nil)
	require.NoError(t, err)
	assert.Len(t, s.Units, 1)
}
