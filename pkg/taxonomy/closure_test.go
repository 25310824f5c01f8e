package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chain builds C -> B -> A plus D -> C, where B owns nothing.
func chainGraph(t *testing.T) *Graph {
	t.Helper()
	g, err := Build(batch("base",
		[]EntityRecord{
			{ID: "A"},
			{ID: "B", Parents: []string{"A"}},
			{ID: "C", Parents: []string{"B", "ghost"}},
			{ID: "D", Parents: []string{"C"}},
		},
		[]PropertyRecord{
			{ID: "CFIHOS-10000001", EntityID: "A"},
			{ID: "CFIHOS-10000002", EntityID: "C"},
			{ID: "CFIHOS-10000003", EntityID: "D"},
		},
	))
	require.NoError(t, err)
	return g
}

func TestAncestors(t *testing.T) {
	g := chainGraph(t)

	tests := []struct {
		id   string
		want []string
	}{
		{"A", nil},
		{"B", []string{"A"}},
		{"C", []string{"A"}},
		{"D", []string{"C", "A"}},
		{"unknown", nil},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Ancestors(tt.id))
			assert.NotContains(t, g.Ancestors(tt.id), tt.id)
		})
	}
}

func TestAncestors_Memoized(t *testing.T) {
	g := chainGraph(t)
	g.ComputeClosures()
	assert.Len(t, g.closures, 4)
	assert.Equal(t, g.Ancestors("D"), g.closures["D"])
}

func TestAncestors_Cycle(t *testing.T) {
	g, err := Build(batch("base",
		[]EntityRecord{
			{ID: "X", Parents: []string{"Y"}},
			{ID: "Y", Parents: []string{"Z"}},
			{ID: "Z", Parents: []string{"X"}},
			{ID: "S", Parents: []string{"S"}},
		},
		[]PropertyRecord{
			{ID: "CFIHOS-1", EntityID: "X"},
			{ID: "CFIHOS-2", EntityID: "Y"},
			{ID: "CFIHOS-3", EntityID: "Z"},
			{ID: "CFIHOS-4", EntityID: "S"},
		},
	))
	require.NoError(t, err)

	assert.Equal(t, []string{"Y", "Z"}, g.Ancestors("X"))
	assert.Equal(t, []string{"Z", "X"}, g.Ancestors("Y"))
	assert.Empty(t, g.Ancestors("S"))
}

func TestAllAncestors(t *testing.T) {
	g := chainGraph(t)
	assert.Equal(t, []string{"C", "B", "A"}, g.AllAncestors("D"))
}

func TestInheritedProperties(t *testing.T) {
	g := chainGraph(t)

	all := g.InheritedProperties("D", nil)
	assert.Equal(t, map[string]bool{"CFIHOS_10000001": true, "CFIHOS_10000002": true}, all)

	onlyC := g.InheritedProperties("D", func(id string) bool { return id == "C" })
	assert.Equal(t, map[string]bool{"CFIHOS_10000002": true}, onlyC)
}

func TestDescendants(t *testing.T) {
	g := chainGraph(t)
	assert.Equal(t, []string{"B", "C", "D"}, g.Descendants("A", nil))
	assert.Equal(t, []string{"C", "D"}, g.Descendants("A", func(id string) bool { return id != "B" }))
}

func TestDetectCycles(t *testing.T) {
	g, err := Build(batch("base",
		[]EntityRecord{
			{ID: "X", Parents: []string{"Y"}},
			{ID: "Y", Parents: []string{"X"}},
			{ID: "S", Parents: []string{"S"}},
			{ID: "T", Parents: []string{"X"}},
		},
		nil,
	))
	require.NoError(t, err)

	cycles := DetectCycles(g)
	require.Len(t, cycles, 2)
	assert.Equal(t, "X → Y → X", cycles[0].String())
	assert.Equal(t, "S → S", cycles[1].String())
}

func TestWarnings(t *testing.T) {
	g, err := Build(batch("base",
		[]EntityRecord{
			{ID: "F1", FirstClass: true, Parents: []string{"nope"}},
			{ID: "F2", FirstClass: true},
			{ID: "N1"},
		},
		[]PropertyRecord{
			{ID: "CFIHOS-10000001", EntityID: "F1", Kind: KindDirect, Targets: []string{"F2"}},
			{ID: "CFIHOS-10000002", EntityID: "F1", Kind: KindDirect, Targets: []string{"N1"}},
			{ID: "CFIHOS-10000003", EntityID: "N1", Kind: KindReverse, Targets: []string{"gone"}},
			{ID: "CFIHOS-10000004", EntityID: "N1", Kind: KindDirect, Targets: []string{"N1"}},
		},
	))
	require.NoError(t, err)

	var kinds []WarningKind
	for _, w := range g.Warnings() {
		kinds = append(kinds, w.Kind)
	}
	assert.Equal(t, []WarningKind{WarnUnknownParent, WarnIneligibleRelation, WarnDanglingTarget}, kinds)

	eligible := func(entity, prop string) bool {
		p, ok := g.Property(entity, prop)
		require.True(t, ok)
		return g.Eligible(p)
	}
	assert.True(t, eligible("F1", "CFIHOS-10000001"))
	assert.False(t, eligible("F1", "CFIHOS-10000002"))
	assert.False(t, eligible("N1", "CFIHOS-10000003"))
	assert.True(t, eligible("N1", "CFIHOS-10000004"))
}

func TestParseCode(t *testing.T) {
	prefixes := []string{"CFIHOS", "CFIHOS-EXT"}
	tests := []struct {
		id          string
		wantPrefix  string
		wantValue   int
		wantGroup   string
		wantErrText string
	}{
		{id: "CFIHOS-10000001", wantPrefix: "CFIHOS", wantValue: 10000001, wantGroup: "CFIHOS_1"},
		{id: "CFIHOS_40000123", wantPrefix: "CFIHOS", wantValue: 40000123, wantGroup: "CFIHOS_4"},
		{id: "CFIHOS-EXT-900", wantPrefix: "CFIHOS_EXT", wantValue: 900, wantGroup: "CFIHOS_EXT_9"},
		{id: "CFIHOS-00000050", wantPrefix: "CFIHOS", wantValue: 50, wantGroup: "CFIHOS_0"},
		{id: "CFIHOS10000001", wantPrefix: "CFIHOS", wantValue: 10000001, wantGroup: "CFIHOS_1"},
		{id: "CFIHOSX-10000001", wantErrText: "no source prefix"},
		{id: "CFIHOS-EXTRA-1", wantErrText: "no numeric code"},
		{id: "CFIHOS-0", wantErrText: "no numeric code"},
		{id: "CFIHOS-", wantErrText: "no numeric code"},
		{id: "ACME-1", wantErrText: "no source prefix"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			code, err := ParseCode(tt.id, prefixes)
			if tt.wantErrText != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrText)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPrefix, code.Prefix)
			assert.Equal(t, tt.wantValue, code.Value)
			assert.Equal(t, tt.wantGroup, code.GroupPrefix())
		})
	}
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, "CFIHOS_30000311", Canonical("CFIHOS-30000311"))
	assert.Equal(t, "A_B_C", Canonical(" A.B C "))
}
