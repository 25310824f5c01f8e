package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batch(source string, entities []EntityRecord, props []PropertyRecord) Batch {
	return Batch{Source: source, Prefix: "CFIHOS", Entities: entities, Properties: props}
}

func TestBuild(t *testing.T) {
	g, err := Build(batch("base",
		[]EntityRecord{
			{ID: "CFIHOS-30000001", Name: "equipment", FirstClass: true},
			{ID: "CFIHOS-30000002", Name: "pump", Parents: []string{"CFIHOS-30000001", " "}},
		},
		[]PropertyRecord{
			{ID: "CFIHOS-10000001", EntityID: "CFIHOS-30000001", Name: "tag"},
			{ID: "CFIHOS-10000002", EntityID: "CFIHOS-30000002", Name: "flow", UOM: true},
		},
	))
	require.NoError(t, err)

	assert.Equal(t, 2, g.Len())
	assert.Equal(t, []string{"CFIHOS"}, g.Prefixes())

	pump, ok := g.Entity("CFIHOS-30000002")
	require.True(t, ok)
	assert.Equal(t, []string{"CFIHOS-30000001"}, pump.Parents)
	assert.Equal(t, "Pump", pump.StorageName)
	require.Len(t, pump.Properties, 1)
	assert.False(t, pump.Properties[0].FirstClass)

	p, ok := g.Property("CFIHOS-30000001", "CFIHOS-10000001")
	require.True(t, ok)
	assert.True(t, p.FirstClass, "property flag follows the owning entity")

	assert.Equal(t, []string{"CFIHOS-30000002"}, g.Children("CFIHOS-30000001"))
	assert.True(t, g.HasPropertyID("CFIHOS_10000002"))
}

func TestBuild_SharedPropertyAcrossEntities(t *testing.T) {
	g, err := Build(batch("base",
		[]EntityRecord{{ID: "E1"}, {ID: "E2"}},
		[]PropertyRecord{
			{ID: "CFIHOS-10000005", EntityID: "E1", DataType: "String"},
			{ID: "CFIHOS-10000005", EntityID: "E2", DataType: "string"},
		},
	))
	require.NoError(t, err)
	assert.Len(t, g.Occurrences("CFIHOS_10000005"), 2)
}

func TestBuild_Conflicts(t *testing.T) {
	tests := []struct {
		name     string
		batches  []Batch
		subjects []string
		contains []string
	}{
		{
			name: "duplicate entity with differing first-class flag",
			batches: []Batch{
				batch("base", []EntityRecord{{ID: "E1", FirstClass: true}}, nil),
				batch("ext", []EntityRecord{{ID: "E1", FirstClass: false}}, nil),
			},
			subjects: []string{"E1"},
			contains: []string{`true in "base"`, `false in "ext"`},
		},
		{
			name: "entity ids equal after normalization",
			batches: []Batch{
				batch("base", []EntityRecord{{ID: "F-1", FirstClass: true}}, nil),
				batch("ext", []EntityRecord{{ID: "F_1", FirstClass: true}}, nil),
			},
			subjects: []string{"F_1"},
			contains: []string{`"F-1" and "F_1" are the same after normalization`},
		},
		{
			name: "duplicate property occurrence",
			batches: []Batch{
				batch("base", []EntityRecord{{ID: "E1"}}, []PropertyRecord{{ID: "CFIHOS-1", EntityID: "E1"}}),
				batch("ext", nil, []PropertyRecord{{ID: "CFIHOS-1", EntityID: "E1"}}),
			},
			subjects: []string{"E1.CFIHOS-1"},
			contains: []string{"duplicate property occurrence"},
		},
		{
			name: "unknown owner",
			batches: []Batch{
				batch("base", nil, []PropertyRecord{{ID: "CFIHOS-1", EntityID: "missing"}}),
			},
			subjects: []string{"missing.CFIHOS-1"},
			contains: []string{`owning entity "missing" not found`},
		},
		{
			name: "no numeric code",
			batches: []Batch{
				batch("base", []EntityRecord{{ID: "E1"}}, []PropertyRecord{{ID: "CFIHOS-abc", EntityID: "E1"}}),
			},
			subjects: []string{"E1.CFIHOS-abc"},
			contains: []string{"no numeric code"},
		},
		{
			name: "unmatched prefix",
			batches: []Batch{
				batch("base", []EntityRecord{{ID: "E1"}}, []PropertyRecord{{ID: "OTHER-10000001", EntityID: "E1"}}),
			},
			subjects: []string{"E1.OTHER-10000001"},
			contains: []string{"matches no source prefix"},
		},
		{
			name: "inconsistent attributes",
			batches: []Batch{
				batch("base", []EntityRecord{{ID: "E1"}, {ID: "E2"}}, []PropertyRecord{
					{ID: "CFIHOS-10000001", EntityID: "E1", DataType: "String"},
					{ID: "CFIHOS-10000001", EntityID: "E2", DataType: "Float", UOM: true},
				}),
			},
			subjects: []string{"CFIHOS_10000001"},
			contains: []string{`data_type "String" vs "Float"`, "uom false vs true"},
		},
		{
			name: "relation without target",
			batches: []Batch{
				batch("base", []EntityRecord{{ID: "E1"}}, []PropertyRecord{{ID: "CFIHOS-10000001", EntityID: "E1", Kind: KindDirect}}),
			},
			subjects: []string{"E1.CFIHOS-10000001"},
			contains: []string{"direct relation has no target"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Build(tt.batches...)
			require.Error(t, err)
			assert.Nil(t, g)
			assert.True(t, IsConsistencyErr(err))

			var cerr *ConsistencyError
			require.ErrorAs(t, err, &cerr)
			var subjects []string
			for _, c := range cerr.Conflicts {
				subjects = append(subjects, c.Subject)
			}
			assert.Equal(t, tt.subjects, subjects)
			for _, s := range tt.contains {
				assert.Contains(t, err.Error(), s)
			}
		})
	}
}

func TestBuild_AggregatesAllConflicts(t *testing.T) {
	_, err := Build(
		batch("base", []EntityRecord{{ID: "E1"}, {ID: "E2"}}, []PropertyRecord{{ID: "CFIHOS-x", EntityID: "E1"}}),
		batch("ext", []EntityRecord{{ID: "E1"}, {ID: "E2"}}, nil),
	)
	var cerr *ConsistencyError
	require.ErrorAs(t, err, &cerr)
	assert.Len(t, cerr.Conflicts, 3)
	assert.Equal(t, []string{"base", "ext"}, cerr.Conflicts[0].Sources)
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"", KindScalar, false},
		{"BASIC_DATA_TYPE", KindScalar, false},
		{"ENTITY_RELATION", KindDirect, false},
		{"reverse", KindReverse, false},
		{"EDGE_RELATION", KindEdge, false},
		{"bogus", KindScalar, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
