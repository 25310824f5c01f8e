package source

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pthm/cfihos/pkg/taxonomy"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func specs() []Spec {
	return []Spec{
		Spec{
			Name:       "base",
			Prefix:     "CFIHOS",
			Entities:   "base_entities.csv",
			Properties: "base_properties.csv",
		}.WithBase("testdata"),
		Spec{Name: "ext", Prefix: "EXT", Path: "ext.yaml"}.WithBase("testdata"),
	}
}

func TestLoad(t *testing.T) {
	batches, err := Load(context.Background(), specs())
	require.NoError(t, err)
	require.Len(t, batches, 2)

	base := batches[0]
	assert.Equal(t, "base", base.Source)
	assert.Equal(t, "CFIHOS", base.Prefix)
	assert.Equal(t, []taxonomy.EntityRecord{
		{ID: "T0", Name: "Tag", Description: "Any tagged item"},
		{ID: "T1", Name: "Pump", Description: "Centrifugal pump", Parents: []string{"T0"}},
		{
			ID: "E9", Name: "Manufacturer", Description: "Equipment manufacturer", FirstClass: true,
			CoreImplements: []string{"cdf_cdm:CogniteAsset(version=v1)", "cdf_cdm:CogniteDescribable(version=v1)"},
		},
	}, base.Entities)

	require.Len(t, base.Properties, 4)
	assert.Equal(t, taxonomy.PropertyRecord{
		ID: "CFIHOS-10000004", EntityID: "T0", Name: "tag number",
		Kind: taxonomy.KindScalar, DataType: "string", Required: true,
	}, base.Properties[0])
	assert.True(t, base.Properties[1].UOM)
	assert.Equal(t, taxonomy.KindDirect, base.Properties[2].Kind)
	assert.Equal(t, []string{"E9"}, base.Properties[2].Targets)
	assert.Equal(t, "CFIHOS-10000200", base.Properties[3].ID, "blank rows are skipped")

	ext := batches[1]
	assert.Equal(t, "EXT", ext.Prefix)
	assert.Equal(t, []string{"T1"}, ext.Entities[0].Parents)
	assert.Equal(t, "integer", ext.Properties[0].DataType)
}

func TestLoad_BuildsGraph(t *testing.T) {
	batches, err := Load(context.Background(), specs())
	require.NoError(t, err)

	g, err := taxonomy.Build(batches...)
	require.NoError(t, err)
	assert.Equal(t, 4, g.Len())
	assert.Equal(t, []string{"T1", "T0"}, g.Ancestors("P1"))
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name  string
		specs []Spec
		want  string
	}{
		{
			name:  "missing name",
			specs: []Spec{{Prefix: "X", Path: "a.yaml"}},
			want:  "name is required",
		},
		{
			name:  "missing prefix",
			specs: []Spec{{Name: "a", Path: "a.yaml"}},
			want:  "prefix is required",
		},
		{
			name:  "csv without sheets",
			specs: []Spec{{Name: "a", Prefix: "X", Format: FormatCSV}},
			want:  "csv source needs entities or properties",
		},
		{
			name:  "unknown format",
			specs: []Spec{{Name: "a", Prefix: "X", Format: "xlsx", Path: "a.xlsx"}},
			want:  `unknown format "xlsx"`,
		},
		{
			name: "duplicate name",
			specs: []Spec{
				{Name: "a", Prefix: "X", Path: "testdata/ext.yaml"},
				{Name: "a", Prefix: "X", Path: "testdata/ext.yaml"},
			},
			want: `duplicate source name "a"`,
		},
		{
			name:  "bad boolean",
			specs: []Spec{{Name: "a", Prefix: "X", Entities: "testdata/bad_bool.csv"}},
			want:  `invalid boolean "maybe"`,
		},
		{
			name:  "missing id column",
			specs: []Spec{{Name: "a", Prefix: "X", Entities: "testdata/no_id.csv"}},
			want:  `missing column "id"`,
		},
		{
			name:  "missing file",
			specs: []Spec{{Name: "a", Prefix: "X", Path: "testdata/nope.yaml"}},
			want:  `source "a"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches, err := Load(context.Background(), tt.specs)
			require.Error(t, err)
			assert.Nil(t, batches)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Load(ctx, specs())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSpec_Format(t *testing.T) {
	assert.Equal(t, FormatYAML, Spec{Path: "x.yml"}.EffectiveFormat())
	assert.Equal(t, FormatYAML, Spec{Path: "x.YAML"}.EffectiveFormat())
	assert.Equal(t, FormatCSV, Spec{Entities: "e.csv"}.EffectiveFormat())
	assert.Equal(t, FormatYAML, Spec{Format: "YAML"}.EffectiveFormat())
}

func TestSpec_WithBase(t *testing.T) {
	abs, err := filepath.Abs("testdata")
	require.NoError(t, err)

	s := Spec{Entities: "e.csv", Properties: abs}.WithBase("root")
	assert.Equal(t, filepath.Join("root", "e.csv"), s.Entities)
	assert.Equal(t, abs, s.Properties)
	assert.Empty(t, s.Path)
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"true", "YES", "y", "1", "x", "X"} {
		b, err := parseBool(v)
		require.NoError(t, err, v)
		assert.True(t, b, v)
	}
	for _, v := range []string{"", "false", "No", "0"} {
		b, err := parseBool(v)
		require.NoError(t, err, v)
		assert.False(t, b, v)
	}
}
