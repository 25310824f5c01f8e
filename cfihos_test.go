package cfihos_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pthm/cfihos"
	"github.com/pthm/cfihos/pkg/grouping"
	"github.com/pthm/cfihos/pkg/model"
	"github.com/pthm/cfihos/pkg/scope"
	"github.com/pthm/cfihos/pkg/taxonomy"
)

func testConfig() cfihos.Config {
	cfg := cfihos.DefaultConfig()
	cfg.ContainerSpace = "cfihos_containers"
	cfg.ViewsSpace = "cfihos_views"
	cfg.Model = cfihos.ModelInfo{
		Name:       "CFIHOS containers",
		ExternalID: "cfihos_model",
		Version:    "v1",
		Creator:    "tests",
	}
	cfg.Scopes = []scope.Scope{{
		Name:            "pump skid",
		Description:     "pumps",
		ModelExternalID: "pump-model",
		ModelVersion:    "v2",
		Subset:          []string{"T1"},
	}}
	return cfg
}

func testBatches() []taxonomy.Batch {
	return []taxonomy.Batch{
		{
			Source: "base",
			Prefix: "CFIHOS",
			Entities: []taxonomy.EntityRecord{
				{ID: "A", Name: "alpha", FirstClass: true},
				{ID: "B", Name: "beta"},
				{ID: "T0", Name: "root"},
				{ID: "T1", Name: "leaf", Parents: []string{"T0"}},
				{ID: "E9", Name: "target"},
			},
			Properties: []taxonomy.PropertyRecord{
				{ID: "CFIHOS-10000001", EntityID: "A", Name: "p1"},
				{ID: "CFIHOS-10000002", EntityID: "A", Name: "p2"},
				{ID: "CFIHOS-10000003", EntityID: "B", Name: "p3"},
				{ID: "CFIHOS-10000004", EntityID: "T0", Name: "p4"},
				{ID: "CFIHOS-10000100", EntityID: "T1", Name: "p100", Kind: taxonomy.KindDirect, Targets: []string{"E9"}},
			},
		},
		{
			Source: "ext",
			Prefix: "CFIHOS",
			Properties: []taxonomy.PropertyRecord{
				{ID: "CFIHOS-10000101", EntityID: "E9", Name: "p101"},
			},
		},
	}
}

func produce(t *testing.T, cfg cfihos.Config, batches []taxonomy.Batch) (*model.Result, error) {
	t.Helper()
	s, err := cfihos.DefaultRegistry().New(cfihos.StrategySparse, cfg, zap.NewNop())
	require.NoError(t, err)
	return s.Produce(batches)
}

func TestProduce_Containers(t *testing.T) {
	res, err := produce(t, testConfig(), testBatches())
	require.NoError(t, err)

	var containers []string
	for _, c := range res.Containers {
		containers = append(containers, c.Container)
	}
	assert.Equal(t, []string{
		"A",
		"CFIHOS_1_10000001_10000100",
		"CFIHOS_1_10000101_10000200",
		grouping.EntityTypeGroup,
	}, containers)

	slots := make(map[string][]string)
	for _, p := range res.Properties {
		slots[p.Container] = append(slots[p.Container], p.ContainerProperty)
	}
	assert.Equal(t, []string{"CFIHOS_10000001", "CFIHOS_10000002"}, slots["cfihos_containers:A"])
	assert.Equal(t, []string{"CFIHOS_10000003", "CFIHOS_10000004", "CFIHOS_10000100"}, slots["cfihos_containers:CFIHOS_1_10000001_10000100"])
	assert.Equal(t, []string{"CFIHOS_10000101"}, slots["cfihos_containers:CFIHOS_1_10000101_10000200"])

	assert.Equal(t, model.Metadata{
		Role:          "DMS Architect",
		DataModelType: "enterprise",
		Schema:        "complete",
		Space:         "cfihos_containers",
		Name:          "CFIHOS containers",
		ExternalID:    "cfihos_model",
		Version:       "v1",
		Creator:       "tests",
	}, res.Metadata)
}

func TestProduce_Views(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = cfihos.ModeViews
	cfg.Scope = "Pump Skid"

	res, err := produce(t, cfg, testBatches())
	require.NoError(t, err)
	assert.Empty(t, res.Containers)

	var views []string
	for _, v := range res.Views {
		views = append(views, v.View)
	}
	assert.Equal(t, []string{"T1", "T0", "E9"}, views)

	assert.Equal(t, "cfihos_views", res.Metadata.Space)
	assert.Equal(t, "CFIHOS_PUMP_SKID", res.Metadata.Name)
	assert.Equal(t, "CFIHOS_PUMP_MODEL", res.Metadata.ExternalID)
	assert.Equal(t, "v2", res.Metadata.Version)
	assert.Equal(t, "pumps", res.Metadata.Description)
}

func TestProduce_ConsistencyError(t *testing.T) {
	batches := []taxonomy.Batch{
		{Source: "base", Prefix: "CFIHOS", Entities: []taxonomy.EntityRecord{{ID: "X", FirstClass: true}}},
		{Source: "ext", Prefix: "CFIHOS", Entities: []taxonomy.EntityRecord{{ID: "X", FirstClass: false}}},
	}
	res, err := produce(t, testConfig(), batches)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, cfihos.IsConsistencyErr(err))
	assert.Contains(t, err.Error(), `true in "base"`)
	assert.Contains(t, err.Error(), `false in "ext"`)
}

func TestProduce_UnknownSeed(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = cfihos.ModeViews
	cfg.Scope = "pump skid"
	cfg.Scopes[0].Subset = []string{"T1", "T404"}

	res, err := produce(t, cfg, testBatches())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, cfihos.IsConfigurationErr(err))
	assert.ErrorIs(t, err, scope.ErrUnknownSeed)
	assert.Contains(t, err.Error(), "T404")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*cfihos.Config)
		want   []string
	}{
		{name: "valid containers", mutate: func(*cfihos.Config) {}},
		{
			name:   "missing container space",
			mutate: func(c *cfihos.Config) { c.ContainerSpace = "" },
			want:   []string{"container_data_model_space is required"},
		},
		{
			name:   "non-positive width",
			mutate: func(c *cfihos.Config) { c.BucketWidth = 0 },
			want:   []string{"bucket_width must be a positive integer"},
		},
		{
			name:   "invalid mode",
			mutate: func(c *cfihos.Config) { c.Mode = "tables" },
			want:   []string{`invalid model_type "tables"`},
		},
		{
			name: "views without scope",
			mutate: func(c *cfihos.Config) {
				c.Mode = cfihos.ModeViews
				c.ViewsSpace = ""
			},
			want: []string{"views_data_model_space is required", "scope is required"},
		},
		{
			name: "unknown scope",
			mutate: func(c *cfihos.Config) {
				c.Mode = cfihos.ModeViews
				c.Scope = "motors"
			},
			want: []string{`unknown scope: "motors"`},
		},
		{
			name: "scope missing model keys",
			mutate: func(c *cfihos.Config) {
				c.Mode = cfihos.ModeViews
				c.Scope = "pump skid"
				c.Scopes[0].ModelExternalID = ""
				c.Scopes[0].ModelVersion = ""
			},
			want: []string{"scope_model_external_id is required", "scope_model_version is required"},
		},
		{
			name: "scoped scope without subset",
			mutate: func(c *cfihos.Config) {
				c.Mode = cfihos.ModeViews
				c.Scope = "pump skid"
				c.Scopes[0].Subset = nil
			},
			want: []string{`scope "pump skid": scope_subset is empty`},
		},
		{
			name: "tags scope without subset",
			mutate: func(c *cfihos.Config) {
				c.Mode = cfihos.ModeViews
				c.Scope = "pump skid"
				c.Scopes[0].Subset = nil
				c.Scopes[0].Config = "TAGS"
			},
		},
		{
			name: "unknown scope_config",
			mutate: func(c *cfihos.Config) {
				c.Mode = cfihos.ModeViews
				c.Scope = "pump skid"
				c.Scopes[0].Config = "documents"
			},
			want: []string{`unknown scope_config "documents"`},
		},
		{
			name:   "bad identifier",
			mutate: func(c *cfihos.Config) { c.Identifier = "uuid" },
			want:   []string{`unknown identifier mode "uuid"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if len(tt.want) == 0 {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, cfihos.IsConfigurationErr(err))
			for _, w := range tt.want {
				assert.Contains(t, err.Error(), w)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	reg := cfihos.DefaultRegistry()
	assert.Equal(t, []string{"root_containers", "sparse"}, reg.Names())

	s, err := reg.New("sparse", testConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, "sparse", s.Name())

	_, err = reg.New("dense", testConfig(), nil)
	require.Error(t, err)
	assert.True(t, cfihos.IsUnknownStrategyErr(err))
	assert.True(t, cfihos.IsConfigurationErr(err))

	bad := testConfig()
	bad.ContainerSpace = ""
	_, err = reg.New("sparse", bad, nil)
	assert.True(t, cfihos.IsConfigurationErr(err))
}

func rootBatches() []taxonomy.Batch {
	return []taxonomy.Batch{{
		Source: "base",
		Prefix: "CFIHOS",
		Entities: []taxonomy.EntityRecord{
			{ID: "A", Name: "alpha", FirstClass: true},
			{ID: "TROOT", Name: "tag"},
			{ID: "T10", Name: "rotating", Parents: []string{"TROOT"}},
			{ID: "T11", Name: "pump", Parents: []string{"T10"}},
			{ID: "B", Name: "loose"},
		},
		Properties: []taxonomy.PropertyRecord{
			{ID: "CFIHOS-10000001", EntityID: "A"},
			{ID: "CFIHOS-10000002", EntityID: "T10", UOM: true},
			{ID: "CFIHOS-10000003", EntityID: "T11"},
			{ID: "CFIHOS-10000004", EntityID: "B"},
		},
	}}
}

func TestProduce_RootContainers(t *testing.T) {
	cfg := testConfig()
	cfg.Strategy = cfihos.StrategyRootContainers
	cfg.RootAnchors = []string{"TROOT"}

	s, err := cfihos.DefaultRegistry().New(cfihos.StrategyRootContainers, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, cfihos.StrategyRootContainers, s.Name())

	res, err := s.Produce(rootBatches())
	require.NoError(t, err)

	var containers []string
	for _, c := range res.Containers {
		containers = append(containers, c.Container)
	}
	assert.Equal(t, []string{"A", "T10", "T10_ext", "CFIHOS_1_10000001_10000100", grouping.EntityTypeGroup}, containers)
	assert.Equal(t, "rotating", res.Containers[1].Name)
	assert.Equal(t, "Shared properties of T10 and the classes below it", res.Containers[1].Description)

	slots := make(map[string][]string)
	for _, p := range res.Properties {
		slots[p.Container] = append(slots[p.Container], p.ContainerProperty)
	}
	assert.Equal(t, []string{"CFIHOS_10000002", "CFIHOS_10000003"}, slots["cfihos_containers:T10"])
	assert.Equal(t, []string{"CFIHOS_10000002_UOM"}, slots["cfihos_containers:T10_ext"])
	assert.Equal(t, []string{"CFIHOS_10000004"}, slots["cfihos_containers:CFIHOS_1_10000001_10000100"])
}

func TestProduce_RootContainersErrors(t *testing.T) {
	reg := cfihos.DefaultRegistry()

	_, err := reg.New(cfihos.StrategyRootContainers, testConfig(), nil)
	require.Error(t, err)
	assert.True(t, cfihos.IsConfigurationErr(err))
	assert.Contains(t, err.Error(), "root_nodes_list or root_anchors")

	cfg := testConfig()
	cfg.RootNodes = []string{"T404"}
	s, err := reg.New(cfihos.StrategyRootContainers, cfg, nil)
	require.NoError(t, err)
	res, err := s.Produce(rootBatches())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, cfihos.IsConfigurationErr(err))
	assert.ErrorIs(t, err, grouping.ErrUnknownRoot)
}
