package cli

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/pthm/cfihos"
	"github.com/pthm/cfihos/pkg/grouping"
	"github.com/pthm/cfihos/pkg/model"
	"github.com/pthm/cfihos/pkg/scope"
	"github.com/pthm/cfihos/pkg/source"
)

const (
	maxWalkDepth = 25
	envPrefix    = "CFIHOS"
)

// configNames are tried in order in every directory during discovery.
var configNames = []string{"cfihos.yaml", "cfihos.yml"}

// Config represents the cfihos configuration from cfihos.yaml.
type Config struct {
	// Sources, merged in declaration order.
	Sources []source.Spec `mapstructure:"model_processors_config" json:"model_processors_config"`

	ProcessorType string `mapstructure:"processor_type" json:"processor_type"`
	ModelType     string `mapstructure:"model_type" json:"model_type"`
	Identifier    string `mapstructure:"dms_identifire" json:"dms_identifire"`

	ContainerSpace string `mapstructure:"container_data_model_space" json:"container_data_model_space"`
	ViewsSpace     string `mapstructure:"views_data_model_space" json:"views_data_model_space"`

	DataModelName        string `mapstructure:"data_model_name" json:"data_model_name"`
	DataModelDescription string `mapstructure:"data_model_description" json:"data_model_description"`
	DataModelExternalID  string `mapstructure:"data_model_external_id" json:"data_model_external_id"`
	ModelVersion         string `mapstructure:"model_version" json:"model_version"`
	ModelCreator         string `mapstructure:"model_creator" json:"model_creator"`

	BucketWidth     int  `mapstructure:"bucket_width" json:"bucket_width"`
	MirrorRelations bool `mapstructure:"mirror_relations" json:"mirror_relations"`

	// Root containers strategy only.
	RootNodes   []string `mapstructure:"root_nodes_list" json:"root_nodes_list,omitempty"`
	RootAnchors []string `mapstructure:"root_anchors" json:"root_anchors,omitempty"`

	Indexes map[string][]model.Index `mapstructure:"containers_indexes" json:"containers_indexes,omitempty"`

	Scope  string        `mapstructure:"scope" json:"scope,omitempty"`
	Scopes []scope.Scope `mapstructure:"scopes" json:"scopes,omitempty"`

	Ledger LedgerConfig `mapstructure:"ledger" json:"ledger"`
	Log    LogConfig    `mapstructure:"log" json:"log"`

	// dir is the directory of the config file; relative source paths
	// resolve against it.
	dir string
}

// LedgerConfig holds ledger database settings.
type LedgerConfig struct {
	Driver   string `mapstructure:"driver" json:"driver"`
	URL      string `mapstructure:"url" json:"url,omitempty"`
	Host     string `mapstructure:"host" json:"host,omitempty"`
	Port     int    `mapstructure:"port" json:"port,omitempty"`
	Name     string `mapstructure:"name" json:"name,omitempty"`
	User     string `mapstructure:"user" json:"user,omitempty"`
	Password string `mapstructure:"password" json:"-"`
	SSLMode  string `mapstructure:"sslmode" json:"sslmode,omitempty"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

// LoadConfig discovers and loads configuration with proper precedence:
// flags > env > config file > defaults.
//
// Returns the loaded config, the path to the config file (empty if none found),
// and any error encountered.
func LoadConfig(explicitConfigPath string) (*Config, string, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath, err := findConfigFile(explicitConfigPath)
	if err != nil {
		return nil, "", err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, configPath, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configPath, fmt.Errorf("unmarshaling config: %w", err)
	}
	if configPath != "" {
		cfg.dir = filepath.Dir(configPath)
	}

	return &cfg, configPath, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("processor_type", cfihos.StrategySparse)
	v.SetDefault("model_type", string(cfihos.ModeContainers))
	v.SetDefault("dms_identifire", string(model.IdentifierCode))

	v.SetDefault("container_data_model_space", "")
	v.SetDefault("views_data_model_space", "")
	v.SetDefault("data_model_name", "")
	v.SetDefault("data_model_description", "")
	v.SetDefault("data_model_external_id", "")
	v.SetDefault("model_version", "")
	v.SetDefault("model_creator", "")

	v.SetDefault("bucket_width", grouping.DefaultWidth)
	v.SetDefault("mirror_relations", false)
	v.SetDefault("scope", "")

	v.SetDefault("ledger.driver", "sqlite")
	v.SetDefault("ledger.url", "")
	v.SetDefault("ledger.host", "")
	v.SetDefault("ledger.port", 5432)
	v.SetDefault("ledger.name", "")
	v.SetDefault("ledger.user", "")
	v.SetDefault("ledger.password", "")
	v.SetDefault("ledger.sslmode", "prefer")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// findConfigFile finds the config file to use.
// If explicitPath is provided, it validates the file exists.
// Otherwise, it walks up from cwd looking for cfihos.yaml or cfihos.yml,
// stopping at a .git directory or after maxWalkDepth levels.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}

	dir := cwd
	for i := 0; i < maxWalkDepth; i++ {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", nil
}

// Core converts the file configuration into a run configuration.
func (c *Config) Core() cfihos.Config {
	ident, err := model.ParseIdentifier(c.Identifier)
	if err != nil {
		// leave the raw value for Validate to report
		ident = model.Identifier(c.Identifier)
	}
	return cfihos.Config{
		Strategy:        c.ProcessorType,
		Mode:            cfihos.Mode(strings.ToLower(strings.TrimSpace(c.ModelType))),
		Scope:           c.Scope,
		Scopes:          c.Scopes,
		BucketWidth:     c.BucketWidth,
		MirrorRelations: c.MirrorRelations,
		RootNodes:       c.RootNodes,
		RootAnchors:     c.RootAnchors,
		ContainerSpace:  c.ContainerSpace,
		ViewsSpace:      c.ViewsSpace,
		Identifier:      ident,
		Model: cfihos.ModelInfo{
			Name:        c.DataModelName,
			Description: c.DataModelDescription,
			ExternalID:  c.DataModelExternalID,
			Version:     c.ModelVersion,
			Creator:     c.ModelCreator,
		},
		Indexes: c.Indexes,
	}
}

// SourceSpecs returns the sources with relative paths resolved against the
// config file directory.
func (c *Config) SourceSpecs() []source.Spec {
	specs := make([]source.Spec, len(c.Sources))
	for i, s := range c.Sources {
		if c.dir != "" {
			s = s.WithBase(c.dir)
		}
		specs[i] = s
	}
	return specs
}

// DSN returns the ledger connection string.
// If ledger.url is set, it's returned directly. For sqlite, ledger.name is
// the database file. Otherwise a postgres DSN is built from discrete fields.
func (c *Config) DSN() (string, error) {
	db := c.Ledger

	if db.URL != "" {
		return db.URL, nil
	}

	if strings.HasPrefix(strings.ToLower(db.Driver), "sqlite") {
		if db.Name == "" {
			return "", fmt.Errorf("ledger.name is required for sqlite when ledger.url is not set")
		}
		return db.Name, nil
	}

	if db.Host == "" {
		return "", fmt.Errorf("ledger.host is required when ledger.url is not set")
	}
	if db.Name == "" {
		return "", fmt.Errorf("ledger.name is required when ledger.url is not set")
	}
	if db.User == "" {
		return "", fmt.Errorf("ledger.user is required when ledger.url is not set")
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   "/" + db.Name,
	}

	if db.Password != "" {
		u.User = url.UserPassword(db.User, db.Password)
	} else {
		u.User = url.User(db.User)
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

// LedgerConfigured reports whether any ledger location is set.
func (c *Config) LedgerConfigured() bool {
	return c.Ledger.URL != "" || c.Ledger.Name != "" || c.Ledger.Host != ""
}
