package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all settings.
const envPrefix = "HAZKG"

// newViper builds a pre-configured Viper instance with the standard settings:
// YAML file type, HAZKG_ env prefix, automatic env binding, and a key replacer
// that maps "." → "_" so that nested keys like "neo4j.uri" resolve to
// "HAZKG_NEO4J_URI".
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// Unmarshal only sees keys viper knows about, so env-only keys must be
	// bound explicitly.
	for _, key := range knownKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// knownKeys lists every configuration key so that HAZKG_* environment
// variables are picked up even when no config file mentions them.
var knownKeys = []string{
	"neo4j.uri", "neo4j.user", "neo4j.password", "neo4j.database",
	"neo4j.max_connection_pool_size", "neo4j.connection_timeout",
	"vector.backend", "vector.embedding_dim",
	"vector.local.directory",
	"vector.milvus.addr", "vector.milvus.db_name", "vector.milvus.collection",
	"vector.milvus.index_type", "vector.milvus.hnsw_m",
	"vector.milvus.hnsw_ef_construction", "vector.milvus.default_top_k",
	"vector.milvus.enable_tls",
	"vector.opensearch.addresses", "vector.opensearch.user",
	"vector.opensearch.password", "vector.opensearch.index",
	"vector.opensearch.insecure_skip_verify", "vector.opensearch.bulk_batch_size",
	"quality.completeness_threshold", "quality.accuracy_threshold",
	"quality.consistency_threshold", "quality.timeliness_threshold",
	"quality.uniqueness_threshold", "quality.min_overall_for_storage",
	"chunking.size", "chunking.overlap",
	"ontology.directory", "ontology.prefix", "ontology.prefix_uri",
	"pipeline.batch_size", "pipeline.max_retries", "pipeline.stage_timeout",
	"pipeline.ingest_concurrency",
	"log.level", "log.format", "log.output", "log.enable_caller",
	"log.enable_stacktrace",
}

// Load reads the YAML file at configPath, merges any HAZKG_* environment
// variable overrides, applies defaults for unset fields, and validates the
// result.  It returns a fully-populated *Config or a descriptive error.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config entirely from HAZKG_* environment variables,
// with no config file required.  This is the preferred loading strategy for
// containerised deployments.
//
// Environment variable naming convention:
//
//	HAZKG_<SECTION>_<FIELD>   e.g.  HAZKG_NEO4J_URI, HAZKG_VECTOR_BACKEND
func LoadFromEnv() (*Config, error) {
	v := newViper()
	// No config file — rely solely on env vars and defaults.
	return unmarshalAndFinalize(v)
}

// unmarshalAndFinalize unmarshals viper state into a Config struct, applies
// defaults, and validates the result.
func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// MustLoad is a convenience wrapper around Load that panics on any error.
// It is intended for use in main() where a config-load failure is always fatal.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
