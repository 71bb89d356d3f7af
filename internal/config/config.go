// Package config defines all configuration structures for HazardSafe-KG.
// No I/O or parsing logic lives here — only plain data types and validation.
package config

import (
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// Neo4jConfig holds property-graph connection parameters.
type Neo4jConfig struct {
	URI                   string        `mapstructure:"uri"`
	User                  string        `mapstructure:"user"`
	Password              string        `mapstructure:"password"`
	Database              string        `mapstructure:"database"`
	MaxConnectionPoolSize int           `mapstructure:"max_connection_pool_size"`
	ConnectionTimeout     time.Duration `mapstructure:"connection_timeout"`
}

// LocalVectorConfig holds parameters for the file-based vector backend.
type LocalVectorConfig struct {
	// Directory receives documents.json and embeddings.json.
	Directory string `mapstructure:"directory"`
}

// MilvusConfig holds Milvus vector-store connection parameters.
type MilvusConfig struct {
	Addr               string `mapstructure:"addr"`
	DBName             string `mapstructure:"db_name"`
	Collection         string `mapstructure:"collection"`
	IndexType          string `mapstructure:"index_type"`
	HNSWM              int    `mapstructure:"hnsw_m"`
	HNSWEfConstruction int    `mapstructure:"hnsw_ef_construction"`
	DefaultTopK        int    `mapstructure:"default_top_k"`
	EnableTLS          bool   `mapstructure:"enable_tls"`
}

// OpenSearchConfig holds OpenSearch k-NN index connection parameters.
type OpenSearchConfig struct {
	Addresses          []string `mapstructure:"addresses"`
	User               string   `mapstructure:"user"`
	Password           string   `mapstructure:"password"`
	Index              string   `mapstructure:"index"`
	InsecureSkipVerify bool     `mapstructure:"insecure_skip_verify"`
	BulkBatchSize      int      `mapstructure:"bulk_batch_size"`
}

// VectorConfig selects and parameterizes the vector-store backend.  The
// backend is chosen once at startup and never changes during a process
// lifetime.
type VectorConfig struct {
	// Backend is one of "local", "milvus", "opensearch".
	Backend string `mapstructure:"backend"`
	// EmbeddingDim is the dimensionality of stored embeddings.  Zero selects
	// the backend default (local 384, milvus 1536, opensearch 1024).
	EmbeddingDim int              `mapstructure:"embedding_dim"`
	Local        LocalVectorConfig `mapstructure:"local"`
	Milvus       MilvusConfig      `mapstructure:"milvus"`
	OpenSearch   OpenSearchConfig  `mapstructure:"opensearch"`
}

// QualityConfig holds the per-dimension quality thresholds and the minimum
// overall score required before the ontology pipeline may store a batch.
type QualityConfig struct {
	CompletenessThreshold float64 `mapstructure:"completeness_threshold"`
	AccuracyThreshold     float64 `mapstructure:"accuracy_threshold"`
	ConsistencyThreshold  float64 `mapstructure:"consistency_threshold"`
	TimelinessThreshold   float64 `mapstructure:"timeliness_threshold"`
	UniquenessThreshold   float64 `mapstructure:"uniqueness_threshold"`
	MinOverallForStorage  float64 `mapstructure:"min_overall_for_storage"`
}

// ChunkingConfig holds text-chunking parameters for the document pipeline.
type ChunkingConfig struct {
	Size    int `mapstructure:"size"`
	Overlap int `mapstructure:"overlap"`
}

// OntologyConfig holds ontology-store parameters.
type OntologyConfig struct {
	Directory string `mapstructure:"directory"`
	Prefix    string `mapstructure:"prefix"`
	PrefixURI string `mapstructure:"prefix_uri"`
}

// PipelineConfig holds execution parameters shared by both pipelines.
type PipelineConfig struct {
	// BatchSize bounds the group size for batched upserts.
	BatchSize int `mapstructure:"batch_size"`
	// MaxRetries bounds backoff retries on retryable vector-store errors.
	MaxRetries int `mapstructure:"max_retries"`
	// StageTimeout is the advisory per-stage deadline; zero disables it.
	StageTimeout time.Duration `mapstructure:"stage_timeout"`
	// IngestConcurrency bounds parallel file loads during a directory scan.
	IngestConcurrency int `mapstructure:"ingest_concurrency"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level            string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format           string `mapstructure:"format"` // "json" | "text"
	Output           string `mapstructure:"output"`
	EnableCaller     bool   `mapstructure:"enable_caller"`
	EnableStacktrace bool   `mapstructure:"enable_stacktrace"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure.  It is read once at startup and
// treated as immutable for the lifetime of the process.
type Config struct {
	Neo4j    Neo4jConfig    `mapstructure:"neo4j"`
	Vector   VectorConfig   `mapstructure:"vector"`
	Quality  QualityConfig  `mapstructure:"quality"`
	Chunking ChunkingConfig `mapstructure:"chunking"`
	Ontology OntologyConfig `mapstructure:"ontology"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Log      LogConfig      `mapstructure:"log"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start.
func (c *Config) Validate() error {
	// Neo4j
	if c.Neo4j.URI == "" {
		return fmt.Errorf("config: neo4j.uri is required")
	}
	if c.Neo4j.User == "" {
		return fmt.Errorf("config: neo4j.user is required")
	}
	if c.Neo4j.Database == "" {
		return fmt.Errorf("config: neo4j.database is required")
	}

	// Vector
	switch c.Vector.Backend {
	case "local":
		if c.Vector.Local.Directory == "" {
			return fmt.Errorf("config: vector.local.directory is required for the local backend")
		}
	case "milvus":
		if c.Vector.Milvus.Addr == "" {
			return fmt.Errorf("config: vector.milvus.addr is required for the milvus backend")
		}
	case "opensearch":
		if len(c.Vector.OpenSearch.Addresses) == 0 {
			return fmt.Errorf("config: vector.opensearch.addresses must contain at least one node")
		}
	default:
		return fmt.Errorf("config: vector.backend %q is invalid; expected local|milvus|opensearch", c.Vector.Backend)
	}
	if c.Vector.EmbeddingDim < 0 {
		return fmt.Errorf("config: vector.embedding_dim must be ≥ 0, got %d", c.Vector.EmbeddingDim)
	}

	// Quality thresholds are shares in [0,1].
	for name, v := range map[string]float64{
		"quality.completeness_threshold":  c.Quality.CompletenessThreshold,
		"quality.accuracy_threshold":      c.Quality.AccuracyThreshold,
		"quality.consistency_threshold":   c.Quality.ConsistencyThreshold,
		"quality.timeliness_threshold":    c.Quality.TimelinessThreshold,
		"quality.uniqueness_threshold":    c.Quality.UniquenessThreshold,
		"quality.min_overall_for_storage": c.Quality.MinOverallForStorage,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("config: %s %v is out of range [0, 1]", name, v)
		}
	}

	// Chunking
	if c.Chunking.Size < 1 {
		return fmt.Errorf("config: chunking.size must be ≥ 1, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("config: chunking.overlap %d must be in [0, size)", c.Chunking.Overlap)
	}

	// Pipeline
	if c.Pipeline.BatchSize < 1 {
		return fmt.Errorf("config: pipeline.batch_size must be ≥ 1, got %d", c.Pipeline.BatchSize)
	}
	if c.Pipeline.MaxRetries < 0 {
		return fmt.Errorf("config: pipeline.max_retries must be ≥ 0, got %d", c.Pipeline.MaxRetries)
	}
	if c.Pipeline.IngestConcurrency < 1 {
		return fmt.Errorf("config: pipeline.ingest_concurrency must be ≥ 1, got %d", c.Pipeline.IngestConcurrency)
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|text", c.Log.Format)
	}

	return nil
}
