package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultNeo4jURI      = "bolt://localhost:7687"
	DefaultNeo4jUser     = "neo4j"
	DefaultNeo4jDatabase = "neo4j"
	DefaultNeo4jPoolSize = 25

	DefaultVectorBackend  = "local"
	DefaultLocalVectorDir = "data/vector_store"
	DefaultMilvusAddr     = "localhost:19530"
	DefaultMilvusTopK     = 10

	// Per-backend embedding dimensions, applied when embedding_dim is unset.
	DefaultLocalEmbeddingDim      = 384
	DefaultMilvusEmbeddingDim     = 1536
	DefaultOpenSearchEmbeddingDim = 1024
	MaxEmbeddingDim               = 3072

	DefaultCompletenessThreshold = 0.8
	DefaultAccuracyThreshold     = 0.9
	DefaultConsistencyThreshold  = 0.85
	DefaultTimelinessThreshold   = 0.95
	DefaultUniquenessThreshold   = 0.9
	DefaultMinOverallForStorage  = 0.7

	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200

	DefaultOntologyDirectory = "data/ontology"
	DefaultOntologyPrefix    = "hs"
	DefaultOntologyPrefixURI = "http://hazardsafe-kg.org/ontology#"

	DefaultPipelineBatchSize  = 100
	DefaultPipelineMaxRetries = 3
	DefaultIngestConcurrency  = 4

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// ApplyDefaults fills every zero-value field in cfg with the platform default.
// Fields that have already been set by the caller (non-zero values) are left
// unchanged so that explicit configuration always wins.  It must be called
// after unmarshalling and before Validate so that optional-but-defaulted
// fields are never seen as missing.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Neo4j ─────────────────────────────────────────────────────────────────
	if cfg.Neo4j.URI == "" {
		cfg.Neo4j.URI = DefaultNeo4jURI
	}
	if cfg.Neo4j.User == "" {
		cfg.Neo4j.User = DefaultNeo4jUser
	}
	if cfg.Neo4j.Database == "" {
		cfg.Neo4j.Database = DefaultNeo4jDatabase
	}
	if cfg.Neo4j.MaxConnectionPoolSize == 0 {
		cfg.Neo4j.MaxConnectionPoolSize = DefaultNeo4jPoolSize
	}
	if cfg.Neo4j.ConnectionTimeout == 0 {
		cfg.Neo4j.ConnectionTimeout = 10 * time.Second
	}

	// ── Vector ────────────────────────────────────────────────────────────────
	if cfg.Vector.Backend == "" {
		cfg.Vector.Backend = DefaultVectorBackend
	}
	if cfg.Vector.Local.Directory == "" {
		cfg.Vector.Local.Directory = DefaultLocalVectorDir
	}
	if cfg.Vector.Milvus.Addr == "" {
		cfg.Vector.Milvus.Addr = DefaultMilvusAddr
	}
	if cfg.Vector.Milvus.Collection == "" {
		cfg.Vector.Milvus.Collection = "hazardsafe_chunks"
	}
	if cfg.Vector.Milvus.IndexType == "" {
		cfg.Vector.Milvus.IndexType = "HNSW"
	}
	if cfg.Vector.Milvus.HNSWM == 0 {
		cfg.Vector.Milvus.HNSWM = 16
	}
	if cfg.Vector.Milvus.HNSWEfConstruction == 0 {
		cfg.Vector.Milvus.HNSWEfConstruction = 200
	}
	if cfg.Vector.Milvus.DefaultTopK == 0 {
		cfg.Vector.Milvus.DefaultTopK = DefaultMilvusTopK
	}
	if cfg.Vector.OpenSearch.Index == "" {
		cfg.Vector.OpenSearch.Index = "hazardsafe-chunks"
	}
	if cfg.Vector.OpenSearch.BulkBatchSize == 0 {
		cfg.Vector.OpenSearch.BulkBatchSize = 500
	}
	if cfg.Vector.EmbeddingDim == 0 {
		switch cfg.Vector.Backend {
		case "milvus":
			cfg.Vector.EmbeddingDim = DefaultMilvusEmbeddingDim
		case "opensearch":
			cfg.Vector.EmbeddingDim = DefaultOpenSearchEmbeddingDim
		default:
			cfg.Vector.EmbeddingDim = DefaultLocalEmbeddingDim
		}
	}

	// ── Quality ───────────────────────────────────────────────────────────────
	if cfg.Quality.CompletenessThreshold == 0 {
		cfg.Quality.CompletenessThreshold = DefaultCompletenessThreshold
	}
	if cfg.Quality.AccuracyThreshold == 0 {
		cfg.Quality.AccuracyThreshold = DefaultAccuracyThreshold
	}
	if cfg.Quality.ConsistencyThreshold == 0 {
		cfg.Quality.ConsistencyThreshold = DefaultConsistencyThreshold
	}
	if cfg.Quality.TimelinessThreshold == 0 {
		cfg.Quality.TimelinessThreshold = DefaultTimelinessThreshold
	}
	if cfg.Quality.UniquenessThreshold == 0 {
		cfg.Quality.UniquenessThreshold = DefaultUniquenessThreshold
	}
	if cfg.Quality.MinOverallForStorage == 0 {
		cfg.Quality.MinOverallForStorage = DefaultMinOverallForStorage
	}

	// ── Chunking ──────────────────────────────────────────────────────────────
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = DefaultChunkSize
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = DefaultChunkOverlap
	}

	// ── Ontology ──────────────────────────────────────────────────────────────
	if cfg.Ontology.Directory == "" {
		cfg.Ontology.Directory = DefaultOntologyDirectory
	}
	if cfg.Ontology.Prefix == "" {
		cfg.Ontology.Prefix = DefaultOntologyPrefix
	}
	if cfg.Ontology.PrefixURI == "" {
		cfg.Ontology.PrefixURI = DefaultOntologyPrefixURI
	}

	// ── Pipeline ──────────────────────────────────────────────────────────────
	if cfg.Pipeline.BatchSize == 0 {
		cfg.Pipeline.BatchSize = DefaultPipelineBatchSize
	}
	if cfg.Pipeline.MaxRetries == 0 {
		cfg.Pipeline.MaxRetries = DefaultPipelineMaxRetries
	}
	if cfg.Pipeline.IngestConcurrency == 0 {
		cfg.Pipeline.IngestConcurrency = DefaultIngestConcurrency
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}
