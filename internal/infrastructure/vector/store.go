// Package vector implements the document-chunk vector index behind one Store
// interface with three interchangeable backends: a file-based local index, a
// Milvus collection, and an OpenSearch k-NN index.  The backend is selected
// once at startup from configuration.
package vector

import (
	"context"

	"github.com/hazardsafe/hazardsafe-kg/internal/config"
	"github.com/hazardsafe/hazardsafe-kg/internal/infrastructure/monitoring/logging"
	"github.com/hazardsafe/hazardsafe-kg/internal/infrastructure/monitoring/prometheus"
	apperrors "github.com/hazardsafe/hazardsafe-kg/pkg/errors"
)

// Chunk is one embedded document fragment.
type Chunk struct {
	ID         string                 `json:"id"`
	DocumentID string                 `json:"document_id"`
	Index      int                    `json:"index"`
	Text       string                 `json:"text"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Embedding  []float32              `json:"embedding,omitempty"`
}

// SearchHit is one similarity-search result.
type SearchHit struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Store is the vector-index adapter.  Upsert is idempotent on chunk ID;
// re-ingesting a document replaces its chunks rather than duplicating them.
type Store interface {
	Upsert(ctx context.Context, chunks []Chunk) error
	Search(ctx context.Context, embedding []float32, topK int, filter map[string]string) ([]SearchHit, error)
	DeleteDocument(ctx context.Context, documentID string) error
	Count(ctx context.Context) (int64, error)
	Close() error
}

// New builds the configured backend.
func New(cfg config.VectorConfig, log logging.Logger, metrics *prometheus.AppMetrics) (Store, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	switch cfg.Backend {
	case "local":
		return NewLocalStore(cfg.Local.Directory, cfg.EmbeddingDim, log, metrics)
	case "milvus":
		return NewMilvusStore(cfg.Milvus, cfg.EmbeddingDim, log, metrics)
	case "opensearch":
		return NewOpenSearchStore(cfg.OpenSearch, cfg.EmbeddingDim, log, metrics)
	default:
		return nil, apperrors.Newf(apperrors.ErrCodeVectorBackend, "unknown vector backend %q", cfg.Backend)
	}
}
