package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"github.com/hazardsafe/hazardsafe-kg/internal/config"
	"github.com/hazardsafe/hazardsafe-kg/internal/infrastructure/monitoring/logging"
	"github.com/hazardsafe/hazardsafe-kg/internal/infrastructure/monitoring/prometheus"
	apperrors "github.com/hazardsafe/hazardsafe-kg/pkg/errors"
)

// milvusNewClient is a variable so tests can substitute a fake client.
var milvusNewClient = client.NewClient

const (
	milvusIDField       = "id"
	milvusDocField      = "document_id"
	milvusIndexField    = "chunk_index"
	milvusTextField     = "text"
	milvusMetaField     = "metadata"
	milvusVectorField   = "embedding"
	milvusDefaultSearch = 64 // ef at query time
)

// milvusStore keeps chunks in one Milvus collection with an HNSW cosine
// index over the embedding field.
type milvusStore struct {
	client     client.Client
	cfg        config.MilvusConfig
	dim        int
	collection string
	logger     logging.Logger
	metrics    *prometheus.AppMetrics
}

// NewMilvusStore connects, ensures the collection and index, and loads the
// collection into memory.
func NewMilvusStore(cfg config.MilvusConfig, dim int, log logging.Logger, metrics *prometheus.AppMetrics) (Store, error) {
	if cfg.Addr == "" {
		return nil, apperrors.New(apperrors.ErrCodeVectorBackend, "milvus address is required")
	}
	if dim <= 0 {
		return nil, apperrors.New(apperrors.ErrCodeVectorBackend, "embedding dimension must be positive")
	}

	dialOpts := []grpc.DialOption{
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                60 * time.Second,
			Timeout:             20 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	if !cfg.EnableTLS {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mc, err := milvusNewClient(ctx, client.Config{
		Address:       cfg.Addr,
		DBName:        cfg.DBName,
		EnableTLSAuth: cfg.EnableTLS,
		DialOptions:   dialOpts,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeBackendUnavailable, "connect to milvus")
	}

	s := &milvusStore{
		client:     mc,
		cfg:        cfg,
		dim:        dim,
		collection: cfg.Collection,
		logger:     log,
		metrics:    metrics,
	}
	if s.collection == "" {
		s.collection = "hazard_chunks"
	}
	if err := s.ensureCollection(ctx); err != nil {
		mc.Close()
		return nil, err
	}
	log.Info("milvus vector store ready",
		logging.String("addr", cfg.Addr), logging.String("collection", s.collection))
	return s, nil
}

func (s *milvusStore) ensureCollection(ctx context.Context) error {
	has, err := s.client.HasCollection(ctx, s.collection)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeBackendUnavailable, "check milvus collection")
	}
	if !has {
		schema := &entity.Schema{
			CollectionName: s.collection,
			Description:    "hazardous-substance document chunks",
			Fields: []*entity.Field{
				{Name: milvusIDField, DataType: entity.FieldTypeVarChar, PrimaryKey: true,
					TypeParams: map[string]string{"max_length": "128"}},
				{Name: milvusDocField, DataType: entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "128"}},
				{Name: milvusIndexField, DataType: entity.FieldTypeInt64},
				{Name: milvusTextField, DataType: entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "8192"}},
				{Name: milvusMetaField, DataType: entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "4096"}},
				{Name: milvusVectorField, DataType: entity.FieldTypeFloatVector,
					TypeParams: map[string]string{"dim": strconv.Itoa(s.dim)}},
			},
		}
		if err := s.client.CreateCollection(ctx, schema, 2); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeVectorBackend, "create milvus collection")
		}

		m := s.cfg.HNSWM
		if m <= 0 {
			m = 16
		}
		ef := s.cfg.HNSWEfConstruction
		if ef <= 0 {
			ef = 200
		}
		idx, err := entity.NewIndexHNSW(entity.COSINE, m, ef)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeVectorBackend, "build hnsw index")
		}
		if err := s.client.CreateIndex(ctx, s.collection, milvusVectorField, idx, false); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeVectorBackend, "create milvus index")
		}
	}
	if err := s.client.LoadCollection(ctx, s.collection, false); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeVectorBackend, "load milvus collection")
	}
	return nil
}

func (s *milvusStore) Upsert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	ids := make([]string, 0, len(chunks))
	docs := make([]string, 0, len(chunks))
	idxs := make([]int64, 0, len(chunks))
	texts := make([]string, 0, len(chunks))
	metas := make([]string, 0, len(chunks))
	vectors := make([][]float32, 0, len(chunks))

	for _, c := range chunks {
		if len(c.Embedding) != s.dim {
			return apperrors.Newf(apperrors.ErrCodeVectorBackend,
				"chunk %s: embedding dimension %d, want %d", c.ID, len(c.Embedding), s.dim)
		}
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return apperrors.Wrapf(err, apperrors.ErrCodeSerialization, "chunk %s metadata", c.ID)
		}
		ids = append(ids, c.ID)
		docs = append(docs, c.DocumentID)
		idxs = append(idxs, int64(c.Index))
		texts = append(texts, c.Text)
		metas = append(metas, string(meta))
		vectors = append(vectors, c.Embedding)
	}

	_, err := s.client.Upsert(ctx, s.collection, "",
		entity.NewColumnVarChar(milvusIDField, ids),
		entity.NewColumnVarChar(milvusDocField, docs),
		entity.NewColumnInt64(milvusIndexField, idxs),
		entity.NewColumnVarChar(milvusTextField, texts),
		entity.NewColumnVarChar(milvusMetaField, metas),
		entity.NewColumnFloatVector(milvusVectorField, s.dim, vectors),
	)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeVectorBackend, "milvus upsert")
	}
	if s.metrics != nil {
		s.metrics.ChunksUpserted.WithLabelValues("milvus").Add(float64(len(chunks)))
	}
	return nil
}

func (s *milvusStore) Search(ctx context.Context, embedding []float32, topK int, filter map[string]string) ([]SearchHit, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.VectorSearchDuration.WithLabelValues("milvus").Observe(time.Since(start).Seconds())
		}
	}()
	if topK <= 0 {
		topK = s.cfg.DefaultTopK
	}
	if topK <= 0 {
		topK = 10
	}

	expr := ""
	if doc, ok := filter["document_id"]; ok {
		expr = fmt.Sprintf("%s == %q", milvusDocField, doc)
	}

	sp, err := entity.NewIndexHNSWSearchParam(milvusDefaultSearch)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeVectorBackend, "build search params")
	}

	results, err := s.client.Search(ctx, s.collection, nil, expr,
		[]string{milvusIDField, milvusDocField, milvusIndexField, milvusTextField, milvusMetaField},
		[]entity.Vector{entity.FloatVector(embedding)},
		milvusVectorField, entity.COSINE, topK, sp)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeVectorBackend, "milvus search")
	}

	var hits []SearchHit
	for _, result := range results {
		idCol := varCharColumn(result.Fields.GetColumn(milvusIDField))
		docCol := varCharColumn(result.Fields.GetColumn(milvusDocField))
		textCol := varCharColumn(result.Fields.GetColumn(milvusTextField))
		metaCol := varCharColumn(result.Fields.GetColumn(milvusMetaField))
		idxCol := int64Column(result.Fields.GetColumn(milvusIndexField))

		for i := 0; i < result.ResultCount; i++ {
			chunk := Chunk{
				ID:         at(idCol, i),
				DocumentID: at(docCol, i),
				Text:       at(textCol, i),
			}
			if idxCol != nil && i < len(idxCol) {
				chunk.Index = int(idxCol[i])
			}
			if raw := at(metaCol, i); raw != "" {
				_ = json.Unmarshal([]byte(raw), &chunk.Metadata)
			}
			hits = append(hits, SearchHit{Chunk: chunk, Score: float64(result.Scores[i])})
		}
	}
	return hits, nil
}

func varCharColumn(col entity.Column) []string {
	if c, ok := col.(*entity.ColumnVarChar); ok {
		return c.Data()
	}
	return nil
}

func int64Column(col entity.Column) []int64 {
	if c, ok := col.(*entity.ColumnInt64); ok {
		return c.Data()
	}
	return nil
}

func at(data []string, i int) string {
	if i < len(data) {
		return data[i]
	}
	return ""
}

func (s *milvusStore) DeleteDocument(ctx context.Context, documentID string) error {
	expr := fmt.Sprintf("%s == %q", milvusDocField, documentID)
	if err := s.client.Delete(ctx, s.collection, "", expr); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeVectorBackend, "milvus delete")
	}
	return nil
}

func (s *milvusStore) Count(ctx context.Context) (int64, error) {
	stats, err := s.client.GetCollectionStatistics(ctx, s.collection)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeVectorBackend, "milvus statistics")
	}
	if raw, ok := stats["row_count"]; ok {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err == nil {
			return n, nil
		}
	}
	return 0, nil
}

func (s *milvusStore) Close() error {
	return s.client.Close()
}
