package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/hazardsafe/hazardsafe-kg/internal/config"
	"github.com/hazardsafe/hazardsafe-kg/internal/infrastructure/monitoring/logging"
	"github.com/hazardsafe/hazardsafe-kg/internal/infrastructure/monitoring/prometheus"
	apperrors "github.com/hazardsafe/hazardsafe-kg/pkg/errors"
)

// osStore keeps chunks in an OpenSearch k-NN index.
type osStore struct {
	client  *opensearch.Client
	index   string
	dim     int
	batch   int
	logger  logging.Logger
	metrics *prometheus.AppMetrics
}

// NewOpenSearchStore connects, pings the cluster, and ensures the k-NN index
// exists with the expected mapping.
func NewOpenSearchStore(cfg config.OpenSearchConfig, dim int, log logging.Logger, metrics *prometheus.AppMetrics) (Store, error) {
	if len(cfg.Addresses) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeVectorBackend, "opensearch addresses are required")
	}
	if dim <= 0 {
		return nil, apperrors.New(apperrors.ErrCodeVectorBackend, "embedding dimension must be positive")
	}

	transport := &http.Transport{MaxIdleConnsPerHost: 10}
	osc, err := opensearch.NewClient(opensearch.Config{
		Addresses:     cfg.Addresses,
		Username:      cfg.User,
		Password:      cfg.Password,
		MaxRetries:    3,
		RetryBackoff:  func(int) time.Duration { return 100 * time.Millisecond },
		RetryOnStatus: []int{429, 502, 503, 504},
		Transport:     transport,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeBackendUnavailable, "create opensearch client")
	}

	s := &osStore{
		client:  osc,
		index:   cfg.Index,
		dim:     dim,
		batch:   cfg.BulkBatchSize,
		logger:  log,
		metrics: metrics,
	}
	if s.index == "" {
		s.index = "hazard-chunks"
	}
	if s.batch <= 0 {
		s.batch = 500
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.ping(ctx); err != nil {
		return nil, err
	}
	if err := s.ensureIndex(ctx); err != nil {
		return nil, err
	}
	log.Info("opensearch vector store ready",
		logging.String("index", s.index), logging.Int("dim", dim))
	return s, nil
}

func (s *osStore) ping(ctx context.Context) error {
	resp, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeBackendUnavailable, "ping opensearch")
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return apperrors.Newf(apperrors.ErrCodeBackendUnavailable, "opensearch ping status %d", resp.StatusCode)
	}
	return nil
}

func (s *osStore) ensureIndex(ctx context.Context) error {
	existsResp, err := opensearchapi.IndicesExistsRequest{Index: []string{s.index}}.Do(ctx, s.client)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeBackendUnavailable, "check opensearch index")
	}
	defer existsResp.Body.Close()
	if existsResp.StatusCode == 200 {
		return nil
	}

	mapping := map[string]interface{}{
		"settings": map[string]interface{}{
			"index": map[string]interface{}{"knn": true},
		},
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"document_id": map[string]interface{}{"type": "keyword"},
				"chunk_index": map[string]interface{}{"type": "integer"},
				"text":        map[string]interface{}{"type": "text"},
				"metadata":    map[string]interface{}{"type": "object"},
				"embedding": map[string]interface{}{
					"type":      "knn_vector",
					"dimension": s.dim,
				},
			},
		},
	}
	body, err := json.Marshal(mapping)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeSerialization, "marshal index mapping")
	}

	resp, err := opensearchapi.IndicesCreateRequest{Index: s.index, Body: bytes.NewReader(body)}.Do(ctx, s.client)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeVectorBackend, "create opensearch index")
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return apperrors.Newf(apperrors.ErrCodeVectorBackend, "create index status %d", resp.StatusCode)
	}
	return nil
}

type osChunkDoc struct {
	DocumentID string                 `json:"document_id"`
	ChunkIndex int                    `json:"chunk_index"`
	Text       string                 `json:"text"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Embedding  []float32              `json:"embedding"`
}

func (s *osStore) Upsert(ctx context.Context, chunks []Chunk) error {
	for start := 0; start < len(chunks); start += s.batch {
		end := start + s.batch
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := s.bulkIndex(ctx, chunks[start:end]); err != nil {
			return err
		}
	}
	if s.metrics != nil {
		s.metrics.ChunksUpserted.WithLabelValues("opensearch").Add(float64(len(chunks)))
	}
	return nil
}

func (s *osStore) bulkIndex(ctx context.Context, chunks []Chunk) error {
	var buf bytes.Buffer
	for _, c := range chunks {
		if len(c.Embedding) != s.dim {
			return apperrors.Newf(apperrors.ErrCodeVectorBackend,
				"chunk %s: embedding dimension %d, want %d", c.ID, len(c.Embedding), s.dim)
		}
		action, _ := json.Marshal(map[string]interface{}{
			"index": map[string]interface{}{"_index": s.index, "_id": c.ID},
		})
		doc, err := json.Marshal(osChunkDoc{
			DocumentID: c.DocumentID,
			ChunkIndex: c.Index,
			Text:       c.Text,
			Metadata:   c.Metadata,
			Embedding:  c.Embedding,
		})
		if err != nil {
			return apperrors.Wrapf(err, apperrors.ErrCodeSerialization, "chunk %s", c.ID)
		}
		buf.Write(action)
		buf.WriteByte('\n')
		buf.Write(doc)
		buf.WriteByte('\n')
	}

	resp, err := opensearchapi.BulkRequest{Body: bytes.NewReader(buf.Bytes()), Refresh: "true"}.Do(ctx, s.client)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeVectorBackend, "opensearch bulk")
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return apperrors.Newf(apperrors.ErrCodeVectorBackend, "bulk status %d", resp.StatusCode)
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&bulkResp); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeSerialization, "decode bulk response")
	}
	if bulkResp.Errors {
		return apperrors.New(apperrors.ErrCodeVectorBackend, "bulk indexing reported item errors")
	}
	return nil
}

func (s *osStore) Search(ctx context.Context, embedding []float32, topK int, filter map[string]string) ([]SearchHit, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.VectorSearchDuration.WithLabelValues("opensearch").Observe(time.Since(start).Seconds())
		}
	}()
	if topK <= 0 {
		topK = 10
	}

	knn := map[string]interface{}{
		"knn": map[string]interface{}{
			"embedding": map[string]interface{}{
				"vector": embedding,
				"k":      topK,
			},
		},
	}
	var query map[string]interface{}
	if len(filter) > 0 {
		var filters []map[string]interface{}
		for k, v := range filter {
			field := k
			if field != "document_id" {
				field = "metadata." + field
			}
			filters = append(filters, map[string]interface{}{
				"term": map[string]interface{}{field: v},
			})
		}
		query = map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   []map[string]interface{}{knn},
				"filter": filters,
			},
		}
	} else {
		query = knn
	}

	body, err := json.Marshal(map[string]interface{}{"size": topK, "query": query})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSerialization, "marshal search body")
	}

	resp, err := opensearchapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, s.client)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeVectorBackend, "opensearch search")
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return nil, apperrors.Newf(apperrors.ErrCodeVectorBackend, "search status %d", resp.StatusCode)
	}

	var searchResp struct {
		Hits struct {
			Hits []struct {
				ID     string     `json:"_id"`
				Score  float64    `json:"_score"`
				Source osChunkDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSerialization, "decode search response")
	}

	hits := make([]SearchHit, 0, len(searchResp.Hits.Hits))
	for _, h := range searchResp.Hits.Hits {
		hits = append(hits, SearchHit{
			Chunk: Chunk{
				ID:         h.ID,
				DocumentID: h.Source.DocumentID,
				Index:      h.Source.ChunkIndex,
				Text:       h.Source.Text,
				Metadata:   h.Source.Metadata,
				Embedding:  h.Source.Embedding,
			},
			Score: h.Score,
		})
	}
	return hits, nil
}

func (s *osStore) DeleteDocument(ctx context.Context, documentID string) error {
	body, _ := json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{"document_id": documentID},
		},
	})
	resp, err := opensearchapi.DeleteByQueryRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, s.client)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeVectorBackend, "opensearch delete by query")
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return apperrors.Newf(apperrors.ErrCodeVectorBackend, "delete by query status %d", resp.StatusCode)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (s *osStore) Count(ctx context.Context) (int64, error) {
	resp, err := opensearchapi.CountRequest{Index: []string{s.index}}.Do(ctx, s.client)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeVectorBackend, "opensearch count")
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return 0, apperrors.Newf(apperrors.ErrCodeVectorBackend, "count status %d", resp.StatusCode)
	}

	var countResp struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&countResp); err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeSerialization, "decode count response")
	}
	return countResp.Count, nil
}

func (s *osStore) Close() error { return nil }
