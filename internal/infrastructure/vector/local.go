package vector

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/hazardsafe/hazardsafe-kg/internal/infrastructure/monitoring/logging"
	"github.com/hazardsafe/hazardsafe-kg/internal/infrastructure/monitoring/prometheus"
	apperrors "github.com/hazardsafe/hazardsafe-kg/pkg/errors"
)

const (
	localDocumentsFile  = "documents.json"
	localEmbeddingsFile = "embeddings.json"
)

// localStore persists chunks and embeddings as two JSON files in a directory.
// Suited to development and small corpora; everything lives in memory and is
// rewritten on mutation.
type localStore struct {
	dir     string
	dim     int
	logger  logging.Logger
	metrics *prometheus.AppMetrics

	mu     sync.RWMutex
	chunks map[string]Chunk // by chunk ID, embeddings held separately
	embeds map[string][]float32
}

// NewLocalStore opens (or initializes) a file-based store rooted at dir.
func NewLocalStore(dir string, dim int, log logging.Logger, metrics *prometheus.AppMetrics) (Store, error) {
	if dir == "" {
		return nil, apperrors.New(apperrors.ErrCodeVectorBackend, "local vector store requires a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeVectorBackend, "create %s", dir)
	}
	s := &localStore{
		dir:     dir,
		dim:     dim,
		logger:  log,
		metrics: metrics,
		chunks:  map[string]Chunk{},
		embeds:  map[string][]float32{},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	log.Info("local vector store opened",
		logging.String("dir", dir), logging.Int("chunks", len(s.chunks)))
	return s, nil
}

func (s *localStore) load() error {
	if err := readJSONFile(filepath.Join(s.dir, localDocumentsFile), &s.chunks); err != nil {
		return err
	}
	return readJSONFile(filepath.Join(s.dir, localEmbeddingsFile), &s.embeds)
}

func readJSONFile(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeVectorBackend, "read %s", path)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeVectorBackend, "decode %s", path)
	}
	return nil
}

// persist writes both files via rename so readers never observe a torn file.
func (s *localStore) persist() error {
	if err := writeJSONFile(filepath.Join(s.dir, localDocumentsFile), s.chunks); err != nil {
		return err
	}
	return writeJSONFile(filepath.Join(s.dir, localEmbeddingsFile), s.embeds)
}

func writeJSONFile(path string, in interface{}) error {
	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeSerialization, "encode %s", path)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeVectorBackend, "write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeVectorBackend, "rename %s", path)
	}
	return nil
}

func (s *localStore) Upsert(ctx context.Context, chunks []Chunk) error {
	if err := ctx.Err(); err != nil {
		return apperrors.FromContext(ctx.Err())
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range chunks {
		if c.ID == "" {
			return apperrors.New(apperrors.ErrCodeVectorBackend, "chunk id must not be empty")
		}
		if s.dim > 0 && len(c.Embedding) != s.dim {
			return apperrors.Newf(apperrors.ErrCodeVectorBackend,
				"chunk %s: embedding dimension %d, want %d", c.ID, len(c.Embedding), s.dim)
		}
		emb := c.Embedding
		c.Embedding = nil
		s.chunks[c.ID] = c
		s.embeds[c.ID] = emb
	}
	if err := s.persist(); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.ChunksUpserted.WithLabelValues("local").Add(float64(len(chunks)))
	}
	return nil
}

func (s *localStore) Search(ctx context.Context, embedding []float32, topK int, filter map[string]string) ([]SearchHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromContext(ctx.Err())
	}
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.VectorSearchDuration.WithLabelValues("local").Observe(time.Since(start).Seconds())
		}
	}()
	if topK <= 0 {
		topK = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []SearchHit
	for id, c := range s.chunks {
		if !matchesFilter(c, filter) {
			continue
		}
		score := Cosine(embedding, s.embeds[id])
		hit := SearchHit{Chunk: c, Score: score}
		hit.Chunk.Embedding = append([]float32(nil), s.embeds[id]...)
		hits = append(hits, hit)
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.ID < hits[j].Chunk.ID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func matchesFilter(c Chunk, filter map[string]string) bool {
	for k, want := range filter {
		if k == "document_id" {
			if c.DocumentID != want {
				return false
			}
			continue
		}
		got, ok := c.Metadata[k].(string)
		if !ok || got != want {
			return false
		}
	}
	return true
}

func (s *localStore) DeleteDocument(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.FromContext(ctx.Err())
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.chunks {
		if c.DocumentID == documentID {
			delete(s.chunks, id)
			delete(s.embeds, id)
		}
	}
	return s.persist()
}

func (s *localStore) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, apperrors.FromContext(ctx.Err())
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.chunks)), nil
}

func (s *localStore) Close() error { return nil }
