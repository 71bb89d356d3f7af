package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hazardsafe/hazardsafe-kg/internal/config"
	"github.com/hazardsafe/hazardsafe-kg/internal/infrastructure/vector"
	"github.com/hazardsafe/hazardsafe-kg/internal/ingestion"
	"github.com/hazardsafe/hazardsafe-kg/internal/nlp"
	"github.com/hazardsafe/hazardsafe-kg/internal/quality"
	apperrors "github.com/hazardsafe/hazardsafe-kg/pkg/errors"
	"github.com/hazardsafe/hazardsafe-kg/pkg/types/kg"
)

// fakeGraph records schema and write calls in memory.
type fakeGraph struct {
	mu      sync.Mutex
	schemas int
	nodes   map[string]kg.Node
	edges   []kg.Edge
	nodeErr error
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{nodes: map[string]kg.Node{}}
}

func (g *fakeGraph) EnsureSchema(ctx context.Context, schema kg.GraphSchema) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.schemas++
	return nil
}

func (g *fakeGraph) CreateNode(ctx context.Context, node kg.Node) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.nodeErr != nil {
		return false, g.nodeErr
	}
	_, exists := g.nodes[node.ID]
	g.nodes[node.ID] = node
	return !exists, nil
}

func (g *fakeGraph) CreateEdge(ctx context.Context, edge kg.Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edges = append(g.edges, edge)
	return nil
}

func (g *fakeGraph) edgesOfType(relType kg.RelationType) []kg.Edge {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []kg.Edge
	for _, e := range g.edges {
		if e.Type == relType {
			out = append(out, e)
		}
	}
	return out
}

// fakeVector keeps chunks by id and can fail the first N upserts.
type fakeVector struct {
	mu          sync.Mutex
	chunks      map[string]vector.Chunk
	failUpserts int
	upsertCalls int
}

func newFakeVector() *fakeVector {
	return &fakeVector{chunks: map[string]vector.Chunk{}}
}

func (v *fakeVector) Upsert(ctx context.Context, chunks []vector.Chunk) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.upsertCalls++
	if v.failUpserts > 0 {
		v.failUpserts--
		return errBackendDown()
	}
	for _, c := range chunks {
		v.chunks[c.ID] = c
	}
	return nil
}

func (v *fakeVector) Search(ctx context.Context, embedding []float32, topK int, filter map[string]string) ([]vector.SearchHit, error) {
	return nil, nil
}

func (v *fakeVector) DeleteDocument(ctx context.Context, documentID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for id, c := range v.chunks {
		if c.DocumentID == documentID {
			delete(v.chunks, id)
		}
	}
	return nil
}

func (v *fakeVector) Count(ctx context.Context) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return int64(len(v.chunks)), nil
}

func (v *fakeVector) Close() error { return nil }

func errBackendDown() error {
	return apperrors.New(apperrors.ErrCodeBackendUnavailable, "vector backend down")
}

func (v *fakeVector) count() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.chunks)
}

func testDeps(graph *fakeGraph, vec *fakeVector) *Deps {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return &Deps{
		Config:    cfg,
		Graph:     graph,
		Vector:    vec,
		Embedder:  vector.NewHashingEmbedder(16),
		Quality:   quality.NewEngine(cfg.Quality, nil, nil),
		Extractor: ingestion.NewExtractor(nil),
		Entities:  nlp.NewEntityExtractor(),
		Relations: nlp.NewRelationExtractor(),
	}
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func stageByName(t *testing.T, stages []StageResult, name string) StageResult {
	t.Helper()
	for _, s := range stages {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("stage %q not found", name)
	return StageResult{}
}
