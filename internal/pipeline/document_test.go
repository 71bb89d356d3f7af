package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazardsafe/hazardsafe-kg/internal/nlp"
	apperrors "github.com/hazardsafe/hazardsafe-kg/pkg/errors"
	"github.com/hazardsafe/hazardsafe-kg/pkg/types/kg"
)

const storageNoteTxt = `Sulfuric acid is corrosive and is stored in glass containers.
Keep the storage area ventilated and inspect the bottles weekly.`

func TestDocumentPipelineStorageNote(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "storage-note.txt", storageNoteTxt)

	graph := newFakeGraph()
	vec := newFakeVector()
	p := NewDocumentPipeline(testDeps(graph, vec))
	result := p.Run(context.Background(), path, TypeAuto)

	assert.True(t, result.OverallSuccess)
	assert.Equal(t, StateDone, result.State)
	require.NotNil(t, result.Document)
	assert.False(t, result.Document.Failed())

	// The hazard-class and storage relations both survive extraction.
	var hazard, stored *nlp.Relation
	for i, r := range result.Relations {
		switch r.Type {
		case nlp.RelationHazardClass:
			hazard = &result.Relations[i]
		case nlp.RelationStoredIn:
			stored = &result.Relations[i]
		}
	}
	require.NotNil(t, hazard)
	assert.Equal(t, "Sulfuric acid", hazard.Source)
	assert.Equal(t, "corrosive", hazard.Target)
	assert.GreaterOrEqual(t, hazard.Confidence, 0.6)
	require.NotNil(t, stored)
	assert.Equal(t, "glass", stored.Target)

	// One substance node plus the glass container, linked by both edges.
	acid, ok := graph.nodes["substance:sulfuric_acid"]
	require.True(t, ok)
	assert.Equal(t, []string{string(kg.KindSubstance)}, acid.Labels)
	assert.Equal(t, "corrosive", acid.Properties["hazard_class"])
	assert.Equal(t, result.Document.ID, acid.Properties["source_document"])

	_, ok = graph.nodes["container:glass"]
	assert.True(t, ok)
	assert.Len(t, graph.edgesOfType(kg.RelHasHazardClass), 1)
	assert.Len(t, graph.edgesOfType(kg.RelStoredIn), 1)

	// The short note fits one chunk.
	assert.Equal(t, 1, result.Chunks)
	assert.Equal(t, 1, vec.count())
}

func TestDocumentPipelineHonorsGivenType(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "note.txt", "Acetone handling notes.")

	p := NewDocumentPipeline(testDeps(newFakeGraph(), newFakeVector()))
	result := p.Run(context.Background(), path, "regulatory")

	assert.Equal(t, "regulatory", result.DocType)
	assert.Equal(t, "regulatory", result.Document.Type)
}

func TestDocumentPipelineRejectsForbiddenStorage(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "drums.txt",
		"Nitric acid is corrosive and is stored in aluminum drums.")

	graph := newFakeGraph()
	p := NewDocumentPipeline(testDeps(graph, newFakeVector()))
	result := p.Run(context.Background(), path, TypeAuto)

	// The corrosive/aluminum pair must never become a STORED_IN edge.
	assert.True(t, result.OverallSuccess)
	assert.Equal(t, StateDone, result.State)
	assert.Contains(t, graph.nodes, "substance:nitric_acid")
	assert.NotContains(t, graph.nodes, "container:aluminum")
	assert.Empty(t, graph.edgesOfType(kg.RelStoredIn))
	assert.Len(t, graph.edgesOfType(kg.RelHasHazardClass), 1)

	require.NotEmpty(t, result.Compatibility)
	assert.Contains(t, result.Compatibility[0], "aluminum")

	merge := stageByName(t, result.Stages, "merge")
	require.NotEmpty(t, merge.Errors)
	assert.Contains(t, merge.Errors[0], string(apperrors.ErrCodeCompatibilityForbidden))
}

func TestDocumentPipelineVocabularyWarning(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "reactive.txt", "Ammonia is reactive and must be handled with care.")

	p := NewDocumentPipeline(testDeps(newFakeGraph(), newFakeVector()))
	result := p.Run(context.Background(), path, TypeAuto)

	// An out-of-vocabulary hazard keyword warns but is never dropped.
	assert.True(t, result.OverallSuccess)
	validate := stageByName(t, result.Stages, "validate")
	require.NotEmpty(t, validate.Warnings)
	assert.Contains(t, validate.Warnings[0], "reactive")
	assert.True(t, validate.Success)

	found := false
	for _, e := range result.Entities {
		if e.Type == nlp.EntityHazard && strings.EqualFold(e.Text, "reactive") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestDocumentPipelineIdempotentReingest(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "note.txt", storageNoteTxt)

	graph := newFakeGraph()
	vec := newFakeVector()
	p := NewDocumentPipeline(testDeps(graph, vec))

	first := p.Run(context.Background(), path, TypeAuto)
	nodesAfterFirst := len(graph.nodes)
	chunksAfterFirst := vec.count()

	// Same content at a different path gets the same id and replaces rather
	// than duplicates.
	other := writeTestFile(t, dir, "copy.txt", storageNoteTxt)
	second := p.Run(context.Background(), other, TypeAuto)

	assert.Equal(t, first.Document.ID, second.Document.ID)
	assert.Equal(t, nodesAfterFirst, len(graph.nodes))
	assert.Equal(t, chunksAfterFirst, vec.count())
}

func TestDocumentPipelineChunksLongDocument(t *testing.T) {
	dir := t.TempDir()
	long := strings.Repeat("Acetone evaporates quickly under standard conditions. ", 40)
	path := writeTestFile(t, dir, "long.txt", long)

	vec := newFakeVector()
	p := NewDocumentPipeline(testDeps(newFakeGraph(), vec))
	result := p.Run(context.Background(), path, TypeAuto)

	assert.True(t, result.OverallSuccess)
	assert.Greater(t, result.Chunks, 1)
	assert.Equal(t, result.Chunks, vec.count())

	// Chunk ids derive from the document id and index.
	_, ok := vec.chunks[result.Document.ID+":0"]
	assert.True(t, ok)
}

func TestDocumentPipelineMissingFile(t *testing.T) {
	p := NewDocumentPipeline(testDeps(newFakeGraph(), newFakeVector()))
	result := p.Run(context.Background(), filepath.Join(t.TempDir(), "absent.txt"), TypeAuto)

	assert.False(t, result.OverallSuccess)
	assert.Equal(t, FailedAt(StateIngesting), result.State)
	require.NotNil(t, result.Document)
	assert.True(t, result.Document.Failed())
}

func TestDocumentPipelineUpsertRetries(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "note.txt", storageNoteTxt)

	vec := newFakeVector()
	vec.failUpserts = 1
	deps := testDeps(newFakeGraph(), vec)
	p := NewDocumentPipeline(deps)
	result := p.Run(context.Background(), path, TypeAuto)

	assert.True(t, result.OverallSuccess)
	assert.Equal(t, 2, vec.upsertCalls)
	assert.Equal(t, 1, vec.count())
}

func TestDocumentPipelineUpsertExhaustsRetries(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "note.txt", storageNoteTxt)

	vec := newFakeVector()
	vec.failUpserts = 10
	deps := testDeps(newFakeGraph(), vec)
	deps.Config.Pipeline.MaxRetries = 2
	p := NewDocumentPipeline(deps)
	result := p.Run(context.Background(), path, TypeAuto)

	assert.False(t, result.OverallSuccess)
	assert.Equal(t, FailedAt(StateStoring), result.State)
	assert.Equal(t, 3, vec.upsertCalls)
}

func TestDocumentPipelineCancelledContext(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "note.txt", storageNoteTxt)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewDocumentPipeline(testDeps(newFakeGraph(), newFakeVector()))
	result := p.Run(ctx, path, TypeAuto)

	assert.False(t, result.OverallSuccess)
	require.NotNil(t, result.Document)
	assert.True(t, result.Document.Failed())
}

func TestDocumentPipelineRunBatch(t *testing.T) {
	dir := t.TempDir()
	a := writeTestFile(t, dir, "a.txt", storageNoteTxt)
	b := writeTestFile(t, dir, "b.txt", "Acetone is flammable and evaporates quickly.")

	deps := testDeps(newFakeGraph(), newFakeVector())
	deps.Config.Pipeline.IngestConcurrency = 2
	p := NewDocumentPipeline(deps)

	results := p.RunBatch(context.Background(), []string{a, b}, TypeAuto)
	require.Len(t, results, 2)
	for _, r := range results {
		require.NotNil(t, r)
		assert.True(t, r.OverallSuccess)
	}
	assert.Equal(t, a, results[0].Document.SourcePath)
	assert.Equal(t, b, results[1].Document.SourcePath)
}
