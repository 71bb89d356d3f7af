package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/hazardsafe/hazardsafe-kg/pkg/errors"
	"github.com/hazardsafe/hazardsafe-kg/pkg/types/kg"
)

const hsNS = "http://hazardsafe-kg.org/ontology#"

const goodOntologyTTL = `
@prefix hs: <http://hazardsafe-kg.org/ontology#> .

hs:sulfuric-acid a hs:HazardousSubstance ;
    hs:name "Sulfuric Acid" ;
    hs:hazardClass "corrosive" ;
    hs:storedIn hs:glass-bottle .

hs:glass-bottle a hs:Container ;
    hs:name "Glass Bottle" ;
    hs:material "glass" .
`

const substanceShapesTTL = `
@prefix sh: <http://www.w3.org/ns/shacl#> .
@prefix hs: <http://hazardsafe-kg.org/ontology#> .

hs:SubstanceShape a sh:NodeShape ;
    sh:targetClass hs:HazardousSubstance ;
    sh:property [
        sh:path hs:name ;
        sh:minCount 1 ;
    ] ;
    sh:property [
        sh:path hs:hazardClass ;
        sh:minCount 1 ;
        sh:in ( "flammable" "corrosive" "toxic" "oxidizing" ) ;
    ] .
`

const sparseOntologyTTL = `
@prefix hs: <http://hazardsafe-kg.org/ontology#> .

hs:a1 a hs:HazardousSubstance ; hs:name "Mystery One" ; hs:molecularWeight "12x9" .
hs:a2 a hs:HazardousSubstance ; hs:hazardClass "spicy" ; hs:molecularWeight "77q" .
hs:a3 a hs:HazardousSubstance .
hs:a4 a hs:HazardousSubstance .
hs:a5 a hs:HazardousSubstance .
hs:a6 a hs:HazardousSubstance .
`

func TestOntologyPipelineHappyPath(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "substances.ttl", goodOntologyTTL)

	graph := newFakeGraph()
	p := NewOntologyPipeline(testDeps(graph, newFakeVector()))
	result := p.Run(context.Background(), dir)

	assert.True(t, result.OverallSuccess)
	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, 1, result.FilesLoaded)
	assert.Equal(t, 2, result.Candidates)
	assert.Equal(t, 2, result.Validated)
	assert.Equal(t, GatePassed, result.QualityGate)
	assert.Equal(t, 2, result.Stored)
	assert.Equal(t, 1, result.RelationshipsCreated)

	require.Equal(t, 1, graph.schemas)
	acid, ok := graph.nodes[hsNS+"sulfuric-acid"]
	require.True(t, ok)
	assert.Equal(t, []string{string(kg.KindSubstance)}, acid.Labels)
	assert.Equal(t, "Sulfuric Acid", acid.Properties["name"])
	assert.Equal(t, "corrosive", acid.Properties["hazardClass"])

	bottle, ok := graph.nodes[hsNS+"glass-bottle"]
	require.True(t, ok)
	assert.Equal(t, []string{string(kg.KindContainer)}, bottle.Labels)

	edges := graph.edgesOfType(kg.RelStoredIn)
	require.Len(t, edges, 1)
	assert.Equal(t, hsNS+"sulfuric-acid", edges[0].SourceID)
	assert.Equal(t, hsNS+"glass-bottle", edges[0].TargetID)
}

func TestOntologyPipelineQualityGateRefusesStorage(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "shapes.ttl", substanceShapesTTL)
	writeTestFile(t, dir, "sparse.ttl", sparseOntologyTTL)

	graph := newFakeGraph()
	p := NewOntologyPipeline(testDeps(graph, newFakeVector()))
	result := p.Run(context.Background(), dir)

	// The run itself completed; the gate refused the data.
	assert.True(t, result.OverallSuccess)
	assert.Equal(t, StateQualityFailed, result.State)
	assert.Equal(t, GateFailed, result.QualityGate)
	assert.Equal(t, 0, result.Stored)
	assert.Less(t, result.QualityScore, 0.7)

	assert.Equal(t, 6, result.Candidates)
	assert.Equal(t, 0, result.Validated)
	assert.NotEmpty(t, result.Dropped)

	// Nothing reached the graph.
	assert.Empty(t, graph.nodes)
	assert.Empty(t, graph.edges)
}

func TestOntologyPipelineShapeDropsKeepSurvivors(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "shapes.ttl", substanceShapesTTL)
	writeTestFile(t, dir, "mixed.ttl", goodOntologyTTL+`
hs:mystery a hs:HazardousSubstance ; hs:name "Mystery" .
`)

	graph := newFakeGraph()
	p := NewOntologyPipeline(testDeps(graph, newFakeVector()))
	result := p.Run(context.Background(), dir)

	assert.True(t, result.OverallSuccess)
	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, 3, result.Candidates)
	assert.Equal(t, 2, result.Validated)
	assert.Equal(t, 1, result.Dropped["hazardClass"])
	assert.Equal(t, 2, result.Stored)
	assert.NotContains(t, graph.nodes, hsNS+"mystery")
}

func TestOntologyPipelineEmptyDirectory(t *testing.T) {
	graph := newFakeGraph()
	p := NewOntologyPipeline(testDeps(graph, newFakeVector()))
	result := p.Run(context.Background(), t.TempDir())

	assert.False(t, result.OverallSuccess)
	assert.Equal(t, FailedAt(StateIngesting), result.State)
	assert.Equal(t, 0, result.Stored)
	assert.NotEmpty(t, result.Errors)
}

func TestOntologyPipelineCancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "substances.ttl", goodOntologyTTL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	graph := newFakeGraph()
	p := NewOntologyPipeline(testDeps(graph, newFakeVector()))
	result := p.Run(ctx, dir)

	assert.False(t, result.OverallSuccess)
	assert.Equal(t, StateCancelled, result.State)
	assert.Empty(t, graph.nodes)
}

func TestOntologyPipelineRejectsForbiddenStorage(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "store.ttl", `
@prefix hs: <http://hazardsafe-kg.org/ontology#> .

hs:nitric a hs:HazardousSubstance ;
    hs:name "Nitric Acid" ;
    hs:hazardClass "corrosive" ;
    hs:storedIn hs:alu-drum .

hs:alu-drum a hs:Container ;
    hs:name "Aluminum Drum" ;
    hs:material "aluminum" .
`)

	graph := newFakeGraph()
	p := NewOntologyPipeline(testDeps(graph, newFakeVector()))
	result := p.Run(context.Background(), dir)

	// The forbidden pair loses its edge, not its nodes.
	assert.True(t, result.OverallSuccess)
	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, 2, result.Stored)
	assert.Equal(t, 0, result.RelationshipsCreated)
	assert.Empty(t, graph.edgesOfType(kg.RelStoredIn))

	require.NotEmpty(t, result.Compatibility)
	assert.Contains(t, result.Compatibility[0], "Nitric Acid")
	assert.Contains(t, result.Compatibility[0], "Aluminum Drum")

	store := stageByName(t, result.Stages, "store")
	require.NotEmpty(t, store.Errors)
	assert.Contains(t, store.Errors[0], string(apperrors.ErrCodeCompatibilityForbidden))
}

func TestUpperSnake(t *testing.T) {
	assert.Equal(t, "STORED_IN", upperSnake("storedIn"))
	assert.Equal(t, "HAS_HAZARD_CLASS", upperSnake("hasHazardClass"))
	assert.Equal(t, "CONTAINS", upperSnake("contains"))
}

func TestLocalName(t *testing.T) {
	assert.Equal(t, "name", localName(hsNS+"name"))
	assert.Equal(t, "thing", localName("http://example.org/path/thing"))
	assert.Equal(t, "bare", localName("bare"))
}
