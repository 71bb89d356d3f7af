package ontology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseTTL(t *testing.T, input string) []Triple {
	t.Helper()
	triples, err := ParseTurtle(input, defaultPrefixes())
	require.NoError(t, err)
	return triples
}

func TestParseTurtleBasics(t *testing.T) {
	triples := parseTTL(t, `
@prefix hs: <http://hazardsafe-kg.org/ontology#> .

hs:sulfuric-acid a hs:HazardousSubstance ;
    hs:name "Sulfuric Acid" ;
    hs:density "1.84"^^xsd:float ;
    hs:label "Säure"@de .
`)
	require.Len(t, triples, 4)

	subj := NewIRI(hsNS + "sulfuric-acid")
	assert.Equal(t, Triple{subj, NewIRI(RDFType), NewIRI(hsNS + "HazardousSubstance")}, triples[0])
	assert.Equal(t, NewLiteral("Sulfuric Acid"), triples[1].Object)
	assert.Equal(t, Term{Value: "1.84", Kind: Literal, Datatype: XSDNS + "float"}, triples[2].Object)
	assert.Equal(t, Term{Value: "Säure", Kind: Literal, Lang: "de"}, triples[3].Object)
}

func TestParseTurtleObjectListAndComments(t *testing.T) {
	triples := parseTTL(t, `
@prefix hs: <http://hazardsafe-kg.org/ontology#> .
# incompatibilities
hs:oxidizer hs:incompatibleWith hs:plastic, hs:cardboard .
`)
	require.Len(t, triples, 2)
	assert.Equal(t, hsNS+"plastic", triples[0].Object.Value)
	assert.Equal(t, hsNS+"cardboard", triples[1].Object.Value)
}

func TestParseNTriples(t *testing.T) {
	triples := parseTTL(t, `<http://hazardsafe-kg.org/ontology#acid> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://www.w3.org/2002/07/owl#Class> .
<http://hazardsafe-kg.org/ontology#acid> <http://www.w3.org/2000/01/rdf-schema#label> "Acid" .
`)
	require.Len(t, triples, 2)
	assert.Equal(t, OWLClass, triples[0].Object.Value)
	assert.Equal(t, "Acid", triples[1].Object.Value)
}

func TestParseTurtleBlankNodePropertyList(t *testing.T) {
	triples := parseTTL(t, `
@prefix sh: <http://www.w3.org/ns/shacl#> .
@prefix hs: <http://hazardsafe-kg.org/ontology#> .

hs:SubstanceShape a sh:NodeShape ;
    sh:targetClass hs:HazardousSubstance ;
    sh:property [
        sh:path hs:name ;
        sh:minCount 1 ;
    ] .
`)
	s := NewStore("hs", hsNS, nil)
	s.AddAll(triples)

	props := s.Objects(NewIRI(hsNS+"SubstanceShape"), SHProperty)
	require.Len(t, props, 1)
	assert.True(t, props[0].IsBlank())

	mc, ok := s.FirstObject(props[0], SHMinCount)
	require.True(t, ok)
	assert.Equal(t, "1", mc.Value)
}

func TestParseTurtleCollection(t *testing.T) {
	triples := parseTTL(t, `
@prefix sh: <http://www.w3.org/ns/shacl#> .
@prefix hs: <http://hazardsafe-kg.org/ontology#> .

hs:shape sh:in ( "flammable" "corrosive" "toxic" ) .
`)
	s := NewStore("hs", hsNS, nil)
	s.AddAll(triples)

	head, ok := s.FirstObject(NewIRI(hsNS+"shape"), SHIn)
	require.True(t, ok)
	members := s.List(head)
	require.Len(t, members, 3)
	assert.Equal(t, "flammable", members[0].Value)
	assert.Equal(t, "toxic", members[2].Value)
}

func TestParseTurtleBooleansAndNumbers(t *testing.T) {
	triples := parseTTL(t, `
@prefix hs: <http://hazardsafe-kg.org/ontology#> .
hs:x hs:regulated true ;
    hs:molecularWeight 98.08 .
`)
	require.Len(t, triples, 2)
	assert.Equal(t, Term{Value: "true", Kind: Literal, Datatype: XSDNS + "boolean"}, triples[0].Object)
	assert.Equal(t, "98.08", triples[1].Object.Value)
}

func TestParseTriGFlattensGraphs(t *testing.T) {
	triples := parseTTL(t, `
@prefix hs: <http://hazardsafe-kg.org/ontology#> .
hs:g1 {
    hs:a hs:p hs:b .
}
GRAPH hs:g2 {
    hs:c hs:p hs:d .
}
`)
	require.Len(t, triples, 2)
	assert.Equal(t, hsNS+"a", triples[0].Subject.Value)
	assert.Equal(t, hsNS+"c", triples[1].Subject.Value)
}

func TestParseTurtlePrefixBindingsReported(t *testing.T) {
	prefixes := defaultPrefixes()
	_, err := ParseTurtle(`@prefix ex: <http://example.org/> . ex:a ex:p ex:b .`, prefixes)
	require.NoError(t, err)
	assert.Equal(t, "http://example.org/", prefixes["ex"])
}

func TestParseTurtleErrors(t *testing.T) {
	_, err := ParseTurtle(`@prefix <oops> .`, defaultPrefixes())
	assert.Error(t, err)

	_, err = ParseTurtle(`; stray punctuation`, defaultPrefixes())
	assert.Error(t, err)
}
