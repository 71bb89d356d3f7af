package ontology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hsNS = "http://hazardsafe-kg.org/ontology#"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore("hs", hsNS, nil)
}

func TestStoreAddDeduplicates(t *testing.T) {
	s := newTestStore(t)
	tr := Triple{NewIRI(hsNS + "Acid"), NewIRI(RDFType), NewIRI(OWLClass)}

	assert.True(t, s.Add(tr))
	assert.False(t, s.Add(tr))
	assert.Equal(t, 1, s.Len())
}

func TestStoreExpand(t *testing.T) {
	s := newTestStore(t)

	assert.Equal(t, hsNS+"Substance", s.Expand("hs:Substance"))
	assert.Equal(t, RDFType, s.Expand("rdf:type"))
	assert.Equal(t, "no-colon", s.Expand("no-colon"))
	assert.Equal(t, "zzz:Thing", s.Expand("zzz:Thing"))

	s.BindPrefix("ex", "http://example.org/")
	assert.Equal(t, "http://example.org/Thing", s.Expand("ex:Thing"))
}

func TestStoreAddClassAndProperty(t *testing.T) {
	s := newTestStore(t)
	s.AddClass("hs:HazardousSubstance", "Hazardous Substance", "a regulated chemical", "")
	s.AddClass("hs:Acid", "Acid", "", "hs:HazardousSubstance")
	s.AddProperty("hs:storedIn", "stored in", "hs:HazardousSubstance", "hs:Container")

	label, ok := s.FirstObject(NewIRI(hsNS+"HazardousSubstance"), RDFSLabel)
	require.True(t, ok)
	assert.Equal(t, "Hazardous Substance", label.Value)

	super, ok := s.FirstObject(NewIRI(hsNS+"Acid"), RDFSSubClass)
	require.True(t, ok)
	assert.Equal(t, hsNS+"HazardousSubstance", super.Value)

	stats := s.Stats()
	assert.Equal(t, 2, stats.Classes)
	assert.Equal(t, 1, stats.Properties)
	assert.Equal(t, 0, stats.Instances)
}

func TestStoreAddInstanceAndQuery(t *testing.T) {
	s := newTestStore(t)
	s.AddInstance("hs:sulfuric-acid", "hs:HazardousSubstance", map[string]string{
		"hs:name":       "Sulfuric Acid",
		"hs:cas_number": "7664-93-9",
	})

	subj := NewIRI(hsNS + "sulfuric-acid")
	ty, ok := s.FirstObject(subj, RDFType)
	require.True(t, ok)
	assert.Equal(t, hsNS+"HazardousSubstance", ty.Value)

	cas, ok := s.FirstObject(subj, hsNS+"cas_number")
	require.True(t, ok)
	assert.Equal(t, "7664-93-9", cas.Value)

	matches := s.Query(Pattern{Subject: &subj})
	assert.Len(t, matches, 3)

	subjects := s.Subjects(Pattern{Predicate: P(RDFType), Object: OIRI(hsNS + "HazardousSubstance")})
	require.Len(t, subjects, 1)
	assert.Equal(t, subj, subjects[0])
}

func TestStoreList(t *testing.T) {
	s := newTestStore(t)
	// head -> ("a" "b")
	head := NewBlank("l1")
	rest := NewBlank("l2")
	s.AddAll([]Triple{
		{head, NewIRI(RDFFirst), NewLiteral("a")},
		{head, NewIRI(RDFRest), rest},
		{rest, NewIRI(RDFFirst), NewLiteral("b")},
		{rest, NewIRI(RDFRest), NewIRI(RDFNil)},
	})

	members := s.List(head)
	require.Len(t, members, 2)
	assert.Equal(t, "a", members[0].Value)
	assert.Equal(t, "b", members[1].Value)
}

func TestTermString(t *testing.T) {
	assert.Equal(t, "<"+RDFType+">", NewIRI(RDFType).String())
	assert.Equal(t, `"acid"`, NewLiteral("acid").String())
	assert.Equal(t, "_:b1", NewBlank("b1").String())
	assert.Equal(t, `"1.84"^^<`+XSDNS+`float>`,
		Term{Value: "1.84", Kind: Literal, Datatype: XSDNS + "float"}.String())
	assert.Equal(t, `"Säure"@de`, Term{Value: "Säure", Kind: Literal, Lang: "de"}.String())
}
