package ontology

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/hazardsafe/hazardsafe-kg/pkg/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFormatForPath(t *testing.T) {
	cases := map[string]Format{
		"onto.ttl":      FormatTurtle,
		"onto.TTL":      FormatTurtle,
		"onto.nt":       FormatNTriples,
		"onto.n3":       FormatN3,
		"onto.trig":     FormatTriG,
		"onto.rdf":      FormatRDFXML,
		"onto.owl":      FormatOWL,
		"onto.jsonld":   FormatJSONLD,
		"shapes.shacl":  FormatSHACL,
		"shapes.shapes": FormatSHACL,
	}
	for path, want := range cases {
		got, ok := FormatForPath(path)
		assert.True(t, ok, path)
		assert.Equal(t, want, got, path)
	}

	_, ok := FormatForPath("readme.md")
	assert.False(t, ok)
}

func TestLoadFileTurtle(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "acid.ttl", `
@prefix hs: <http://hazardsafe-kg.org/ontology#> .
hs:acid a hs:HazardousSubstance ; hs:name "Acid" .
`)

	s := NewStore("hs", hsNS, nil)
	added, err := s.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	// @prefix bindings from the file are merged into the store
	assert.Equal(t, hsNS, s.Prefixes()["hs"])
}

func TestLoadFileUnknownSuffix(t *testing.T) {
	s := NewStore("hs", hsNS, nil)
	_, err := s.LoadFile("notes.txt")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeOntologyFormat))
}

func TestLoadFileMissing(t *testing.T) {
	s := NewStore("hs", hsNS, nil)
	_, err := s.LoadFile(filepath.Join(t.TempDir(), "absent.ttl"))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInputMalformed))
}

func TestLoadFileRDFXML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "onto.owl", `<?xml version="1.0"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
         xmlns:hs="http://hazardsafe-kg.org/ontology#">
  <rdf:Description rdf:about="http://hazardsafe-kg.org/ontology#acid">
    <rdf:type rdf:resource="http://www.w3.org/2002/07/owl#Class"/>
    <hs:name>Acid</hs:name>
  </rdf:Description>
</rdf:RDF>
`)

	s := NewStore("hs", hsNS, nil)
	added, err := s.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	name, ok := s.FirstObject(NewIRI(hsNS+"acid"), hsNS+"name")
	require.True(t, ok)
	assert.Equal(t, "Acid", name.Value)
}

func TestLoadFileJSONLD(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "onto.jsonld", `{
  "@context": {"hs": "http://hazardsafe-kg.org/ontology#"},
  "@graph": [
    {"@id": "hs:acid", "@type": "hs:HazardousSubstance", "hs:name": "Acid"}
  ]
}`)

	s := NewStore("hs", hsNS, nil)
	added, err := s.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	ty, ok := s.FirstObject(NewIRI(hsNS+"acid"), RDFType)
	require.True(t, ok)
	assert.Equal(t, hsNS+"HazardousSubstance", ty.Value)
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.ttl", `
@prefix hs: <http://hazardsafe-kg.org/ontology#> .
hs:a a hs:HazardousSubstance .
`)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	writeFile(t, filepath.Join(dir, "sub"), "b.ttl", `
@prefix hs: <http://hazardsafe-kg.org/ontology#> .
hs:b a hs:Container .
`)
	writeFile(t, dir, "broken.ttl", `@prefix <oops> .`)
	writeFile(t, dir, "ignored.md", "# not an ontology")

	s := NewStore("hs", hsNS, nil)
	report, err := s.LoadDirectory(dir)
	require.NoError(t, err)

	assert.Equal(t, 2, report.FilesLoaded)
	assert.Equal(t, 1, report.FilesFailed)
	assert.Equal(t, 2, report.TriplesAdded)
	assert.Len(t, report.Files, 3)
	assert.Equal(t, 2, s.Len())
}

func TestLoadDirectoryDeterministicOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.ttl", `<http://x/s> <http://x/p> "from-b" .`)
	writeFile(t, dir, "a.ttl", `<http://x/s> <http://x/p> "from-a" .`)

	s := NewStore("hs", hsNS, nil)
	report, err := s.LoadDirectory(dir)
	require.NoError(t, err)
	require.Len(t, report.Files, 2)
	assert.Equal(t, filepath.Join(dir, "a.ttl"), report.Files[0].Path)
	assert.Equal(t, filepath.Join(dir, "b.ttl"), report.Files[1].Path)
}
