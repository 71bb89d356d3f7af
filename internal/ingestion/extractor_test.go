package ingestion

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazardsafe/hazardsafe-kg/internal/nlp"
	apperrors "github.com/hazardsafe/hazardsafe-kg/pkg/errors"
)

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtractTXT(t *testing.T) {
	text := "Sulfuric acid is corrosive. Store in glass. Never use aluminum. Check weekly."
	path := writeFixture(t, "handling.txt", text)

	record := NewExtractor(nil).Extract(context.Background(), path)
	require.False(t, record.Failed(), record.Error)
	assert.Equal(t, text, record.Content)
	assert.Equal(t, "handling", record.Title)
	assert.Equal(t, ".txt", record.Metadata.Extension)
	assert.Equal(t, 12, record.Metadata.WordCount)
	assert.Equal(t, len(text), record.Metadata.CharacterCount)
	assert.Len(t, record.ID, 32)
	assert.Equal(t, record.ID, record.Metadata.ContentHash)
	assert.Equal(t, "Sulfuric acid is corrosive. Store in glass. Never use aluminum.",
		record.Metadata.Summary)
}

func TestExtractDerivesEntitiesAndTopics(t *testing.T) {
	path := writeFixture(t, "note.txt",
		"Sulfuric acid storage. Sulfuric acid is corrosive. H2SO4 has CAS 7664-93-9.")
	record := NewExtractor(nil).Extract(context.Background(), path)
	require.False(t, record.Failed())

	types := map[string]bool{}
	for _, e := range record.Metadata.Entities {
		types[e.Type] = true
	}
	assert.True(t, types[nlp.EntityChemicalName])
	assert.True(t, types[nlp.EntityCASNumber])
	assert.Contains(t, record.Metadata.KeyTopics, "sulfuric")
}

func TestExtractIDStableAcrossPaths(t *testing.T) {
	x := NewExtractor(nil)
	a := x.Extract(context.Background(), writeFixture(t, "a.txt", "same content"))
	b := x.Extract(context.Background(), writeFixture(t, "b.txt", "same content"))
	assert.Equal(t, a.ID, b.ID, "id derives from content, not path")
}

func TestExtractJSON(t *testing.T) {
	path := writeFixture(t, "sheet.json",
		`{"name":"Sulfuric Acid","hazard_class":"corrosive"}`)
	record := NewExtractor(nil).Extract(context.Background(), path)
	require.False(t, record.Failed(), record.Error)
	assert.Contains(t, record.Content, "\"name\": \"Sulfuric Acid\"")
	assert.Equal(t, []string{"hazard_class", "name"},
		record.Metadata.ExtractedMetadata["top_level_keys"])
}

func TestExtractCSVDocument(t *testing.T) {
	path := writeFixture(t, "inventory.csv",
		"name,hazard_class\nSulfuric Acid,corrosive\nAcetone,flammable\n")
	record := NewExtractor(nil).Extract(context.Background(), path)
	require.False(t, record.Failed(), record.Error)
	assert.Equal(t,
		"name | hazard_class\nSulfuric Acid | corrosive\nAcetone | flammable",
		record.Content)
	assert.Equal(t, 2, record.Metadata.ExtractedMetadata["row_count"])
}

func TestExtractUnsupportedExtension(t *testing.T) {
	path := writeFixture(t, "image.png", "\x89PNG")
	record := NewExtractor(nil).Extract(context.Background(), path)
	assert.True(t, record.Failed())
	assert.Contains(t, record.Error, "unsupported")
	assert.NotEmpty(t, record.ID, "error records still carry an id")
}

func TestExtractMissingFile(t *testing.T) {
	record := NewExtractor(nil).Extract(context.Background(), "/does/not/exist.txt")
	assert.True(t, record.Failed())
}

func TestExtractMalformedJSONIsErrorRecord(t *testing.T) {
	path := writeFixture(t, "broken.json", `{"name": `)
	record := NewExtractor(nil).Extract(context.Background(), path)
	assert.True(t, record.Failed())
}

func TestExtractCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	record := NewExtractor(nil).Extract(ctx, writeFixture(t, "x.txt", "text"))
	assert.True(t, record.Failed())
}

const docxBodyXML = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p>
      <w:pPr><w:pStyle w:val="Heading1"/><w:jc w:val="center"/></w:pPr>
      <w:r><w:t>Storage Guidance</w:t></w:r>
    </w:p>
    <w:p><w:r><w:t>Keep acids in </w:t></w:r><w:r><w:t>glass containers.</w:t></w:r></w:p>
    <w:tbl>
      <w:tr>
        <w:tc><w:p><w:r><w:t>Substance</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>Class</w:t></w:r></w:p></w:tc>
      </w:tr>
      <w:tr>
        <w:tc><w:p><w:r><w:t>Sulfuric Acid</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>corrosive</w:t></w:r></w:p></w:tc>
      </w:tr>
    </w:tbl>
  </w:body>
</w:document>`

func writeDOCX(t *testing.T, bodyXML string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guide.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(bodyXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestExtractDOCX(t *testing.T) {
	path := writeDOCX(t, docxBodyXML)
	record := NewExtractor(nil).Extract(context.Background(), path)
	require.False(t, record.Failed(), record.Error)

	assert.Contains(t, record.Content, "Storage Guidance")
	assert.Contains(t, record.Content, "Keep acids in glass containers.")
	assert.Contains(t, record.Content, "Substance | Class")
	assert.Contains(t, record.Content, "Sulfuric Acid | corrosive")
	assert.Equal(t, 2, record.Metadata.ExtractedMetadata["paragraph_count"])
	assert.Equal(t, 1, record.Metadata.ExtractedMetadata["table_count"])
	assert.Equal(t, []string{"Heading1"}, record.Metadata.ExtractedMetadata["styles"])
}

func TestExtractDOCXWithoutDocumentXML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	_, err = zw.Create("word/other.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	record := NewExtractor(nil).Extract(context.Background(), path)
	assert.True(t, record.Failed())
}

func TestReadCSVBatch(t *testing.T) {
	path := writeFixture(t, "substances.csv",
		"name,chemical_formula,molecular_weight,hazard_class\nSulfuric Acid,H2SO4,98.08,corrosive\n")
	batch, err := ReadCSVBatch(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "chemical_formula", "molecular_weight", "hazard_class"}, batch.Columns)
	require.Len(t, batch.Rows, 1)
	assert.Equal(t, "Sulfuric Acid", batch.Rows[0]["name"])
	assert.Equal(t, "98.08", batch.Rows[0]["molecular_weight"])
}

func TestReadCSVBatchRaggedRow(t *testing.T) {
	path := writeFixture(t, "ragged.csv", "a,b\n1\n")
	_, err := ReadCSVBatch(path)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInputMalformed))
}

func TestReadCSVBatchEmpty(t *testing.T) {
	path := writeFixture(t, "empty.csv", "")
	_, err := ReadCSVBatch(path)
	require.Error(t, err)
}
