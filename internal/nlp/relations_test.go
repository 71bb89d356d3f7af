package nlp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extractRelations(text string) []Relation {
	entities := NewEntityExtractor().Extract(text)
	return NewRelationExtractor().Extract(text, entities)
}

func findRelation(t *testing.T, relations []Relation, source, target, relType string) Relation {
	t.Helper()
	for _, r := range relations {
		if r.Source == source && r.Target == target && r.Type == relType {
			return r
		}
	}
	t.Fatalf("no %s relation %q -> %q in %v", relType, source, target, relations)
	return Relation{}
}

func TestExtractHazardAndStorageRelations(t *testing.T) {
	relations := extractRelations("Sulfuric acid is corrosive and is stored in glass containers.")

	hz := findRelation(t, relations, "Sulfuric acid", "corrosive", RelationHazardClass)
	assert.GreaterOrEqual(t, hz.Confidence, 0.6)
	assert.Contains(t, hz.SourceText, "is corrosive")

	st := findRelation(t, relations, "Sulfuric acid", "glass", RelationStoredIn)
	assert.GreaterOrEqual(t, st.Confidence, 0.6)
}

func TestExtractReactsWith(t *testing.T) {
	relations := extractRelations("Nitric acid reacts with acetone under heat.")
	findRelation(t, relations, "Nitric acid", "acetone", RelationReactsWith)
}

func TestExtractPropertyRelation(t *testing.T) {
	relations := extractRelations("Hydrochloric acid is a liquid at room temperature.")
	findRelation(t, relations, "Hydrochloric acid", "liquid", RelationHasProperty)
}

func TestExtractNoRelationAcrossDistantMentions(t *testing.T) {
	filler := " The facility log notes routine checks of unrelated storage areas across several buildings on site."
	text := "Acetic acid was delivered." + filler + filler + " The corrosive residue was found later."
	relations := extractRelations(text)
	for _, r := range relations {
		assert.False(t, r.Source == "Acetic acid" && r.Type == RelationHazardClass,
			"distant hazard mention must not attach: %v", r)
	}
}

func TestExtractDeduplicatesRelations(t *testing.T) {
	relations := extractRelations("Sulfuric acid is corrosive. Sulfuric acid is corrosive.")
	count := 0
	for _, r := range relations {
		if r.Type == RelationHazardClass {
			count++
		}
	}
	assert.Equal(t, 1, count, "case-insensitive triple dedup")
}

func TestRelationConfidenceBounds(t *testing.T) {
	relations := extractRelations(
		"Sulfuric acid is corrosive and is stored in steel drums. Nitric acid reacts with acetone. Formic acid is a liquid.")
	require.NotEmpty(t, relations)
	for _, r := range relations {
		assert.GreaterOrEqual(t, r.Confidence, 0.6, "%v", r)
		assert.LessOrEqual(t, r.Confidence, 0.9, "%v", r)
	}
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.6, clampConfidence(0.4))
	assert.Equal(t, 0.9, clampConfidence(0.95))
	assert.Equal(t, 0.75, clampConfidence(0.75))
}
