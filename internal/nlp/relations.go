package nlp

import (
	"regexp"
	"sort"
	"strings"
)

// Relation types produced by extraction. The graph-facing types mirror the
// edge vocabulary; the generic verbs come from surface patterns.
const (
	RelationCauses      = "causes"
	RelationContains    = "contains"
	RelationReactsWith  = "reacts_with"
	RelationIsA         = "is_a"
	RelationHasProperty = "has_property"
	RelationRequires    = "requires"
	RelationHazardClass = "HAS_HAZARD_CLASS"
	RelationStoredIn    = "STORED_IN"
)

const (
	confidenceFloor = 0.6
	confidenceCeil  = 0.9

	confSurface  = 0.7
	confSVO      = 0.75
	confSemantic = 0.85
	confStorage  = 0.8
)

// Relation is one extracted statement between two mentions.
type Relation struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	SourceText string  `json:"source_text,omitempty"`
}

// surfaceVerbs maps the connecting phrase between two entity mentions to a
// relation type. Longer phrases are tried first.
var surfaceVerbs = []struct {
	phrase string
	rel    string
}{
	{"reacts with", RelationReactsWith},
	{"react with", RelationReactsWith},
	{"is an", RelationIsA},
	{"is a", RelationIsA},
	{"causes", RelationCauses},
	{"cause", RelationCauses},
	{"contains", RelationContains},
	{"contain", RelationContains},
	{"requires", RelationRequires},
	{"require", RelationRequires},
	{"has", RelationHasProperty},
	{"have", RelationHasProperty},
}

var (
	storedInPattern = regexp.MustCompile(`(?i)\bstored\s+in\s+(?:a\s+|an\s+|the\s+)?([a-z][a-z_ ]*?)\s+(?:containers?|tanks?|drums?|vessels?|cylinders?|bottles?)\b`)
	copulaPattern   = regexp.MustCompile(`(?i)^\s*(?:is|are|was|were|remains?)\b`)
)

// RelationExtractor derives relations from an entity list and the text the
// entities were extracted from.
type RelationExtractor struct{}

func NewRelationExtractor() *RelationExtractor { return &RelationExtractor{} }

// Extract runs the surface, subject-verb-object, and semantic passes and
// deduplicates by (lowercased source, lowercased target, type). Confidences
// are clamped to [0.6, 0.9].
func (x *RelationExtractor) Extract(text string, entities []Entity) []Relation {
	ordered := append([]Entity(nil), entities...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })

	var out []Relation
	out = append(out, semanticPass(text, ordered)...)
	out = append(out, svoPass(text, ordered)...)
	out = append(out, surfacePass(text, ordered)...)

	return dedupeRelations(out)
}

// semanticPass handles the hazard-class and storage framings.
func semanticPass(text string, entities []Entity) []Relation {
	var out []Relation

	for _, chem := range entities {
		if !isChemical(chem) {
			continue
		}
		for _, hz := range entities {
			if hz.Type != EntityHazard || !Related(chem, hz) || hz.Start <= chem.End {
				continue
			}
			between := text[chem.End:hz.Start]
			if copulaPattern.MatchString(between) || strings.TrimSpace(between) == "" {
				out = append(out, Relation{
					Source: chem.Text, Target: hz.Text, Type: RelationHazardClass,
					Confidence: confSemantic,
					SourceText: snippet(text, chem.Start, hz.End),
				})
			}
		}
		for _, prop := range entities {
			if prop.Type != EntityProperty || !Related(chem, prop) || prop.Start <= chem.End {
				continue
			}
			out = append(out, Relation{
				Source: chem.Text, Target: prop.Text, Type: RelationHasProperty,
				Confidence: confSemantic,
				SourceText: snippet(text, chem.Start, prop.End),
			})
		}
	}

	for _, m := range storedInPattern.FindAllStringSubmatchIndex(text, -1) {
		material := strings.TrimSpace(text[m[2]:m[3]])
		for _, chem := range entities {
			if !isChemical(chem) {
				continue
			}
			if m[0]-chem.Start < 0 || m[0]-chem.Start > relatedWindow {
				continue
			}
			out = append(out, Relation{
				Source: chem.Text, Target: material, Type: RelationStoredIn,
				Confidence: confStorage,
				SourceText: snippet(text, chem.Start, m[1]),
			})
		}
	}
	return out
}

// svoPass links adjacent entity pairs joined by a single verb token.
func svoPass(text string, entities []Entity) []Relation {
	var out []Relation
	for i := 0; i < len(entities); i++ {
		for j := i + 1; j < len(entities); j++ {
			a, b := entities[i], entities[j]
			if b.Start <= a.End || b.Start-a.End > 60 {
				continue
			}
			between := strings.ToLower(strings.TrimSpace(text[a.End:b.Start]))
			rel, ok := verbBetween(between)
			if !ok {
				continue
			}
			out = append(out, Relation{
				Source: a.Text, Target: b.Text, Type: rel,
				Confidence: confSVO,
				SourceText: snippet(text, a.Start, b.End),
			})
		}
	}
	return out
}

// verbBetween accepts only a bare connecting verb phrase, the strict reading
// of subject-verb-object adjacency.
func verbBetween(between string) (string, bool) {
	for _, sv := range surfaceVerbs {
		if between == sv.phrase {
			return sv.rel, true
		}
	}
	return "", false
}

// surfacePass tolerates extra words around the verb phrase, at a lower
// confidence than the strict pass.
func surfacePass(text string, entities []Entity) []Relation {
	var out []Relation
	for i := 0; i < len(entities); i++ {
		for j := i + 1; j < len(entities); j++ {
			a, b := entities[i], entities[j]
			if b.Start <= a.End || !Related(a, b) {
				continue
			}
			between := " " + strings.ToLower(text[a.End:b.Start]) + " "
			for _, sv := range surfaceVerbs {
				if strings.Contains(between, " "+sv.phrase+" ") {
					out = append(out, Relation{
						Source: a.Text, Target: b.Text, Type: sv.rel,
						Confidence: confSurface,
						SourceText: snippet(text, a.Start, b.End),
					})
					break
				}
			}
		}
	}
	return out
}

func isChemical(e Entity) bool {
	switch e.Type {
	case EntityChemicalName, EntityChemicalFormula, EntityMolecularFormula, EntityCASNumber:
		return true
	}
	return false
}

func snippet(text string, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(text) {
		end = len(text)
	}
	return strings.TrimSpace(text[start:end])
}

func dedupeRelations(relations []Relation) []Relation {
	type key struct{ source, target, rel string }
	seen := map[key]bool{}
	var out []Relation
	for _, r := range relations {
		r.Confidence = clampConfidence(r.Confidence)
		k := key{strings.ToLower(r.Source), strings.ToLower(r.Target), r.Type}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}

func clampConfidence(c float64) float64 {
	if c < confidenceFloor {
		return confidenceFloor
	}
	if c > confidenceCeil {
		return confidenceCeil
	}
	return c
}
