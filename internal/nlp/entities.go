package nlp

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Entity types produced by extraction.
const (
	EntityGeneric          = "entity"
	EntityChemicalFormula  = "chemical_formula"
	EntityChemicalName     = "chemical_name"
	EntityCASNumber        = "cas_number"
	EntityMolecularFormula = "molecular_formula"
	EntityHazard           = "hazard"
	EntityProperty         = "property"
)

// Extraction confidences by source.
const (
	confTagger   = 0.8
	confPattern  = 0.9
	confHazard   = 0.85
	confProperty = 0.80
)

// relatedWindow is the start-distance under which two entities count as
// referring to the same mention context.
const relatedWindow = 100

// Entity is one extracted mention with its character span in the source text.
type Entity struct {
	Text       string  `json:"text"`
	Type       string  `json:"type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
	SourceText string  `json:"source_text,omitempty"`
}

// Related reports whether two entities lie close enough to attach one to the
// other, measured between start positions.
func Related(a, b Entity) bool {
	d := a.Start - b.Start
	if d < 0 {
		d = -d
	}
	return d <= relatedWindow
}

var (
	// Element-symbol formulas such as H2SO4 or Ca(OH)2. At least one digit or
	// a second element keeps single capitals like "A" out.
	formulaPattern = regexp.MustCompile(`\b(?:[A-Z][a-z]?\d*|\((?:[A-Z][a-z]?\d*)+\)\d*){2,}\b`)
	casNumPattern  = regexp.MustCompile(`\b\d{2,7}-\d{2}-\d\b`)
	// Two-word chemical names carry a qualifying head word: sulfuric acid,
	// sodium hydroxide, vinyl chloride.
	compoundChemPattern = regexp.MustCompile(`(?i)\b[a-z]+\s+(?:acid|hydroxide|chloride|oxide|sulfate|sulfide|nitrate|carbonate|peroxide)\b`)
	// One-word names and fused suffixes: acetone, methylamine.
	singleChemPattern = regexp.MustCompile(`(?i)\b(?:[a-z]+(?:chloride|oxide|amine)|acetone|ethanol|methanol|ammonia|benzene|toluene|formaldehyde)\b`)
)

var hazardKeywords = []string{"corrosive", "toxic", "flammable", "reactive", "environmental"}

var propertyKeywords = []string{
	"physical_state", "solid", "liquid", "gas", "color", "colour", "odor",
	"odour", "solubility", "soluble", "density", "temperature", "viscosity",
}

// EntityExtractor combines a generic tagger, chemistry regex patterns, and
// keyword dictionaries.
type EntityExtractor struct{}

func NewEntityExtractor() *EntityExtractor { return &EntityExtractor{} }

// Extract runs all three sources over text and deduplicates mentions by
// (lowercased text, start, end). Typed pattern and keyword mentions precede
// the generic tagger so they win deduplication on equal spans. Results come
// back in document order.
func (x *EntityExtractor) Extract(text string) []Entity {
	var out []Entity
	out = append(out, matchPatterns(text)...)
	out = append(out, matchKeywords(text, hazardKeywords, EntityHazard, confHazard)...)
	out = append(out, matchKeywords(text, propertyKeywords, EntityProperty, confProperty)...)
	out = append(out, tagGeneric(text)...)
	return dedupeEntities(out)
}

// tagGeneric is the statistical stand-in: maximal runs of capitalized tokens.
func tagGeneric(text string) []Entity {
	var out []Entity
	locs := tokenPattern.FindAllStringIndex(text, -1)
	i := 0
	for i < len(locs) {
		if !startsUpper(text[locs[i][0]:locs[i][1]]) {
			i++
			continue
		}
		j := i
		for j+1 < len(locs) &&
			startsUpper(text[locs[j+1][0]:locs[j+1][1]]) &&
			adjacentTokens(text, locs[j], locs[j+1]) {
			j++
		}
		start, end := locs[i][0], locs[j][1]
		out = append(out, Entity{
			Text: text[start:end], Type: EntityGeneric,
			Start: start, End: end, Confidence: confTagger,
		})
		i = j + 1
	}
	return out
}

func startsUpper(tok string) bool {
	for _, r := range tok {
		return unicode.IsUpper(r)
	}
	return false
}

// adjacentTokens requires the gap between two tokens to be whitespace only.
func adjacentTokens(text string, a, b []int) bool {
	gap := text[a[1]:b[0]]
	return strings.TrimSpace(gap) == "" && len(gap) <= 2
}

func matchPatterns(text string) []Entity {
	var out []Entity
	for _, pattern := range []*regexp.Regexp{compoundChemPattern, singleChemPattern} {
		for _, loc := range pattern.FindAllStringIndex(text, -1) {
			out = append(out, Entity{
				Text: text[loc[0]:loc[1]], Type: EntityChemicalName,
				Start: loc[0], End: loc[1], Confidence: confPattern,
			})
		}
	}
	for _, loc := range casNumPattern.FindAllStringIndex(text, -1) {
		out = append(out, Entity{
			Text: text[loc[0]:loc[1]], Type: EntityCASNumber,
			Start: loc[0], End: loc[1], Confidence: confPattern,
		})
	}
	for _, loc := range formulaPattern.FindAllStringIndex(text, -1) {
		candidate := text[loc[0]:loc[1]]
		if !strings.ContainsAny(candidate, "0123456789") && len(candidate) < 4 {
			continue
		}
		out = append(out, Entity{
			Text: candidate, Type: EntityChemicalFormula,
			Start: loc[0], End: loc[1], Confidence: confPattern,
		})
	}
	return out
}

func matchKeywords(text string, keywords []string, entityType string, confidence float64) []Entity {
	lower := strings.ToLower(text)
	var out []Entity
	for _, kw := range keywords {
		offset := 0
		for {
			idx := strings.Index(lower[offset:], kw)
			if idx < 0 {
				break
			}
			start := offset + idx
			end := start + len(kw)
			if wordBounded(lower, start, end) {
				out = append(out, Entity{
					Text: text[start:end], Type: entityType,
					Start: start, End: end, Confidence: confidence,
				})
			}
			offset = end
		}
	}
	return out
}

func wordBounded(text string, start, end int) bool {
	if start > 0 && isWordByte(text[start-1]) {
		return false
	}
	if end < len(text) && isWordByte(text[end]) {
		return false
	}
	return true
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func dedupeEntities(entities []Entity) []Entity {
	type key struct {
		text       string
		start, end int
	}
	seen := map[key]bool{}
	var out []Entity
	for _, e := range entities {
		k := key{strings.ToLower(e.Text), e.Start, e.End}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].End < out[j].End
	})
	return out
}
