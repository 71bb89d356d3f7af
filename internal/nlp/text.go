// Package nlp cleans, classifies, chunks, and extracts entities and relations
// from free-text hazardous-substance documents.
package nlp

import (
	"regexp"
	"sort"
	"strings"
)

// Document categories assigned by keyword vote.
const (
	CategorySafety      = "safety"
	CategoryEngineering = "engineering"
	CategoryRegulatory  = "regulatory"
	CategoryResearch    = "research"
	CategoryGeneral     = "general"
)

var (
	spaceRuns   = regexp.MustCompile(`[ \t]+`)
	newlineRuns = regexp.MustCompile(`\n{3,}`)
)

// CleanText normalizes a raw extraction: line endings, control characters,
// and whitespace runs.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r < ' ' && r != '\n' && r != '\t' {
			continue
		}
		if r == ' ' {
			r = ' '
		}
		b.WriteRune(r)
	}
	cleaned := spaceRuns.ReplaceAllString(b.String(), " ")
	cleaned = newlineRuns.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}

var categoryKeywords = map[string][]string{
	CategorySafety: {
		"safety", "hazard", "msds", "sds", "ppe", "emergency", "exposure",
		"toxic", "flammable", "corrosive", "first aid", "precaution", "spill",
	},
	CategoryEngineering: {
		"design", "pressure", "valve", "pipe", "specification", "tolerance",
		"load", "weld", "fabrication", "vessel", "drawing",
	},
	CategoryRegulatory: {
		"regulation", "compliance", "directive", "osha", "epa", "reach",
		"clp", "ghs", "permit", "labelling", "classification",
	},
	CategoryResearch: {
		"study", "experiment", "analysis", "hypothesis", "abstract",
		"methodology", "literature", "findings", "conclusion",
	},
}

// categoryOrder fixes the tie-break between equal vote counts.
var categoryOrder = []string{CategorySafety, CategoryEngineering, CategoryRegulatory, CategoryResearch}

// ClassifyDocument assigns one of the fixed categories by counting keyword
// occurrences; zero votes means general.
func ClassifyDocument(text string) string {
	lower := strings.ToLower(text)
	votes := map[string]int{}
	for category, keywords := range categoryKeywords {
		for _, kw := range keywords {
			votes[category] += strings.Count(lower, kw)
		}
	}

	best := CategoryGeneral
	bestVotes := 0
	for _, category := range categoryOrder {
		if votes[category] > bestVotes {
			best = category
			bestVotes = votes[category]
		}
	}
	return best
}

// ChunkText splits text into windows of at most size characters where
// consecutive windows share overlap characters. Text at most one window long
// yields a single chunk; empty text yields none.
func ChunkText(text string, size, overlap int) []string {
	if text == "" {
		return nil
	}
	if size < 1 {
		size = 1
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	step := size - overlap
	var chunks []string
	for start := 0; ; start += step {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// Sentences splits text on sentence terminators. Used for summaries.
func Sentences(text string) []string {
	var out []string
	start := 0
	runes := []rune(text)
	for i, r := range runes {
		if r == '.' || r == '!' || r == '?' {
			s := strings.TrimSpace(string(runes[start : i+1]))
			if s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		out = append(out, tail)
	}
	return out
}

var topicStopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "are": true, "was": true, "from": true, "have": true,
	"has": true, "its": true, "can": true, "will": true, "must": true,
	"not": true, "all": true, "any": true, "may": true, "been": true,
	"which": true, "when": true, "where": true, "their": true, "there": true,
}

// KeyTopics returns the most frequent non-stopword terms, most frequent first.
func KeyTopics(text string, limit int) []string {
	counts := map[string]int{}
	for _, tok := range Tokenize(text) {
		tok = strings.ToLower(tok)
		if len(tok) < 4 || topicStopwords[tok] {
			continue
		}
		counts[tok]++
	}

	topics := make([]string, 0, len(counts))
	for tok := range counts {
		topics = append(topics, tok)
	}
	sort.Slice(topics, func(i, j int) bool {
		if counts[topics[i]] != counts[topics[j]] {
			return counts[topics[i]] > counts[topics[j]]
		}
		return topics[i] < topics[j]
	})
	if limit > 0 && len(topics) > limit {
		topics = topics[:limit]
	}
	return topics
}

var tokenPattern = regexp.MustCompile(`[A-Za-z][A-Za-z0-9'-]*`)

// Tokenize returns word tokens in document order.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(text, -1)
}
