package ontology

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// ParseJSONLD parses a JSON-LD document into triples.  The subset covered is
// what hazard ontologies in the wild actually use: a string-valued @context,
// node objects with @id/@type, @graph arrays, nested node objects, and
// expanded @value literals.
func ParseJSONLD(input []byte, prefixes map[string]string) ([]Triple, error) {
	var doc interface{}
	if err := json.Unmarshal(input, &doc); err != nil {
		return nil, fmt.Errorf("jsonld: %w", err)
	}

	p := &jsonLDParser{prefixes: cloneStringMap(prefixes)}

	switch v := doc.(type) {
	case map[string]interface{}:
		p.readContext(v)
		if graph, ok := v["@graph"].([]interface{}); ok {
			for _, n := range graph {
				if node, ok := n.(map[string]interface{}); ok {
					p.parseNode(node)
				}
			}
			return p.out, nil
		}
		p.parseNode(v)
		return p.out, nil
	case []interface{}:
		for _, n := range v {
			if node, ok := n.(map[string]interface{}); ok {
				p.readContext(node)
				p.parseNode(node)
			}
		}
		return p.out, nil
	default:
		return nil, fmt.Errorf("jsonld: unsupported top-level value")
	}
}

func cloneStringMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

type jsonLDParser struct {
	prefixes map[string]string
	out      []Triple
	blankSeq int
}

func (p *jsonLDParser) freshBlank() Term {
	p.blankSeq++
	return NewBlank("j" + strconv.Itoa(p.blankSeq))
}

// readContext folds string-valued @context entries into the prefix table.
func (p *jsonLDParser) readContext(node map[string]interface{}) {
	ctx, ok := node["@context"].(map[string]interface{})
	if !ok {
		return
	}
	for k, v := range ctx {
		if s, ok := v.(string); ok {
			p.prefixes[k] = s
		}
	}
}

// parseNode emits triples for one node object and returns its subject.
func (p *jsonLDParser) parseNode(node map[string]interface{}) Term {
	subj := p.freshBlank()
	if id, ok := node["@id"].(string); ok && id != "" {
		subj = NewIRI(expandWith(p.prefixes, id))
	}

	switch ty := node["@type"].(type) {
	case string:
		p.out = append(p.out, Triple{subj, NewIRI(RDFType), NewIRI(expandWith(p.prefixes, ty))})
	case []interface{}:
		for _, t := range ty {
			if s, ok := t.(string); ok {
				p.out = append(p.out, Triple{subj, NewIRI(RDFType), NewIRI(expandWith(p.prefixes, s))})
			}
		}
	}

	keys := make([]string, 0, len(node))
	for k := range node {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if k == "@id" || k == "@type" || k == "@context" || k == "@graph" {
			continue
		}
		pred := NewIRI(expandWith(p.prefixes, k))
		p.parseValue(subj, pred, node[k])
	}
	return subj
}

func (p *jsonLDParser) parseValue(subj, pred Term, value interface{}) {
	switch v := value.(type) {
	case string:
		p.out = append(p.out, Triple{subj, pred, NewLiteral(v)})
	case float64:
		p.out = append(p.out, Triple{subj, pred, Term{Value: formatJSONNumber(v), Kind: Literal, Datatype: XSDNS + "double"}})
	case bool:
		p.out = append(p.out, Triple{subj, pred, Term{Value: strconv.FormatBool(v), Kind: Literal, Datatype: XSDNS + "boolean"}})
	case []interface{}:
		for _, item := range v {
			p.parseValue(subj, pred, item)
		}
	case map[string]interface{}:
		if lit, ok := v["@value"]; ok {
			term := Term{Kind: Literal}
			switch l := lit.(type) {
			case string:
				term.Value = l
			case float64:
				term.Value = formatJSONNumber(l)
			case bool:
				term.Value = strconv.FormatBool(l)
			}
			if dt, ok := v["@type"].(string); ok {
				term.Datatype = expandWith(p.prefixes, dt)
			}
			if lang, ok := v["@language"].(string); ok {
				term.Lang = lang
			}
			p.out = append(p.out, Triple{subj, pred, term})
			return
		}
		if id, ok := v["@id"].(string); ok && len(v) == 1 {
			p.out = append(p.out, Triple{subj, pred, NewIRI(expandWith(p.prefixes, id))})
			return
		}
		obj := p.parseNode(v)
		p.out = append(p.out, Triple{subj, pred, obj})
	}
}

func formatJSONNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
