package ontology

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/hazardsafe/hazardsafe-kg/pkg/errors"
)

// Export serializes the full triple set in the requested format.  Round-trip
// law: exporting and re-ingesting preserves the triple set modulo whitespace.
func (s *Store) Export(format Format) (string, error) {
	switch format {
	case FormatNTriples:
		return s.exportNTriples(), nil
	case FormatTurtle, FormatN3, FormatTriG, FormatSHACL:
		return s.exportTurtle(), nil
	case FormatJSONLD:
		return s.exportJSONLD()
	case FormatRDFXML, FormatOWL:
		return s.exportRDFXML(), nil
	default:
		return "", apperrors.Newf(apperrors.ErrCodeOntologyFormat, "unsupported export format %q", format)
	}
}

func (s *Store) exportNTriples() string {
	var sb strings.Builder
	for _, t := range s.Triples() {
		sb.WriteString(t.Subject.String())
		sb.WriteByte(' ')
		sb.WriteString(t.Predicate.String())
		sb.WriteByte(' ')
		sb.WriteString(t.Object.String())
		sb.WriteString(" .\n")
	}
	return sb.String()
}

// exportTurtle writes prefix declarations followed by subject-grouped
// statements.
func (s *Store) exportTurtle() string {
	prefixes := s.Prefixes()
	names := make([]string, 0, len(prefixes))
	for name := range prefixes {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		fmt.Fprintf(&sb, "@prefix %s: <%s> .\n", name, prefixes[name])
	}
	sb.WriteByte('\n')

	triples := s.Triples()
	bySubject := map[string][]Triple{}
	var order []string
	for _, t := range triples {
		k := t.Subject.String()
		if _, ok := bySubject[k]; !ok {
			order = append(order, k)
		}
		bySubject[k] = append(bySubject[k], t)
	}

	for _, subjKey := range order {
		group := bySubject[subjKey]
		sb.WriteString(s.compact(prefixes, group[0].Subject))
		for i, t := range group {
			if i == 0 {
				sb.WriteByte(' ')
			} else {
				sb.WriteString(" ;\n    ")
			}
			sb.WriteString(s.compact(prefixes, t.Predicate))
			sb.WriteByte(' ')
			sb.WriteString(s.compact(prefixes, t.Object))
		}
		sb.WriteString(" .\n")
	}
	return sb.String()
}

// compact renders a term using a bound prefix when one applies.
func (s *Store) compact(prefixes map[string]string, t Term) string {
	if t.Kind != IRI {
		return t.String()
	}
	if t.Value == RDFType {
		return "a"
	}
	best := ""
	bestName := ""
	for name, uri := range prefixes {
		if strings.HasPrefix(t.Value, uri) && len(uri) > len(best) {
			local := t.Value[len(uri):]
			if local != "" && !strings.ContainsAny(local, "/#") {
				best = uri
				bestName = name
			}
		}
	}
	if best == "" {
		return t.String()
	}
	return bestName + ":" + t.Value[len(best):]
}

func (s *Store) exportJSONLD() (string, error) {
	type node map[string]interface{}
	bySubject := map[string]node{}
	var order []string

	appendValue := func(n node, key string, value interface{}) {
		switch existing := n[key].(type) {
		case nil:
			n[key] = value
		case []interface{}:
			n[key] = append(existing, value)
		default:
			n[key] = []interface{}{existing, value}
		}
	}

	for _, t := range s.Triples() {
		subjKey := t.Subject.String()
		n, ok := bySubject[subjKey]
		if !ok {
			n = node{}
			if t.Subject.IsIRI() {
				n["@id"] = t.Subject.Value
			} else {
				n["@id"] = "_:" + t.Subject.Value
			}
			bySubject[subjKey] = n
			order = append(order, subjKey)
		}

		if t.Predicate.Value == RDFType && t.Object.IsIRI() {
			appendValue(n, "@type", t.Object.Value)
			continue
		}

		var value interface{}
		switch {
		case t.Object.IsLiteral() && t.Object.Datatype != "":
			value = map[string]interface{}{"@value": t.Object.Value, "@type": t.Object.Datatype}
		case t.Object.IsLiteral() && t.Object.Lang != "":
			value = map[string]interface{}{"@value": t.Object.Value, "@language": t.Object.Lang}
		case t.Object.IsLiteral():
			value = t.Object.Value
		case t.Object.IsBlank():
			value = map[string]interface{}{"@id": "_:" + t.Object.Value}
		default:
			value = map[string]interface{}{"@id": t.Object.Value}
		}
		appendValue(n, t.Predicate.Value, value)
	}

	graph := make([]interface{}, 0, len(order))
	for _, k := range order {
		graph = append(graph, bySubject[k])
	}
	doc := map[string]interface{}{"@graph": graph}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeSerialization, "jsonld export")
	}
	return string(data), nil
}

func (s *Store) exportRDFXML() string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&sb, `<rdf:RDF xmlns:rdf="%s">`+"\n", RDFNS)

	triples := s.Triples()
	bySubject := map[string][]Triple{}
	var order []string
	for _, t := range triples {
		k := t.Subject.String()
		if _, ok := bySubject[k]; !ok {
			order = append(order, k)
		}
		bySubject[k] = append(bySubject[k], t)
	}

	for _, subjKey := range order {
		group := bySubject[subjKey]
		subj := group[0].Subject
		if subj.IsIRI() {
			fmt.Fprintf(&sb, `  <rdf:Description rdf:about="%s">`+"\n", xmlEscape(subj.Value))
		} else {
			fmt.Fprintf(&sb, `  <rdf:Description rdf:nodeID="%s">`+"\n", xmlEscape(subj.Value))
		}
		for _, t := range group {
			name, ns := splitIRI(t.Predicate.Value)
			switch {
			case t.Object.IsLiteral():
				fmt.Fprintf(&sb, `    <%s xmlns="%s">%s</%s>`+"\n", name, ns, xmlEscape(t.Object.Value), name)
			default:
				fmt.Fprintf(&sb, `    <%s xmlns="%s" rdf:resource="%s"/>`+"\n", name, ns, xmlEscape(t.Object.Value))
			}
		}
		sb.WriteString("  </rdf:Description>\n")
	}
	sb.WriteString("</rdf:RDF>\n")
	return sb.String()
}

// splitIRI separates an IRI into local name and namespace at the last '#' or
// '/'.
func splitIRI(iri string) (local, ns string) {
	idx := strings.LastIndexAny(iri, "#/")
	if idx < 0 || idx == len(iri)-1 {
		return iri, ""
	}
	return iri[idx+1:], iri[:idx+1]
}

func xmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
