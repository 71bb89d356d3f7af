package ontology

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// ParseRDFXML parses RDF/XML (also the usual serialization of .owl files)
// into triples.  The parser covers the striped syntax the pipelines consume:
// rdf:Description and typed node elements, rdf:about/rdf:ID subjects,
// rdf:resource objects, nested node elements, and literal property values.
func ParseRDFXML(input []byte) ([]Triple, error) {
	dec := xml.NewDecoder(strings.NewReader(string(input)))
	p := &rdfXMLParser{dec: dec}

	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Space == RDFNS && start.Name.Local == "RDF" {
			if err := p.parseNodeElements(start); err != nil {
				return nil, err
			}
			return p.out, nil
		}
		// Document whose root is itself a node element.
		if _, err := p.parseNodeElement(start); err != nil {
			return nil, err
		}
		return p.out, nil
	}
	return nil, fmt.Errorf("rdfxml: no RDF content found")
}

type rdfXMLParser struct {
	dec      *xml.Decoder
	out      []Triple
	blankSeq int
}

func (p *rdfXMLParser) freshBlank() Term {
	p.blankSeq++
	return NewBlank("x" + strconv.Itoa(p.blankSeq))
}

// parseNodeElements consumes children of parent until its end element.
func (p *rdfXMLParser) parseNodeElements(parent xml.StartElement) error {
	for {
		tok, err := p.dec.Token()
		if err != nil {
			return nil
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if _, err := p.parseNodeElement(t); err != nil {
				return err
			}
		case xml.EndElement:
			if t.Name == parent.Name {
				return nil
			}
		}
	}
}

// parseNodeElement parses one node element and returns its subject term.
func (p *rdfXMLParser) parseNodeElement(start xml.StartElement) (Term, error) {
	subj := p.freshBlank()
	for _, attr := range start.Attr {
		if attr.Name.Space == RDFNS && (attr.Name.Local == "about" || attr.Name.Local == "ID") {
			subj = NewIRI(attr.Value)
		}
	}

	// Typed node elements assert rdf:type from the element name.
	if !(start.Name.Space == RDFNS && start.Name.Local == "Description") {
		p.out = append(p.out, Triple{subj, NewIRI(RDFType), NewIRI(start.Name.Space + start.Name.Local)})
	}

	// Non-rdf attributes are literal properties.
	for _, attr := range start.Attr {
		if attr.Name.Space == RDFNS || attr.Name.Space == "xmlns" || attr.Name.Space == "" {
			continue
		}
		p.out = append(p.out, Triple{subj, NewIRI(attr.Name.Space + attr.Name.Local), NewLiteral(attr.Value)})
	}

	// Property elements.
	for {
		tok, err := p.dec.Token()
		if err != nil {
			return subj, nil
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if err := p.parsePropertyElement(subj, t); err != nil {
				return subj, err
			}
		case xml.EndElement:
			if t.Name == start.Name {
				return subj, nil
			}
		}
	}
}

func (p *rdfXMLParser) parsePropertyElement(subj Term, start xml.StartElement) error {
	pred := NewIRI(start.Name.Space + start.Name.Local)

	var datatype string
	for _, attr := range start.Attr {
		if attr.Name.Space == RDFNS && attr.Name.Local == "resource" {
			p.out = append(p.out, Triple{subj, pred, NewIRI(attr.Value)})
			return p.skipToEnd(start)
		}
		if attr.Name.Space == RDFNS && attr.Name.Local == "datatype" {
			datatype = attr.Value
		}
	}

	var text strings.Builder
	for {
		tok, err := p.dec.Token()
		if err != nil {
			return nil
		}
		switch t := tok.(type) {
		case xml.CharData:
			text.Write(t)
		case xml.StartElement:
			// Nested node element as object.
			obj, err := p.parseNodeElement(t)
			if err != nil {
				return err
			}
			p.out = append(p.out, Triple{subj, pred, obj})
		case xml.EndElement:
			if t.Name == start.Name {
				value := strings.TrimSpace(text.String())
				if value != "" {
					p.out = append(p.out, Triple{subj, pred, Term{Value: value, Kind: Literal, Datatype: datatype}})
				}
				return nil
			}
		}
	}
}

func (p *rdfXMLParser) skipToEnd(start xml.StartElement) error {
	depth := 1
	for depth > 0 {
		tok, err := p.dec.Token()
		if err != nil {
			return nil
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}
	return nil
}
