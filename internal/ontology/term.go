// Package ontology implements the in-memory RDF triple store: format-
// polymorphic loaders, pattern queries, export, and SHACL-style shape
// validation.  The store is shared read-only across pipeline runs; mutation
// takes the writer lock.
package ontology

import "fmt"

// TermKind discriminates the three RDF term kinds.
type TermKind int

const (
	IRI TermKind = iota
	Literal
	Blank
)

// Term is a single RDF term.  For literals, Datatype and Lang carry the
// optional ^^type and @lang annotations.
type Term struct {
	Value    string
	Kind     TermKind
	Datatype string
	Lang     string
}

// NewIRI returns an IRI term.
func NewIRI(value string) Term { return Term{Value: value, Kind: IRI} }

// NewLiteral returns a plain literal term.
func NewLiteral(value string) Term { return Term{Value: value, Kind: Literal} }

// NewBlank returns a blank-node term.
func NewBlank(id string) Term { return Term{Value: id, Kind: Blank} }

// IsIRI reports whether the term is an IRI.
func (t Term) IsIRI() bool { return t.Kind == IRI }

// IsLiteral reports whether the term is a literal.
func (t Term) IsLiteral() bool { return t.Kind == Literal }

// IsBlank reports whether the term is a blank node.
func (t Term) IsBlank() bool { return t.Kind == Blank }

// String renders the term in N-Triples syntax.
func (t Term) String() string {
	switch t.Kind {
	case Literal:
		switch {
		case t.Lang != "":
			return fmt.Sprintf("%q@%s", t.Value, t.Lang)
		case t.Datatype != "":
			return fmt.Sprintf("%q^^<%s>", t.Value, t.Datatype)
		default:
			return fmt.Sprintf("%q", t.Value)
		}
	case Blank:
		return "_:" + t.Value
	default:
		return "<" + t.Value + ">"
	}
}

// Triple is one (subject, predicate, object) fact.
type Triple struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// Key returns a canonical string for set-membership checks.
func (tr Triple) Key() string {
	return tr.Subject.String() + " " + tr.Predicate.String() + " " + tr.Object.String()
}

// Well-known vocabulary IRIs.
const (
	RDFNS  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	RDFSNS = "http://www.w3.org/2000/01/rdf-schema#"
	OWLNS  = "http://www.w3.org/2002/07/owl#"
	XSDNS  = "http://www.w3.org/2001/XMLSchema#"
	SHNS   = "http://www.w3.org/ns/shacl#"

	RDFType       = RDFNS + "type"
	RDFFirst      = RDFNS + "first"
	RDFRest       = RDFNS + "rest"
	RDFNil        = RDFNS + "nil"
	RDFSClass     = RDFSNS + "Class"
	RDFSLabel     = RDFSNS + "label"
	RDFSComment   = RDFSNS + "comment"
	RDFSSubClass  = RDFSNS + "subClassOf"
	RDFSDomain    = RDFSNS + "domain"
	RDFSRange     = RDFSNS + "range"
	OWLClass      = OWLNS + "Class"
	OWLObjectProp = OWLNS + "ObjectProperty"
	OWLDataProp   = OWLNS + "DatatypeProperty"

	SHNodeShape   = SHNS + "NodeShape"
	SHTargetClass = SHNS + "targetClass"
	SHProperty    = SHNS + "property"
	SHPath        = SHNS + "path"
	SHMinCount    = SHNS + "minCount"
	SHMaxCount    = SHNS + "maxCount"
	SHDatatype    = SHNS + "datatype"
	SHIn          = SHNS + "in"
	SHMessage     = SHNS + "message"
	SHSeverity    = SHNS + "severity"
)

// defaultPrefixes are pre-bound in every store.
func defaultPrefixes() map[string]string {
	return map[string]string{
		"rdf":  RDFNS,
		"rdfs": RDFSNS,
		"owl":  OWLNS,
		"xsd":  XSDNS,
		"sh":   SHNS,
	}
}
