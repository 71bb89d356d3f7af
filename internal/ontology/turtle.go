package ontology

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ParseTurtle parses Turtle, N-Triples, Notation3, or TriG input into
// triples.  The four syntaxes share a statement grammar; TriG graph wrappers
// are flattened into the default graph.  prefixes seeds the prefix table and
// receives any @prefix bindings encountered.
func ParseTurtle(input string, prefixes map[string]string) ([]Triple, error) {
	p := &turtleParser{
		toks:     tokenizeTurtle(input),
		prefixes: prefixes,
	}
	return p.parse()
}

type tokKind int

const (
	tokIRI tokKind = iota
	tokPName
	tokBlankNode
	tokLiteral
	tokPunct // . ; , [ ] ( ) { }
	tokKeyword
	tokLangTag
	tokDatatypeMark // ^^
	tokEOF
)

type turtleToken struct {
	kind tokKind
	text string
	line int
}

// tokenizeTurtle splits input into tokens.  Malformed fragments surface as
// parse errors later rather than panics here.
func tokenizeTurtle(input string) []turtleToken {
	var toks []turtleToken
	runes := []rune(input)
	line := 1
	i := 0
	n := len(runes)

	push := func(kind tokKind, text string) {
		toks = append(toks, turtleToken{kind: kind, text: text, line: line})
	}

	for i < n {
		c := runes[i]
		switch {
		case c == '\n':
			line++
			i++
		case unicode.IsSpace(c):
			i++
		case c == '#':
			for i < n && runes[i] != '\n' {
				i++
			}
		case c == '<':
			j := i + 1
			for j < n && runes[j] != '>' {
				j++
			}
			push(tokIRI, string(runes[i+1:j]))
			i = j + 1
		case c == '"' || c == '\'':
			quote := c
			long := i+2 < n && runes[i+1] == quote && runes[i+2] == quote
			var sb strings.Builder
			if long {
				i += 3
				for i+2 < n && !(runes[i] == quote && runes[i+1] == quote && runes[i+2] == quote) {
					if runes[i] == '\n' {
						line++
					}
					sb.WriteRune(runes[i])
					i++
				}
				i += 3
			} else {
				i++
				for i < n && runes[i] != quote {
					if runes[i] == '\\' && i+1 < n {
						i++
						sb.WriteRune(unescapeTurtle(runes[i]))
					} else {
						sb.WriteRune(runes[i])
					}
					i++
				}
				i++
			}
			push(tokLiteral, sb.String())
		case c == '^' && i+1 < n && runes[i+1] == '^':
			push(tokDatatypeMark, "^^")
			i += 2
		case c == '@':
			j := i + 1
			for j < n && (unicode.IsLetter(runes[j]) || runes[j] == '-') {
				j++
			}
			word := string(runes[i+1 : j])
			switch word {
			case "prefix", "base":
				push(tokKeyword, "@"+word)
			default:
				push(tokLangTag, word)
			}
			i = j
		case c == '_' && i+1 < n && runes[i+1] == ':':
			j := i + 2
			for j < n && isPNChar(runes[j]) {
				j++
			}
			push(tokBlankNode, string(runes[i+2:j]))
			i = j
		case strings.ContainsRune(".;,[](){}", c):
			// A dot inside a number is handled in the numeric branch below.
			push(tokPunct, string(c))
			i++
		case c == '+' || c == '-' || unicode.IsDigit(c):
			j := i
			if c == '+' || c == '-' {
				j++
			}
			sawDigit := false
			for j < n && (unicode.IsDigit(runes[j]) || runes[j] == '.' || runes[j] == 'e' || runes[j] == 'E') {
				if unicode.IsDigit(runes[j]) {
					sawDigit = true
				}
				// a trailing dot terminates the statement, not the number
				if runes[j] == '.' && (j+1 >= n || !unicode.IsDigit(runes[j+1])) {
					break
				}
				j++
			}
			if sawDigit {
				push(tokLiteral, string(runes[i:j]))
				toks[len(toks)-1].kind = tokLiteral
				i = j
			} else {
				i++
			}
		default:
			j := i
			for j < n && (isPNChar(runes[j]) || runes[j] == ':') {
				j++
			}
			if j == i {
				i++
				continue
			}
			word := string(runes[i:j])
			switch word {
			case "a", "true", "false", "PREFIX", "BASE", "GRAPH":
				push(tokKeyword, word)
			default:
				push(tokPName, word)
			}
			i = j
		}
	}
	push(tokEOF, "")
	return toks
}

func unescapeTurtle(c rune) rune {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	default:
		return c
	}
}

func isPNChar(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' || c == '-' || c == '%'
}

type turtleParser struct {
	toks     []turtleToken
	pos      int
	prefixes map[string]string
	out      []Triple
	blankSeq int
}

func (p *turtleParser) peek() turtleToken { return p.toks[p.pos] }

func (p *turtleParser) next() turtleToken {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *turtleParser) errf(t turtleToken, format string, args ...interface{}) error {
	return fmt.Errorf("turtle: line %d: %s", t.line, fmt.Sprintf(format, args...))
}

func (p *turtleParser) freshBlank() Term {
	p.blankSeq++
	return NewBlank("b" + strconv.Itoa(p.blankSeq))
}

func (p *turtleParser) parse() ([]Triple, error) {
	for {
		t := p.peek()
		switch {
		case t.kind == tokEOF:
			return p.out, nil
		case t.kind == tokKeyword && (t.text == "@prefix" || t.text == "PREFIX"):
			if err := p.parsePrefix(); err != nil {
				return nil, err
			}
		case t.kind == tokKeyword && (t.text == "@base" || t.text == "BASE"):
			p.next()
			p.next() // base IRI, unused
			if p.peek().kind == tokPunct && p.peek().text == "." {
				p.next()
			}
		case t.kind == tokKeyword && t.text == "GRAPH":
			p.next() // graph keyword; the label and braces follow
		case t.kind == tokPunct && t.text == "{":
			p.next()
		case t.kind == tokPunct && t.text == "}":
			p.next()
		case t.kind == tokPunct && t.text == ".":
			p.next()
		default:
			if err := p.parseTriples(); err != nil {
				return nil, err
			}
		}
	}
}

func (p *turtleParser) parsePrefix() error {
	p.next() // @prefix
	name := p.next()
	if name.kind != tokPName {
		return p.errf(name, "expected prefix name, got %q", name.text)
	}
	iri := p.next()
	if iri.kind != tokIRI {
		return p.errf(iri, "expected prefix IRI, got %q", iri.text)
	}
	p.prefixes[strings.TrimSuffix(name.text, ":")] = iri.text
	if p.peek().kind == tokPunct && p.peek().text == "." {
		p.next()
	}
	return nil
}

// parseTriples parses subject predicateObjectList '.'; a possible TriG graph
// label followed by '{' is handled by treating the label as a subject and
// backtracking when '{' follows.
func (p *turtleParser) parseTriples() error {
	start := p.pos
	subj, err := p.parseSubject()
	if err != nil {
		return err
	}
	if p.peek().kind == tokPunct && p.peek().text == "{" {
		// TriG graph label; drop it and continue with the block contents.
		_ = start
		p.next()
		return nil
	}
	if err := p.parsePredicateObjectList(subj); err != nil {
		return err
	}
	if p.peek().kind == tokPunct && p.peek().text == "." {
		p.next()
	}
	return nil
}

func (p *turtleParser) parseSubject() (Term, error) {
	t := p.peek()
	switch {
	case t.kind == tokIRI:
		p.next()
		return NewIRI(t.text), nil
	case t.kind == tokPName:
		p.next()
		return NewIRI(expandWith(p.prefixes, t.text)), nil
	case t.kind == tokBlankNode:
		p.next()
		return NewBlank(t.text), nil
	case t.kind == tokPunct && t.text == "[":
		return p.parseBlankNodePropertyList()
	default:
		return Term{}, p.errf(t, "expected subject, got %q", t.text)
	}
}

func (p *turtleParser) parsePredicateObjectList(subj Term) error {
	for {
		pred, err := p.parsePredicate()
		if err != nil {
			return err
		}
		if err := p.parseObjectList(subj, pred); err != nil {
			return err
		}
		if p.peek().kind == tokPunct && p.peek().text == ";" {
			p.next()
			// trailing semicolon before '.' or ']'
			nx := p.peek()
			if nx.kind == tokPunct && (nx.text == "." || nx.text == "]") {
				return nil
			}
			continue
		}
		return nil
	}
}

func (p *turtleParser) parsePredicate() (Term, error) {
	t := p.next()
	switch {
	case t.kind == tokKeyword && t.text == "a":
		return NewIRI(RDFType), nil
	case t.kind == tokIRI:
		return NewIRI(t.text), nil
	case t.kind == tokPName:
		return NewIRI(expandWith(p.prefixes, t.text)), nil
	default:
		return Term{}, p.errf(t, "expected predicate, got %q", t.text)
	}
}

func (p *turtleParser) parseObjectList(subj, pred Term) error {
	for {
		obj, err := p.parseObject()
		if err != nil {
			return err
		}
		p.out = append(p.out, Triple{subj, pred, obj})
		if p.peek().kind == tokPunct && p.peek().text == "," {
			p.next()
			continue
		}
		return nil
	}
}

func (p *turtleParser) parseObject() (Term, error) {
	t := p.peek()
	switch {
	case t.kind == tokIRI:
		p.next()
		return NewIRI(t.text), nil
	case t.kind == tokPName:
		p.next()
		return NewIRI(expandWith(p.prefixes, t.text)), nil
	case t.kind == tokBlankNode:
		p.next()
		return NewBlank(t.text), nil
	case t.kind == tokLiteral:
		p.next()
		lit := Term{Value: t.text, Kind: Literal}
		if p.peek().kind == tokDatatypeMark {
			p.next()
			dt := p.next()
			switch dt.kind {
			case tokIRI:
				lit.Datatype = dt.text
			case tokPName:
				lit.Datatype = expandWith(p.prefixes, dt.text)
			default:
				return Term{}, p.errf(dt, "expected datatype IRI, got %q", dt.text)
			}
		} else if p.peek().kind == tokLangTag {
			lit.Lang = p.next().text
		}
		return lit, nil
	case t.kind == tokKeyword && (t.text == "true" || t.text == "false"):
		p.next()
		return Term{Value: t.text, Kind: Literal, Datatype: XSDNS + "boolean"}, nil
	case t.kind == tokPunct && t.text == "[":
		return p.parseBlankNodePropertyList()
	case t.kind == tokPunct && t.text == "(":
		return p.parseCollection()
	default:
		return Term{}, p.errf(t, "expected object, got %q", t.text)
	}
}

func (p *turtleParser) parseBlankNodePropertyList() (Term, error) {
	open := p.next() // [
	node := p.freshBlank()
	if p.peek().kind == tokPunct && p.peek().text == "]" {
		p.next()
		return node, nil
	}
	if err := p.parsePredicateObjectList(node); err != nil {
		return Term{}, err
	}
	closeTok := p.next()
	if closeTok.kind != tokPunct || closeTok.text != "]" {
		return Term{}, p.errf(open, "unterminated blank node property list")
	}
	return node, nil
}

// parseCollection materializes an RDF collection as first/rest triples and
// returns the head term.
func (p *turtleParser) parseCollection() (Term, error) {
	p.next() // (
	var members []Term
	for {
		t := p.peek()
		if t.kind == tokEOF {
			return Term{}, p.errf(t, "unterminated collection")
		}
		if t.kind == tokPunct && t.text == ")" {
			p.next()
			break
		}
		obj, err := p.parseObject()
		if err != nil {
			return Term{}, err
		}
		members = append(members, obj)
	}
	if len(members) == 0 {
		return NewIRI(RDFNil), nil
	}
	head := p.freshBlank()
	cur := head
	for i, m := range members {
		p.out = append(p.out, Triple{cur, NewIRI(RDFFirst), m})
		if i == len(members)-1 {
			p.out = append(p.out, Triple{cur, NewIRI(RDFRest), NewIRI(RDFNil)})
		} else {
			next := p.freshBlank()
			p.out = append(p.out, Triple{cur, NewIRI(RDFRest), next})
			cur = next
		}
	}
	return head, nil
}
