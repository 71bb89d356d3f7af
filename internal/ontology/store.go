package ontology

import (
	"sort"
	"strings"
	"sync"

	"github.com/hazardsafe/hazardsafe-kg/internal/infrastructure/monitoring/logging"
)

// Store is the in-memory triple set with bound prefix aliases.  Loads merge
// append-only; duplicate triples are collapsed.  Many concurrent readers, one
// exclusive writer.
type Store struct {
	mu       sync.RWMutex
	triples  []Triple
	seen     map[string]struct{}
	bySubj   map[string][]int
	prefixes map[string]string
	logger   logging.Logger
}

// NewStore returns an empty store with the standard prefixes plus the given
// default prefix binding.
func NewStore(prefix, prefixURI string, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	p := defaultPrefixes()
	if prefix != "" && prefixURI != "" {
		p[prefix] = prefixURI
	}
	return &Store{
		seen:     make(map[string]struct{}),
		bySubj:   make(map[string][]int),
		prefixes: p,
		logger:   logger,
	}
}

// BindPrefix registers (or overwrites) a prefix alias.
func (s *Store) BindPrefix(prefix, uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefixes[prefix] = uri
}

// Prefixes returns a copy of the bound prefix table.
func (s *Store) Prefixes() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.prefixes))
	for k, v := range s.prefixes {
		out[k] = v
	}
	return out
}

// Expand resolves a prefixed name ("hs:Substance") against the bound
// prefixes.  Unprefixed or unknown input is returned unchanged.
func (s *Store) Expand(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return expandWith(s.prefixes, name)
}

func expandWith(prefixes map[string]string, name string) string {
	i := strings.Index(name, ":")
	if i < 0 {
		return name
	}
	if uri, ok := prefixes[name[:i]]; ok {
		return uri + name[i+1:]
	}
	return name
}

// Add appends a triple if not already present.  Returns true when the triple
// was new.
func (s *Store) Add(t Triple) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(t)
}

func (s *Store) addLocked(t Triple) bool {
	key := t.Key()
	if _, dup := s.seen[key]; dup {
		return false
	}
	s.seen[key] = struct{}{}
	s.triples = append(s.triples, t)
	s.bySubj[t.Subject.String()] = append(s.bySubj[t.Subject.String()], len(s.triples)-1)
	return true
}

// AddAll appends a batch of triples and returns the count added.
func (s *Store) AddAll(triples []Triple) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, t := range triples {
		if s.addLocked(t) {
			added++
		}
	}
	return added
}

// AddClass asserts a class with optional label, comment, and super-class.
// Prefixed names are expanded against the bound prefixes.
func (s *Store) AddClass(class, label, comment, superClass string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := NewIRI(expandWith(s.prefixes, class))
	s.addLocked(Triple{c, NewIRI(RDFType), NewIRI(OWLClass)})
	if label != "" {
		s.addLocked(Triple{c, NewIRI(RDFSLabel), NewLiteral(label)})
	}
	if comment != "" {
		s.addLocked(Triple{c, NewIRI(RDFSComment), NewLiteral(comment)})
	}
	if superClass != "" {
		s.addLocked(Triple{c, NewIRI(RDFSSubClass), NewIRI(expandWith(s.prefixes, superClass))})
	}
}

// AddProperty asserts a property with optional domain and range.
func (s *Store) AddProperty(property, label, domain, rng string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := NewIRI(expandWith(s.prefixes, property))
	s.addLocked(Triple{p, NewIRI(RDFType), NewIRI(OWLObjectProp)})
	if label != "" {
		s.addLocked(Triple{p, NewIRI(RDFSLabel), NewLiteral(label)})
	}
	if domain != "" {
		s.addLocked(Triple{p, NewIRI(RDFSDomain), NewIRI(expandWith(s.prefixes, domain))})
	}
	if rng != "" {
		s.addLocked(Triple{p, NewIRI(RDFSRange), NewIRI(expandWith(s.prefixes, rng))})
	}
}

// AddInstance asserts a typed instance with a bag of literal property values.
func (s *Store) AddInstance(instance, class string, values map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst := NewIRI(expandWith(s.prefixes, instance))
	s.addLocked(Triple{inst, NewIRI(RDFType), NewIRI(expandWith(s.prefixes, class))})
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s.addLocked(Triple{inst, NewIRI(expandWith(s.prefixes, k)), NewLiteral(values[k])})
	}
}

// Pattern is a triple pattern with optional positions; nil matches anything.
// Values are full IRIs or, for objects, literal values.
type Pattern struct {
	Subject   *Term
	Predicate *Term
	Object    *Term
}

// S, P, O build optional pattern terms.
func S(iri string) *Term { t := NewIRI(iri); return &t }
func P(iri string) *Term { t := NewIRI(iri); return &t }
func O(t Term) *Term     { return &t }

func OIRI(iri string) *Term { t := NewIRI(iri); return &t }

// Query returns every triple matching the pattern, in insertion order.
func (s *Store) Query(p Pattern) []Triple {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Subject-bound queries go through the index.
	if p.Subject != nil {
		var out []Triple
		for _, i := range s.bySubj[p.Subject.String()] {
			t := s.triples[i]
			if matchTerm(p.Predicate, t.Predicate) && matchTerm(p.Object, t.Object) {
				out = append(out, t)
			}
		}
		return out
	}

	var out []Triple
	for _, t := range s.triples {
		if matchTerm(p.Predicate, t.Predicate) && matchTerm(p.Object, t.Object) {
			out = append(out, t)
		}
	}
	return out
}

func matchTerm(want *Term, have Term) bool {
	if want == nil {
		return true
	}
	return want.Kind == have.Kind && want.Value == have.Value
}

// Subjects returns the distinct subjects of triples matching the pattern.
func (s *Store) Subjects(p Pattern) []Term {
	seen := map[string]struct{}{}
	var out []Term
	for _, t := range s.Query(p) {
		k := t.Subject.String()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, t.Subject)
	}
	return out
}

// Objects returns the objects of triples with the given subject and predicate.
func (s *Store) Objects(subject Term, predicate string) []Term {
	var out []Term
	for _, t := range s.Query(Pattern{Subject: &subject, Predicate: P(predicate)}) {
		out = append(out, t.Object)
	}
	return out
}

// FirstObject returns the first object for (subject, predicate), if any.
func (s *Store) FirstObject(subject Term, predicate string) (Term, bool) {
	objs := s.Objects(subject, predicate)
	if len(objs) == 0 {
		return Term{}, false
	}
	return objs[0], true
}

// List resolves an RDF collection head into its member terms.
func (s *Store) List(head Term) []Term {
	var out []Term
	cur := head
	for i := 0; i < 10000; i++ { // cycle guard
		if cur.IsIRI() && cur.Value == RDFNil {
			return out
		}
		first, ok := s.FirstObject(cur, RDFFirst)
		if !ok {
			return out
		}
		out = append(out, first)
		rest, ok := s.FirstObject(cur, RDFRest)
		if !ok {
			return out
		}
		cur = rest
	}
	return out
}

// Triples returns a copy of the full triple set.
func (s *Store) Triples() []Triple {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Triple, len(s.triples))
	copy(out, s.triples)
	return out
}

// Len returns the triple count.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.triples)
}

// Stats summarizes the store contents.
type Stats struct {
	Classes    int `json:"classes"`
	Properties int `json:"properties"`
	Instances  int `json:"instances"`
	Triples    int `json:"triples"`
}

// Stats counts classes, properties, typed instances, and triples.
func (s *Store) Stats() Stats {
	classSet := map[string]struct{}{}
	propSet := map[string]struct{}{}
	instSet := map[string]struct{}{}

	for _, t := range s.Query(Pattern{Predicate: P(RDFType)}) {
		obj := t.Object
		if !obj.IsIRI() {
			continue
		}
		switch obj.Value {
		case OWLClass, RDFSClass:
			classSet[t.Subject.String()] = struct{}{}
		case OWLObjectProp, OWLDataProp:
			propSet[t.Subject.String()] = struct{}{}
		case SHNodeShape:
			// shapes are neither classes nor instances
		default:
			instSet[t.Subject.String()] = struct{}{}
		}
	}

	return Stats{
		Classes:    len(classSet),
		Properties: len(propSet),
		Instances:  len(instSet),
		Triples:    s.Len(),
	}
}
