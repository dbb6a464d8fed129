package index

import (
	"sort"

	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/manifest"
)

// Field is the part of a manifest a token came from.
type Field uint8

const (
	FieldName Field = iota
	FieldTrigger
	FieldNarrative
	FieldBody
)

var fieldNames = [...]string{"name", "trigger", "narrative", "body"}

func (f Field) String() string {
	if int(f) < len(fieldNames) {
		return fieldNames[f]
	}
	return "unknown"
}

// Weight is the per-occurrence score of a token in field f.
func (f Field) Weight() float64 {
	switch f {
	case FieldName:
		return 5
	case FieldTrigger:
		return 4
	case FieldNarrative:
		return 2
	case FieldBody:
		return 1
	}
	return 0
}

// Posting is one (manifest, field) occurrence count for a term.
type Posting struct {
	ID    string `json:"id"`
	Field Field  `json:"field"`
	Count int    `json:"count"`
}

// Document is the indexable text of one manifest.
type Document struct {
	ID        string
	Name      string
	Triggers  []string
	Narrative string
	Body      string
}

// FromManifest extracts the indexed fields of m. The narrative is the
// description with trigger phrases removed, so embedded examples count as
// narrative and the quoted phrases count as triggers, never both.
func FromManifest(m *manifest.Manifest) Document {
	return Document{
		ID:        m.ID,
		Name:      m.Name,
		Triggers:  m.Triggers,
		Narrative: manifest.Narrative(m.Description),
		Body:      m.Body,
	}
}

// Index is an immutable inverted index. The zero value is an empty index.
//
// It is a stack of layers, bottom first. Apply pushes one layer holding only
// the postings of the documents it touches and merges neighbouring layers of
// similar size, so an update costs time proportional to the changed
// documents (amortised over the merges) and never to the whole vocabulary.
type Index struct {
	layers []*layer
	docs   int
	terms  int
}

// layer overrides the layers below it per (term, id) and per id. A nil
// posting slice or a removed docEntry hides what lies below.
type layer struct {
	postings map[string]map[string][]Posting
	docs     map[string]docEntry
	// df is the number of documents holding each touched term once this
	// layer is applied.
	df   map[string]int
	size int
}

type docEntry struct {
	length  int
	terms   []string // sorted
	removed bool
}

func newLayer() *layer {
	return &layer{
		postings: map[string]map[string][]Posting{},
		docs:     map[string]docEntry{},
		df:       map[string]int{},
	}
}

func (l *layer) set(term, id string, ps []Posting) {
	byID := l.postings[term]
	if byID == nil {
		byID = make(map[string][]Posting, 1)
		l.postings[term] = byID
	}
	byID[id] = ps
}

func (ix *Index) doc(id string) (docEntry, bool) {
	for i := len(ix.layers) - 1; i >= 0; i-- {
		if e, ok := ix.layers[i].docs[id]; ok {
			return e, !e.removed
		}
	}
	return docEntry{}, false
}

func (ix *Index) df(term string) int {
	for i := len(ix.layers) - 1; i >= 0; i-- {
		if n, ok := ix.layers[i].df[term]; ok {
			return n
		}
	}
	return 0
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int { return ix.docs }

// Has reports whether id is indexed.
func (ix *Index) Has(id string) bool {
	_, ok := ix.doc(id)
	return ok
}

// DocLen is the number of unigram occurrences indexed for id.
func (ix *Index) DocLen(id string) int {
	e, _ := ix.doc(id)
	return e.length
}

// Postings returns the posting list of term sorted by id then field.
func (ix *Index) Postings(term string) []Posting {
	var out []Posting
	var seen map[string]bool
	if len(ix.layers) > 1 {
		seen = make(map[string]bool)
	}
	for i := len(ix.layers) - 1; i >= 0; i-- {
		for id, ps := range ix.layers[i].postings[term] {
			if seen != nil {
				if seen[id] {
					continue
				}
				seen[id] = true
			}
			out = append(out, ps...)
		}
	}
	sortPostings(out)
	return out
}

// Terms returns the number of distinct terms.
func (ix *Index) Terms() int { return ix.terms }

// IDs returns the indexed ids in sorted order.
func (ix *Index) IDs() []string {
	seen := make(map[string]bool)
	var out []string
	for i := len(ix.layers) - 1; i >= 0; i-- {
		for id, e := range ix.layers[i].docs {
			if seen[id] {
				continue
			}
			seen[id] = true
			if !e.removed {
				out = append(out, id)
			}
		}
	}
	sort.Strings(out)
	return out
}
