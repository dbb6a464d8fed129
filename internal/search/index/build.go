package index

import (
	"fmt"
	"sort"
)

// analyzed is the per-term, per-field occurrence count of one document.
type analyzed struct {
	id     string
	counts map[string]map[Field]int
	length int
}

func analyze(d Document) analyzed {
	a := analyzed{id: d.ID, counts: make(map[string]map[Field]int)}
	add := func(term string, f Field, unigram bool) {
		byField := a.counts[term]
		if byField == nil {
			byField = make(map[Field]int, 1)
			a.counts[term] = byField
		}
		byField[f]++
		if unigram {
			a.length++
		}
	}
	for _, t := range Tokenize(d.Name) {
		add(t, FieldName, true)
	}
	for _, phrase := range d.Triggers {
		toks := Tokenize(phrase)
		for _, t := range toks {
			add(t, FieldTrigger, true)
		}
		for _, g := range NGrams(toks) {
			add(g, FieldTrigger, false)
		}
	}
	for _, t := range Tokenize(d.Narrative) {
		add(t, FieldNarrative, true)
	}
	for _, t := range Tokenize(d.Body) {
		add(t, FieldBody, true)
	}
	return a
}

func (a analyzed) terms() []string {
	out := make([]string, 0, len(a.counts))
	for t := range a.counts {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (a analyzed) postings(term string) []Posting {
	byField := a.counts[term]
	out := make([]Posting, 0, len(byField))
	for f, c := range byField {
		out = append(out, Posting{ID: a.id, Field: f, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

func sortPostings(ps []Posting) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].ID != ps[j].ID {
			return ps[i].ID < ps[j].ID
		}
		return ps[i].Field < ps[j].Field
	})
}

// Build indexes docs from scratch. It is a pure function of its input.
func Build(docs []Document) (*Index, error) {
	return (&Index{}).Apply(nil, docs)
}

// Apply returns a new index with the documents in remove dropped and docs
// added. To replace a document, list its id in remove and the new version in
// docs. The receiver is never modified and keeps sharing its layers with the
// result.
func (ix *Index) Apply(remove []string, docs []Document) (*Index, error) {
	removing := make(map[string]bool, len(remove))
	for _, id := range remove {
		if !ix.Has(id) {
			return nil, fmt.Errorf("remove %q: %w", id, ErrUnknownManifest)
		}
		removing[id] = true
	}

	added := make([]analyzed, 0, len(docs))
	adding := make(map[string]bool, len(docs))
	for _, d := range docs {
		if adding[d.ID] || (ix.Has(d.ID) && !removing[d.ID]) {
			return nil, fmt.Errorf("add %q: %w", d.ID, ErrDuplicateManifest)
		}
		adding[d.ID] = true
		added = append(added, analyze(d))
	}

	out := &Index{layers: ix.layers, docs: ix.docs, terms: ix.terms}
	if len(removing) == 0 && len(added) == 0 {
		return out, nil
	}

	top := newLayer()
	shift := func(term string, delta int) {
		cur, ok := top.df[term]
		if !ok {
			cur = ix.df(term)
		}
		next := cur + delta
		top.df[term] = next
		switch {
		case cur == 0 && next > 0:
			out.terms++
		case cur > 0 && next == 0:
			out.terms--
		}
	}
	for id := range removing {
		e, _ := ix.doc(id)
		for _, t := range e.terms {
			top.set(t, id, nil)
			shift(t, -1)
		}
		top.docs[id] = docEntry{removed: true}
		out.docs--
	}
	for _, a := range added {
		for t := range a.counts {
			top.set(t, a.id, a.postings(t))
			shift(t, +1)
		}
		top.docs[a.id] = docEntry{length: a.length, terms: a.terms()}
		out.docs++
	}
	top.size = top.entries()

	layers := make([]*layer, len(ix.layers), len(ix.layers)+1)
	copy(layers, ix.layers)
	layers = append(layers, top)
	if len(layers) == 1 {
		layers[0] = merge(newLayer(), top, true)
	}
	for n := len(layers); n > 1 && 2*layers[n-1].size >= layers[n-2].size; n = len(layers) {
		merged := merge(layers[n-2], layers[n-1], n == 2)
		layers = append(layers[:n-2], merged)
	}
	out.layers = layers
	return out, nil
}

func (l *layer) entries() int {
	n := len(l.docs)
	for _, byID := range l.postings {
		n += len(byID)
	}
	return n
}

// merge folds upper over lower into a new layer. When the result becomes the
// bottom layer, tombstones have nothing left to hide and are dropped.
func merge(lower, upper *layer, bottom bool) *layer {
	out := newLayer()
	for _, l := range []*layer{lower, upper} {
		for t, byID := range l.postings {
			for id, ps := range byID {
				out.set(t, id, ps)
			}
		}
		for id, e := range l.docs {
			out.docs[id] = e
		}
		for t, n := range l.df {
			out.df[t] = n
		}
	}
	if bottom {
		for t, byID := range out.postings {
			for id, ps := range byID {
				if ps == nil {
					delete(byID, id)
				}
			}
			if len(byID) == 0 {
				delete(out.postings, t)
			}
		}
		for id, e := range out.docs {
			if e.removed {
				delete(out.docs, id)
			}
		}
		for t, n := range out.df {
			if n == 0 {
				delete(out.df, t)
			}
		}
	}
	out.size = out.entries()
	return out
}
