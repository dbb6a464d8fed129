package manifest

import "sort"

// wins reports whether a takes the id over b: more directory segments first,
// then the lexicographically smaller path.
func wins(a, b *Manifest) bool {
	if da, db := a.Depth(), b.Depth(); da != db {
		return da > db
	}
	return a.Path < b.Path
}

// ResolveConflicts keeps one manifest per id and returns the survivors sorted
// by id, plus one ConflictError per excluded file sorted by id then path.
// The result does not depend on the input order.
func ResolveConflicts(ms []*Manifest) ([]*Manifest, []*ConflictError) {
	byID := make(map[string][]*Manifest, len(ms))
	for _, m := range ms {
		byID[m.ID] = append(byID[m.ID], m)
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	kept := make([]*Manifest, 0, len(ids))
	var conflicts []*ConflictError
	for _, id := range ids {
		group := byID[id]
		sort.Slice(group, func(i, j int) bool { return wins(group[i], group[j]) })
		kept = append(kept, group[0])
		for _, loser := range group[1:] {
			conflicts = append(conflicts, &ConflictError{ID: id, Winner: group[0].Path, Loser: loser.Path})
		}
	}
	return kept, conflicts
}
