// flatten.go: reconstructs owner-plus-nested-collection graphs from flat
// multi-table join rowsets.
package persist

// ChildRelation describes one nested collection populated from a join row.
// Key extracts the child's own primary key; ok is false when the child
// payload is an outer-join miss and nothing must be attached. Attach appends
// the child to the owner's collection.
type ChildRelation[R any, O any] struct {
	Name   string
	Key    func(row R) (key any, ok bool)
	Attach func(owner *O, row R)
}

// flatten state for one owner: the object under construction plus one seen
// set per relation, keyed by the nested entity's own primary key.
type ownerState[O any] struct {
	owner *O
	seen  []map[any]struct{}
}

// Flatten walks a join rowset in arrival order and rebuilds the owner graph.
// Owners appear in the output in first-seen order; children are attached in
// row-arrival order within their relation, at most once each. A join over
// several independent relations multiplies rows cartesianly; the per-relation
// seen sets suppress both duplicate owners and duplicate children. No
// re-sorting is applied, callers order via ORDER BY in the query.
func Flatten[R any, O any, K comparable](
	rows []R,
	ownerKey func(R) K,
	newOwner func(R) *O,
	relations ...ChildRelation[R, O],
) []*O {
	index := make(map[K]*ownerState[O])
	out := make([]*O, 0, len(rows))

	for _, row := range rows {
		k := ownerKey(row)
		st, found := index[k]
		if !found {
			st = &ownerState[O]{
				owner: newOwner(row),
				seen:  make([]map[any]struct{}, len(relations)),
			}
			for i := range relations {
				st.seen[i] = make(map[any]struct{})
			}
			index[k] = st
			out = append(out, st.owner)
		}
		for i := range relations {
			rel := &relations[i]
			childKey, ok := rel.Key(row)
			if !ok {
				continue // outer-join miss, no child on this row
			}
			if _, dup := st.seen[i][childKey]; dup {
				continue
			}
			st.seen[i][childKey] = struct{}{}
			rel.Attach(st.owner, row)
		}
	}
	return out
}
