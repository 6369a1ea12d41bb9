package btree

// Leaf is a terminal page storing values directly (spec §3, §4.3.2).
type Leaf[K any, V any] struct {
	revision uint64
	keys     []K
	values   []V
	offset   int64
}

// NewLeaf constructs a leaf at revision with the given keys/values, not
// yet persisted (Offset() == -1 until a flush assigns one).
func NewLeaf[K any, V any](revision uint64, keys []K, values []V) *Leaf[K, V] {
	return &Leaf[K, V]{revision: revision, keys: keys, values: values, offset: -1}
}

func (l *Leaf[K, V]) NbElems() int      { return len(l.keys) }
func (l *Leaf[K, V]) Revision() uint64  { return l.revision }
func (l *Leaf[K, V]) LeftmostKey() K    { return l.keys[0] }
func (l *Leaf[K, V]) RightmostKey() K   { return l.keys[len(l.keys)-1] }
func (l *Leaf[K, V]) IsLeaf() bool      { return true }
func (l *Leaf[K, V]) Offset() int64     { return l.offset }
func (l *Leaf[K, V]) setOffset(o int64) { l.offset = o }
func (l *Leaf[K, V]) Key(i int) K       { return l.keys[i] }
func (l *Leaf[K, V]) Value(i int) V     { return l.values[i] }
func (l *Leaf[K, V]) Keys() []K         { return l.keys }
func (l *Leaf[K, V]) Values() []V       { return l.values }

func (l *Leaf[K, V]) Search(ctx *Context[K, V], key K) SearchResult {
	return search(l.keys, key, ctx.Cmp)
}

// Insert implements spec §4.3.2's leaf insert: replace an existing key's
// value, grow, or split when full, always into new leaves (COW).
func (l *Leaf[K, V]) Insert(ctx *Context[K, V], revision uint64, key K, value V) InsertResult[K, V] {
	res := l.Search(ctx, key)

	if res.Found {
		newKeys := append([]K(nil), l.keys...)
		newValues := append([]V(nil), l.values...)
		old := l.values[res.Index]
		newValues[res.Index] = value
		return InsertResult[K, V]{
			Outcome:  OutcomeModified,
			NewPage:  NewLeaf[K, V](revision, newKeys, newValues),
			OldValue: &old,
		}
	}

	i := res.Index
	if l.NbElems() < ctx.PageSize {
		newLeaf := NewLeaf[K, V](revision, insertAt(l.keys, i, key), insertAt(l.values, i, value))
		return InsertResult[K, V]{Outcome: OutcomeModified, NewPage: newLeaf}
	}

	// Full: split. m = pageSize/2; leftSize depends on where i falls
	// relative to m (spec §4.3.2).
	m := ctx.PageSize / 2
	allKeys := insertAt(l.keys, i, key)
	allValues := insertAt(l.values, i, value)
	leftSize := m
	if i <= m {
		leftSize = m + 1
	}
	left := NewLeaf[K, V](revision, append([]K(nil), allKeys[:leftSize]...), append([]V(nil), allValues[:leftSize]...))
	right := NewLeaf[K, V](revision, append([]K(nil), allKeys[leftSize:]...), append([]V(nil), allValues[leftSize:]...))
	return InsertResult[K, V]{Outcome: OutcomeSplit, Pivot: right.keys[0], Left: left, Right: right}
}

// Delete implements spec §4.3.2's leaf delete, including borrow/merge
// with a sibling chosen through parent when the result underflows.
func (l *Leaf[K, V]) Delete(ctx *Context[K, V], loader Loader[K, V], revision uint64, key K, parent *InternalNode[K, V], pos int) (DeleteResult[K, V], error) {
	res := l.Search(ctx, key)
	if !res.Found {
		return DeleteResult[K, V]{Outcome: OutcomeNotPresent}, nil
	}

	i := res.Index
	removed := RemovedTuple[K, V]{Key: l.keys[i], Value: l.values[i]}
	newKeys := removeAt(l.keys, i)
	newValues := removeAt(l.values, i)
	newLeaf := NewLeaf[K, V](revision, newKeys, newValues)

	var newLeftmost *K
	if i == 0 && len(newKeys) > 0 {
		nl := newKeys[0]
		newLeftmost = &nl
	}

	if parent == nil || len(newKeys) >= ctx.minKeys() {
		return DeleteResult[K, V]{Outcome: OutcomeRemoved, NewPage: newLeaf, Removed: removed, NewLeftmost: newLeftmost}, nil
	}

	leftSib, rightSib, err := siblingsOf[K, V](loader, parent, pos)
	if err != nil {
		return DeleteResult[K, V]{}, err
	}
	fromRight, chosen := chooseSibling(leftSib, rightSib)
	chosenLeaf := chosen.(*Leaf[K, V])

	if chosenLeaf.NbElems() > ctx.minKeys() {
		if fromRight {
			bk, bv := chosenLeaf.keys[0], chosenLeaf.values[0]
			newSelf := NewLeaf[K, V](revision, append(append([]K(nil), newLeaf.keys...), bk), append(append([]V(nil), newLeaf.values...), bv))
			newSib := NewLeaf[K, V](revision, removeAt(chosenLeaf.keys, 0), removeAt(chosenLeaf.values, 0))
			return DeleteResult[K, V]{Outcome: OutcomeBorrowed, NewPage: newSelf, NewSibling: newSib, FromRight: true, Removed: removed}, nil
		}
		n := chosenLeaf.NbElems()
		bk, bv := chosenLeaf.keys[n-1], chosenLeaf.values[n-1]
		newSelf := NewLeaf[K, V](revision, append([]K{bk}, newLeaf.keys...), append([]V{bv}, newLeaf.values...))
		newSib := NewLeaf[K, V](revision, removeAt(chosenLeaf.keys, n-1), removeAt(chosenLeaf.values, n-1))
		return DeleteResult[K, V]{Outcome: OutcomeBorrowed, NewPage: newSelf, NewSibling: newSib, FromRight: false, Removed: removed}, nil
	}

	var mergedKeys []K
	var mergedValues []V
	if fromRight {
		mergedKeys = append(append([]K(nil), newLeaf.keys...), chosenLeaf.keys...)
		mergedValues = append(append([]V(nil), newLeaf.values...), chosenLeaf.values...)
	} else {
		mergedKeys = append(append([]K(nil), chosenLeaf.keys...), newLeaf.keys...)
		mergedValues = append(append([]V(nil), chosenLeaf.values...), newLeaf.values...)
	}
	merged := NewLeaf[K, V](revision, mergedKeys, mergedValues)
	return DeleteResult[K, V]{Outcome: OutcomeMerged, NewPage: merged, Removed: removed, FromRight: fromRight}, nil
}

// chooseSibling implements the sibling-selection policy of spec §4.3.3:
// prefer the sibling with more elements, breaking ties toward the left.
func chooseSibling[K any, V any](left, right Page[K, V]) (fromRight bool, chosen Page[K, V]) {
	leftCount, rightCount := -1, -1
	if left != nil {
		leftCount = left.NbElems()
	}
	if right != nil {
		rightCount = right.NbElems()
	}
	if rightCount > leftCount {
		return true, right
	}
	return false, left
}
