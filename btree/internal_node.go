package btree

import "github.com/govetachun/mvccbtree/internal/assert"

// InternalNode holds separator keys and child references (spec §3,
// §4.3.3). len(children) == len(keys)+1 always; every key under
// children[i] sorts below keys[i] and every key under children[i+1] sorts
// at or above it. keys[i] is set to children[i+1]'s smallest key when
// written, and may sit below it after later deletes.
type InternalNode[K any, V any] struct {
	revision uint64
	keys     []K
	children []*ChildRef[K, V]
	offset   int64
}

func NewInternalNode[K any, V any](revision uint64, keys []K, children []*ChildRef[K, V]) *InternalNode[K, V] {
	return &InternalNode[K, V]{revision: revision, keys: keys, children: children, offset: -1}
}

func (n *InternalNode[K, V]) NbElems() int      { return len(n.keys) }
func (n *InternalNode[K, V]) Revision() uint64  { return n.revision }
func (n *InternalNode[K, V]) IsLeaf() bool      { return false }
func (n *InternalNode[K, V]) Offset() int64     { return n.offset }
func (n *InternalNode[K, V]) setOffset(o int64) { n.offset = o }
func (n *InternalNode[K, V]) Key(i int) K       { return n.keys[i] }
func (n *InternalNode[K, V]) Keys() []K         { return n.keys }
func (n *InternalNode[K, V]) Children() []*ChildRef[K, V] {
	return n.children
}

// LeftmostKey/RightmostKey report the separator bounds directly; they do
// not descend into children (spec §4.3.3).
func (n *InternalNode[K, V]) LeftmostKey() K  { return n.keys[0] }
func (n *InternalNode[K, V]) RightmostKey() K { return n.keys[len(n.keys)-1] }

// childIndex finds which child covers key: duplicates of a separator go
// to the right child.
func (n *InternalNode[K, V]) childIndex(ctx *Context[K, V], key K) int {
	lo, hi := 0, len(n.keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if ctx.Cmp(n.keys[mid], key) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func (n *InternalNode[K, V]) Find(ctx *Context[K, V], loader Loader[K, V], key K) (V, bool, error) {
	var zero V
	idx := n.childIndex(ctx, key)
	child, err := n.children[idx].Resolve(loader)
	if err != nil {
		return zero, false, err
	}
	switch c := child.(type) {
	case *Leaf[K, V]:
		res := c.Search(ctx, key)
		if !res.Found {
			return zero, false, nil
		}
		return c.values[res.Index], true, nil
	case *InternalNode[K, V]:
		return c.Find(ctx, loader, key)
	default:
		return zero, false, nil
	}
}

// Insert recurses to the covering child and absorbs a Modified or Split
// result, splitting itself in turn if it overflows (spec §4.3.3).
func (n *InternalNode[K, V]) Insert(ctx *Context[K, V], loader Loader[K, V], revision uint64, key K, value V) (InsertResult[K, V], error) {
	idx := n.childIndex(ctx, key)
	child, err := n.children[idx].Resolve(loader)
	if err != nil {
		return InsertResult[K, V]{}, err
	}

	var childRes InsertResult[K, V]
	switch c := child.(type) {
	case *Leaf[K, V]:
		childRes = c.Insert(ctx, revision, key, value)
	case *InternalNode[K, V]:
		childRes, err = c.Insert(ctx, loader, revision, key, value)
		if err != nil {
			return InsertResult[K, V]{}, err
		}
	}

	if childRes.Outcome == OutcomeModified {
		newChildren := cloneRefs(n.children)
		newChildren[idx] = residentRef[K, V](childRes.NewPage)
		newNode := NewInternalNode[K, V](revision, append([]K(nil), n.keys...), newChildren)
		return InsertResult[K, V]{Outcome: OutcomeModified, NewPage: newNode, OldValue: childRes.OldValue}, nil
	}

	// Split: replace child idx with two children and one new separator.
	newKeys := insertAt(n.keys, idx, childRes.Pivot)
	newChildren := make([]*ChildRef[K, V], 0, len(n.children)+1)
	newChildren = append(newChildren, n.children[:idx]...)
	newChildren = append(newChildren, residentRef[K, V](childRes.Left), residentRef[K, V](childRes.Right))
	newChildren = append(newChildren, n.children[idx+1:]...)

	if len(newKeys) <= ctx.PageSize {
		newNode := NewInternalNode[K, V](revision, newKeys, newChildren)
		return InsertResult[K, V]{Outcome: OutcomeModified, NewPage: newNode}, nil
	}
	return n.splitSelf(revision, newKeys, newChildren), nil
}

// splitSelf implements spec §4.3.3's internal-node split arithmetic: the
// key at the split point is promoted (not copied) to the parent.
func (n *InternalNode[K, V]) splitSelf(revision uint64, keys []K, children []*ChildRef[K, V]) InsertResult[K, V] {
	m := len(keys) / 2

	leftKeys := append([]K(nil), keys[:m]...)
	leftChildren := append([]*ChildRef[K, V](nil), children[:m+1]...)
	pivot := keys[m]
	rightKeys := append([]K(nil), keys[m+1:]...)
	rightChildren := append([]*ChildRef[K, V](nil), children[m+1:]...)

	left := NewInternalNode[K, V](revision, leftKeys, leftChildren)
	right := NewInternalNode[K, V](revision, rightKeys, rightChildren)
	assert.Invariant(len(left.children) == len(left.keys)+1, "internal split: left child/key count mismatch")
	assert.Invariant(len(right.children) == len(right.keys)+1, "internal split: right child/key count mismatch")
	return InsertResult[K, V]{Outcome: OutcomeSplit, Pivot: pivot, Left: left, Right: right}
}

// Delete recurses to the covering child and handles the NotPresent /
// Removed / Borrowed / Merged result, cascading an underflow into its
// own borrow-or-merge with a sibling when necessary (spec §4.3.3).
func (n *InternalNode[K, V]) Delete(ctx *Context[K, V], loader Loader[K, V], revision uint64, key K, parent *InternalNode[K, V], pos int) (DeleteResult[K, V], error) {
	idx := n.childIndex(ctx, key)
	child, err := n.children[idx].Resolve(loader)
	if err != nil {
		return DeleteResult[K, V]{}, err
	}

	var childRes DeleteResult[K, V]
	switch c := child.(type) {
	case *Leaf[K, V]:
		childRes, err = c.Delete(ctx, loader, revision, key, n, idx)
	case *InternalNode[K, V]:
		childRes, err = c.Delete(ctx, loader, revision, key, n, idx)
	}
	if err != nil {
		return DeleteResult[K, V]{}, err
	}

	switch childRes.Outcome {
	case OutcomeNotPresent:
		return DeleteResult[K, V]{Outcome: OutcomeNotPresent}, nil

	case OutcomeRemoved:
		newKeys := append([]K(nil), n.keys...)
		if idx > 0 {
			if childRes.NewPage.IsLeaf() {
				newKeys[idx-1] = childRes.NewPage.LeftmostKey()
			} else if childRes.NewLeftmost != nil {
				newKeys[idx-1] = *childRes.NewLeftmost
			}
		}
		newChildren := cloneRefs(n.children)
		newChildren[idx] = residentRef[K, V](childRes.NewPage)
		newNode := NewInternalNode[K, V](revision, newKeys, newChildren)

		var ownNewLeftmost *K
		if idx == 0 {
			ownNewLeftmost = childRes.NewLeftmost
		}
		return n.selfUnderflowCheck(ctx, loader, revision, newNode, parent, pos, childRes.Removed, ownNewLeftmost)

	case OutcomeBorrowed:
		newKeys := append([]K(nil), n.keys...)
		newChildren := cloneRefs(n.children)
		newChildren[idx] = residentRef[K, V](childRes.NewPage)
		siblingIdx := idx + 1
		if !childRes.FromRight {
			siblingIdx = idx - 1
		}
		oldSib, err := n.children[siblingIdx].Resolve(loader)
		if err != nil {
			return DeleteResult[K, V]{}, err
		}
		newChildren[siblingIdx] = residentRef[K, V](childRes.NewSibling)
		_, internalSib := oldSib.(*InternalNode[K, V])
		switch {
		case childRes.FromRight && internalSib:
			// The sibling's first separator moved up to this level.
			newKeys[idx] = oldSib.LeftmostKey()
		case childRes.FromRight:
			newKeys[idx] = childRes.NewSibling.LeftmostKey()
		case internalSib:
			// The sibling's last separator moved up to this level.
			newKeys[idx-1] = oldSib.RightmostKey()
		default:
			newKeys[idx-1] = childRes.NewPage.LeftmostKey()
		}
		newNode := NewInternalNode[K, V](revision, newKeys, newChildren)
		return DeleteResult[K, V]{Outcome: OutcomeRemoved, NewPage: newNode, Removed: childRes.Removed}, nil

	case OutcomeMerged:
		var newKeys []K
		var newChildren []*ChildRef[K, V]
		if childRes.FromRight {
			newKeys = append(append([]K(nil), n.keys[:idx]...), n.keys[idx+1:]...)
			newChildren = append([]*ChildRef[K, V](nil), n.children[:idx]...)
			newChildren = append(newChildren, residentRef[K, V](childRes.NewPage))
			newChildren = append(newChildren, n.children[idx+2:]...)
		} else {
			newKeys = append(append([]K(nil), n.keys[:idx-1]...), n.keys[idx:]...)
			newChildren = append([]*ChildRef[K, V](nil), n.children[:idx-1]...)
			newChildren = append(newChildren, residentRef[K, V](childRes.NewPage))
			newChildren = append(newChildren, n.children[idx+1:]...)
		}
		newNode := NewInternalNode[K, V](revision, newKeys, newChildren)
		return n.selfUnderflowCheck(ctx, loader, revision, newNode, parent, pos, childRes.Removed, nil)
	}

	return DeleteResult[K, V]{}, nil
}

// selfUnderflowCheck decides whether newNode needs to borrow from or
// merge with a sibling of its own, given parent/pos (nil parent = root,
// never forced to maintain minKeys).
func (n *InternalNode[K, V]) selfUnderflowCheck(ctx *Context[K, V], loader Loader[K, V], revision uint64, newNode *InternalNode[K, V], parent *InternalNode[K, V], pos int, removed RemovedTuple[K, V], newLeftmost *K) (DeleteResult[K, V], error) {
	if parent == nil || len(newNode.keys) >= ctx.minKeys() {
		return DeleteResult[K, V]{Outcome: OutcomeRemoved, NewPage: newNode, Removed: removed, NewLeftmost: newLeftmost}, nil
	}

	leftSibP, rightSibP, err := siblingsOf[K, V](loader, parent, pos)
	if err != nil {
		return DeleteResult[K, V]{}, err
	}
	fromRight, chosenP := chooseSibling(leftSibP, rightSibP)
	sib := chosenP.(*InternalNode[K, V])

	if sib.NbElems() > ctx.minKeys() {
		if fromRight {
			// Rotate: parent separator between newNode and sib moves down,
			// sib's first key moves up.
			parentSep := parent.keys[pos]
			newSelfKeys := append(append([]K(nil), newNode.keys...), parentSep)
			newSelfChildren := append(cloneRefs(newNode.children), sib.children[0])
			newSib := NewInternalNode[K, V](revision, append([]K(nil), sib.keys[1:]...), cloneRefs(sib.children[1:]))
			newSelf := NewInternalNode[K, V](revision, newSelfKeys, newSelfChildren)
			return DeleteResult[K, V]{Outcome: OutcomeBorrowed, NewPage: newSelf, NewSibling: newSib, FromRight: true, Removed: removed}, nil
		}
		parentSep := parent.keys[pos-1]
		n2 := len(sib.keys)
		newSelfKeys := append([]K{parentSep}, newNode.keys...)
		newSelfChildren := append([]*ChildRef[K, V]{sib.children[len(sib.children)-1]}, cloneRefs(newNode.children)...)
		newSib := NewInternalNode[K, V](revision, append([]K(nil), sib.keys[:n2-1]...), cloneRefs(sib.children[:len(sib.children)-1]))
		newSelf := NewInternalNode[K, V](revision, newSelfKeys, newSelfChildren)
		return DeleteResult[K, V]{Outcome: OutcomeBorrowed, NewPage: newSelf, NewSibling: newSib, FromRight: false, Removed: removed}, nil
	}

	// Merge with sib through the separator key held by parent.
	var mergedKeys []K
	var mergedChildren []*ChildRef[K, V]
	if fromRight {
		parentSep := parent.keys[pos]
		mergedKeys = append(append(append([]K(nil), newNode.keys...), parentSep), sib.keys...)
		mergedChildren = append(append([]*ChildRef[K, V](nil), newNode.children...), sib.children...)
	} else {
		parentSep := parent.keys[pos-1]
		mergedKeys = append(append(append([]K(nil), sib.keys...), parentSep), newNode.keys...)
		mergedChildren = append(append([]*ChildRef[K, V](nil), sib.children...), newNode.children...)
	}
	merged := NewInternalNode[K, V](revision, mergedKeys, mergedChildren)
	assert.Invariant(len(merged.children) == len(merged.keys)+1, "internal merge: child/key count mismatch")
	return DeleteResult[K, V]{Outcome: OutcomeMerged, NewPage: merged, Removed: removed, FromRight: fromRight}, nil
}
