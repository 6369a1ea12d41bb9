package btree

import (
	engerrors "github.com/govetachun/mvccbtree/errors"
)

const (
	beforeFirst = -1
	// afterLast is computed per-frame as page.NbElems(); there is no single
	// sentinel constant since it depends on the frame's page.
)

// ParentPos is one cursor stack frame: a page and a position within it
// (spec §3, §4.5). For internal nodes, pos is the index of the child
// currently descended into; for the leaf frame, pos indexes a key/value
// pair, ranging over beforeFirst..NbElems() (AFTER_LAST).
type ParentPos[K any, V any] struct {
	page Page[K, V]
	pos  int
}

// Cursor walks a pinned Transaction's root key-by-key, forward or
// backward, via a parent-stack traversal (spec §4.5) — it never needs
// leaf sibling pointers.
type Cursor[K any, V any] struct {
	ctx    *Context[K, V]
	loader Loader[K, V]
	tx     *Transaction[K, V]
	stack  []ParentPos[K, V]
}

// newCursor seeds the stack by descending leftmost from root down to the
// first leaf: internal frames at child 0, the leaf frame at beforeFirst.
func newCursor[K any, V any](ctx *Context[K, V], loader Loader[K, V], tx *Transaction[K, V]) (*Cursor[K, V], error) {
	c := &Cursor[K, V]{ctx: ctx, loader: loader, tx: tx}
	root := tx.Root()
	if root == nil {
		return c, nil
	}
	if err := c.descendLeftmost(root); err != nil {
		return nil, err
	}
	return c, nil
}

// newCursorFrom seeds the stack positioned at key if present, else at the
// smallest key greater than it (spec §4.4 browse_from).
func newCursorFrom[K any, V any](ctx *Context[K, V], loader Loader[K, V], tx *Transaction[K, V], key K) (*Cursor[K, V], error) {
	c := &Cursor[K, V]{ctx: ctx, loader: loader, tx: tx}
	root := tx.Root()
	if root == nil {
		return c, nil
	}
	p := root
	for {
		switch n := p.(type) {
		case *Leaf[K, V]:
			res := n.Search(ctx, key)
			// Whether found or not, res.Index is the position Next() should
			// land on: the key itself, or the smallest key greater than it.
			c.stack = append(c.stack, ParentPos[K, V]{page: n, pos: res.Index - 1})
			return c, nil
		case *InternalNode[K, V]:
			idx := n.childIndex(ctx, key)
			c.stack = append(c.stack, ParentPos[K, V]{page: n, pos: idx})
			child, err := n.children[idx].Resolve(loader)
			if err != nil {
				return nil, err
			}
			p = child
		}
	}
}

func (c *Cursor[K, V]) descendLeftmost(p Page[K, V]) error {
	for {
		switch n := p.(type) {
		case *Leaf[K, V]:
			c.stack = append(c.stack, ParentPos[K, V]{page: n, pos: beforeFirst})
			return nil
		case *InternalNode[K, V]:
			c.stack = append(c.stack, ParentPos[K, V]{page: n, pos: 0})
			child, err := n.children[0].Resolve(c.loader)
			if err != nil {
				return err
			}
			p = child
		}
	}
}

func (c *Cursor[K, V]) descendRightmost(p Page[K, V]) error {
	for {
		switch n := p.(type) {
		case *Leaf[K, V]:
			c.stack = append(c.stack, ParentPos[K, V]{page: n, pos: n.NbElems()})
			return nil
		case *InternalNode[K, V]:
			last := len(n.children) - 1
			c.stack = append(c.stack, ParentPos[K, V]{page: n, pos: last})
			child, err := n.children[last].Resolve(c.loader)
			if err != nil {
				return err
			}
			p = child
		}
	}
}

func (c *Cursor[K, V]) leafFrame() *ParentPos[K, V] {
	return &c.stack[len(c.stack)-1]
}

func (c *Cursor[K, V]) checkOpen() error {
	if c.tx.Closed() {
		return errTransactionClosed()
	}
	return nil
}

// Next returns the next (key, value) in ascending order (spec §4.5 next()).
func (c *Cursor[K, V]) Next() (K, V, error) {
	var zeroK K
	var zeroV V
	if err := c.checkOpen(); err != nil {
		return zeroK, zeroV, err
	}
	if len(c.stack) == 0 {
		return zeroK, zeroV, engerrors.KeyNotFound("cursor stack empty")
	}
	top := c.leafFrame()
	leaf := top.page.(*Leaf[K, V])
	if top.pos == leaf.NbElems() {
		return zeroK, zeroV, engerrors.KeyNotFound("no such element: cursor at AFTER_LAST")
	}
	if top.pos == beforeFirst {
		top.pos = 0
		return leaf.Key(0), leaf.Value(0), nil
	}
	if top.pos < leaf.NbElems()-1 {
		top.pos++
		return leaf.Key(top.pos), leaf.Value(top.pos), nil
	}

	// top.pos == NbElems()-1: find the next leaf to the right.
	if err := c.findNextLeafFrame(); err != nil {
		top.pos = leaf.NbElems() // AFTER_LAST
		return zeroK, zeroV, err
	}
	newTop := c.leafFrame()
	newLeaf := newTop.page.(*Leaf[K, V])
	return newLeaf.Key(newTop.pos), newLeaf.Value(newTop.pos), nil
}

// findNextLeafFrame walks up from depth-1 looking for an ancestor with a
// next child, then descends leftmost back down (spec §4.5 step 5).
func (c *Cursor[K, V]) findNextLeafFrame() error {
	for d := len(c.stack) - 2; d >= 0; d-- {
		parent := c.stack[d].page.(*InternalNode[K, V])
		if c.stack[d].pos+1 <= len(parent.children)-1 {
			c.stack[d].pos++
			c.stack = c.stack[:d+1]
			child, err := parent.children[c.stack[d].pos].Resolve(c.loader)
			if err != nil {
				return err
			}
			return c.descendLeftmostFrom(child)
		}
	}
	return engerrors.KeyNotFound("no such element: no next leaf")
}

func (c *Cursor[K, V]) descendLeftmostFrom(p Page[K, V]) error {
	for {
		switch n := p.(type) {
		case *Leaf[K, V]:
			c.stack = append(c.stack, ParentPos[K, V]{page: n, pos: 0})
			return nil
		case *InternalNode[K, V]:
			c.stack = append(c.stack, ParentPos[K, V]{page: n, pos: 0})
			child, err := n.children[0].Resolve(c.loader)
			if err != nil {
				return err
			}
			p = child
		}
	}
}

// Prev is the mirror of Next (spec §4.5).
func (c *Cursor[K, V]) Prev() (K, V, error) {
	var zeroK K
	var zeroV V
	if err := c.checkOpen(); err != nil {
		return zeroK, zeroV, err
	}
	if len(c.stack) == 0 {
		return zeroK, zeroV, engerrors.KeyNotFound("cursor stack empty")
	}
	top := c.leafFrame()
	leaf := top.page.(*Leaf[K, V])
	if top.pos == beforeFirst {
		return zeroK, zeroV, engerrors.KeyNotFound("no such element: cursor at BEFORE_FIRST")
	}
	if top.pos == leaf.NbElems() {
		top.pos = leaf.NbElems() - 1
		return leaf.Key(top.pos), leaf.Value(top.pos), nil
	}
	if top.pos > 0 {
		top.pos--
		return leaf.Key(top.pos), leaf.Value(top.pos), nil
	}

	if err := c.findPrevLeafFrame(); err != nil {
		top.pos = beforeFirst
		return zeroK, zeroV, err
	}
	newTop := c.leafFrame()
	newLeaf := newTop.page.(*Leaf[K, V])
	return newLeaf.Key(newTop.pos), newLeaf.Value(newTop.pos), nil
}

func (c *Cursor[K, V]) findPrevLeafFrame() error {
	for d := len(c.stack) - 2; d >= 0; d-- {
		if c.stack[d].pos-1 >= 0 {
			c.stack[d].pos--
			parent := c.stack[d].page.(*InternalNode[K, V])
			c.stack = c.stack[:d+1]
			child, err := parent.children[c.stack[d].pos].Resolve(c.loader)
			if err != nil {
				return err
			}
			return c.descendRightmostFrom(child)
		}
	}
	return engerrors.KeyNotFound("no such element: no previous leaf")
}

func (c *Cursor[K, V]) descendRightmostFrom(p Page[K, V]) error {
	for {
		switch n := p.(type) {
		case *Leaf[K, V]:
			c.stack = append(c.stack, ParentPos[K, V]{page: n, pos: n.NbElems() - 1})
			return nil
		case *InternalNode[K, V]:
			last := len(n.children) - 1
			c.stack = append(c.stack, ParentPos[K, V]{page: n, pos: last})
			child, err := n.children[last].Resolve(c.loader)
			if err != nil {
				return err
			}
			p = child
		}
	}
}

// HasNext/HasPrev are the non-consuming variants of Next/Prev (spec §4.5).
func (c *Cursor[K, V]) HasNext() bool {
	if len(c.stack) == 0 || c.tx.Closed() {
		return false
	}
	top := c.leafFrame()
	leaf := top.page.(*Leaf[K, V])
	if top.pos == beforeFirst {
		return leaf.NbElems() > 0
	}
	if top.pos < leaf.NbElems()-1 {
		return true
	}
	for d := len(c.stack) - 2; d >= 0; d-- {
		parent := c.stack[d].page.(*InternalNode[K, V])
		if c.stack[d].pos+1 <= len(parent.children)-1 {
			return true
		}
	}
	return false
}

func (c *Cursor[K, V]) HasPrev() bool {
	if len(c.stack) == 0 || c.tx.Closed() {
		return false
	}
	top := c.leafFrame()
	leaf := top.page.(*Leaf[K, V])
	if top.pos == leaf.NbElems() {
		return leaf.NbElems() > 0
	}
	if top.pos > 0 {
		return true
	}
	for d := len(c.stack) - 2; d >= 0; d-- {
		if c.stack[d].pos-1 >= 0 {
			return true
		}
	}
	return false
}

// NextKey/PrevKey skip to the next/previous key, independent of any
// per-key value sub-structure (spec §4.5); with scalar values this is
// identical to Next/Prev.
func (c *Cursor[K, V]) NextKey() (K, error) {
	k, _, err := c.Next()
	return k, err
}

func (c *Cursor[K, V]) PrevKey() (K, error) {
	k, _, err := c.Prev()
	return k, err
}

// Close closes the backing transaction; using the cursor afterward fails
// with TransactionClosed (spec §4.5).
func (c *Cursor[K, V]) Close() {
	c.tx.Close()
}
