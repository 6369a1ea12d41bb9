package btree

import (
	"sync"
	"time"

	engerrors "github.com/govetachun/mvccbtree/errors"
)

// BTree is a single named, copy-on-write B+Tree (spec §4.4). Every
// mutation installs a new root at a new revision; readers pinned to an
// older revision keep seeing their root unaffected.
type BTree[K any, V any] struct {
	writeMu sync.Mutex
	ctx     *Context[K, V]
	store   Store[K, V]
	txs     *TxRegistry[K, V]

	root     Page[K, V]
	revision uint64
	nbElems  int
}

// Store is the persistence boundary a BTree needs: load a page by
// offset, flush a (possibly multi-page) tree of pages and report the
// new root's offset, and track revisions superseded by a flush for
// later reclamation. persist.go implements this against recordmanager.
type Store[K any, V any] interface {
	Loader[K, V]
	FlushRoot(root Page[K, V], revision uint64) (offset int64, err error)
	Supersede(revision uint64, oldRoot Page[K, V]) error
}

// Open attaches to an existing tree's root (root may be nil for a
// brand-new empty tree). readTimeout governs the transaction sweeper
// (spec §4.5); DefaultReadTimeout matches the spec's default, <= 0
// disables the sweeper.
func Open[K any, V any](cmp func(a, b K) int, pageSize int, store Store[K, V], root Page[K, V], revision uint64, nbElems int, readTimeout time.Duration) *BTree[K, V] {
	if pageSize <= 2 {
		pageSize = 16
	} else {
		pageSize = nextPowerOfTwo(pageSize)
	}
	txs := NewTxRegistry[K, V](readTimeout)
	txs.Start()
	return &BTree[K, V]{
		ctx:      &Context[K, V]{Cmp: cmp, PageSize: pageSize},
		store:    store,
		txs:      txs,
		root:     root,
		revision: revision,
		nbElems:  nbElems,
	}
}

// Close stops the transaction sweeper. It does not close the underlying
// Store/recordmanager.Manager, which the caller owns.
func (t *BTree[K, V]) Close() {
	t.txs.Stop()
}

// OldestPinnedRevision reports the lowest revision any transaction this
// tree has opened still pins, for wiring into the record manager's
// reclamation loop (spec §4.2 "Free-page reclamation").
func (t *BTree[K, V]) OldestPinnedRevision() uint64 {
	return t.txs.OldestPinnedRevision()
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func (t *BTree[K, V]) Revision() uint64 { return t.revision }
func (t *BTree[K, V]) NbElems() int     { return t.nbElems }
func (t *BTree[K, V]) Root() Page[K, V] { return t.root }

// Find looks up key against the tree's current root.
func (t *BTree[K, V]) Find(key K) (V, bool, error) {
	var zero V
	if t.root == nil {
		return zero, false, nil
	}
	switch r := t.root.(type) {
	case *Leaf[K, V]:
		res := r.Search(t.ctx, key)
		if !res.Found {
			return zero, false, nil
		}
		return r.values[res.Index], true, nil
	case *InternalNode[K, V]:
		return r.Find(t.ctx, t.store, key)
	}
	return zero, false, nil
}

// Insert installs a new root at revision+1 reflecting key=>value, and
// flushes the affected page chain through the Store. Returns the
// previous value, if key was already present.
func (t *BTree[K, V]) Insert(key K, value V) (*V, error) {
	if isNullOrEmpty(key) || isNullOrEmpty(value) {
		return nil, engerrors.InvalidArgument("insert: key and value must not be null/empty-by-type")
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	nextRev := t.revision + 1
	oldRoot := t.root

	var newRoot Page[K, V]
	var oldValue *V

	if t.root == nil {
		newRoot = NewLeaf[K, V](nextRev, []K{key}, []V{value})
	} else {
		switch r := t.root.(type) {
		case *Leaf[K, V]:
			res := r.Insert(t.ctx, nextRev, key, value)
			newRoot, oldValue = t.absorbRootInsert(nextRev, res)
		case *InternalNode[K, V]:
			res, err := r.Insert(t.ctx, t.store, nextRev, key, value)
			if err != nil {
				return nil, err
			}
			newRoot, oldValue = t.absorbRootInsert(nextRev, res)
		}
	}

	if _, err := t.store.FlushRoot(newRoot, nextRev); err != nil {
		return nil, err
	}
	if oldRoot != nil {
		if err := t.store.Supersede(nextRev, oldRoot); err != nil {
			return nil, err
		}
	}

	t.root = newRoot
	t.revision = nextRev
	if oldValue == nil {
		t.nbElems++
	}
	return oldValue, nil
}

func (t *BTree[K, V]) absorbRootInsert(revision uint64, res InsertResult[K, V]) (Page[K, V], *V) {
	if res.Outcome == OutcomeModified {
		return res.NewPage, res.OldValue
	}
	newRoot := NewInternalNode[K, V](revision, []K{res.Pivot}, []*ChildRef[K, V]{
		residentRef[K, V](res.Left), residentRef[K, V](res.Right),
	})
	return newRoot, nil
}

// Delete removes key, installing a new root at revision+1. ok is false
// when the key was absent.
func (t *BTree[K, V]) Delete(key K) (V, bool, error) {
	var zero V
	if isNullOrEmpty(key) {
		return zero, false, engerrors.InvalidArgument("delete: key must not be null/empty-by-type")
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.root == nil {
		return zero, false, nil
	}

	nextRev := t.revision + 1
	oldRoot := t.root

	var res DeleteResult[K, V]
	var err error
	switch r := t.root.(type) {
	case *Leaf[K, V]:
		res, err = r.Delete(t.ctx, t.store, nextRev, key, nil, 0)
	case *InternalNode[K, V]:
		res, err = r.Delete(t.ctx, t.store, nextRev, key, nil, 0)
	}
	if err != nil {
		return zero, false, err
	}
	if res.Outcome == OutcomeNotPresent {
		return zero, false, nil
	}

	newRoot := res.NewPage
	// Root collapse: an internal root that merged down to zero separator
	// keys degenerates to its sole remaining child (spec §4.3.3).
	if in, ok := newRoot.(*InternalNode[K, V]); ok && len(in.keys) == 0 {
		child, rerr := in.children[0].Resolve(t.store)
		if rerr != nil {
			return zero, false, rerr
		}
		newRoot = child
	}
	// A root leaf left with no keys means the tree is empty again.
	if l, ok := newRoot.(*Leaf[K, V]); ok && len(l.keys) == 0 {
		newRoot = nil
	}

	if newRoot != nil {
		if _, err := t.store.FlushRoot(newRoot, nextRev); err != nil {
			return zero, false, err
		}
	}
	if err := t.store.Supersede(nextRev, oldRoot); err != nil {
		return zero, false, err
	}

	t.root = newRoot
	t.revision = nextRev
	t.nbElems--
	return res.Removed.Value, true, nil
}

// Browse opens a read transaction pinning the current root and returns a
// cursor seeded at BEFORE_FIRST (spec §4.4 browse()).
func (t *BTree[K, V]) Browse() (*Cursor[K, V], error) {
	tx := t.txs.Begin(t.root, t.revision)
	return newCursor[K, V](t.ctx, t.store, tx)
}

// BrowseFrom opens a read transaction and returns a cursor positioned at
// key, or at the smallest key greater than it (spec §4.4 browse_from()).
func (t *BTree[K, V]) BrowseFrom(key K) (*Cursor[K, V], error) {
	tx := t.txs.Begin(t.root, t.revision)
	return newCursorFrom[K, V](t.ctx, t.store, tx, key)
}

// BulkLoad builds a tree bottom-up from pre-sorted, de-duplicated pairs,
// skipping the per-key insert path entirely (SPEC_FULL.md §4.4 bulk
// load). keys must be strictly increasing per cmp.
func BulkLoad[K any, V any](cmp func(a, b K) int, pageSize int, store Store[K, V], keys []K, values []V, revision uint64) (*BTree[K, V], error) {
	if pageSize <= 2 {
		pageSize = 16
	} else {
		pageSize = nextPowerOfTwo(pageSize)
	}
	ctx := &Context[K, V]{Cmp: cmp, PageSize: pageSize}
	if len(keys) != len(values) {
		return nil, engerrors.InvalidArgument("bulk load: keys and values length mismatch")
	}
	if len(keys) == 0 {
		return &BTree[K, V]{ctx: ctx, store: store, txs: NewTxRegistry[K, V](0), revision: revision}, nil
	}

	var level []Page[K, V]
	var mins []K // smallest key under each page of level
	for i := 0; i < len(keys); i += pageSize {
		end := i + pageSize
		if end > len(keys) {
			end = len(keys)
		}
		level = append(level, NewLeaf[K, V](revision, append([]K(nil), keys[i:end]...), append([]V(nil), values[i:end]...)))
		mins = append(mins, keys[i])
	}

	for len(level) > 1 {
		var next []Page[K, V]
		var nextMins []K
		for i := 0; i < len(level); i += pageSize + 1 {
			end := i + pageSize + 1
			if end > len(level) {
				end = len(level)
			}
			group := level[i:end]
			if len(group) == 1 {
				next = append(next, group[0])
				nextMins = append(nextMins, mins[i])
				continue
			}
			nodeKeys := make([]K, 0, len(group)-1)
			children := make([]*ChildRef[K, V], 0, len(group))
			children = append(children, residentRef[K, V](group[0]))
			for j, p := range group[1:] {
				nodeKeys = append(nodeKeys, mins[i+1+j])
				children = append(children, residentRef[K, V](p))
			}
			next = append(next, NewInternalNode[K, V](revision, nodeKeys, children))
			nextMins = append(nextMins, mins[i])
		}
		level = next
		mins = nextMins
	}

	root := level[0]
	if _, err := store.FlushRoot(root, revision); err != nil {
		return nil, err
	}
	return &BTree[K, V]{ctx: ctx, store: store, txs: NewTxRegistry[K, V](0), root: root, revision: revision, nbElems: len(keys)}, nil
}

// Stats reports structural counters useful for diagnostics and tests
// (SPEC_FULL.md §4.4 stats accessor).
type Stats struct {
	NbElems   int
	Revision  uint64
	Height    int
	LeafCount int
	NodeCount int
}

func (t *BTree[K, V]) ComputeStats() (Stats, error) {
	st := Stats{NbElems: t.nbElems, Revision: t.revision}
	h, err := t.walkStats(t.root, &st)
	if err != nil {
		return Stats{}, err
	}
	st.Height = h
	return st, nil
}

func (t *BTree[K, V]) walkStats(p Page[K, V], st *Stats) (int, error) {
	if p == nil {
		return 0, nil
	}
	switch n := p.(type) {
	case *Leaf[K, V]:
		st.LeafCount++
		return 1, nil
	case *InternalNode[K, V]:
		st.NodeCount++
		maxDepth := 0
		for _, ref := range n.children {
			child, err := ref.Resolve(t.store)
			if err != nil {
				return 0, err
			}
			d, err := t.walkStats(child, st)
			if err != nil {
				return 0, err
			}
			if d > maxDepth {
				maxDepth = d
			}
		}
		return maxDepth + 1, nil
	}
	return 0, nil
}
