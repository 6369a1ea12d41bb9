package btree

import engerrors "github.com/govetachun/mvccbtree/errors"

// Page is the capability set every page variant exposes (spec §4.3.1).
type Page[K any, V any] interface {
	NbElems() int
	Revision() uint64
	LeftmostKey() K
	RightmostKey() K
	IsLeaf() bool
	Offset() int64
	setOffset(int64)
}

// SearchResult is the outcome of a binary search within one page.
type SearchResult struct {
	Found bool
	Index int // keys[Index]==key if Found; insertion point in 0..=N otherwise
}

func search[K any](keys []K, key K, cmp func(a, b K) int) SearchResult {
	lo, hi := 0, len(keys)
	for lo < hi {
		mid := (lo + hi) / 2
		switch c := cmp(keys[mid], key); {
		case c == 0:
			return SearchResult{Found: true, Index: mid}
		case c < 0:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return SearchResult{Found: false, Index: lo}
}

// ChildRef is an internal node's reference to a child: resident in memory,
// or (once flushed) backed by a file offset that a Loader can re-fetch.
// Models spec §9's Either<Resident(V), OnDisk(offset)> for child pages.
type ChildRef[K any, V any] struct {
	resident Page[K, V]
	offset   int64
}

func residentRef[K any, V any](p Page[K, V]) *ChildRef[K, V] {
	return &ChildRef[K, V]{resident: p, offset: p.Offset()}
}

func offsetRef[K any, V any](offset int64) *ChildRef[K, V] {
	return &ChildRef[K, V]{offset: offset}
}

// Loader resolves a child's offset into a page when it isn't resident.
type Loader[K any, V any] interface {
	LoadPage(offset int64) (Page[K, V], error)
}

// Resolve returns the referenced page, fetching and caching it through
// loader if it isn't already resident.
func (r *ChildRef[K, V]) Resolve(loader Loader[K, V]) (Page[K, V], error) {
	if r.resident != nil {
		return r.resident, nil
	}
	if loader == nil {
		return nil, engerrors.CorruptPage("child page not resident and no loader configured")
	}
	p, err := loader.LoadPage(r.offset)
	if err != nil {
		return nil, err
	}
	r.resident = p
	return p, nil
}

func cloneRefs[K any, V any](refs []*ChildRef[K, V]) []*ChildRef[K, V] {
	out := make([]*ChildRef[K, V], len(refs))
	copy(out, refs)
	return out
}

func siblingsOf[K any, V any](loader Loader[K, V], parent *InternalNode[K, V], pos int) (left, right Page[K, V], err error) {
	if parent == nil {
		return nil, nil, nil
	}
	if pos > 0 {
		left, err = parent.children[pos-1].Resolve(loader)
		if err != nil {
			return nil, nil, err
		}
	}
	if pos < len(parent.children)-1 {
		right, err = parent.children[pos+1].Resolve(loader)
		if err != nil {
			return nil, nil, err
		}
	}
	return left, right, nil
}
