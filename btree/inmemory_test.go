package btree

import engerrors "github.com/govetachun/mvccbtree/errors"

// inmemoryStore is a Loader/Store implementation with no backing file,
// used by btree package tests to exercise the COW algorithms directly
// without going through recordmanager. Offsets are just sequential
// integers handed out in flush order.
type inmemoryStore[K any, V any] struct {
	pages map[int64]Page[K, V]
	next  int64
}

func newInmemoryStore[K any, V any]() *inmemoryStore[K, V] {
	return &inmemoryStore[K, V]{pages: make(map[int64]Page[K, V])}
}

func (s *inmemoryStore[K, V]) LoadPage(offset int64) (Page[K, V], error) {
	p, ok := s.pages[offset]
	if !ok {
		return nil, engerrors.CorruptPage("no such page")
	}
	return p, nil
}

func (s *inmemoryStore[K, V]) FlushRoot(root Page[K, V], revision uint64) (int64, error) {
	return s.flush(root)
}

func (s *inmemoryStore[K, V]) flush(p Page[K, V]) (int64, error) {
	if p.Offset() >= 0 {
		return p.Offset(), nil
	}
	if n, ok := p.(*InternalNode[K, V]); ok {
		for _, ref := range n.children {
			child, err := ref.Resolve(s)
			if err != nil {
				return 0, err
			}
			off, err := s.flush(child)
			if err != nil {
				return 0, err
			}
			ref.resident = child
			ref.offset = off
		}
	}
	off := s.next
	s.next++
	p.setOffset(off)
	s.pages[off] = p
	return off, nil
}

func (s *inmemoryStore[K, V]) Supersede(revision uint64, oldRoot Page[K, V]) error {
	return nil
}
