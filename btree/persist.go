package btree

import (
	"bytes"
	"container/list"
	"encoding/binary"
	"io"
	"sync"

	"github.com/govetachun/mvccbtree/codec"
	engerrors "github.com/govetachun/mvccbtree/errors"
	"github.com/govetachun/mvccbtree/recordmanager"
)

const (
	tagLeaf     byte = 0
	tagInternal byte = 1
)

// DefaultPageCacheCapacity bounds PageStore's resident-page cache (spec §9's
// design note: "an explicit cache with a fixed budget, not an opaque
// runtime reference type").
const DefaultPageCacheCapacity = 1024

// pageCache is a fixed-capacity LRU cache from file offset to decoded page,
// the same container/list-backed shape as TxRegistry's FIFO in
// transaction.go, here ordered most-recently-used at the front instead of
// oldest-at-the-front.
type pageCache[K any, V any] struct {
	capacity int
	ll       *list.List
	elems    map[int64]*list.Element
}

type pageCacheEntry[K any, V any] struct {
	offset int64
	page   Page[K, V]
}

func newPageCache[K any, V any](capacity int) *pageCache[K, V] {
	if capacity <= 0 {
		capacity = DefaultPageCacheCapacity
	}
	return &pageCache[K, V]{capacity: capacity, ll: list.New(), elems: make(map[int64]*list.Element)}
}

func (c *pageCache[K, V]) get(offset int64) (Page[K, V], bool) {
	e, ok := c.elems[offset]
	if !ok {
		var zero Page[K, V]
		return zero, false
	}
	c.ll.MoveToFront(e)
	return e.Value.(*pageCacheEntry[K, V]).page, true
}

func (c *pageCache[K, V]) set(offset int64, p Page[K, V]) {
	if e, ok := c.elems[offset]; ok {
		e.Value.(*pageCacheEntry[K, V]).page = p
		c.ll.MoveToFront(e)
		return
	}
	e := c.ll.PushFront(&pageCacheEntry[K, V]{offset: offset, page: p})
	c.elems[offset] = e
	if c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.elems, oldest.Value.(*pageCacheEntry[K, V]).offset)
		}
	}
}

// PageStore implements Store[K,V] against a recordmanager.Manager: it
// encodes/decodes pages as length-chained records and keeps a capacity-
// bounded LRU cache of resolved offsets (spec §4.3.1/§4.4's persistence
// boundary).
type PageStore[K any, V any] struct {
	rm       *recordmanager.Manager
	keyCodec codec.KeyCodec[K]
	valCodec codec.ValueCodec[V]

	mu    sync.Mutex
	cache *pageCache[K, V]
}

// NewPageStore builds a PageStore with DefaultPageCacheCapacity resident
// pages. Use NewPageStoreWithCapacity to override it.
func NewPageStore[K any, V any](rm *recordmanager.Manager, keyCodec codec.KeyCodec[K], valCodec codec.ValueCodec[V]) *PageStore[K, V] {
	return NewPageStoreWithCapacity[K, V](rm, keyCodec, valCodec, DefaultPageCacheCapacity)
}

// NewPageStoreWithCapacity builds a PageStore whose resident-page cache
// never holds more than capacity pages, evicting least-recently-used pages
// once that budget is exceeded.
func NewPageStoreWithCapacity[K any, V any](rm *recordmanager.Manager, keyCodec codec.KeyCodec[K], valCodec codec.ValueCodec[V], capacity int) *PageStore[K, V] {
	return &PageStore[K, V]{rm: rm, keyCodec: keyCodec, valCodec: valCodec, cache: newPageCache[K, V](capacity)}
}

func (s *PageStore[K, V]) LoadPage(offset int64) (Page[K, V], error) {
	s.mu.Lock()
	if p, ok := s.cache.get(offset); ok {
		s.mu.Unlock()
		return p, nil
	}
	s.mu.Unlock()

	data, err := s.rm.ReadRecord(offset)
	if err != nil {
		return nil, err
	}
	p, err := s.decode(data)
	if err != nil {
		return nil, err
	}
	p.setOffset(offset)

	s.cacheSet(offset, p)
	return p, nil
}

// FlushRoot writes every not-yet-persisted page reachable from root
// (children before parents), returning root's final offset.
func (s *PageStore[K, V]) FlushRoot(root Page[K, V], revision uint64) (int64, error) {
	off, err := s.flushPage(root)
	if err != nil {
		return 0, err
	}
	return off, nil
}

func (s *PageStore[K, V]) flushPage(p Page[K, V]) (int64, error) {
	if p.Offset() >= 0 {
		return p.Offset(), nil
	}

	switch n := p.(type) {
	case *Leaf[K, V]:
		data := s.encodeLeaf(n)
		off, err := s.rm.WriteRecord(data)
		if err != nil {
			return 0, err
		}
		n.setOffset(off)
		s.cacheSet(off, n)
		return off, nil

	case *InternalNode[K, V]:
		childOffsets := make([]int64, len(n.children))
		for i, ref := range n.children {
			child, err := ref.Resolve(s)
			if err != nil {
				return 0, err
			}
			co, err := s.flushPage(child)
			if err != nil {
				return 0, err
			}
			childOffsets[i] = co
			ref.resident = child
			ref.offset = co
		}
		data := s.encodeInternal(n, childOffsets)
		off, err := s.rm.WriteRecord(data)
		if err != nil {
			return 0, err
		}
		n.setOffset(off)
		s.cacheSet(off, n)
		return off, nil
	}
	return 0, engerrors.CorruptPage("unknown page variant")
}

func (s *PageStore[K, V]) cacheSet(offset int64, p Page[K, V]) {
	s.mu.Lock()
	s.cache.set(offset, p)
	s.mu.Unlock()
}

// Supersede records the old root's own record as a candidate for
// reclamation once no pinned reader needs revisions below the one that
// replaced it. Deeper COW-replaced pages along the mutation path are not
// individually tracked (a documented scope simplification); this never
// reclaims a page still reachable from a live revision, and those
// replaced non-root pages are never returned to the free list.
func (s *PageStore[K, V]) Supersede(revision uint64, oldRoot Page[K, V]) error {
	if oldRoot.Offset() < 0 {
		return nil
	}
	return s.rm.MarkSuperseded(revision, oldRoot.Offset())
}

func (s *PageStore[K, V]) encodeLeaf(l *Leaf[K, V]) []byte {
	var buf bytes.Buffer
	buf.WriteByte(tagLeaf)
	writeU64(&buf, l.revision)
	writeU32(&buf, uint32(len(l.keys)))
	for i := range l.keys {
		buf.Write(s.keyCodec.SerializeKey(l.keys[i]))
		buf.Write(s.valCodec.SerializeValue(l.values[i]))
	}
	return buf.Bytes()
}

func (s *PageStore[K, V]) encodeInternal(n *InternalNode[K, V], childOffsets []int64) []byte {
	var buf bytes.Buffer
	buf.WriteByte(tagInternal)
	writeU64(&buf, n.revision)
	writeU32(&buf, uint32(len(n.keys)))
	for i := range n.keys {
		buf.Write(s.keyCodec.SerializeKey(n.keys[i]))
	}
	writeU32(&buf, uint32(len(childOffsets)))
	for _, off := range childOffsets {
		writeU64(&buf, uint64(off))
	}
	return buf.Bytes()
}

func (s *PageStore[K, V]) decode(data []byte) (Page[K, V], error) {
	if len(data) == 0 {
		return nil, engerrors.CorruptPage("empty page record")
	}
	r := bytes.NewReader(data[1:])
	tag := data[0]

	revision, err := readU64(r)
	if err != nil {
		return nil, err
	}
	nbKeys, err := readU32(r)
	if err != nil {
		return nil, err
	}

	switch tag {
	case tagLeaf:
		keys := make([]K, nbKeys)
		values := make([]V, nbKeys)
		for i := uint32(0); i < nbKeys; i++ {
			k, err := s.keyCodec.DeserializeKey(r)
			if err != nil {
				return nil, err
			}
			v, err := s.valCodec.DeserializeValue(r)
			if err != nil {
				return nil, err
			}
			keys[i] = k
			values[i] = v
		}
		return NewLeaf[K, V](revision, keys, values), nil

	case tagInternal:
		keys := make([]K, nbKeys)
		for i := uint32(0); i < nbKeys; i++ {
			k, err := s.keyCodec.DeserializeKey(r)
			if err != nil {
				return nil, err
			}
			keys[i] = k
		}
		nbChildren, err := readU32(r)
		if err != nil {
			return nil, err
		}
		children := make([]*ChildRef[K, V], nbChildren)
		for i := uint32(0); i < nbChildren; i++ {
			off, err := readU64(r)
			if err != nil {
				return nil, err
			}
			children[i] = offsetRef[K, V](int64(off))
		}
		return NewInternalNode[K, V](revision, keys, children), nil

	default:
		return nil, engerrors.CorruptPage("unrecognized page tag")
	}
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func readU64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, engerrors.CorruptPage("truncated page record")
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, engerrors.CorruptPage("truncated page record")
	}
	return binary.BigEndian.Uint32(b[:]), nil
}
