// Package recordmanager implements spec §4.2: a fixed-size-page file
// format, logical records spanning chained pages, free-page reclamation,
// and persistence of tree meta-data. It knows nothing about B+Tree node
// shapes; callers (the btree package) hand it already-serialized bytes.
package recordmanager

import (
	"context"
	"os"
	"sync"

	engerrors "github.com/govetachun/mvccbtree/errors"
	"golang.org/x/sync/errgroup"
)

// DefaultPageSize is the file format's physical page size when unspecified.
const DefaultPageSize = 4096

// copiedPagesTreeName is the internal bookkeeping tree counted in nbTrees
// (spec §4.2: "including the internal copied-pages tree"). Its contents
// are kept purely in memory (Manager.copiedPages) rather than persisted as
// a literal B+Tree, so they do not survive a reopen.
const copiedPagesTreeName = "__copied_pages__"

// Manager is the file-scoped page allocator and tree registry (spec §3's
// RecordManager entity).
type Manager struct {
	file     *os.File
	path     string
	pageSize int

	mu     sync.Mutex // guards header.firstFreePage/lastFreePage and page IO ordering
	header fileHeader

	treesMu      sync.RWMutex
	trees        map[string]*TreeMeta
	lastTreeName string

	copiedMu    sync.Mutex
	copiedPages map[uint64][]int64

	maintCancel context.CancelFunc
	maintGroup  *errgroup.Group
}

// Open opens path, creating it with the given page size if it does not
// exist or is empty (spec §4.2 "On open").
func Open(path string, pageSize int) (*Manager, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize < MinPageSize || pageSize&(pageSize-1) != 0 {
		return nil, engerrors.InvalidArgument("page size must be a power of two >= 64")
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, engerrors.Io("opening backing file", err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, engerrors.Io("statting backing file", err)
	}

	m := &Manager{
		file:        f,
		path:        path,
		trees:       make(map[string]*TreeMeta),
		copiedPages: make(map[uint64][]int64),
	}

	if fi.Size() == 0 {
		m.pageSize = pageSize
		if err := m.initEmpty(); err != nil {
			f.Close()
			return nil, err
		}
		return m, nil
	}

	hdr, err := readFileHeader(f, pageSize)
	if err != nil {
		f.Close()
		return nil, err
	}
	m.pageSize = int(hdr.pageSize)
	m.header = *hdr
	if err := m.loadTreeChain(); err != nil {
		f.Close()
		return nil, err
	}
	return m, nil
}

func (m *Manager) initEmpty() error {
	m.header = fileHeader{pageSize: uint32(m.pageSize), nbTrees: 0, firstFreePage: -1, lastFreePage: -1}
	if err := writeFileHeader(m.file, &m.header); err != nil {
		return err
	}
	if _, err := m.RegisterTree(copiedPagesTreeName, "", ""); err != nil {
		return err
	}
	return nil
}

func (m *Manager) loadTreeChain() error {
	offset := int64(m.pageSize)
	for offset != -1 {
		data, err := m.readRecord(offset)
		if err != nil {
			return err
		}
		meta, err := decodeTreeHeader(data)
		if err != nil {
			return err
		}
		chain, err := m.pageOffsetsOf(offset)
		if err != nil {
			return err
		}
		meta.chainOffsets = chain
		m.trees[meta.Name] = meta
		if meta.NextBTreeOffset == -1 {
			m.lastTreeName = meta.Name
		}
		offset = meta.NextBTreeOffset
	}
	return nil
}

// PageSize is the file format's physical page size, in bytes.
func (m *Manager) PageSize() int { return m.pageSize }

// RegisterTree creates and persists a new tree header record, linking it
// onto the end of the tree-header chain. Returns AlreadyManaged if a tree
// with this name already exists (spec §7).
func (m *Manager) RegisterTree(name, keyCodecName, valueCodecName string) (*TreeMeta, error) {
	m.treesMu.Lock()
	defer m.treesMu.Unlock()

	if _, exists := m.trees[name]; exists {
		return nil, engerrors.AlreadyManaged("tree " + name + " is already registered")
	}

	meta := &TreeMeta{
		Name:            name,
		PageSize:        uint32(m.pageSize),
		KeyCodecName:    keyCodecName,
		ValueCodecName:  valueCodecName,
		Revision:        0,
		NbElems:         0,
		RootPageOffset:  -1,
		NextBTreeOffset: -1,
	}
	offset, err := m.writeRecord(meta.encode())
	if err != nil {
		return nil, err
	}
	chain, err := m.pageOffsetsOf(offset)
	if err != nil {
		return nil, err
	}
	meta.chainOffsets = chain

	if prevName := m.lastTreeName; prevName != "" {
		prev := m.trees[prevName]
		prev.NextBTreeOffset = offset
		if err := m.rewriteTreeMeta(prev); err != nil {
			return nil, err
		}
	}
	m.lastTreeName = name
	m.trees[name] = meta

	m.mu.Lock()
	m.header.nbTrees++
	err = writeFileHeader(m.file, &m.header)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return meta, nil
}

// Tree looks up a previously registered tree's metadata by name.
func (m *Manager) Tree(name string) (*TreeMeta, bool) {
	m.treesMu.RLock()
	defer m.treesMu.RUnlock()
	meta, ok := m.trees[name]
	return meta, ok
}

// UpdateTreeMeta persists a tree's current revision/nbElems/root pointer.
// Header updates are written last in any mutation batch (spec §4.2
// "Failure semantics") so a crash mid-write leaves the previous root
// reachable: callers must flush all new node/leaf pages before calling
// this.
func (m *Manager) UpdateTreeMeta(meta *TreeMeta) error {
	m.treesMu.Lock()
	defer m.treesMu.Unlock()
	return m.rewriteTreeMeta(meta)
}

// rewriteTreeMeta overwrites a tree header's page chain in place: the
// record's byte length never changes after creation (only the fixed-width
// revision/nbElems/offset fields vary), so it never needs reallocation.
func (m *Manager) rewriteTreeMeta(meta *TreeMeta) error {
	data := meta.encode()
	sizes := m.splitIntoPages(len(data))
	if len(sizes) != len(meta.chainOffsets) {
		return engerrors.CorruptPage("tree header record changed size unexpectedly")
	}
	pos := 0
	for i, sz := range sizes {
		isFirst := i == 0
		p, err := pageioLoadForOverwrite(m, meta.chainOffsets[i], isFirst)
		if err != nil {
			return err
		}
		p.WritePayloadAt(0, data[pos:pos+sz])
		pos += sz
		if isFirst {
			p.SetPayloadSize(uint32(len(data)))
		}
		if i+1 < len(meta.chainOffsets) {
			p.SetNextPage(meta.chainOffsets[i+1])
		} else {
			p.SetNextPage(-1)
		}
		if err := p.Flush(m.file); err != nil {
			return err
		}
	}
	return nil
}

// ReadRecord exposes the chained-page record reader to callers (btree
// package) that persist their own node/leaf byte encodings.
func (m *Manager) ReadRecord(offset int64) ([]byte, error) { return m.readRecord(offset) }

// WriteRecord exposes the chained-page record writer.
func (m *Manager) WriteRecord(data []byte) (int64, error) { return m.writeRecord(data) }

// SupersededPages returns the file offsets backing the record at offset,
// for callers that want to mark them for later reclamation themselves.
func (m *Manager) SupersededPages(offset int64) ([]int64, error) { return m.pageOffsetsOf(offset) }

// StartMaintenance launches the free-page reclamation loop in an errgroup.
// The transaction sweeper (spec §4.5) is not part of this group: each
// BTree starts its own sweeper goroutine in btree.Open and stops it in
// BTree.Close.
func (m *Manager) StartMaintenance(ctx context.Context, oldestPinned func() uint64, tick func() <-chan struct{}) {
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	m.maintCancel = cancel
	m.maintGroup = g
	g.Go(func() error {
		ticks := tick()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticks:
				if _, err := m.Reclaim(oldestPinned()); err != nil {
					return err
				}
			}
		}
	})
}

// StopMaintenance cancels the maintenance loop and waits for it to exit.
func (m *Manager) StopMaintenance() error {
	if m.maintCancel == nil {
		return nil
	}
	m.maintCancel()
	err := m.maintGroup.Wait()
	m.maintCancel = nil
	m.maintGroup = nil
	return err
}

func (m *Manager) flushHeader() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return writeFileHeader(m.file, &m.header)
}

// Close stops maintenance (if running) and closes the backing file.
func (m *Manager) Close() error {
	if err := m.StopMaintenance(); err != nil {
		return err
	}
	if err := m.file.Close(); err != nil {
		return engerrors.Io("closing backing file", err)
	}
	return nil
}
