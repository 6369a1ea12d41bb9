package recordmanager

import (
	"github.com/govetachun/mvccbtree/pageio"
)

// splitIntoPages computes how many pages a record of size S needs and how
// many payload bytes each page holds, per spec §4.2 step 1: the first page
// holds pageSize-8-4 bytes, continuation pages hold pageSize-8 bytes.
func (m *Manager) splitIntoPages(size int) []int {
	firstCap := pageio.PayloadCapacity(m.pageSize, true)
	contCap := pageio.PayloadCapacity(m.pageSize, false)
	if size <= firstCap {
		return []int{size}
	}
	sizes := []int{firstCap}
	remaining := size - firstCap
	for remaining > 0 {
		n := remaining
		if n > contCap {
			n = contCap
		}
		sizes = append(sizes, n)
		remaining -= n
	}
	return sizes
}

// writeRecord stores data across one or more chained pages, returning the
// offset of the first page. Pages are obtained from the free list first,
// falling back to appending at EOF (spec §4.2 step 2).
func (m *Manager) writeRecord(data []byte) (int64, error) {
	sizes := m.splitIntoPages(len(data))
	pages := make([]*pageio.PageIO, len(sizes))
	pos := 0
	for i, sz := range sizes {
		p, err := m.fetchNewPage(i == 0)
		if err != nil {
			return 0, err
		}
		p.WritePayloadAt(0, data[pos:pos+sz])
		pos += sz
		pages[i] = p
	}
	pages[0].SetPayloadSize(uint32(len(data)))
	// Flush last-to-first so every page's nextPage offset is already known
	// once written; offsets for fresh pages are only assigned on Flush.
	for i := len(pages) - 1; i >= 0; i-- {
		if i+1 < len(pages) {
			pages[i].SetNextPage(pages[i+1].Offset())
		}
		if err := pages[i].Flush(m.file); err != nil {
			return 0, err
		}
	}
	return pages[0].Offset(), nil
}

// readRecord follows the page chain starting at offset, gathering
// payloadSize bytes total (spec §4.2 "reading mirrors this").
func (m *Manager) readRecord(offset int64) ([]byte, error) {
	first, err := pageio.Load(m.file, offset, m.pageSize, true)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, first.PayloadSize())
	remaining := int(first.PayloadSize())
	take := remaining
	if take > len(first.Payload()) {
		take = len(first.Payload())
	}
	out = append(out, first.Payload()[:take]...)
	remaining -= take

	next := first.NextPage()
	for remaining > 0 {
		p, err := pageio.Load(m.file, next, m.pageSize, false)
		if err != nil {
			return nil, err
		}
		take := remaining
		if take > len(p.Payload()) {
			take = len(p.Payload())
		}
		out = append(out, p.Payload()[:take]...)
		remaining -= take
		next = p.NextPage()
	}
	return out, nil
}

// pageioLoadForOverwrite prepares a fresh in-memory page bound to an
// already-allocated offset, for in-place record rewrites (tree headers)
// whose encoded length never changes after creation.
func pageioLoadForOverwrite(m *Manager, offset int64, isFirst bool) (*pageio.PageIO, error) {
	p := pageio.New(m.pageSize, isFirst)
	p.Reuse(offset)
	return p, nil
}

// pageOffsetsOf walks the chain of first..last pages backing a record,
// returning every page offset it occupies (used when a record is
// superseded and its old pages become reclaimable).
func (m *Manager) pageOffsetsOf(offset int64) ([]int64, error) {
	var offsets []int64
	first, err := pageio.Load(m.file, offset, m.pageSize, true)
	if err != nil {
		return nil, err
	}
	offsets = append(offsets, offset)
	next := first.NextPage()
	for next != -1 {
		p, err := pageio.Load(m.file, next, m.pageSize, false)
		if err != nil {
			return nil, err
		}
		offsets = append(offsets, next)
		next = p.NextPage()
	}
	return offsets, nil
}
