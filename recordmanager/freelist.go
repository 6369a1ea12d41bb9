package recordmanager

import (
	"github.com/govetachun/mvccbtree/pageio"
)

// fetchNewPage obtains one fresh page either from the head of the free
// list or, if empty, as a brand-new unassigned page appended at flush time
// (spec §4.2 step 2).
func (m *Manager) fetchNewPage(isFirst bool) (*pageio.PageIO, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.header.firstFreePage == -1 {
		return pageio.New(m.pageSize, isFirst), nil
	}

	head := m.header.firstFreePage
	freed, err := pageio.Load(m.file, head, m.pageSize, false)
	if err != nil {
		return nil, err
	}
	m.header.firstFreePage = freed.NextPage()
	if m.header.firstFreePage == -1 {
		m.header.lastFreePage = -1
	}

	p := pageio.New(m.pageSize, isFirst)
	p.Reuse(head)
	return p, nil
}

// pushFree prepends a now-reclaimable page offset onto the free list.
func (m *Manager) pushFree(offset int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	node := pageio.New(m.pageSize, false)
	node.Reuse(offset)
	node.SetNextPage(m.header.firstFreePage)
	if err := node.Flush(m.file); err != nil {
		return err
	}
	m.header.firstFreePage = offset
	if m.header.lastFreePage == -1 {
		m.header.lastFreePage = offset
	}
	return nil
}

// MarkSuperseded records that the pages backing offset were made
// unreachable by a copy-on-write at producingRevision; they are not
// reclaimed until Reclaim confirms no live transaction can still see them
// (spec §4.2 "Free-page reclamation").
func (m *Manager) MarkSuperseded(producingRevision uint64, offset int64) error {
	offsets, err := m.pageOffsetsOf(offset)
	if err != nil {
		return err
	}
	m.copiedMu.Lock()
	m.copiedPages[producingRevision] = append(m.copiedPages[producingRevision], offsets...)
	m.copiedMu.Unlock()
	return nil
}

// Reclaim sweeps every superseded-page bucket whose revision is strictly
// less than oldestPinnedRevision (no live transaction can observe it or an
// earlier revision) onto the free list. Returns the number of pages freed.
func (m *Manager) Reclaim(oldestPinnedRevision uint64) (int, error) {
	m.copiedMu.Lock()
	var reclaim []int64
	for rev, offs := range m.copiedPages {
		if rev < oldestPinnedRevision {
			reclaim = append(reclaim, offs...)
			delete(m.copiedPages, rev)
		}
	}
	m.copiedMu.Unlock()

	for _, off := range reclaim {
		if err := m.pushFree(off); err != nil {
			return 0, err
		}
	}
	if len(reclaim) > 0 {
		if err := m.flushHeader(); err != nil {
			return 0, err
		}
	}
	return len(reclaim), nil
}
