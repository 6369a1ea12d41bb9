package recordmanager

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T, pageSize int) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	m, err := Open(path, pageSize)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestOpenEmptyRegistersBookkeepingTree(t *testing.T) {
	m := openTemp(t, 128)
	require.EqualValues(t, 1, m.header.nbTrees)
	_, ok := m.Tree(copiedPagesTreeName)
	require.True(t, ok)
}

func TestRegisterTreeThenReopenRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	m, err := Open(path, 128)
	require.NoError(t, err)
	meta, err := m.RegisterTree("people", "int", "string")
	require.NoError(t, err)
	meta.Revision = 7
	meta.NbElems = 42
	meta.RootPageOffset = 256
	require.NoError(t, m.UpdateTreeMeta(meta))
	require.NoError(t, m.Close())

	m2, err := Open(path, 128)
	require.NoError(t, err)
	defer m2.Close()
	loaded, ok := m2.Tree("people")
	require.True(t, ok)
	require.EqualValues(t, 7, loaded.Revision)
	require.EqualValues(t, 42, loaded.NbElems)
	require.EqualValues(t, 256, loaded.RootPageOffset)
	require.Equal(t, "int", loaded.KeyCodecName)
	require.Equal(t, "string", loaded.ValueCodecName)
}

func TestRegisterDuplicateTreeFails(t *testing.T) {
	m := openTemp(t, 128)
	_, err := m.RegisterTree("dup", "int", "int")
	require.NoError(t, err)
	_, err = m.RegisterTree("dup", "int", "int")
	require.Error(t, err)
}

func TestRecordSpanningMultiplePages(t *testing.T) {
	m := openTemp(t, 64) // tiny pages force chaining
	data := make([]byte, 500)
	for i := range data {
		data[i] = byte(i)
	}
	off, err := m.WriteRecord(data)
	require.NoError(t, err)
	got, err := m.ReadRecord(off)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestFreeListReusesPages(t *testing.T) {
	m := openTemp(t, 64)
	off, err := m.WriteRecord([]byte("abcd"))
	require.NoError(t, err)
	offsets, err := m.SupersededPages(off)
	require.NoError(t, err)
	require.NoError(t, m.MarkSuperseded(0, off))
	n, err := m.Reclaim(1)
	require.NoError(t, err)
	require.Equal(t, len(offsets), n)
	require.Equal(t, offsets[0], m.header.firstFreePage)

	off2, err := m.WriteRecord([]byte("wxyz"))
	require.NoError(t, err)
	require.Equal(t, offsets[0], off2)
}

func TestReclaimRespectsPinnedRevisions(t *testing.T) {
	m := openTemp(t, 64)
	off, err := m.WriteRecord([]byte("abcd"))
	require.NoError(t, err)
	require.NoError(t, m.MarkSuperseded(5, off))
	n, err := m.Reclaim(5) // revision 5 itself still pinned
	require.NoError(t, err)
	require.Equal(t, 0, n)
	n, err = m.Reclaim(6)
	require.NoError(t, err)
	require.Greater(t, n, 0)
}
