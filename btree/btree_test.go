package btree

import (
	"testing"
	"time"

	"github.com/govetachun/mvccbtree/codec"
	engerrors "github.com/govetachun/mvccbtree/errors"
	"github.com/stretchr/testify/require"
)

func newTestTree(t *testing.T, pageSize int) *BTree[int32, string] {
	t.Helper()
	store := newInmemoryStore[int32, string]()
	tree := Open[int32, string](codec.CompareInt, pageSize, store, nil, 0, 0, 0)
	t.Cleanup(tree.Close)
	return tree
}

func TestInsertFindRoundTrip(t *testing.T) {
	tree := newTestTree(t, 4)
	for i := int32(0); i < 40; i++ {
		old, err := tree.Insert(i, "v")
		require.NoError(t, err)
		require.Nil(t, old)
	}
	require.Equal(t, 40, tree.NbElems())
	for i := int32(0); i < 40; i++ {
		v, ok, err := tree.Find(i)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "v", v)
	}
	_, ok, err := tree.Find(999)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestInsertIsIdempotentOnSameKey(t *testing.T) {
	tree := newTestTree(t, 4)
	_, err := tree.Insert(1, "first")
	require.NoError(t, err)
	old, err := tree.Insert(1, "second")
	require.NoError(t, err)
	require.NotNil(t, old)
	require.Equal(t, "first", *old)
	require.Equal(t, 1, tree.NbElems())

	v, ok, err := tree.Find(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "second", v)
}

func TestDeleteThenReinsert(t *testing.T) {
	tree := newTestTree(t, 4)
	for i := int32(0); i < 20; i++ {
		_, err := tree.Insert(i, "v")
		require.NoError(t, err)
	}
	val, ok, err := tree.Delete(10)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", val)
	require.Equal(t, 19, tree.NbElems())

	_, ok, err = tree.Find(10)
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = tree.Delete(10)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = tree.Insert(10, "back")
	require.NoError(t, err)
	v, ok, err := tree.Find(10)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "back", v)
}

func TestDeleteAllEmptiesTree(t *testing.T) {
	tree := newTestTree(t, 4)
	n := int32(30)
	for i := int32(0); i < n; i++ {
		_, err := tree.Insert(i, "v")
		require.NoError(t, err)
	}
	for i := int32(0); i < n; i++ {
		_, ok, err := tree.Delete(i)
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.Equal(t, 0, tree.NbElems())
	require.Nil(t, tree.Root())
}

func TestExactlyPageSizeElementsNoSplit(t *testing.T) {
	tree := newTestTree(t, 4)
	for i := int32(0); i < 4; i++ {
		_, err := tree.Insert(i, "v")
		require.NoError(t, err)
	}
	leaf, ok := tree.Root().(*Leaf[int32, string])
	require.True(t, ok, "root should still be a single leaf at exactly pageSize elements")
	require.Equal(t, 4, leaf.NbElems())

	_, err := tree.Insert(4, "v")
	require.NoError(t, err)
	_, ok = tree.Root().(*InternalNode[int32, string])
	require.True(t, ok, "root should split into an internal node past pageSize")
}

func TestOldRevisionReaderUnaffectedByLaterWrites(t *testing.T) {
	tree := newTestTree(t, 4)
	for i := int32(0); i < 10; i++ {
		_, err := tree.Insert(i, "v1")
		require.NoError(t, err)
	}
	cur, err := tree.Browse()
	require.NoError(t, err)
	pinnedRevision := tree.Revision()

	_, err = tree.Insert(100, "v2")
	require.NoError(t, err)
	_, ok, err := tree.Delete(5)
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, pinnedRevision, cur.tx.Revision())
	seen := 0
	for cur.HasNext() {
		_, _, err := cur.Next()
		require.NoError(t, err)
		seen++
	}
	require.Equal(t, 10, seen, "cursor opened before the later writes must still see the old snapshot")
	cur.Close()
}

func TestCursorForwardAndBackward(t *testing.T) {
	tree := newTestTree(t, 4)
	for i := int32(0); i < 20; i++ {
		_, err := tree.Insert(i, "v")
		require.NoError(t, err)
	}

	cur, err := tree.Browse()
	require.NoError(t, err)
	defer cur.Close()

	require.False(t, cur.HasPrev())
	var got []int32
	for cur.HasNext() {
		k, _, err := cur.Next()
		require.NoError(t, err)
		got = append(got, k)
	}
	require.Len(t, got, 20)
	for i, k := range got {
		require.Equal(t, int32(i), k)
	}

	_, _, err = cur.Next()
	require.True(t, engerrors.Is(err, engerrors.KindKeyNotFound))

	require.True(t, cur.HasPrev())
	k, _, err := cur.Prev()
	require.NoError(t, err)
	require.Equal(t, int32(19), k)
}

func TestBrowseFromPositionsAtOrAfterKey(t *testing.T) {
	tree := newTestTree(t, 4)
	for _, i := range []int32{0, 2, 4, 6, 8, 10} {
		_, err := tree.Insert(i, "v")
		require.NoError(t, err)
	}

	cur, err := tree.BrowseFrom(5)
	require.NoError(t, err)
	defer cur.Close()
	k, _, err := cur.Next()
	require.NoError(t, err)
	require.Equal(t, int32(6), k, "browse_from(5) lands on the smallest key greater than 5")

	cur2, err := tree.BrowseFrom(4)
	require.NoError(t, err)
	defer cur2.Close()
	k2, _, err := cur2.Next()
	require.NoError(t, err)
	require.Equal(t, int32(4), k2, "browse_from(4) lands on 4 itself when present")
}

func TestCursorAfterCloseFails(t *testing.T) {
	tree := newTestTree(t, 4)
	_, err := tree.Insert(1, "v")
	require.NoError(t, err)
	cur, err := tree.Browse()
	require.NoError(t, err)
	cur.Close()
	_, _, err = cur.Next()
	require.Error(t, err)
	require.True(t, engerrors.Is(err, engerrors.KindTransactionClosed))
}

func TestPageSizeNormalization(t *testing.T) {
	store := newInmemoryStore[int32, string]()
	tree := Open[int32, string](codec.CompareInt, 1, store, nil, 0, 0, 0)
	defer tree.Close()
	require.Equal(t, 16, tree.ctx.PageSize, "page sizes <= 2 fall back to the default of 16")

	store2 := newInmemoryStore[int32, string]()
	tree2 := Open[int32, string](codec.CompareInt, 5, store2, nil, 0, 0, 0)
	defer tree2.Close()
	require.Equal(t, 8, tree2.ctx.PageSize, "page sizes are rounded up to the nearest power of two")
}

func TestBulkLoadBuildsSearchableTree(t *testing.T) {
	store := newInmemoryStore[int32, string]()
	n := 100
	keys := make([]int32, n)
	values := make([]string, n)
	for i := 0; i < n; i++ {
		keys[i] = int32(i)
		values[i] = "v"
	}
	tree, err := BulkLoad[int32, string](codec.CompareInt, 4, store, keys, values, 0)
	require.NoError(t, err)
	require.Equal(t, n, tree.NbElems())
	for i := 0; i < n; i++ {
		v, ok, err := tree.Find(int32(i))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "v", v)
	}
}

func TestComputeStats(t *testing.T) {
	tree := newTestTree(t, 4)
	for i := int32(0); i < 40; i++ {
		_, err := tree.Insert(i, "v")
		require.NoError(t, err)
	}
	stats, err := tree.ComputeStats()
	require.NoError(t, err)
	require.Equal(t, 40, stats.NbElems)
	require.Greater(t, stats.LeafCount, 1)
	require.Greater(t, stats.Height, 1)
}

func TestTxRegistrySweeperExpiresIdleTransactions(t *testing.T) {
	store := newInmemoryStore[int32, string]()
	tree := Open[int32, string](codec.CompareInt, 4, store, nil, 0, 0, 20*time.Millisecond)
	defer tree.Close()
	_, err := tree.Insert(1, "v")
	require.NoError(t, err)

	cur, err := tree.Browse()
	require.NoError(t, err)
	require.False(t, cur.tx.Closed())

	time.Sleep(100 * time.Millisecond)
	require.True(t, cur.tx.Closed(), "idle transaction should have been swept after readTimeout")
}
