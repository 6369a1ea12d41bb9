package database

import (
	"path/filepath"
	"testing"

	"github.com/govetachun/mvccbtree/codec"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path, 128)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenTableSetGetDel(t *testing.T) {
	db := openTestDB(t)
	people, err := OpenTable[int32, string](db, "people", codec.IntCodec{}, codec.StringCodec{}, codec.CompareInt, 4, 0)
	require.NoError(t, err)

	require.NoError(t, people.Set(1, "alice"))
	require.NoError(t, people.Set(2, "bob"))

	v, ok, err := people.Get(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "alice", v)

	deleted, err := people.Del(2)
	require.NoError(t, err)
	require.True(t, deleted)
	_, ok, err = people.Get(2)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTreeMetaSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	db, err := Open(path, 128)
	require.NoError(t, err)
	people, err := OpenTable[int32, string](db, "people", codec.IntCodec{}, codec.StringCodec{}, codec.CompareInt, 4, 0)
	require.NoError(t, err)
	for i := int32(0); i < 30; i++ {
		require.NoError(t, people.Set(i, "v"))
	}
	require.NoError(t, db.Close())

	db2, err := Open(path, 128)
	require.NoError(t, err)
	defer db2.Close()
	people2, err := OpenTable[int32, string](db2, "people", codec.IntCodec{}, codec.StringCodec{}, codec.CompareInt, 4, 0)
	require.NoError(t, err)
	require.EqualValues(t, 30, people2.Revision())
	for i := int32(0); i < 30; i++ {
		v, ok, err := people2.Get(i)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "v", v)
	}
}

func TestMismatchedCodecRejected(t *testing.T) {
	db := openTestDB(t)
	_, err := OpenTable[int32, string](db, "people", codec.IntCodec{}, codec.StringCodec{}, codec.CompareInt, 4, 0)
	require.NoError(t, err)

	_, err = OpenTable[int32, int32](db, "people", codec.IntCodec{}, codec.IntCodec{}, codec.CompareInt, 4, 0)
	require.Error(t, err)
}
