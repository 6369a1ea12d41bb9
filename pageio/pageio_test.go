package pageio

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func tempFile(t *testing.T) *os.File {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "pageio-*.db")
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestNewPageDefaults(t *testing.T) {
	p := New(128, true)
	require.Equal(t, Fresh, p.State())
	require.True(t, p.IsLast())
	require.Equal(t, int64(-1), p.Offset())
	require.Len(t, p.Payload(), PayloadCapacity(128, true))
}

func TestFlushAppendsThenRoundTrips(t *testing.T) {
	f := tempFile(t)
	p := New(64, true)
	p.SetPayloadSize(5)
	p.WritePayloadAt(0, []byte("hello"))
	require.NoError(t, p.Flush(f))
	require.GreaterOrEqual(t, p.Offset(), int64(0))

	loaded, err := Load(f, p.Offset(), 64, true)
	require.NoError(t, err)
	require.Equal(t, uint32(5), loaded.PayloadSize())
	require.Equal(t, "hello", string(loaded.Payload()[:5]))
	require.True(t, loaded.IsLast())
}

func TestFlushAtExistingOffsetOverwrites(t *testing.T) {
	f := tempFile(t)
	p := New(64, true)
	p.SetPayloadSize(3)
	p.WritePayloadAt(0, []byte("abc"))
	require.NoError(t, p.Flush(f))
	off := p.Offset()

	p.WritePayloadAt(0, []byte("xyz"))
	require.NoError(t, p.Flush(f))
	require.Equal(t, off, p.Offset())

	loaded, err := Load(f, off, 64, true)
	require.NoError(t, err)
	require.Equal(t, "xyz", string(loaded.Payload()[:3]))
}

func TestContinuationPageHasNoPayloadSizeField(t *testing.T) {
	p := New(32, false)
	require.Panics(t, func() { p.SetPayloadSize(1) })
}

func TestNextPageLink(t *testing.T) {
	p := New(32, true)
	p.SetNextPage(42)
	require.Equal(t, int64(42), p.NextPage())
	require.False(t, p.IsLast())
}

func TestLoadPastEOFFails(t *testing.T) {
	f := tempFile(t)
	_, err := Load(f, 0, 64, true)
	require.Error(t, err)
}
