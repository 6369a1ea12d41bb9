package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBoolCodecRoundTrip(t *testing.T) {
	for _, v := range []bool{true, false} {
		got, err := BoolCodec{}.DeserializeValue(bytes.NewReader(BoolCodec{}.SerializeValue(v)))
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
	require.Equal(t, -1, CompareBool(false, true))
	require.Equal(t, 1, CompareBool(true, false))
	require.Equal(t, 0, CompareBool(true, true))
}

func TestByteCodecRoundTrip(t *testing.T) {
	for _, v := range []byte{0, 1, 42, 255} {
		got, err := ByteCodec{}.DeserializeKey(bytes.NewReader(ByteCodec{}.SerializeKey(v)))
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
	require.True(t, CompareByte(1, 2) < 0)
	require.True(t, CompareByte(2, 1) > 0)
}

func TestCharCodecRoundTrip(t *testing.T) {
	for _, v := range []rune{0, 'a', 'Z', 0xFFFE} {
		got, err := CharCodec{}.DeserializeValue(bytes.NewReader(CharCodec{}.SerializeValue(v)))
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
	require.True(t, CompareChar('a', 'b') < 0)
}

func TestShortCodecRoundTrip(t *testing.T) {
	for _, v := range []int16{0, 1, -1, 32767, -32768} {
		got, err := ShortCodec{}.DeserializeKey(bytes.NewReader(ShortCodec{}.SerializeKey(v)))
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
	require.True(t, CompareShort(-1, 1) < 0)
}

func TestIntCodecRoundTrip(t *testing.T) {
	for _, v := range []int32{0, 1, -1, 1 << 30, -(1 << 30)} {
		got, err := IntCodec{}.DeserializeKey(bytes.NewReader(IntCodec{}.SerializeKey(v)))
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
	require.Equal(t, -1, CompareInt(1, 2))
	require.Equal(t, 1, CompareInt(2, 1))
	require.Equal(t, 0, CompareInt(5, 5))
}

func TestLongCodecRoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 1 << 40, -(1 << 40)} {
		got, err := LongCodec{}.DeserializeKey(bytes.NewReader(LongCodec{}.SerializeKey(v)))
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
	require.Equal(t, -1, CompareLong(1, 2))
}

func TestBytesCodecRoundTrip(t *testing.T) {
	got, err := BytesCodec{}.DeserializeValue(bytes.NewReader(BytesCodec{}.SerializeValue(nil)))
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = BytesCodec{}.DeserializeValue(bytes.NewReader(BytesCodec{}.SerializeValue([]byte{})))
	require.NoError(t, err)
	require.Equal(t, []byte{}, got)

	v := []byte{1, 2, 3, 255, 0}
	got, err = BytesCodec{}.DeserializeValue(bytes.NewReader(BytesCodec{}.SerializeValue(v)))
	require.NoError(t, err)
	require.Equal(t, v, got)
}

func TestCompareBytesOrdering(t *testing.T) {
	require.Equal(t, 0, CompareBytes(nil, nil))
	require.True(t, CompareBytes(nil, []byte{}) < 0, "null sorts before empty")
	require.True(t, CompareBytes([]byte{1}, []byte{1, 2}) < 0, "prefix sorts before its extension")
	require.True(t, CompareBytes([]byte{2}, []byte{1, 9}) > 0)
}

func TestStringCodecRoundTrip(t *testing.T) {
	for _, v := range []string{"", "hello", "unicode: 世界"} {
		got, err := StringCodec{}.DeserializeValue(bytes.NewReader(StringCodec{}.SerializeValue(v)))
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
	require.True(t, CompareString("abc", "abd") < 0)
}

func TestLongArrayCodecRoundTrip(t *testing.T) {
	got, err := LongArrayCodec{}.DeserializeValue(bytes.NewReader(LongArrayCodec{}.SerializeValue(nil)))
	require.NoError(t, err)
	require.Nil(t, got)

	v := []int64{1, -2, 3, 0, 1 << 40}
	got, err = LongArrayCodec{}.DeserializeValue(bytes.NewReader(LongArrayCodec{}.SerializeValue(v)))
	require.NoError(t, err)
	require.Equal(t, v, got)
}

func TestCompareLongArrayOrdering(t *testing.T) {
	require.Equal(t, 0, CompareLongArray([]int64{1, 2}, []int64{1, 2}))
	require.True(t, CompareLongArray([]int64{1}, []int64{1, 2}) < 0, "prefix sorts before its extension")
	require.True(t, CompareLongArray([]int64{1, 3}, []int64{1, 2}) > 0)
}

func TestCompareConsistentWithRoundTrippedValues(t *testing.T) {
	a, b := int32(3), int32(7)
	ra, err := IntCodec{}.DeserializeKey(bytes.NewReader(IntCodec{}.SerializeKey(a)))
	require.NoError(t, err)
	rb, err := IntCodec{}.DeserializeKey(bytes.NewReader(IntCodec{}.SerializeKey(b)))
	require.NoError(t, err)
	require.Equal(t, CompareInt(a, b), CompareInt(ra, rb))
}
