package codec

import (
	"encoding/binary"
	"io"

	engerrors "github.com/govetachun/mvccbtree/errors"
)

// nullLen is the length-prefix sentinel for a null byte sequence (spec §4.2,
// §6): 0xFFFFFFFF as a signed i32 reads back as -1.
const nullLen uint32 = 0xFFFFFFFF

// writeLenPrefixed writes a -1/0/N length-prefixed byte sequence per the
// convention shared by byte[], string, and the tree-header name/FQCN fields.
func writeLenPrefixed(b []byte, isNull bool) []byte {
	out := make([]byte, 4)
	if isNull {
		binary.BigEndian.PutUint32(out, nullLen)
		return out
	}
	binary.BigEndian.PutUint32(out, uint32(len(b)))
	return append(out, b...)
}

func readLenPrefixed(r io.Reader) ([]byte, bool, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, false, engerrors.EndOfFile("reading length prefix")
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == nullLen {
		return nil, true, nil
	}
	if n == 0 {
		return []byte{}, false, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, false, engerrors.EndOfFile("reading length-prefixed payload")
	}
	return buf, false, nil
}

// --- boolean (1 byte) ---

type BoolCodec struct{}

func (BoolCodec) Name() string { return "bool" }
func (BoolCodec) SerializeKey(v bool) []byte   { return BoolCodec{}.SerializeValue(v) }
func (BoolCodec) DeserializeKey(r io.Reader) (bool, error) {
	return BoolCodec{}.DeserializeValue(r)
}
func (BoolCodec) SerializeValue(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}
func (BoolCodec) DeserializeValue(r io.Reader) (bool, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return false, engerrors.EndOfFile("reading bool")
	}
	return b[0] != 0, nil
}

func CompareBool(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}

// --- byte (1 byte) ---

type ByteCodec struct{}

func (ByteCodec) Name() string { return "byte" }
func (ByteCodec) SerializeKey(v byte) []byte { return []byte{v} }
func (ByteCodec) DeserializeKey(r io.Reader) (byte, error) {
	return ByteCodec{}.DeserializeValue(r)
}
func (ByteCodec) SerializeValue(v byte) []byte { return []byte{v} }
func (ByteCodec) DeserializeValue(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, engerrors.EndOfFile("reading byte")
	}
	return b[0], nil
}

func CompareByte(a, b byte) int { return int(a) - int(b) }

// --- char (2 bytes, big-endian) ---

type CharCodec struct{}

func (CharCodec) Name() string { return "char" }
func (CharCodec) SerializeKey(v rune) []byte { return CharCodec{}.SerializeValue(v) }
func (CharCodec) DeserializeKey(r io.Reader) (rune, error) {
	return CharCodec{}.DeserializeValue(r)
}
func (CharCodec) SerializeValue(v rune) []byte {
	out := make([]byte, 2)
	binary.BigEndian.PutUint16(out, uint16(v))
	return out
}
func (CharCodec) DeserializeValue(r io.Reader) (rune, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, engerrors.EndOfFile("reading char")
	}
	return rune(binary.BigEndian.Uint16(b[:])), nil
}

func CompareChar(a, b rune) int { return int(a) - int(b) }

// --- short (int16, 2 bytes) ---

type ShortCodec struct{}

func (ShortCodec) Name() string { return "short" }
func (ShortCodec) SerializeKey(v int16) []byte { return ShortCodec{}.SerializeValue(v) }
func (ShortCodec) DeserializeKey(r io.Reader) (int16, error) {
	return ShortCodec{}.DeserializeValue(r)
}
func (ShortCodec) SerializeValue(v int16) []byte {
	out := make([]byte, 2)
	binary.BigEndian.PutUint16(out, uint16(v))
	return out
}
func (ShortCodec) DeserializeValue(r io.Reader) (int16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, engerrors.EndOfFile("reading short")
	}
	return int16(binary.BigEndian.Uint16(b[:])), nil
}

func CompareShort(a, b int16) int { return int(a) - int(b) }

// --- int (int32, 4 bytes) ---

type IntCodec struct{}

func (IntCodec) Name() string { return "int" }
func (IntCodec) SerializeKey(v int32) []byte { return IntCodec{}.SerializeValue(v) }
func (IntCodec) DeserializeKey(r io.Reader) (int32, error) {
	return IntCodec{}.DeserializeValue(r)
}
func (IntCodec) SerializeValue(v int32) []byte {
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, uint32(v))
	return out
}
func (IntCodec) DeserializeValue(r io.Reader) (int32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, engerrors.EndOfFile("reading int")
	}
	return int32(binary.BigEndian.Uint32(b[:])), nil
}

func CompareInt(a, b int32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// --- long (int64, 8 bytes) ---

type LongCodec struct{}

func (LongCodec) Name() string { return "long" }
func (LongCodec) SerializeKey(v int64) []byte { return LongCodec{}.SerializeValue(v) }
func (LongCodec) DeserializeKey(r io.Reader) (int64, error) {
	return LongCodec{}.DeserializeValue(r)
}
func (LongCodec) SerializeValue(v int64) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, uint64(v))
	return out
}
func (LongCodec) DeserializeValue(r io.Reader) (int64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, engerrors.EndOfFile("reading long")
	}
	return int64(binary.BigEndian.Uint64(b[:])), nil
}

func CompareLong(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// --- byte[] (4-byte length prefix; -1 null, 0 empty) ---

type BytesCodec struct{}

func (BytesCodec) Name() string { return "byte[]" }
func (BytesCodec) SerializeKey(v []byte) []byte { return BytesCodec{}.SerializeValue(v) }
func (BytesCodec) DeserializeKey(r io.Reader) ([]byte, error) {
	return BytesCodec{}.DeserializeValue(r)
}
func (BytesCodec) SerializeValue(v []byte) []byte {
	return writeLenPrefixed(v, v == nil)
}
func (BytesCodec) DeserializeValue(r io.Reader) ([]byte, error) {
	b, isNull, err := readLenPrefixed(r)
	if err != nil {
		return nil, err
	}
	if isNull {
		return nil, nil
	}
	return b, nil
}

func CompareBytes(a, b []byte) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return int(a[i]) - int(b[i])
		}
	}
	return len(a) - len(b)
}

// --- string (UTF-8 bytes, same length-prefix convention) ---

type StringCodec struct{}

func (StringCodec) Name() string { return "string" }
func (StringCodec) SerializeKey(v string) []byte { return StringCodec{}.SerializeValue(v) }
func (StringCodec) DeserializeKey(r io.Reader) (string, error) {
	return StringCodec{}.DeserializeValue(r)
}
func (StringCodec) SerializeValue(v string) []byte {
	return writeLenPrefixed([]byte(v), false)
}
func (StringCodec) DeserializeValue(r io.Reader) (string, error) {
	b, isNull, err := readLenPrefixed(r)
	if err != nil {
		return "", err
	}
	if isNull {
		return "", nil
	}
	return string(b), nil
}

func CompareString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// --- long[] (4-byte count + count*8 bytes; same null convention) ---

type LongArrayCodec struct{}

func (LongArrayCodec) Name() string { return "long[]" }
func (LongArrayCodec) SerializeKey(v []int64) []byte { return LongArrayCodec{}.SerializeValue(v) }
func (LongArrayCodec) DeserializeKey(r io.Reader) ([]int64, error) {
	return LongArrayCodec{}.DeserializeValue(r)
}
func (LongArrayCodec) SerializeValue(v []int64) []byte {
	out := make([]byte, 4)
	if v == nil {
		binary.BigEndian.PutUint32(out, nullLen)
		return out
	}
	binary.BigEndian.PutUint32(out, uint32(len(v)))
	for _, x := range v {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(x))
		out = append(out, b[:]...)
	}
	return out
}
func (LongArrayCodec) DeserializeValue(r io.Reader) ([]int64, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, engerrors.EndOfFile("reading long[] count")
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == nullLen {
		return nil, nil
	}
	out := make([]int64, n)
	for i := range out {
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, engerrors.EndOfFile("reading long[] element")
		}
		out[i] = int64(binary.BigEndian.Uint64(b[:]))
	}
	return out, nil
}

func CompareLongArray(a, b []int64) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}
