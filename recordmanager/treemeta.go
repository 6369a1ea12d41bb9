package recordmanager

import (
	"bytes"
	"encoding/binary"
	"io"

	engerrors "github.com/govetachun/mvccbtree/errors"
)

// TreeMeta is the on-disk tree header record of spec §4.2: revision,
// nbElems, rootPageOffset, nextBTreeOffset, pageSize, name,
// keySerializerFQCN, valueSerializerFQCN, in that field order.
type TreeMeta struct {
	Name            string
	PageSize        uint32
	KeyCodecName    string
	ValueCodecName  string
	Revision        uint64
	NbElems         uint64
	RootPageOffset  int64
	NextBTreeOffset int64

	// chainOffsets are the physical pages backing this record; fixed once
	// the tree is registered since the record's byte length never changes.
	chainOffsets []int64
}

func writeLenPrefixedString(buf *bytes.Buffer, s string) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	buf.Write(lenBuf[:])
	buf.WriteString(s)
}

func readLenPrefixedString(r *bytes.Reader) (string, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", engerrors.EndOfFile("reading tree header string length")
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0xFFFFFFFF {
		return "", nil
	}
	buf := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", engerrors.EndOfFile("reading tree header string payload")
		}
	}
	return string(buf), nil
}

func (t *TreeMeta) encode() []byte {
	buf := &bytes.Buffer{}
	var u64 [8]byte
	binary.BigEndian.PutUint64(u64[:], t.Revision)
	buf.Write(u64[:])
	binary.BigEndian.PutUint64(u64[:], t.NbElems)
	buf.Write(u64[:])
	binary.BigEndian.PutUint64(u64[:], uint64(t.RootPageOffset))
	buf.Write(u64[:])
	binary.BigEndian.PutUint64(u64[:], uint64(t.NextBTreeOffset))
	buf.Write(u64[:])
	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], t.PageSize)
	buf.Write(u32[:])
	writeLenPrefixedString(buf, t.Name)
	writeLenPrefixedString(buf, t.KeyCodecName)
	writeLenPrefixedString(buf, t.ValueCodecName)
	return buf.Bytes()
}

func decodeTreeHeader(data []byte) (*TreeMeta, error) {
	r := bytes.NewReader(data)
	readU64 := func() (uint64, error) {
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, engerrors.EndOfFile("reading tree header u64")
		}
		return binary.BigEndian.Uint64(b[:]), nil
	}

	rev, err := readU64()
	if err != nil {
		return nil, err
	}
	nbElems, err := readU64()
	if err != nil {
		return nil, err
	}
	rootOff, err := readU64()
	if err != nil {
		return nil, err
	}
	nextOff, err := readU64()
	if err != nil {
		return nil, err
	}
	var u32Buf [4]byte
	if _, err := io.ReadFull(r, u32Buf[:]); err != nil {
		return nil, engerrors.EndOfFile("reading tree header page size")
	}
	pageSize := binary.BigEndian.Uint32(u32Buf[:])

	name, err := readLenPrefixedString(r)
	if err != nil {
		return nil, err
	}
	keyCodec, err := readLenPrefixedString(r)
	if err != nil {
		return nil, err
	}
	valCodec, err := readLenPrefixedString(r)
	if err != nil {
		return nil, err
	}

	return &TreeMeta{
		Name:            name,
		PageSize:        pageSize,
		KeyCodecName:    keyCodec,
		ValueCodecName:  valCodec,
		Revision:        rev,
		NbElems:         nbElems,
		RootPageOffset:  int64(rootOff),
		NextBTreeOffset: int64(nextOff),
	}, nil
}
