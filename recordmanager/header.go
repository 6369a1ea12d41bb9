package recordmanager

import (
	"encoding/binary"
	"os"

	engerrors "github.com/govetachun/mvccbtree/errors"
)

// fileHeaderSize is the 24-byte file header of spec §4.2/§6:
// u32 pageSize, u32 nbTrees, i64 firstFreePage, i64 lastFreePage.
const fileHeaderSize = 4 + 4 + 8 + 8

// MinPageSize is the smallest page size the file format allows (spec §6).
const MinPageSize = 64

type fileHeader struct {
	pageSize      uint32
	nbTrees       uint32
	firstFreePage int64
	lastFreePage  int64
}

func (h *fileHeader) encode() []byte {
	buf := make([]byte, fileHeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], h.pageSize)
	binary.BigEndian.PutUint32(buf[4:8], h.nbTrees)
	binary.BigEndian.PutUint64(buf[8:16], uint64(h.firstFreePage))
	binary.BigEndian.PutUint64(buf[16:24], uint64(h.lastFreePage))
	return buf
}

func decodeFileHeader(buf []byte) (*fileHeader, error) {
	if len(buf) < fileHeaderSize {
		return nil, engerrors.CorruptPage("truncated file header")
	}
	h := &fileHeader{
		pageSize:      binary.BigEndian.Uint32(buf[0:4]),
		nbTrees:       binary.BigEndian.Uint32(buf[4:8]),
		firstFreePage: int64(binary.BigEndian.Uint64(buf[8:16])),
		lastFreePage:  int64(binary.BigEndian.Uint64(buf[16:24])),
	}
	if h.pageSize < MinPageSize || h.pageSize&(h.pageSize-1) != 0 {
		return nil, engerrors.CorruptPage("page size is not a power of two >= 64")
	}
	if h.nbTrees < 1 {
		return nil, engerrors.CorruptPage("nbTrees must be >= 1 (the copied-pages tree)")
	}
	return h, nil
}

func readFileHeader(f *os.File, pageSize int) (*fileHeader, error) {
	buf := make([]byte, fileHeaderSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return nil, engerrors.Io("reading file header", err)
	}
	return decodeFileHeader(buf)
}

func writeFileHeader(f *os.File, h *fileHeader) error {
	buf := h.encode()
	// Header page is padded to pageSize so the first tree header record
	// starts page-aligned at offset pageSize (spec §6).
	page := make([]byte, h.pageSize)
	copy(page, buf)
	if _, err := f.WriteAt(page, 0); err != nil {
		return engerrors.Io("writing file header", err)
	}
	return nil
}
