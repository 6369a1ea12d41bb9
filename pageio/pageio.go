// Package pageio implements the physical fixed-size page abstraction of
// spec §4.1: an 8-byte next-page link prefix, a 4-byte payload-size field on
// the first page of a logical record, and a payload body. PageIO knows
// nothing about what a record means; the record manager gives that meaning.
package pageio

import (
	"encoding/binary"
	"io"
	"os"

	engerrors "github.com/govetachun/mvccbtree/errors"
)

// State is the lifecycle stage of one PageIO buffer.
type State int

const (
	// Fresh is a page allocated in memory but never written to disk.
	Fresh State = iota
	// Loaded is a page read verbatim from disk, unmodified since.
	Loaded
	// Dirty is a Loaded page with unflushed in-memory changes, or a page
	// bound to an existing offset by Reuse. A Fresh page stays Fresh until
	// its first Flush.
	Dirty
)

// headerSizeFirst is the 8-byte nextPage link plus the 4-byte payloadSize
// field present only on the first page of a logical record.
const headerSizeFirst = 8 + 4

// headerSizeCont is the 8-byte nextPage link on every continuation page.
const headerSizeCont = 8

const noNextPage int64 = -1
const unassignedOffset int64 = -1

// PageIO is one physical page: fixed size, framed per spec §4.1.
type PageIO struct {
	pageSize    int
	offset      int64 // file offset once assigned; unassignedOffset until flushed for the first time
	nextPage    int64
	isFirst     bool
	payloadSize uint32 // only meaningful when isFirst
	payload     []byte // exactly pageSize-HeaderSize(isFirst) bytes
	state       State
}

// HeaderSize returns the framing overhead for a first (isFirst=true) or
// continuation page.
func HeaderSize(isFirst bool) int {
	if isFirst {
		return headerSizeFirst
	}
	return headerSizeCont
}

// PayloadCapacity is how many payload bytes one page of pageSize can hold.
func PayloadCapacity(pageSize int, isFirst bool) int {
	return pageSize - HeaderSize(isFirst)
}

// New allocates a fresh, unassigned page of the given size.
func New(pageSize int, isFirst bool) *PageIO {
	return &PageIO{
		pageSize: pageSize,
		offset:   unassignedOffset,
		nextPage: noNextPage,
		isFirst:  isFirst,
		payload:  make([]byte, PayloadCapacity(pageSize, isFirst)),
		state:    Fresh,
	}
}

func (p *PageIO) Offset() int64        { return p.offset }
func (p *PageIO) NextPage() int64      { return p.nextPage }
func (p *PageIO) IsFirst() bool        { return p.isFirst }
func (p *PageIO) PayloadSize() uint32  { return p.payloadSize }
func (p *PageIO) Payload() []byte      { return p.payload }
func (p *PageIO) State() State         { return p.state }
func (p *PageIO) IsLast() bool         { return p.nextPage == noNextPage }

func (p *PageIO) SetNextPage(off int64) {
	p.nextPage = off
	p.markDirty()
}

func (p *PageIO) SetPayloadSize(n uint32) {
	if !p.isFirst {
		panic("pageio: payloadSize only valid on the first page of a record")
	}
	p.payloadSize = n
	p.markDirty()
}

// WritePayloadAt copies data into the page's payload at the given in-page
// offset; the caller (record manager) is responsible for not overrunning
// PayloadCapacity.
func (p *PageIO) WritePayloadAt(off int, data []byte) {
	copy(p.payload[off:], data)
	p.markDirty()
}

// Reuse assigns a previously-allocated (now free) file offset to a fresh
// in-memory page, so Flush overwrites that slot instead of appending.
func (p *PageIO) Reuse(offset int64) {
	p.offset = offset
	p.state = Dirty
}

func (p *PageIO) markDirty() {
	if p.state != Fresh {
		p.state = Dirty
	}
}

// encode serializes the page's framing + payload into exactly pageSize bytes.
func (p *PageIO) encode() []byte {
	buf := make([]byte, p.pageSize)
	binary.BigEndian.PutUint64(buf[0:8], uint64(p.nextPage))
	if p.isFirst {
		binary.BigEndian.PutUint32(buf[8:12], p.payloadSize)
		copy(buf[12:], p.payload)
	} else {
		copy(buf[8:], p.payload)
	}
	return buf
}

// decode parses a raw pageSize-byte buffer into a PageIO loaded from disk.
func decode(buf []byte, pageSize int, isFirst bool, offset int64) (*PageIO, error) {
	if len(buf) != pageSize {
		return nil, engerrors.CorruptPage("page buffer has wrong length")
	}
	p := &PageIO{pageSize: pageSize, isFirst: isFirst, offset: offset, state: Loaded}
	p.nextPage = int64(binary.BigEndian.Uint64(buf[0:8]))
	if p.nextPage < noNextPage {
		return nil, engerrors.CorruptPage("negative next-page offset other than -1")
	}
	if isFirst {
		p.payloadSize = binary.BigEndian.Uint32(buf[8:12])
		p.payload = append([]byte(nil), buf[12:]...)
	} else {
		p.payload = append([]byte(nil), buf[8:]...)
	}
	return p, nil
}

// Load reads the page at offset from f. isFirst must be known by the
// caller (the record manager tracks which offsets begin a record).
func Load(f *os.File, offset int64, pageSize int, isFirst bool) (*PageIO, error) {
	buf := make([]byte, pageSize)
	n, err := f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, engerrors.Io("reading page", err)
	}
	if n != pageSize {
		return nil, engerrors.EndOfFile("short read loading page")
	}
	return decode(buf, pageSize, isFirst, offset)
}

// Flush persists the page: pwrite at its existing offset if it has one,
// otherwise append at eof and record the assigned offset.
func (p *PageIO) Flush(f *os.File) error {
	buf := p.encode()
	if p.offset == unassignedOffset {
		off, err := f.Seek(0, io.SeekEnd)
		if err != nil {
			return engerrors.Io("seeking to eof", err)
		}
		if _, err := f.WriteAt(buf, off); err != nil {
			if _, err2 := f.WriteAt(buf, off); err2 != nil {
				return engerrors.Io("appending new page (retried once)", err2)
			}
		}
		p.offset = off
	} else {
		if _, err := f.WriteAt(buf, p.offset); err != nil {
			if _, err2 := f.WriteAt(buf, p.offset); err2 != nil {
				return engerrors.Io("writing page at offset (retried once)", err2)
			}
		}
	}
	p.state = Loaded
	return nil
}
