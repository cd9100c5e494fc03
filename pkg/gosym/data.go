package gosym

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unsafe"

	bufra "github.com/avvmoto/buf-readerat"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/grafana/gosymtab/pkg/binutil"
	"github.com/grafana/gosymtab/pkg/objfile"
)

// Source is the addressable byte source a Table decodes from. Offsets are
// relative to the start of the pclntab.
type Source interface {
	// ReadAt returns exactly n bytes at off. The result may alias the source
	// and must not be modified.
	ReadAt(off uint64, n int) ([]byte, error)
	// Tail returns the bytes starting at off. It returns at least max bytes
	// unless the source ends earlier, and may return more.
	Tail(off uint64, max int) ([]byte, error)
	// CString returns the NUL terminated string at off.
	CString(off uint64) (string, error)
}

// Ownership tells who keeps the bytes of a Memory alive.
type Ownership int

const (
	// OwnedSection holds section contents obtained from an object reader.
	OwnedSection Ownership = iota
	// OwnedBuffer holds a heap buffer handed over by the caller, which must
	// not modify it afterwards.
	OwnedBuffer
	// Borrowed views memory the caller owns. The caller guarantees it
	// outlives the table and every string the table returned.
	Borrowed
)

func (o Ownership) String() string {
	switch o {
	case OwnedSection:
		return "section"
	case OwnedBuffer:
		return "buffer"
	case Borrowed:
		return "borrowed"
	}
	return "unknown"
}

// Memory is a fully materialized pclntab. Strings returned from it are views
// into the backing bytes.
type Memory struct {
	own  Ownership
	name string
	buf  []byte
}

// SectionMemory reads the named section through r.
func SectionMemory(r objfile.SectionReader, name string) (Memory, error) {
	data, err := r.Section(name)
	if err != nil {
		return Memory{}, fmt.Errorf("read section %s: %w", name, err)
	}
	return Memory{own: OwnedSection, name: name, buf: data}, nil
}

func BufferMemory(b []byte) Memory {
	return Memory{own: OwnedBuffer, buf: b}
}

// BorrowedMemory wraps n bytes at p without copying them.
func BorrowedMemory(p unsafe.Pointer, n int) Memory {
	if p == nil || n <= 0 {
		return Memory{own: Borrowed}
	}
	return Memory{own: Borrowed, buf: unsafe.Slice((*byte)(p), n)}
}

func (m Memory) Ownership() Ownership { return m.own }

func (m Memory) Len() int { return len(m.buf) }

func (m Memory) ReadAt(off uint64, n int) ([]byte, error) {
	if n < 0 || off > uint64(len(m.buf)) || uint64(n) > uint64(len(m.buf))-off {
		return nil, fmt.Errorf("%w: %d bytes at %#x, size %#x", ErrOutOfBounds, n, off, len(m.buf))
	}
	return m.buf[off : off+uint64(n) : off+uint64(n)], nil
}

func (m Memory) Tail(off uint64, _ int) ([]byte, error) {
	if off >= uint64(len(m.buf)) {
		return nil, fmt.Errorf("%w: tail at %#x, size %#x", ErrOutOfBounds, off, len(m.buf))
	}
	return m.buf[off:len(m.buf):len(m.buf)], nil
}

func (m Memory) CString(off uint64) (string, error) {
	if off >= uint64(len(m.buf)) {
		return "", fmt.Errorf("%w: string at %#x, size %#x", ErrOutOfBounds, off, len(m.buf))
	}
	b, ok := binutil.CString(m.buf[off:])
	if !ok {
		return "", fmt.Errorf("%w: unterminated string at %#x", ErrOutOfBounds, off)
	}
	if len(b) == 0 {
		return "", nil
	}
	return unsafe.String(&b[0], len(b)), nil
}

const (
	stringChunkSize = 256
	maxStringChunks = 64
)

// seekSource reads a pclntab that starts at offset in r. It is not safe for
// concurrent use.
type seekSource struct {
	r      io.ReaderAt
	offset int64
	names  *lru.Cache[uint64, string]
}

func newSeekSource(r io.ReaderAt, offset int64, o options) (*seekSource, error) {
	s := &seekSource{offset: offset, r: r}
	if o.readBufferSize > 0 {
		s.r = bufra.NewBufReaderAt(r, o.readBufferSize)
	}
	if o.nameCacheSize > 0 {
		c, err := lru.New[uint64, string](o.nameCacheSize)
		if err != nil {
			return nil, err
		}
		s.names = c
	}
	return s, nil
}

func (s *seekSource) readAt(buf []byte, off uint64) (int, error) {
	if off > uint64(1<<63-1-s.offset) {
		return 0, fmt.Errorf("%w: offset %#x", ErrOutOfBounds, off)
	}
	return s.r.ReadAt(buf, s.offset+int64(off))
}

func (s *seekSource) ReadAt(off uint64, n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrOutOfBounds, n)
	}
	buf := make([]byte, n)
	got, err := s.readAt(buf, off)
	if got == n {
		return buf, nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("read %d bytes at %#x: %w", n, off, err)
}

func (s *seekSource) Tail(off uint64, max int) ([]byte, error) {
	buf := make([]byte, max)
	got, err := s.readAt(buf, off)
	if got > 0 {
		return buf[:got], nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("read at %#x: %w", off, err)
}

func (s *seekSource) CString(off uint64) (string, error) {
	if s.names != nil {
		if name, ok := s.names.Get(off); ok {
			return name, nil
		}
	}
	var chunk [stringChunkSize]byte
	sb := strings.Builder{}
	for i := 0; i < maxStringChunks; i++ {
		got, err := s.readAt(chunk[:], off+uint64(i*stringChunkSize))
		if idx := bytes.IndexByte(chunk[:got], 0); idx >= 0 {
			sb.Write(chunk[:idx])
			name := sb.String()
			if s.names != nil {
				s.names.Add(off, name)
			}
			return name, nil
		}
		if err != nil {
			return "", fmt.Errorf("read string at %#x: %w", off, err)
		}
		sb.Write(chunk[:got])
	}
	return "", fmt.Errorf("%w: string at %#x is too long", ErrOutOfBounds, off)
}

// cursor walks a varint stream through a Source window by window.
type cursor struct {
	src Source
	off uint64
	buf []byte
	eof bool
}

const cursorWindow = 256

func (c *cursor) fill() {
	if c.eof || len(c.buf) >= 10 {
		return
	}
	b, err := c.src.Tail(c.off, cursorWindow)
	if err != nil {
		c.eof = true
		c.buf = nil
		return
	}
	if len(b) < cursorWindow {
		c.eof = true
	}
	c.buf = b
}

func (c *cursor) uvarint() (uint64, bool) {
	c.fill()
	v, n := binutil.Uvarint(c.buf)
	if n <= 0 {
		return 0, false
	}
	c.buf = c.buf[n:]
	c.off += uint64(n)
	return v, true
}

func (c *cursor) varint() (int64, bool) {
	c.fill()
	v, n := binutil.Varint(c.buf)
	if n <= 0 {
		return 0, false
	}
	c.buf = c.buf[n:]
	c.off += uint64(n)
	return v, true
}
