// Package gosym decodes the function symbol table (pclntab) of Go binaries.
//
// A Table maps program counters to functions and exposes, per function, its
// name, frame size, source file and line. Tables are built either over a fully
// materialized section (NewTable) or over a seekable stream (NewSeekTable);
// both share the same decoding and differ only in how bytes are fetched.
//
// The format version is a precondition: use DetectVersion on the section
// header if it is not already known.
package gosym

import (
	"encoding/binary"
	"fmt"
	"io"
	"iter"
	"sort"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/grafana/gosymtab/pkg/binutil"
)

// maxFuncs bounds the function count accepted from a header, well above what
// real binaries carry.
const maxFuncs = 1 << 24

// Table is a decoded pclntab.
//
// A Table built over Memory is read-only and safe for concurrent use. A Table
// built with NewSeekTable mutates its read buffer and name cache and must not
// be used from several goroutines without external locking.
type Table struct {
	version Version
	layout  *layout
	order   binary.ByteOrder
	src     Source
	base    uint64
	address uint64

	quantum   uint32
	ptrSize   uint32
	funcNum   uint32
	fileNum   uint32
	textStart uint64

	funcNameTab uint64
	cuTab       uint64
	funcTab     uint64
	funcData    uint64
	pcTab       uint64
	fileTab     uint64

	// Function index array: funcNum (entry, record offset) pairs followed by
	// the end pc, fieldSize bytes each.
	ftab      []byte
	fieldSize int

	fieldOff   [numFuncFields]int
	recordSize int

	logger  log.Logger
	metrics *Metrics
}

// NewTable decodes the pclntab held in mem. base is added to every address
// the table reports and subtracted from every address it is asked about.
func NewTable(v Version, order binary.ByteOrder, mem Memory, base uint64, opts ...Option) (*Table, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newTable(v, order, mem, 0, base, o)
}

// NewSeekTable decodes the pclntab found at offset in r without loading it.
// address is the virtual address the section is mapped at. Only the function
// index array is kept in memory; everything else is read on demand.
func NewSeekTable(v Version, order binary.ByteOrder, r io.ReaderAt, offset int64, address, base uint64, opts ...Option) (*Table, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	src, err := newSeekSource(r, offset, o)
	if err != nil {
		return nil, err
	}
	return newTable(v, order, src, address, base, o)
}

// NewSourceTable decodes a pclntab from a custom Source.
func NewSourceTable(v Version, order binary.ByteOrder, src Source, base uint64, opts ...Option) (*Table, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newTable(v, order, src, 0, base, o)
}

func newTable(v Version, order binary.ByteOrder, src Source, address, base uint64, o options) (*Table, error) {
	l := layoutFor(v)
	if l == nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedVersion, v)
	}
	t := &Table{
		version: v,
		layout:  l,
		order:   order,
		src:     src,
		base:    base,
		address: address,
		logger:  o.logger,
		metrics: o.metrics,
	}
	if err := t.parseHeader(); err != nil {
		return nil, err
	}
	level.Debug(t.logger).Log(
		"msg", "parsed pclntab header",
		"version", v,
		"funcs", t.funcNum,
		"files", t.fileNum,
		"quantum", t.quantum,
		"ptr_size", t.ptrSize,
	)
	return t, nil
}

func (t *Table) parseHeader() error {
	prefix, err := t.src.ReadAt(0, 8)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedHeader, err)
	}
	t.quantum = uint32(prefix[6])
	t.ptrSize = uint32(prefix[7])
	if t.ptrSize != 4 && t.ptrSize != 8 {
		return fmt.Errorf("%w: %d", ErrUnsupportedPointerSize, t.ptrSize)
	}
	if t.quantum == 0 {
		return fmt.Errorf("%w: zero pc quantum", ErrMalformedHeader)
	}
	ptrSize := int(t.ptrSize)

	hdr, err := t.src.ReadAt(8, t.layout.headerWords*ptrSize)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedHeader, err)
	}
	word := func(i int) uint64 {
		if i == noWord {
			return 0
		}
		v, _ := binutil.Uint(hdr[i*ptrSize:], ptrSize, t.order)
		return v
	}

	nfunc := word(t.layout.nfunc)
	if nfunc > maxFuncs {
		return fmt.Errorf("%w: %d functions", ErrMalformedHeader, nfunc)
	}
	t.funcNum = uint32(nfunc)
	t.fileNum = uint32(word(t.layout.nfiles))
	t.textStart = word(t.layout.textStart)
	t.funcNameTab = word(t.layout.funcName)
	t.cuTab = word(t.layout.cuTab)
	t.fileTab = word(t.layout.fileTab)
	t.pcTab = word(t.layout.pcTab)
	if t.layout.pcln == noWord {
		// The function index array follows the header and records are
		// addressed from the start of the table.
		t.funcTab = uint64(8 + ptrSize)
		t.funcData = 0
	} else {
		t.funcTab = word(t.layout.pcln)
		t.funcData = t.funcTab
	}

	t.fieldSize = ptrSize
	if t.layout.relativeEntries {
		t.fieldSize = 4
	}
	t.fieldOff, t.recordSize = t.layout.fieldOffsets(ptrSize)

	ftabSize := (int(t.funcNum)*2 + 1) * t.fieldSize
	t.ftab, err = readIndex(t.src, t.funcTab, ftabSize)
	if err != nil {
		return fmt.Errorf("%w: function index: %w", ErrMalformedHeader, err)
	}

	if !t.layout.hasCUTab() {
		// The file table offset is stored right after the index array and
		// its first word is the number of entries, itself included.
		b, err := t.src.ReadAt(t.funcTab+uint64(ftabSize), 4)
		if err != nil {
			return fmt.Errorf("%w: file table offset: %w", ErrMalformedHeader, err)
		}
		t.fileTab = uint64(t.order.Uint32(b))
		b, err = t.src.ReadAt(t.fileTab, 4)
		if err != nil {
			return fmt.Errorf("%w: file table: %w", ErrMalformedHeader, err)
		}
		t.fileNum = t.order.Uint32(b)
	}
	return nil
}

// indexChunkSize bounds single reads of the function index array so that a
// header claiming too many functions fails before allocating for all of them.
const indexChunkSize = 64 << 10

func readIndex(src Source, off uint64, n int) ([]byte, error) {
	if _, ok := src.(Memory); ok || n <= indexChunkSize {
		return src.ReadAt(off, n)
	}
	var buf []byte
	for len(buf) < n {
		chunk, err := src.ReadAt(off+uint64(len(buf)), min(indexChunkSize, n-len(buf)))
		if err != nil {
			return nil, err
		}
		buf = append(buf, chunk...)
	}
	return buf, nil
}

func (t *Table) Version() Version { return t.version }

func (t *Table) ByteOrder() binary.ByteOrder { return t.order }

func (t *Table) Base() uint64 { return t.base }

// Address is the virtual address the table is mapped at, when known.
func (t *Table) Address() uint64 { return t.address }

func (t *Table) Quantum() uint32 { return t.quantum }

func (t *Table) PtrSize() uint32 { return t.ptrSize }

// FileCount is the number of file table entries declared by the header.
func (t *Table) FileCount() uint32 { return t.fileNum }

// Len is the number of functions.
func (t *Table) Len() int { return int(t.funcNum) }

// rawPC is the unrelocated entry address of the i'th function. i may be
// Len(), which yields the end of the last function.
func (t *Table) rawPC(i int) uint64 {
	v, _ := binutil.Uint(t.ftab[2*i*t.fieldSize:], t.fieldSize, t.order)
	if t.layout.relativeEntries {
		v += t.textStart
	}
	return v
}

func (t *Table) funcOff(i int) uint64 {
	v, _ := binutil.Uint(t.ftab[(2*i+1)*t.fieldSize:], t.fieldSize, t.order)
	return v
}

// At returns the i'th function in address order. It panics if i is out of
// range, like a slice index.
func (t *Table) At(i int) Entry {
	if i < 0 || i >= t.Len() {
		panic(fmt.Sprintf("gosym: index %d out of range [0:%d]", i, t.Len()))
	}
	return Entry{
		t:    t,
		addr: t.rawPC(i) + t.base,
		off:  t.funcData + t.funcOff(i),
	}
}

// EndPC returns the address right after the last function.
func (t *Table) EndPC() uint64 {
	return t.rawPC(t.Len()) + t.base
}

func (t *Table) Begin() Iterator { return Iterator{t: t, i: 0} }

func (t *Table) End() Iterator { return Iterator{t: t, i: t.Len()} }

// All iterates over the functions in address order.
func (t *Table) All() iter.Seq2[int, Entry] {
	return func(yield func(int, Entry) bool) {
		for i := 0; i < t.Len(); i++ {
			if !yield(i, t.At(i)) {
				return
			}
		}
	}
}

// Find returns the function with the greatest entry address not above
// address, or End() if address precedes the first function. Functions sharing
// an entry address resolve to the first one in table order.
func (t *Table) Find(address uint64) Iterator {
	n := t.Len()
	if n == 0 || address < t.base {
		t.metrics.lookup("address", false)
		return t.End()
	}
	target := address - t.base
	i := sort.Search(n, func(i int) bool {
		return t.rawPC(i) > target
	}) - 1
	if i < 0 {
		t.metrics.lookup("address", false)
		return t.End()
	}
	for pc := t.rawPC(i); i > 0 && t.rawPC(i-1) == pc; {
		i--
	}
	t.metrics.lookup("address", true)
	return Iterator{t: t, i: i}
}

// FindName returns the first function in table order named name, or End().
// It scans the whole table.
func (t *Table) FindName(name string) Iterator {
	for i := 0; i < t.Len(); i++ {
		if t.At(i).Symbol().Name() == name {
			t.metrics.lookup("name", true)
			return Iterator{t: t, i: i}
		}
	}
	t.metrics.lookup("name", false)
	return t.End()
}

func (t *Table) readFailed(region string, off uint64, err error) {
	t.metrics.readError(region)
	level.Debug(t.logger).Log("msg", "pclntab read failed", "region", region, "offset", off, "err", err)
}
