// Package gosymtest builds synthetic pclntab images for tests.
package gosymtest

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/exp/slices"
)

// Format selects the header and record layout of the image.
type Format int

const (
	Go12 Format = iota
	Go116
	Go118
	Go120
)

var magics = map[Format]uint32{
	Go12:  0xfffffffb,
	Go116: 0xfffffffa,
	Go118: 0xfffffff0,
	Go120: 0xfffffff1,
}

// PCValue is one step of a pc-value table.
type PCValue struct {
	PCDelta    uint64
	ValueDelta int64
}

type Func struct {
	Name  string
	Entry uint64
	Args  int32
	// Files lists indexes into Builder.Files; it is the function's
	// compilation unit. A negative index marks a missing file.
	Files []int
	SP    []PCValue
	// File values index Files.
	File []PCValue
	Line []PCValue
}

type Builder struct {
	Format    Format
	Order     binary.ByteOrder
	PtrSize   int
	Quantum   int
	TextStart uint64
	Files     []string
	Funcs     []Func
	// End is the end pc of the last function. Zero means last entry + 0x100.
	End uint64
}

// EncodePCValues encodes a pc-value table, terminator included.
func EncodePCValues(steps []PCValue) []byte {
	var b []byte
	for _, s := range steps {
		b = binary.AppendUvarint(b, s.PCDelta)
		b = binary.AppendVarint(b, s.ValueDelta)
	}
	return append(b, 0)
}

type image struct {
	order   binary.ByteOrder
	ptrSize int
	buf     []byte
}

func (w *image) u32(v uint32) {
	var tmp [4]byte
	w.order.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *image) ptr(v uint64) {
	if w.ptrSize == 4 {
		w.u32(uint32(v))
		return
	}
	var tmp [8]byte
	w.order.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *image) putU32(at int, v uint32) {
	w.order.PutUint32(w.buf[at:], v)
}

func (w *image) putPtr(at int, v uint64) {
	if w.ptrSize == 4 {
		w.order.PutUint32(w.buf[at:], uint32(v))
		return
	}
	w.order.PutUint64(w.buf[at:], v)
}

func (w *image) align() {
	for len(w.buf)%w.ptrSize != 0 {
		w.buf = append(w.buf, 0)
	}
}

// Build returns the encoded image. Functions are sorted by entry first.
func (b *Builder) Build() ([]byte, error) {
	if b.PtrSize != 4 && b.PtrSize != 8 {
		return nil, fmt.Errorf("pointer size %d", b.PtrSize)
	}
	if b.Quantum <= 0 {
		return nil, fmt.Errorf("quantum %d", b.Quantum)
	}
	funcs := slices.Clone(b.Funcs)
	slices.SortStableFunc(funcs, func(x, y Func) int {
		switch {
		case x.Entry < y.Entry:
			return -1
		case x.Entry > y.Entry:
			return 1
		}
		return 0
	})
	end := b.End
	if end == 0 && len(funcs) > 0 {
		end = funcs[len(funcs)-1].Entry + 0x100
	}
	if b.Format == Go12 {
		return b.build12(funcs, end), nil
	}
	return b.build116(funcs, end), nil
}

func (b *Builder) header(w *image) {
	w.u32(magics[b.Format])
	w.buf = append(w.buf, 0, 0, byte(b.Quantum), byte(b.PtrSize))
}

// fileValues12 rewrites the File table of f so that it yields global file table
// slots (1-based) instead of indexes into f.Files.
func fileValues12(f Func) []PCValue {
	res := make([]PCValue, len(f.File))
	prev, cur := int64(-1), int64(-1)
	for i, s := range f.File {
		cur += s.ValueDelta
		mapped := cur
		if cur >= 0 && cur < int64(len(f.Files)) && f.Files[cur] >= 0 {
			mapped = int64(f.Files[cur]) + 1
		}
		res[i] = PCValue{PCDelta: s.PCDelta, ValueDelta: mapped - prev}
		prev = mapped
	}
	return res
}

func (b *Builder) build12(funcs []Func, end uint64) []byte {
	w := &image{order: b.Order, ptrSize: b.PtrSize}
	b.header(w)
	w.ptr(uint64(len(funcs)))

	ftab := len(w.buf)
	for range funcs {
		w.ptr(0)
		w.ptr(0)
	}
	w.ptr(end)
	fileTabAt := len(w.buf)
	w.u32(0)
	w.align()

	// Names, file names and pc tables are addressed from the start of the
	// image.
	nameOffs := make([]uint32, len(funcs))
	for i, f := range funcs {
		nameOffs[i] = uint32(len(w.buf))
		w.buf = append(append(w.buf, f.Name...), 0)
	}
	fileOffs := make([]uint32, len(b.Files))
	for i, name := range b.Files {
		fileOffs[i] = uint32(len(w.buf))
		w.buf = append(append(w.buf, name...), 0)
	}
	type tables struct{ sp, file, line uint32 }
	pcs := make([]tables, len(funcs))
	for i, f := range funcs {
		pcs[i].sp = uint32(len(w.buf))
		w.buf = append(w.buf, EncodePCValues(f.SP)...)
		pcs[i].file = uint32(len(w.buf))
		w.buf = append(w.buf, EncodePCValues(fileValues12(f))...)
		pcs[i].line = uint32(len(w.buf))
		w.buf = append(w.buf, EncodePCValues(f.Line)...)
	}
	w.align()

	for i, f := range funcs {
		w.putPtr(ftab+2*i*b.PtrSize, f.Entry)
		w.putPtr(ftab+(2*i+1)*b.PtrSize, uint64(len(w.buf)))
		w.ptr(f.Entry)
		w.u32(nameOffs[i])
		w.u32(uint32(f.Args))
		w.u32(0) // deferreturn
		w.u32(pcs[i].sp)
		w.u32(pcs[i].file)
		w.u32(pcs[i].line)
		w.u32(0) // npcdata
		w.u32(0) // nfuncdata
		w.align()
	}

	w.align()
	w.putU32(fileTabAt, uint32(len(w.buf)))
	w.u32(uint32(len(b.Files) + 1))
	for _, off := range fileOffs {
		w.u32(off)
	}
	return w.buf
}

func (b *Builder) build116(funcs []Func, end uint64) []byte {
	w := &image{order: b.Order, ptrSize: b.PtrSize}
	relative := b.Format >= Go118
	words := 7
	if relative {
		words = 8
	}
	b.header(w)
	hdr := len(w.buf)
	for i := 0; i < words; i++ {
		w.ptr(0)
	}
	word := func(i int, v uint64) { w.putPtr(hdr+i*b.PtrSize, v) }
	word(0, uint64(len(funcs)))
	word(1, uint64(len(b.Files)))
	next := 2
	if relative {
		word(2, b.TextStart)
		next = 3
	}

	// funcnametab
	funcName := len(w.buf)
	word(next, uint64(funcName))
	nameOffs := make([]uint32, len(funcs))
	for i, f := range funcs {
		nameOffs[i] = uint32(len(w.buf) - funcName)
		w.buf = append(append(w.buf, f.Name...), 0)
	}

	// filetab, laid out before cutab so offsets are known
	fileNames := make([]byte, 0)
	fileOffs := make([]uint32, len(b.Files))
	for i, name := range b.Files {
		fileOffs[i] = uint32(len(fileNames))
		fileNames = append(append(fileNames, name...), 0)
	}

	// cutab: one compilation unit per function
	w.align()
	cuTab := len(w.buf)
	word(next+1, uint64(cuTab))
	cuOffs := make([]uint32, len(funcs))
	n := uint32(0)
	for i, f := range funcs {
		cuOffs[i] = n
		for _, fi := range f.Files {
			if fi < 0 {
				w.u32(^uint32(0))
			} else {
				w.u32(fileOffs[fi])
			}
			n++
		}
	}

	fileTab := len(w.buf)
	word(next+2, uint64(fileTab))
	w.buf = append(w.buf, fileNames...)

	pcTab := len(w.buf)
	word(next+3, uint64(pcTab))
	w.buf = append(w.buf, 0)
	type tables struct{ sp, file, line uint32 }
	pcs := make([]tables, len(funcs))
	for i, f := range funcs {
		pcs[i].sp = uint32(len(w.buf) - pcTab)
		w.buf = append(w.buf, EncodePCValues(f.SP)...)
		pcs[i].file = uint32(len(w.buf) - pcTab)
		w.buf = append(w.buf, EncodePCValues(f.File)...)
		pcs[i].line = uint32(len(w.buf) - pcTab)
		w.buf = append(w.buf, EncodePCValues(f.Line)...)
	}

	w.align()
	pcln := len(w.buf)
	word(next+4, uint64(pcln))
	fieldSize := b.PtrSize
	if relative {
		fieldSize = 4
	}
	field := func(v uint64) {
		if fieldSize == 4 {
			w.u32(uint32(v))
			return
		}
		w.ptr(v)
	}
	putField := func(at int, v uint64) {
		if fieldSize == 4 {
			w.putU32(at, uint32(v))
			return
		}
		w.putPtr(at, v)
	}
	entry := func(pc uint64) uint64 {
		if relative {
			return pc - b.TextStart
		}
		return pc
	}
	ftab := len(w.buf)
	for range funcs {
		field(0)
		field(0)
	}
	field(entry(end))
	w.align()

	for i, f := range funcs {
		putField(ftab+2*i*fieldSize, entry(f.Entry))
		putField(ftab+(2*i+1)*fieldSize, uint64(len(w.buf)-pcln))
		field(entry(f.Entry))
		w.u32(nameOffs[i])
		w.u32(uint32(f.Args))
		w.u32(0) // deferreturn
		w.u32(pcs[i].sp)
		w.u32(pcs[i].file)
		w.u32(pcs[i].line)
		w.u32(0) // npcdata
		w.u32(cuOffs[i])
		w.u32(0) // funcID, flag, pad, nfuncdata
		w.align()
	}
	return w.buf
}
