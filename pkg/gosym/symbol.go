package gosym

import (
	"math"

	"github.com/grafana/gosymtab/pkg/binutil"
)

// Functions an unwinder must not step past.
var stackTopFuncs = map[string]struct{}{
	"runtime.goexit":                {},
	"runtime.mstart":                {},
	"runtime.mcall":                 {},
	"runtime.morestack":             {},
	"runtime.rt0_go":                {},
	"runtime.externalthreadhandler": {},
}

// Symbol is a view over one function metadata record. The zero Symbol is
// valid and reports nothing.
type Symbol struct {
	t   *Table
	rec []byte
}

func newSymbol(t *Table, off uint64) Symbol {
	rec, err := t.src.ReadAt(off, t.recordSize)
	if err != nil {
		t.readFailed("func", off, err)
		return Symbol{t: t}
	}
	return Symbol{t: t, rec: rec}
}

// Table returns the table the symbol belongs to.
func (s Symbol) Table() *Table {
	return s.t
}

// Valid reports whether the record could be read.
func (s Symbol) Valid() bool {
	return s.t != nil && s.rec != nil
}

func (s Symbol) field(f funcField) (uint32, bool) {
	if !s.Valid() {
		return 0, false
	}
	off := s.t.fieldOff[f]
	if off < 0 {
		return 0, false
	}
	return binutil.Uint32(s.rec[off:], s.t.order)
}

// Entry is the relocated address of the first instruction.
func (s Symbol) Entry() uint64 {
	if !s.Valid() {
		return 0
	}
	if s.t.layout.relativeEntries {
		v, _ := binutil.Uint32(s.rec, s.t.order)
		return uint64(v) + s.t.textStart + s.t.base
	}
	v, _ := binutil.Uint(s.rec, int(s.t.ptrSize), s.t.order)
	return v + s.t.base
}

// Name returns the function name, or "" if it cannot be read. Tables over
// Memory return a view into the backing bytes; seek tables return a copy.
func (s Symbol) Name() string {
	nameOff, ok := s.field(fieldNameOff)
	if !ok {
		return ""
	}
	off := s.t.funcNameTab + uint64(nameOff)
	name, err := s.t.src.CString(off)
	if err != nil {
		s.t.readFailed("funcname", off, err)
		return ""
	}
	return name
}

// Args is the size of the function's arguments, or -1 if unknown.
func (s Symbol) Args() int32 {
	v, ok := s.field(fieldArgs)
	if !ok {
		return -1
	}
	return int32(v)
}

// FrameSize is the stack frame size at pc, or -1 if unknown.
func (s Symbol) FrameSize(pc uint64) int {
	off, ok := s.field(fieldPCSP)
	if !ok {
		return -1
	}
	return int(s.value(off, s.Entry(), pc))
}

// SourceLine is the source line at pc, or -1 if unknown.
func (s Symbol) SourceLine(pc uint64) int {
	off, ok := s.field(fieldPCLn)
	if !ok {
		return -1
	}
	return int(s.value(off, s.Entry(), pc))
}

// SourceFile is the source file at pc, or "" if unknown.
func (s Symbol) SourceFile(pc uint64) string {
	off, ok := s.field(fieldPCFile)
	if !ok {
		return ""
	}
	fno := s.value(off, s.Entry(), pc)
	t := s.t

	var nameOff uint64
	if !t.layout.hasCUTab() {
		// Slot 0 of the file table holds its length.
		if fno <= 0 || uint32(fno) >= t.fileNum {
			return ""
		}
		at := t.fileTab + 4*uint64(fno)
		b, err := t.src.ReadAt(at, 4)
		if err != nil {
			t.readFailed("filetab", at, err)
			return ""
		}
		nameOff = uint64(t.order.Uint32(b))
	} else {
		if fno < 0 {
			return ""
		}
		cuOff, ok := s.field(fieldCUOffset)
		if !ok {
			return ""
		}
		at := t.cuTab + 4*(uint64(cuOff)+uint64(fno))
		b, err := t.src.ReadAt(at, 4)
		if err != nil {
			t.readFailed("cutab", at, err)
			return ""
		}
		fileOff := t.order.Uint32(b)
		if fileOff == ^uint32(0) {
			return ""
		}
		nameOff = t.fileTab + uint64(fileOff)
	}

	name, err := t.src.CString(nameOff)
	if err != nil {
		t.readFailed("filename", nameOff, err)
		return ""
	}
	return name
}

// IsStackTop reports whether the function is the outermost frame of a stack.
func (s Symbol) IsStackTop() bool {
	_, ok := stackTopFuncs[s.Name()]
	return ok
}

// value decodes the pc-value table at off for a function starting at entry.
// The table is a sequence of (pc delta, value delta) pairs: an unsigned varint
// scaled by the pc quantum and a zigzag varint. A zero pc delta ends it. The
// value starts at -1; the result is the value of the last pair whose
// accumulated pc is not above target. Truncated tables yield -1.
func (s Symbol) value(off uint32, entry, target uint64) int32 {
	t := s.t
	c := cursor{src: t.src, off: t.pcTab + uint64(off)}
	val := int32(-1)
	pc := entry
	for {
		pcDelta, ok := c.uvarint()
		if !ok {
			t.metrics.malformedPCTable()
			return -1
		}
		if pcDelta == 0 {
			return val
		}
		valDelta, ok := c.varint()
		if !ok {
			t.metrics.malformedPCTable()
			return -1
		}
		if pcDelta > (math.MaxUint64-pc)/uint64(t.quantum) {
			return val
		}
		next := pc + pcDelta*uint64(t.quantum)
		if next > target {
			return val
		}
		pc = next
		val += int32(valDelta)
	}
}
