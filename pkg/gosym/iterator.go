package gosym

// Entry is a cheap reference to one function of a table: its relocated entry
// address and the location of its metadata record.
type Entry struct {
	t    *Table
	addr uint64
	off  uint64
}

// Addr is the relocated entry address, read from the function index without
// touching the metadata record.
func (e Entry) Addr() uint64 {
	return e.addr
}

// Symbol reads the function's metadata record.
func (e Entry) Symbol() Symbol {
	if e.t == nil {
		return Symbol{}
	}
	return newSymbol(e.t, e.off)
}

// Iterator is a random access position in a table's function index. Positions
// outside [0, Len()) are allowed and compare normally but do not dereference.
type Iterator struct {
	t *Table
	i int
}

// Valid reports whether the iterator points at a function.
func (it Iterator) Valid() bool {
	return it.t != nil && it.i >= 0 && it.i < it.t.Len()
}

func (it Iterator) Index() int {
	return it.i
}

// Entry dereferences the iterator. It returns the zero Entry when the
// iterator is not Valid.
func (it Iterator) Entry() Entry {
	if !it.Valid() {
		return Entry{}
	}
	return it.t.At(it.i)
}

func (it *Iterator) Next() {
	it.i++
}

func (it *Iterator) Prev() {
	it.i--
}

// Add returns the iterator moved by k functions.
func (it Iterator) Add(k int) Iterator {
	return Iterator{t: it.t, i: it.i + k}
}

func (it Iterator) Sub(k int) Iterator {
	return Iterator{t: it.t, i: it.i - k}
}

// Distance returns the number of functions from other to it.
func (it Iterator) Distance(other Iterator) int {
	return it.i - other.i
}

func (it Iterator) Equal(other Iterator) bool {
	return it.t == other.t && it.i == other.i
}

func (it Iterator) Less(other Iterator) bool {
	return it.i < other.i
}
