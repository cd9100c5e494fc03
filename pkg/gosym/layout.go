package gosym

// funcField names the 4-byte fields of a function metadata record that follow
// its entry field. Their position differs between versions.
type funcField int

const (
	fieldNameOff funcField = iota
	fieldArgs
	fieldDeferReturn
	fieldPCSP
	fieldPCFile
	fieldPCLn
	fieldNPCData
	fieldCUOffset

	numFuncFields
)

const noWord = -1

// layout describes where a version keeps its header words, whether the
// function index and records store absolute pointers or offsets from
// textStart, and where each record field lives.
type layout struct {
	// Number of pointer sized words after the 8 byte header prefix.
	headerWords int

	nfunc, nfiles, textStart int
	funcName, cuTab, fileTab int
	pcTab, pcln              int

	// Index array fields and record entries are uint32 offsets from textStart.
	relativeEntries bool

	// 1-based position of each field after the entry field, 0 if absent.
	fields [numFuncFields]int
}

var (
	layout12 = layout{
		headerWords: 1,
		nfunc:       0,
		nfiles:      noWord,
		textStart:   noWord,
		funcName:    noWord,
		cuTab:       noWord,
		fileTab:     noWord,
		pcTab:       noWord,
		pcln:        noWord,
		fields: [numFuncFields]int{
			fieldNameOff:     1,
			fieldArgs:        2,
			fieldDeferReturn: 3,
			fieldPCSP:        4,
			fieldPCFile:      5,
			fieldPCLn:        6,
			fieldNPCData:     7,
		},
	}
	layout116 = layout{
		headerWords: 7,
		nfunc:       0,
		nfiles:      1,
		textStart:   noWord,
		funcName:    2,
		cuTab:       3,
		fileTab:     4,
		pcTab:       5,
		pcln:        6,
		fields: [numFuncFields]int{
			fieldNameOff:     1,
			fieldArgs:        2,
			fieldDeferReturn: 3,
			fieldPCSP:        4,
			fieldPCFile:      5,
			fieldPCLn:        6,
			fieldNPCData:     7,
			fieldCUOffset:    8,
		},
	}
	layout118 = layout{
		headerWords:     8,
		nfunc:           0,
		nfiles:          1,
		textStart:       2,
		funcName:        3,
		cuTab:           4,
		fileTab:         5,
		pcTab:           6,
		pcln:            7,
		relativeEntries: true,
		fields:          layout116.fields,
	}
)

func layoutFor(v Version) *layout {
	switch v {
	case Ver12:
		return &layout12
	case Ver116:
		return &layout116
	case Ver118, Ver120:
		return &layout118
	}
	return nil
}

func (l *layout) hasCUTab() bool {
	return l.cuTab != noWord
}

// entrySize is the size of the entry field that starts every record.
func (l *layout) entrySize(ptrSize int) int {
	if l.relativeEntries {
		return 4
	}
	return ptrSize
}

// fieldOffsets resolves the byte offset of every field inside a record for
// the given pointer size. Absent fields get -1.
func (l *layout) fieldOffsets(ptrSize int) (offs [numFuncFields]int, recordSize int) {
	sz0 := l.entrySize(ptrSize)
	recordSize = sz0
	for f, n := range l.fields {
		if n == 0 {
			offs[f] = -1
			continue
		}
		offs[f] = sz0 + (n-1)*4
		recordSize = max(recordSize, offs[f]+4)
	}
	return offs, recordSize
}
