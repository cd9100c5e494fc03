package gosym

import (
	"encoding/binary"
	"fmt"
)

// Version is the pclntab format version. Versions are ordered, Ver12 being the
// oldest layout.
type Version int

const (
	Ver12 Version = iota + 1
	Ver116
	Ver118
	Ver120
)

const (
	go12magic  = 0xfffffffb
	go116magic = 0xfffffffa
	go118magic = 0xfffffff0
	go120magic = 0xfffffff1
)

func (v Version) String() string {
	switch v {
	case Ver12:
		return "1.2"
	case Ver116:
		return "1.16"
	case Ver118:
		return "1.18"
	case Ver120:
		return "1.20"
	}
	return fmt.Sprintf("unknown(%d)", int(v))
}

// DetectVersion identifies the format version and byte order from the first
// bytes of a pclntab. Table constructors never do this themselves.
func DetectVersion(header []byte) (Version, binary.ByteOrder, error) {
	if len(header) < 8 {
		return 0, nil, fmt.Errorf("%w: %d header bytes", ErrMalformedHeader, len(header))
	}
	if header[4] != 0 || header[5] != 0 {
		return 0, nil, fmt.Errorf("%w: non zero padding", ErrMalformedHeader)
	}
	leMagic := binary.LittleEndian.Uint32(header)
	beMagic := binary.BigEndian.Uint32(header)
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		magic := leMagic
		if order == binary.BigEndian {
			magic = beMagic
		}
		switch magic {
		case go12magic:
			return Ver12, order, nil
		case go116magic:
			return Ver116, order, nil
		case go118magic:
			return Ver118, order, nil
		case go120magic:
			return Ver120, order, nil
		}
	}
	return 0, nil, fmt.Errorf("%w: magic %#x", ErrUnsupportedVersion, leMagic)
}
