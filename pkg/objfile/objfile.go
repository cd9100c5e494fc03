// Package objfile exposes the pieces of an executable image the decoders need:
// named section contents and reads of virtual memory by address.
package objfile

import "errors"

var (
	ErrNoSection = errors.New("section not found")
	ErrUnmapped  = errors.New("address not mapped")
)

type SectionReader interface {
	// Section returns the contents of the named section.
	Section(name string) ([]byte, error)
}

type MemoryReader interface {
	// ReadVirtualMemory returns n bytes starting at the virtual address addr.
	// It fails with ErrUnmapped if any part of the range is outside the image.
	ReadVirtualMemory(addr uint64, n int) ([]byte, error)
}

type Reader interface {
	SectionReader
	MemoryReader
}
