package objfile

import (
	"debug/elf"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

// ELF keeps only the headers of an ELF image and reads section and segment
// contents on demand from the underlying reader.
type ELF struct {
	elf.FileHeader
	Sections []elf.SectionHeader
	Progs    []elf.ProgHeader

	fpath  string
	reader io.ReaderAt
	closer io.Closer
}

// OpenELF opens the file at path. The caller must Close the result.
func OpenELF(path string) (*ELF, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	res, err := NewELF(f)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "open elf %s", path)
	}
	res.fpath = path
	res.closer = f
	return res, nil
}

func NewELF(r io.ReaderAt) (*ELF, error) {
	elfFile, err := elf.NewFile(r)
	if err != nil {
		return nil, err
	}
	res := &ELF{
		FileHeader: elfFile.FileHeader,
		Progs:      make([]elf.ProgHeader, 0, len(elfFile.Progs)),
		Sections:   make([]elf.SectionHeader, 0, len(elfFile.Sections)),
		reader:     r,
	}
	for i := range elfFile.Progs {
		res.Progs = append(res.Progs, elfFile.Progs[i].ProgHeader)
	}
	for i := range elfFile.Sections {
		res.Sections = append(res.Sections, elfFile.Sections[i].SectionHeader)
	}
	return res, nil
}

func (f *ELF) Close() error {
	if f.closer == nil {
		return nil
	}
	err := f.closer.Close()
	f.closer = nil
	return err
}

func (f *ELF) FilePath() string {
	return f.fpath
}

// ReaderAt returns the reader the image was parsed from.
func (f *ELF) ReaderAt() io.ReaderAt {
	return f.reader
}

func (f *ELF) SectionHeader(name string) *elf.SectionHeader {
	for i := range f.Sections {
		s := &f.Sections[i]
		if s.Name == name {
			return s
		}
	}
	return nil
}

func (f *ELF) Section(name string) ([]byte, error) {
	s := f.SectionHeader(name)
	if s == nil {
		return nil, errors.Wrap(ErrNoSection, name)
	}
	return f.SectionData(s)
}

func (f *ELF) SectionData(s *elf.SectionHeader) ([]byte, error) {
	if s.Type == elf.SHT_NOBITS {
		return nil, fmt.Errorf("section %s has no data", s.Name)
	}
	if s.Flags&elf.SHF_COMPRESSED != 0 {
		return nil, fmt.Errorf("section %s is compressed", s.Name)
	}
	res := make([]byte, s.Size)
	if _, err := f.reader.ReadAt(res, int64(s.Offset)); err != nil {
		return nil, errors.Wrapf(err, "read section %s", s.Name)
	}
	return res, nil
}

// ReadVirtualMemory reads from the PT_LOAD segment covering [addr, addr+n).
// Bytes past the segment's file size read as zero.
func (f *ELF) ReadVirtualMemory(addr uint64, n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative read size %d", n)
	}
	end := addr + uint64(n)
	if end < addr {
		return nil, errors.Wrapf(ErrUnmapped, "%#x+%d", addr, n)
	}
	for i := range f.Progs {
		p := &f.Progs[i]
		if p.Type != elf.PT_LOAD || addr < p.Vaddr || end > p.Vaddr+p.Memsz {
			continue
		}
		res := make([]byte, n)
		off := addr - p.Vaddr
		if off >= p.Filesz {
			return res, nil
		}
		fileN := min(uint64(n), p.Filesz-off)
		if _, err := f.reader.ReadAt(res[:fileN], int64(p.Off+off)); err != nil {
			return nil, errors.Wrapf(err, "read %#x+%d", addr, n)
		}
		return res, nil
	}
	return nil, errors.Wrapf(ErrUnmapped, "%#x+%d", addr, n)
}
