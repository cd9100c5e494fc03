// Package buildinfo decodes the .go.buildinfo section of Go binaries: the
// toolchain version and the module graph recorded by the go command.
package buildinfo

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/grafana/gosymtab/pkg/binutil"
	"github.com/grafana/gosymtab/pkg/objfile"
)

// Magic starts every build info section.
const Magic = "\xff Go buildinf:"

const (
	SectionName = ".go.buildinfo"

	ptrSizeOffset     = len(Magic)
	flagsOffset       = ptrSizeOffset + 1
	pointersOffset    = 16
	pointerFreeOffset = 32

	flagBigEndian   = 0x1
	flagPointerFree = 0x2

	// maxStringSize bounds strings read through pointers.
	maxStringSize = 1 << 24
)

var (
	ErrShortSection           = errors.New("build info section too short")
	ErrUnsupportedPointerSize = errors.New("unsupported pointer size")
)

type Option func(*options)

type options struct {
	logger  log.Logger
	metrics *Metrics
}

func WithLogger(l log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// BuildInfo decodes a build info section. Older toolchains store pointers to
// the version and module info strings, which are resolved through the memory
// reader; Go 1.18 and later store both strings inline.
type BuildInfo struct {
	r           objfile.MemoryReader
	section     []byte
	ptrSize     int
	order       binary.ByteOrder
	pointerFree bool

	logger  log.Logger
	metrics *Metrics
}

// New parses the section header. The caller is expected to have checked the
// Magic prefix. r may be nil for pointer free sections.
func New(r objfile.MemoryReader, section []byte, opts ...Option) (*BuildInfo, error) {
	o := options{logger: log.NewNopLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	if len(section) < pointerFreeOffset {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortSection, len(section))
	}
	flags := section[flagsOffset]
	b := &BuildInfo{
		r:           r,
		section:     section,
		ptrSize:     int(section[ptrSizeOffset]),
		order:       binary.ByteOrder(binary.LittleEndian),
		pointerFree: flags&flagPointerFree != 0,
		logger:      o.logger,
		metrics:     o.metrics,
	}
	if flags&flagBigEndian != 0 {
		b.order = binary.BigEndian
	}
	if !b.pointerFree && b.ptrSize != 4 && b.ptrSize != 8 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedPointerSize, b.ptrSize)
	}
	return b, nil
}

func (b *BuildInfo) PtrSize() int { return b.ptrSize }

func (b *BuildInfo) ByteOrder() binary.ByteOrder { return b.order }

// PointerFree reports whether the strings are stored inline.
func (b *BuildInfo) PointerFree() bool { return b.pointerFree }

// GoVersion returns the raw toolchain version string, such as "go1.21.3".
func (b *BuildInfo) GoVersion() (string, bool) {
	if b.pointerFree {
		s, _, ok := b.inlineString(pointerFreeOffset)
		return s, ok
	}
	return b.readString(pointersOffset)
}

// Version returns the parsed toolchain version.
func (b *BuildInfo) Version() (Version, bool) {
	s, ok := b.GoVersion()
	if !ok {
		return Version{}, false
	}
	return ParseVersion(s)
}

// ModuleInfo returns the decoded module graph. Binaries built outside module
// mode carry no module info and report false.
func (b *BuildInfo) ModuleInfo() (*ModuleInfo, bool) {
	var (
		blob string
		ok   bool
	)
	if b.pointerFree {
		var next int
		if _, next, ok = b.inlineString(pointerFreeOffset); ok {
			blob, _, ok = b.inlineString(next)
		}
	} else {
		blob, ok = b.readString(pointersOffset + b.ptrSize)
	}
	if !ok {
		b.metrics.moduleInfoFailed("unreadable")
		return nil, false
	}
	info, ok := ParseModuleInfo(blob)
	if !ok {
		level.Error(b.logger).Log("msg", "invalid module info", "size", len(blob))
		b.metrics.moduleInfoFailed("short")
		return nil, false
	}
	return info, true
}

// inlineString decodes the uvarint length prefixed string at off and returns
// the offset right after it.
func (b *BuildInfo) inlineString(off int) (string, int, bool) {
	if off >= len(b.section) {
		return "", 0, false
	}
	n, k := binutil.Uvarint(b.section[off:])
	if k <= 0 || n > uint64(len(b.section)-off-k) {
		return "", 0, false
	}
	start := off + k
	end := start + int(n)
	return string(b.section[start:end]), end, true
}

// readString follows the pointer at off to a string header and then to the
// string bytes.
func (b *BuildInfo) readString(off int) (string, bool) {
	if b.r == nil {
		return "", false
	}
	addr, ok := binutil.Uint(b.section[off:], b.ptrSize, b.order)
	if !ok {
		return "", false
	}
	hdr, err := b.r.ReadVirtualMemory(addr, 2*b.ptrSize)
	if err != nil {
		level.Debug(b.logger).Log("msg", "failed to read string header", "addr", fmt.Sprintf("%x", addr), "err", err)
		return "", false
	}
	data, _ := binutil.Uint(hdr, b.ptrSize, b.order)
	n, ok := binutil.Uint(hdr[b.ptrSize:], b.ptrSize, b.order)
	if !ok || n > maxStringSize {
		return "", false
	}
	if n == 0 {
		return "", true
	}
	buf, err := b.r.ReadVirtualMemory(data, int(n))
	if err != nil {
		level.Debug(b.logger).Log("msg", "failed to read string", "addr", fmt.Sprintf("%x", data), "err", err)
		return "", false
	}
	return string(buf), true
}
