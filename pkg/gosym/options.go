package gosym

import (
	"errors"

	"github.com/go-kit/log"
)

var (
	ErrUnsupportedVersion     = errors.New("unsupported pclntab version")
	ErrUnsupportedPointerSize = errors.New("unsupported pointer size")
	ErrMalformedHeader        = errors.New("malformed pclntab header")
	ErrOutOfBounds            = errors.New("out of bounds")
)

const (
	defaultNameCacheSize  = 4096
	defaultReadBufferSize = 4 * 0x1000
)

// Option configures a Table.
type Option func(*options)

type options struct {
	logger         log.Logger
	metrics        *Metrics
	nameCacheSize  int
	readBufferSize int
}

func defaultOptions() options {
	return options{
		logger:         log.NewNopLogger(),
		nameCacheSize:  defaultNameCacheSize,
		readBufferSize: defaultReadBufferSize,
	}
}

func WithLogger(l log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics reports lookups and decode failures to m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithNameCacheSize bounds the number of function and file names a
// stream-backed table memoizes. Zero disables the cache.
func WithNameCacheSize(n int) Option {
	return func(o *options) {
		o.nameCacheSize = n
	}
}

// WithReadBufferSize sets the read-ahead buffer of a stream-backed table.
// Zero reads straight from the underlying reader.
func WithReadBufferSize(n int) Option {
	return func(o *options) {
		o.readBufferSize = n
	}
}
