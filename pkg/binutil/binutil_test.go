package binutil

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUint(t *testing.T) {
	b := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	v, ok := Uint(b, 4, binary.LittleEndian)
	require.True(t, ok)
	assert.Equal(t, uint64(0x04030201), v)

	v, ok = Uint(b, 4, binary.BigEndian)
	require.True(t, ok)
	assert.Equal(t, uint64(0x01020304), v)

	v, ok = Uint(b, 8, binary.LittleEndian)
	require.True(t, ok)
	assert.Equal(t, uint64(0x0807060504030201), v)

	_, ok = Uint(b[:7], 8, binary.LittleEndian)
	assert.False(t, ok)
	_, ok = Uint(b[:3], 4, binary.LittleEndian)
	assert.False(t, ok)
	_, ok = Uint(b, 2, binary.LittleEndian)
	assert.False(t, ok)
}

func TestUvarint(t *testing.T) {
	for _, v := range []uint64{0, 1, 127, 128, 300, 1 << 32, math.MaxUint64} {
		buf := binary.AppendUvarint(nil, v)
		got, n := Uvarint(buf)
		require.Equal(t, len(buf), n, "value %d", v)
		require.Equal(t, v, got)
	}

	_, n := Uvarint([]byte{0x80, 0x80})
	assert.Equal(t, 0, n, "truncated")
	_, n = Uvarint(nil)
	assert.Equal(t, 0, n, "empty")
	_, n = Uvarint([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01})
	assert.LessOrEqual(t, n, 0, "overflow")
}

func TestVarint(t *testing.T) {
	for _, v := range []int64{0, -1, 1, -2, 2, 5, -300, math.MinInt64, math.MaxInt64} {
		buf := binary.AppendVarint(nil, v)
		got, n := Varint(buf)
		require.Equal(t, len(buf), n, "value %d", v)
		require.Equal(t, v, got)
	}
	assert.Equal(t, int64(-1), Zigzag(1))
	assert.Equal(t, int64(1), Zigzag(2))
	assert.Equal(t, int64(-3), Zigzag(5))
}

func TestCString(t *testing.T) {
	s, ok := CString([]byte("main.main\x00runtime.goexit\x00"))
	require.True(t, ok)
	assert.Equal(t, "main.main", string(s))

	_, ok = CString([]byte("unterminated"))
	assert.False(t, ok)

	s, ok = CString([]byte{0})
	require.True(t, ok)
	assert.Empty(t, s)
}
