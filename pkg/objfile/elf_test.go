package objfile

import (
	"bytes"
	"debug/elf"
	"os"
	"runtime"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func openSelf(t *testing.T) *ELF {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skip("test binary is not an ELF image")
	}
	exe, err := os.Executable()
	require.NoError(t, err)
	f, err := OpenELF(exe)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestELFSections(t *testing.T) {
	f := openSelf(t)

	data, err := f.Section(".go.buildinfo")
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("\xff Go buildinf:")))

	_, err = f.Section(".no.such.section")
	require.ErrorIs(t, err, ErrNoSection)
}

func TestELFReadVirtualMemory(t *testing.T) {
	f := openSelf(t)

	s := f.SectionHeader(".go.buildinfo")
	require.NotNil(t, s)
	want, err := f.SectionData(s)
	require.NoError(t, err)

	got, err := f.ReadVirtualMemory(s.Addr, 32)
	require.NoError(t, err)
	require.Equal(t, want[:32], got)

	_, err = f.ReadVirtualMemory(0, 8)
	require.True(t, errors.Is(err, ErrUnmapped))

	_, err = f.ReadVirtualMemory(^uint64(0)-1, 8)
	require.True(t, errors.Is(err, ErrUnmapped))
}

func TestELFBuildID(t *testing.T) {
	f := openSelf(t)

	id, err := f.BuildID()
	if err != nil {
		t.Skipf("binary has no usable build id: %v", err)
	}
	require.False(t, id.Empty())
	require.Contains(t, []string{BuildIDTypeGNU, BuildIDTypeGo}, id.Typ)
	require.Equal(t, id.Typ+":"+id.ID, id.String())
}

func TestELFGoBuildID(t *testing.T) {
	f := openSelf(t)
	if f.SectionHeader(goBuildIDSection) == nil {
		t.Skip("no Go build id note")
	}

	id, err := f.GoBuildID()
	require.NoError(t, err)
	require.Equal(t, BuildIDTypeGo, id.Typ)
	require.GreaterOrEqual(t, strings.Count(id.ID, "/"), 2)
	require.NotContains(t, id.ID, "\x00")
}

func TestNewELFRejectsGarbage(t *testing.T) {
	_, err := NewELF(bytes.NewReader([]byte("definitely not an elf image")))
	require.Error(t, err)

	var fmtErr *elf.FormatError
	require.ErrorAs(t, err, &fmtErr)
}
