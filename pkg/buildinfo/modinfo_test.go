package buildinfo

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var pad = strings.Repeat("\x00", sentinelSize)

func wrap(text string) string {
	return pad + text + pad
}

func TestParseModuleInfo(t *testing.T) {
	for _, tc := range []struct {
		name string
		text string
		want *ModuleInfo
	}{
		{
			name: "replaced dependency",
			text: "path\tm\nmod\tm\tv1.0.0\th1:abc\ndep\tfoo\tv0.1.0\th1:def\n=>\tfoo\tv0.1.1\th1:ghi\n",
			want: &ModuleInfo{
				Path: "m",
				Main: Module{Path: "m", Version: "v1.0.0", Sum: "h1:abc"},
				Deps: []*Module{{
					Path: "foo", Version: "v0.1.0", Sum: "h1:def",
					Replace: &Module{Path: "foo", Version: "v0.1.1", Sum: "h1:ghi"},
				}},
			},
		},
		{
			name: "bad records are skipped",
			text: "path\tm\textra\nmod\tm\tv1.0.0\nmod\tm\t(devel)\t\ndep\ta\tv1.0.0\th1:a\ndep\tb\tv1.0.0\n" +
				"dep\tc\tv2.0.0\th1:c\n\ngarbage\nmodule\tx\ty\tz\n",
			want: &ModuleInfo{
				Main: Module{Path: "m", Version: "(devel)"},
				Deps: []*Module{
					{Path: "a", Version: "v1.0.0", Sum: "h1:a"},
					{Path: "c", Version: "v2.0.0", Sum: "h1:c"},
				},
			},
		},
		{
			name: "orphan replacement",
			text: "=>\tfoo\tv0.1.1\th1:ghi\ndep\tfoo\tv0.1.0\th1:def\n",
			want: &ModuleInfo{
				Deps: []*Module{{Path: "foo", Version: "v0.1.0", Sum: "h1:def"}},
			},
		},
		{
			// The go command omits the sum of replaced dependencies.
			name: "replacement after a skipped dependency",
			text: "dep\ta\tv1\th1:a\ndep\tb\tv1\n=>\t../b\t(devel)\t\n",
			want: &ModuleInfo{
				Deps: []*Module{{Path: "a", Version: "v1", Sum: "h1:a"}},
			},
		},
		{
			name: "replacement applies to the latest dependency",
			text: "dep\ta\tv1\th1:a\ndep\tb\tv1\th1:b\n=>\t../b\t(devel)\t\n",
			want: &ModuleInfo{
				Deps: []*Module{
					{Path: "a", Version: "v1", Sum: "h1:a"},
					{Path: "b", Version: "v1", Sum: "h1:b", Replace: &Module{Path: "../b", Version: "(devel)"}},
				},
			},
		},
		{
			name: "replacement after other records",
			text: "dep\ta\tv1\th1:a\nbuild\tGOOS=linux\n\n=>\t../a\t(devel)\t\n",
			want: &ModuleInfo{
				Deps: []*Module{
					{Path: "a", Version: "v1", Sum: "h1:a", Replace: &Module{Path: "../a", Version: "(devel)"}},
				},
				Settings: []Setting{{Key: "GOOS", Value: "linux"}},
			},
		},
		{
			name: "skipped dependency after a replaced one",
			text: "dep\ta\tv1\th1:a\n=>\t../a\t(devel)\t\ndep\tb\tv1\n=>\t../b\t(devel)\t\n",
			want: &ModuleInfo{
				Deps: []*Module{
					{Path: "a", Version: "v1", Sum: "h1:a", Replace: &Module{Path: "../a", Version: "(devel)"}},
				},
			},
		},
		{
			name: "build settings",
			text: "path\tcmd/app\nbuild\t-compiler=gc\nbuild\t-ldflags=\"-X main.v=1 -s\"\n" +
				"build\t\"odd=key\"=x\nbuild\tCGO_ENABLED=0\nbuild\t=nokey\nbuild\tnovalue\n",
			want: &ModuleInfo{
				Path: "cmd/app",
				Settings: []Setting{
					{Key: "-compiler", Value: "gc"},
					{Key: "-ldflags", Value: "-X main.v=1 -s"},
					{Key: "odd=key", Value: "x"},
					{Key: "CGO_ENABLED", Value: "0"},
				},
			},
		},
		{
			name: "empty",
			text: "",
			want: &ModuleInfo{},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseModuleInfo(wrap(tc.text))
			require.True(t, ok)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("module info mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseModuleInfoShort(t *testing.T) {
	for _, n := range []int{0, 1, 16, 31} {
		_, ok := ParseModuleInfo(strings.Repeat("x", n))
		require.False(t, ok, n)
	}
	_, ok := ParseModuleInfo(strings.Repeat("x", 32))
	require.True(t, ok)
}
