package buildinfo

import (
	"cmp"
	"fmt"
	"strconv"

	"github.com/grafana/regexp"
)

var versionRE = regexp.MustCompile(`^go(\d+)\.(\d+)`)

// Version is a Go toolchain release. Patch levels and pre-release suffixes are
// not kept, so go1.21.3 and go1.21rc2 are both go1.21.
type Version struct {
	Major int
	Minor int
}

// ParseVersion parses strings such as "go1.21.3" or "go1.22rc1".
func ParseVersion(s string) (Version, bool) {
	m := versionRE.FindStringSubmatch(s)
	if m == nil {
		return Version{}, false
	}
	major, err := strconv.Atoi(m[1])
	if err != nil {
		return Version{}, false
	}
	minor, err := strconv.Atoi(m[2])
	if err != nil {
		return Version{}, false
	}
	return Version{Major: major, Minor: minor}, true
}

// Compare returns -1, 0 or +1 depending on whether v is older than, the same
// as, or newer than o.
func (v Version) Compare(o Version) int {
	if c := cmp.Compare(v.Major, o.Major); c != 0 {
		return c
	}
	return cmp.Compare(v.Minor, o.Minor)
}

func (v Version) Less(o Version) bool {
	return v.Compare(o) < 0
}

func (v Version) String() string {
	return fmt.Sprintf("go%d.%d", v.Major, v.Minor)
}
