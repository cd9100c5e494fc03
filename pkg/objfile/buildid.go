package objfile

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/pkg/errors"
)

const (
	BuildIDTypeGNU = "gnu"
	BuildIDTypeGo  = "go"

	gnuBuildIDSection = ".note.gnu.build-id"
	goBuildIDSection  = ".note.go.buildid"
)

// BuildID identifies the toolchain output an image came from.
type BuildID struct {
	ID  string
	Typ string
}

func (b BuildID) Empty() bool {
	return b.ID == "" || b.Typ == ""
}

func (b BuildID) String() string {
	if b.Empty() {
		return ""
	}
	return b.Typ + ":" + b.ID
}

var ErrNoBuildIDSection = errors.New("build ID section not found")

// BuildID prefers the GNU build id and falls back to the Go one.
func (f *ELF) BuildID() (BuildID, error) {
	for _, read := range []func() (BuildID, error){f.GNUBuildID, f.GoBuildID} {
		id, err := read()
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, ErrNoBuildIDSection) {
			return BuildID{}, err
		}
	}
	return BuildID{}, ErrNoBuildIDSection
}

// noteDesc returns the descriptor of the single note held by the named section
// after checking the owner name.
func (f *ELF) noteDesc(section, owner string) ([]byte, error) {
	s := f.SectionHeader(section)
	if s == nil {
		return nil, ErrNoBuildIDSection
	}
	data, err := f.SectionData(s)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", section)
	}
	// namesz, descsz, type, then the padded owner name.
	nameSize := (len(owner) + 1 + 3) &^ 3
	if len(data) < 12+nameSize {
		return nil, fmt.Errorf("%s is too small", section)
	}
	if !bytes.Equal([]byte(owner), data[12:12+len(owner)]) {
		return nil, fmt.Errorf("%s is not owned by %s", section, owner)
	}
	return data[12+nameSize:], nil
}

func (f *ELF) GoBuildID() (BuildID, error) {
	desc, err := f.noteDesc(goBuildIDSection, "Go")
	if err != nil {
		return BuildID{}, err
	}
	desc = bytes.TrimRight(desc, "\x00")
	if len(desc) < 40 || bytes.Count(desc, []byte("/")) < 2 {
		return BuildID{}, fmt.Errorf("wrong %s in %s", goBuildIDSection, f.fpath)
	}
	return BuildID{ID: string(desc), Typ: BuildIDTypeGo}, nil
}

func (f *ELF) GNUBuildID() (BuildID, error) {
	desc, err := f.noteDesc(gnuBuildIDSection, "GNU")
	if err != nil {
		return BuildID{}, err
	}
	// 8 byte ids are xxhash, for example in Container-Optimized OS.
	if len(desc) != 20 && len(desc) != 8 {
		return BuildID{}, fmt.Errorf("%s has wrong size in %s", gnuBuildIDSection, f.fpath)
	}
	return BuildID{ID: hex.EncodeToString(desc), Typ: BuildIDTypeGNU}, nil
}
