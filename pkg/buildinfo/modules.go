package buildinfo

import (
	"strings"

	"golang.org/x/mod/module"
)

const (
	modCacheDir = "/pkg/mod/"
	vendorDir   = "/vendor/"
)

// ModuleForFile returns the module that provides the source file path as
// recorded in the symbol table. It understands module cache paths
// (.../pkg/mod/github.com/!foo/bar@v1.2.3/x.go), -trimpath paths
// (github.com/foo/bar@v1.2.3/x.go), vendored paths, and trimmed main module
// paths. Dependencies are reported as recorded, not as replaced.
func (m *ModuleInfo) ModuleForFile(file string) (*Module, bool) {
	if m == nil {
		return nil, false
	}
	if path, version, ok := splitVersionedPath(file); ok {
		for _, d := range m.Deps {
			if d.Path == path && d.Version == version {
				return d, true
			}
			if r := d.Replace; r != nil && r.Path == path && r.Version == version {
				return d, true
			}
		}
		if m.Main.Path == path {
			return &m.Main, true
		}
		return nil, false
	}

	if i := strings.LastIndex(file, vendorDir); i >= 0 {
		file = file[i+len(vendorDir):]
	}
	var best *Module
	if hasPathPrefix(file, m.Main.Path) {
		best = &m.Main
	}
	for _, d := range m.Deps {
		if hasPathPrefix(file, d.Path) && (best == nil || len(d.Path) > len(best.Path)) {
			best = d
		}
	}
	return best, best != nil
}

// splitVersionedPath extracts the module path and version from a file path
// containing an escaped path@version element.
func splitVersionedPath(file string) (string, string, bool) {
	rest := file
	if i := strings.Index(file, modCacheDir); i >= 0 {
		rest = file[i+len(modCacheDir):]
	}
	at := strings.IndexByte(rest, '@')
	if at <= 0 {
		return "", "", false
	}
	escVersion := rest[at+1:]
	if slash := strings.IndexByte(escVersion, '/'); slash >= 0 {
		escVersion = escVersion[:slash]
	}
	path, err := module.UnescapePath(rest[:at])
	if err != nil {
		return "", "", false
	}
	version, err := module.UnescapeVersion(escVersion)
	if err != nil {
		return "", "", false
	}
	return path, version, true
}

func hasPathPrefix(file, prefix string) bool {
	return prefix != "" && strings.HasPrefix(file, prefix) &&
		(len(file) == len(prefix) || file[len(prefix)] == '/')
}
