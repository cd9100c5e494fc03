package buildinfo

import (
	"strconv"
	"strings"
)

// sentinelSize is the length of the marker wrapped around each side of the
// module info string by the linker.
const sentinelSize = 16

type Module struct {
	Path    string
	Version string
	Sum     string
	Replace *Module
}

// Setting is one build setting, such as -compiler=gc or GOARCH=amd64.
type Setting struct {
	Key   string
	Value string
}

// ModuleInfo is the module graph embedded by the go command.
type ModuleInfo struct {
	// Path is the main package import path.
	Path     string
	Main     Module
	Deps     []*Module
	Settings []Setting
}

// ParseModuleInfo decodes a module info blob as stored in the binary, sentinels
// included. It fails only if the blob is too short to hold them; malformed
// records are skipped.
//
// A "=>" record replaces the most recently accepted dependency. Once a "dep"
// record is skipped, replacements are dropped until the next accepted one.
func ParseModuleInfo(blob string) (*ModuleInfo, bool) {
	if len(blob) < 2*sentinelSize {
		return nil, false
	}
	text := blob[sentinelSize : len(blob)-sentinelSize]

	info := &ModuleInfo{}
	var last *Module
	for _, line := range strings.Split(text, "\n") {
		tokens := strings.Split(line, "\t")
		switch tokens[0] {
		case "path":
			if len(tokens) != 2 {
				continue
			}
			info.Path = tokens[1]
		case "mod":
			if m, ok := readModule(tokens); ok {
				info.Main = *m
			}
		case "dep":
			m, ok := readModule(tokens)
			if !ok {
				last = nil
				continue
			}
			info.Deps = append(info.Deps, m)
			last = m
		case "=>":
			m, ok := readModule(tokens)
			if !ok || last == nil {
				continue
			}
			last.Replace = m
		case "build":
			if len(tokens) != 2 {
				continue
			}
			if s, ok := parseSetting(tokens[1]); ok {
				info.Settings = append(info.Settings, s)
			}
		}
	}
	return info, true
}

func readModule(tokens []string) (*Module, bool) {
	if len(tokens) != 4 {
		return nil, false
	}
	return &Module{Path: tokens[1], Version: tokens[2], Sum: tokens[3]}, true
}

// parseSetting decodes key=value, where either side may be a quoted Go string.
func parseSetting(kv string) (Setting, bool) {
	if kv == "" || kv[0] == '=' {
		return Setting{}, false
	}
	var key string
	if kv[0] == '"' {
		quoted, err := strconv.QuotedPrefix(kv)
		if err != nil {
			return Setting{}, false
		}
		kv = kv[len(quoted):]
		key, _ = strconv.Unquote(quoted)
	} else {
		i := strings.IndexAny(kv, "= \t\r\n\"`")
		if i < 0 {
			return Setting{}, false
		}
		key, kv = kv[:i], kv[i:]
	}
	if kv == "" || kv[0] != '=' {
		return Setting{}, false
	}
	value := kv[1:]
	if value != "" && (value[0] == '"' || value[0] == '`') {
		v, err := strconv.Unquote(value)
		if err != nil {
			return Setting{}, false
		}
		value = v
	}
	return Setting{Key: key, Value: value}, true
}
