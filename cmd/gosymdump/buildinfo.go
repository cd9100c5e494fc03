package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/go-kit/log/level"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"golang.org/x/mod/module"

	"github.com/grafana/gosymtab/pkg/buildinfo"
	"github.com/grafana/gosymtab/pkg/objfile"
)

var errNotGoBinary = errors.New("not a Go binary")

func printBuildInfo(ctx context.Context, m *metrics, path string) error {
	f, err := objfile.OpenELF(path)
	if err != nil {
		return err
	}
	defer f.Close()

	b, section, err := openBuildInfo(f, m)
	if err != nil {
		return err
	}

	out := output(ctx)
	fmt.Fprintf(out, "section:   %s, %s\n", humanize.Bytes(uint64(len(section))), layoutName(b))
	if id, err := f.BuildID(); err == nil {
		fmt.Fprintf(out, "build id:  %s\n", id)
	} else {
		level.Debug(logger).Log("msg", "no build id", "err", err)
	}
	goVersion, ok := b.GoVersion()
	if !ok {
		goVersion = "unknown"
	}
	if v, ok := b.Version(); ok {
		goVersion = fmt.Sprintf("%s (%s)", goVersion, v)
	}
	fmt.Fprintf(out, "toolchain: %s\n", goVersion)

	info, ok := b.ModuleInfo()
	if !ok {
		fmt.Fprintln(out, "no module info")
		return nil
	}
	fmt.Fprintf(out, "path:      %s\n", info.Path)
	fmt.Fprintf(out, "main:      %s %s %s\n", info.Main.Path, info.Main.Version, info.Main.Sum)

	if len(info.Deps) > 0 {
		table := tablewriter.NewWriter(out)
		table.SetHeader([]string{"Dependency", "Version", "Sum", "Replaced by"})
		for _, d := range info.Deps {
			var replace string
			if d.Replace != nil {
				replace = strings.TrimSpace(d.Replace.Path + " " + d.Replace.Version)
			}
			version := d.Version
			if module.IsPseudoVersion(version) {
				version = color.CyanString(version)
			}
			table.Append([]string{d.Path, version, d.Sum, replace})
		}
		table.Render()
	}

	if len(info.Settings) > 0 {
		table := tablewriter.NewWriter(out)
		table.SetHeader([]string{"Setting", "Value"})
		for _, s := range info.Settings {
			table.Append([]string{s.Key, s.Value})
		}
		table.Render()
	}
	return nil
}

func openBuildInfo(f *objfile.ELF, m *metrics) (*buildinfo.BuildInfo, []byte, error) {
	section, err := f.Section(buildinfo.SectionName)
	if err != nil {
		return nil, nil, errors.Wrap(err, "read build info")
	}
	if !strings.HasPrefix(string(section), buildinfo.Magic) {
		return nil, nil, errors.Wrapf(errNotGoBinary, "bad %s magic", buildinfo.SectionName)
	}
	b, err := buildinfo.New(f, section, buildinfo.WithLogger(logger), buildinfo.WithMetrics(m.buildinfo))
	if err != nil {
		return nil, nil, err
	}
	return b, section, nil
}

// loadModuleInfo returns the module graph of f, or nil if it has none.
func loadModuleInfo(f *objfile.ELF, m *metrics) *buildinfo.ModuleInfo {
	b, _, err := openBuildInfo(f, m)
	if err != nil {
		level.Debug(logger).Log("msg", "no build info", "path", f.FilePath(), "err", err)
		return nil
	}
	info, _ := b.ModuleInfo()
	return info
}

func layoutName(b *buildinfo.BuildInfo) string {
	if b.PointerFree() {
		return "inline strings"
	}
	return fmt.Sprintf("%d-bit pointers, %s", 8*b.PtrSize(), b.ByteOrder())
}
