package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/go-kit/log/level"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"

	"github.com/grafana/gosymtab/pkg/buildinfo"
	"github.com/grafana/gosymtab/pkg/gosym"
	"github.com/grafana/gosymtab/pkg/objfile"
)

const pclntabSection = ".gopclntab"

type symbols struct {
	f       *objfile.ELF
	size    uint64
	table   *gosym.Table
	modules *buildinfo.ModuleInfo
}

func (s *symbols) Close() error {
	return s.f.Close()
}

func openSymbols(path string, m *metrics) (*symbols, error) {
	f, err := objfile.OpenELF(path)
	if err != nil {
		return nil, err
	}
	s, err := newSymbols(f, m)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

func newSymbols(f *objfile.ELF, m *metrics) (*symbols, error) {
	sh := f.SectionHeader(pclntabSection)
	if sh == nil {
		return nil, errors.Wrapf(objfile.ErrNoSection, "%s in %s", pclntabSection, f.FilePath())
	}
	hdr := make([]byte, 8)
	if _, err := f.ReaderAt().ReadAt(hdr, int64(sh.Offset)); err != nil {
		return nil, errors.Wrap(err, "read pclntab header")
	}
	v, order, err := gosym.DetectVersion(hdr)
	if err != nil {
		return nil, err
	}
	opts := []gosym.Option{gosym.WithLogger(logger), gosym.WithMetrics(m.symtab)}

	var table *gosym.Table
	if cfg.seek {
		table, err = gosym.NewSeekTable(v, order, f.ReaderAt(), int64(sh.Offset), sh.Addr, cfg.base, opts...)
	} else {
		var mem gosym.Memory
		if mem, err = gosym.SectionMemory(f, pclntabSection); err == nil {
			table, err = gosym.NewTable(v, order, mem, cfg.base, opts...)
		}
	}
	if err != nil {
		return nil, err
	}
	level.Debug(logger).Log(
		"msg", "opened symbol table",
		"path", f.FilePath(),
		"version", v,
		"byte_order", order,
		"functions", table.Len(),
		"seek", cfg.seek,
	)
	return &symbols{f: f, size: sh.Size, table: table, modules: loadModuleInfo(f, m)}, nil
}

// module names the module that provides file, or returns "".
func (s *symbols) module(file string) string {
	mod, ok := s.modules.ModuleForFile(file)
	if !ok {
		return ""
	}
	if mod.Version == "" {
		return mod.Path
	}
	return mod.Path + "@" + mod.Version
}

// parseAddress accepts 0x prefixed hex, 0 prefixed octal and decimal.
func parseAddress(s string) (uint64, error) {
	return strconv.ParseUint(s, 0, 64)
}

func fileLine(sym gosym.Symbol, pc uint64) string {
	file, line := sym.SourceFile(pc), sym.SourceLine(pc)
	if file == "" {
		file = "?"
	}
	if line < 0 {
		return file
	}
	return fmt.Sprintf("%s:%d", file, line)
}

func listFuncs(ctx context.Context, m *metrics, path string) error {
	s, err := openSymbols(path, m)
	if err != nil {
		return err
	}
	defer s.Close()

	out := output(ctx)
	t := s.table
	fmt.Fprintf(out, "pclntab %s, %s, %d functions, %d files\n",
		t.Version(), humanize.Bytes(s.size), t.Len(), t.FileCount())

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Entry", "Size", "Frame", "Source", "Name"})
	for it := t.Begin(); it.Less(t.End()); it.Next() {
		e := it.Entry()
		next := t.EndPC()
		if n := it.Add(1); n.Valid() {
			next = n.Entry().Addr()
		}
		sym := e.Symbol()
		table.Append([]string{
			fmt.Sprintf("%#x", e.Addr()),
			strconv.FormatUint(next-e.Addr(), 10),
			strconv.Itoa(sym.FrameSize(e.Addr())),
			fileLine(sym, e.Addr()),
			sym.Name(),
		})
	}
	table.Render()
	return nil
}

func lookup(ctx context.Context, m *metrics, path string, pcs []string) error {
	s, err := openSymbols(path, m)
	if err != nil {
		return err
	}
	defer s.Close()

	table := tablewriter.NewWriter(output(ctx))
	table.SetHeader([]string{"PC", "Function", "Offset", "Source", "Module", "Frame", "Stack top"})
	for _, arg := range pcs {
		pc, err := parseAddress(arg)
		if err != nil {
			return errors.Wrapf(err, "parse pc %q", arg)
		}
		it := s.table.Find(pc)
		if !it.Valid() {
			table.Append([]string{fmt.Sprintf("%#x", pc), color.RedString("?"), "", "", "", "", ""})
			continue
		}
		e := it.Entry()
		sym := e.Symbol()
		stackTop := "false"
		if sym.IsStackTop() {
			stackTop = color.YellowString("true")
		}
		table.Append([]string{
			fmt.Sprintf("%#x", pc),
			sym.Name(),
			fmt.Sprintf("+%#x", pc-e.Addr()),
			fileLine(sym, pc),
			s.module(sym.SourceFile(pc)),
			strconv.Itoa(sym.FrameSize(pc)),
			stackTop,
		})
	}
	table.Render()
	return nil
}

func find(ctx context.Context, m *metrics, path, name string) error {
	s, err := openSymbols(path, m)
	if err != nil {
		return err
	}
	defer s.Close()

	it := s.table.FindName(name)
	if !it.Valid() {
		return fmt.Errorf("function %s not found", name)
	}
	s.printSymbol(output(ctx), it.Entry())
	return nil
}

func (s *symbols) printSymbol(out io.Writer, e gosym.Entry) {
	sym := e.Symbol()
	fmt.Fprintf(out, "%s\n", sym.Name())
	fmt.Fprintf(out, "  entry:     %#x\n", e.Addr())
	fmt.Fprintf(out, "  args:      %d\n", sym.Args())
	fmt.Fprintf(out, "  source:    %s\n", fileLine(sym, e.Addr()))
	if mod := s.module(sym.SourceFile(e.Addr())); mod != "" {
		fmt.Fprintf(out, "  module:    %s\n", mod)
	}
	fmt.Fprintf(out, "  stack top: %t\n", sym.IsStackTop())
}
