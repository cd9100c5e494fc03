package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/version"
	"gopkg.in/alecthomas/kingpin.v2"
)

var cfg struct {
	verbose bool
	seek    bool
	base    uint64
	metrics bool
}

var (
	consoleOutput = os.Stderr
	logger        = log.NewLogfmtLogger(consoleOutput)
)

// pcTablesNote is appended to the help of commands that print values decoded
// from pc-value tables.
const pcTablesNote = " Frame sizes, files and lines are decoded with the pc delta leading each " +
	"pc-value step; the standard Go toolchain writes the value delta first, so for its " +
	"binaries these columns are not meaningful."

type app struct {
	*kingpin.Application

	funcsCmd    *kingpin.CmdClause
	funcsBinary *string

	lookupCmd    *kingpin.CmdClause
	lookupBinary *string
	lookupPCs    *[]string

	findCmd    *kingpin.CmdClause
	findBinary *string
	findName   *string

	buildInfoCmd    *kingpin.CmdClause
	buildInfoBinary *string
}

func newApp(name string) *app {
	a := &app{Application: kingpin.New(name, "Inspect the symbol table and build info of Go binaries.").UsageWriter(os.Stdout)}
	a.Version(version.Print("gosymdump"))
	a.HelpFlag.Short('h')
	a.Flag("verbose", "Enable verbose logging.").Short('v').Default("0").BoolVar(&cfg.verbose)
	a.Flag("seek", "Read the symbol table through the file instead of loading it.").Default("false").BoolVar(&cfg.seek)
	a.Flag("base", "Load address added to every function address.").Default("0").Uint64Var(&cfg.base)
	a.Flag("metrics", "Print decoder metrics to stderr when done.").Default("false").BoolVar(&cfg.metrics)

	a.funcsCmd = a.Command("funcs", "List all functions."+pcTablesNote)
	a.funcsBinary = a.funcsCmd.Arg("binary", "Go binary").Required().ExistingFile()

	a.lookupCmd = a.Command("lookup", "Resolve program counters to functions."+pcTablesNote)
	a.lookupBinary = a.lookupCmd.Arg("binary", "Go binary").Required().ExistingFile()
	a.lookupPCs = a.lookupCmd.Arg("pc", "Program counters, hex with a 0x prefix or decimal").Required().Strings()

	a.findCmd = a.Command("find", "Find a function by name."+pcTablesNote)
	a.findBinary = a.findCmd.Arg("binary", "Go binary").Required().ExistingFile()
	a.findName = a.findCmd.Arg("name", "Function name, for example main.main").Required().String()

	a.buildInfoCmd = a.Command("buildinfo", "Print the toolchain version and module graph.")
	a.buildInfoBinary = a.buildInfoCmd.Arg("binary", "Go binary").Required().ExistingFile()
	return a
}

func main() {
	ctx := withOutput(context.Background(), os.Stdout)
	a := newApp(filepath.Base(os.Args[0]))

	// parse command line arguments
	parsedCmd := kingpin.MustParse(a.Parse(os.Args[1:]))

	// enable verbose logging if requested
	if !cfg.verbose {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	reg := prometheus.NewRegistry()
	m := newMetrics(reg)

	var err error
	switch parsedCmd {
	case a.funcsCmd.FullCommand():
		err = listFuncs(ctx, m, *a.funcsBinary)
	case a.lookupCmd.FullCommand():
		err = lookup(ctx, m, *a.lookupBinary, *a.lookupPCs)
	case a.findCmd.FullCommand():
		err = find(ctx, m, *a.findBinary, *a.findName)
	case a.buildInfoCmd.FullCommand():
		err = printBuildInfo(ctx, m, *a.buildInfoBinary)
	default:
		level.Error(logger).Log("msg", "unknown command", "cmd", parsedCmd)
	}
	if cfg.metrics {
		if merr := dumpMetrics(consoleOutput, reg); merr != nil {
			level.Warn(logger).Log("msg", "failed to write metrics", "err", merr)
		}
	}
	os.Exit(checkError(err))
}

func checkError(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return 1
}

type contextKey uint8

const (
	contextKeyOutput contextKey = iota
)

func withOutput(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, contextKeyOutput, w)
}

func output(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(contextKeyOutput).(io.Writer); ok {
		return w
	}
	return os.Stdout
}
