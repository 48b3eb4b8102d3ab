package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/common/version"
	"github.com/spf13/afero"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/ksco/elf2hex/pkg/convert"
	"github.com/ksco/elf2hex/pkg/utils"
)

var (
	consoleOutput = os.Stderr
	logger        = log.NewLogfmtLogger(log.NewSyncWriter(consoleOutput))
)

func main() {
	ctx := convert.NewContext(afero.NewOsFs(), logger)

	app := newApp(filepath.Base(os.Args[0]), &ctx.Arg, os.Stdout)
	kingpin.MustParse(app.Parse(os.Args[1:]))

	if !hasPaths(&ctx.Arg) {
		app.Usage(nil)
		os.Exit(0)
	}

	if ctx.Arg.Verbose {
		logger = level.NewFilter(logger, level.AllowDebug())
		ctx.Report = os.Stdout
	} else {
		logger = level.NewFilter(logger, level.AllowInfo())
	}
	ctx.Logger = logger

	utils.MustNo(convert.Convert(ctx))
}

func newApp(name string, arg *convert.ContextArg, usage io.Writer) *kingpin.Application {
	app := kingpin.New(name, "Converts an ELF file into a memhex32 file.").UsageWriter(usage)
	app.Version(version.Print("elf2hex"))
	app.HelpFlag.Short('h')
	parseArgs(app, arg)
	return app
}

// hasPaths reports whether both the input and the output file were given;
// without them the usage is printed instead of converting.
func hasPaths(arg *convert.ContextArg) bool {
	return arg.Input != "" && arg.Output != ""
}

func parseArgs(app *kingpin.Application, arg *convert.ContextArg) {
	// Repeatable flags append to the bound slice; kingpin fills in the
	// defaults itself.
	arg.ZeroFillSections = nil

	app.Flag("verbose", "Log every section and print the segment, section and feature report.").Short('v').BoolVar(&arg.Verbose)
	app.Flag("features", "Write the image features (address span, marker symbols) as YAML to this file.").PlaceHolder("FILE").StringVar(&arg.Features)
	app.Flag("zero-fill-section", "Name of a SHT_NOBITS section to emit as zeros. Repeatable.").
		Default(convert.DefaultZeroFillSections...).StringsVar(&arg.ZeroFillSections)
	app.Flag("start-symbol", "Symbol marking the program entry point.").Default(convert.DefaultStartSymbol).StringVar(&arg.StartSymbol)
	app.Flag("exit-symbol", "Symbol marking the program exit point.").Default(convert.DefaultExitSymbol).StringVar(&arg.ExitSymbol)
	app.Flag("tohost-symbol", "Symbol marking the host communication address.").Default(convert.DefaultToHostSymbol).StringVar(&arg.ToHostSymbol)

	app.Arg("input", "ELF file to convert.").StringVar(&arg.Input)
	app.Arg("output", "memhex32 file to write.").StringVar(&arg.Output)
}
