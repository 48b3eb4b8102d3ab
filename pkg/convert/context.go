package convert

import (
	"io"

	"github.com/go-kit/log"
	"github.com/spf13/afero"

	"github.com/ksco/elf2hex/pkg/elfimage"
	"github.com/ksco/elf2hex/pkg/memhex"
)

const (
	DefaultStartSymbol  = "_start"
	DefaultExitSymbol   = "exit"
	DefaultToHostSymbol = "tohost"
)

var DefaultZeroFillSections = []string{".bss", ".sbss"}

type ContextArg struct {
	Input    string
	Output   string
	Features string
	Verbose  bool

	ZeroFillSections []string

	StartSymbol  string
	ExitSymbol   string
	ToHostSymbol string
}

// Context carries one conversion from input file to memhex32 output.
type Context struct {
	Arg ContextArg

	Fs     afero.Fs
	Logger log.Logger
	Report io.Writer

	Image    *elfimage.Image
	Features *Features
	Stats    memhex.Stats
}

func NewContext(fs afero.Fs, logger log.Logger) *Context {
	return &Context{
		Arg: ContextArg{
			ZeroFillSections: DefaultZeroFillSections,
			StartSymbol:      DefaultStartSymbol,
			ExitSymbol:       DefaultExitSymbol,
			ToHostSymbol:     DefaultToHostSymbol,
		},
		Fs:     fs,
		Logger: logger,
		Report: io.Discard,
	}
}
