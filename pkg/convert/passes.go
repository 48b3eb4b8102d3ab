package convert

import (
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/ksco/elf2hex/pkg/elfimage"
	"github.com/ksco/elf2hex/pkg/memhex"
)

// Convert reads ctx.Arg.Input and writes its memory image to
// ctx.Arg.Output. The output file is closed on every return path; after a
// failure its contents are incomplete.
func Convert(ctx *Context) error {
	level.Info(ctx.Logger).Log("msg", "converting ELF file", "input", ctx.Arg.Input, "output", ctx.Arg.Output)

	if err := ReadInputFile(ctx); err != nil {
		return err
	}
	if err := WriteMemhex(ctx); err != nil {
		return err
	}
	if ctx.Arg.Features != "" {
		if err := WriteFeaturesFile(ctx); err != nil {
			return err
		}
	}
	if ctx.Arg.Verbose {
		WriteReport(ctx.Report, ctx)
	}
	return nil
}

func ReadInputFile(ctx *Context) error {
	file, err := elfimage.NewFile(ctx.Fs, ctx.Arg.Input)
	if err != nil {
		return err
	}
	if ctx.Image, err = elfimage.Parse(file); err != nil {
		return err
	}
	if ft := elfimage.GetFileType(file.Contents); ft != elfimage.FileTypeExecutable {
		level.Warn(ctx.Logger).Log("msg", "ELF file is not an executable", "input", ctx.Arg.Input)
	}

	level.Debug(ctx.Logger).Log(
		"msg", "parsed ELF file",
		"machine", elfimage.MachineTypeStringer{MachineType: ctx.Image.Machine},
		"bits", ctx.Image.BitWidth(),
		"segments", len(ctx.Image.Segments),
		"sections", len(ctx.Image.Sections),
	)
	return nil
}

func WriteMemhex(ctx *Context) (err error) {
	out, err := ctx.Fs.Create(ctx.Arg.Output)
	if err != nil {
		return errors.Wrap(err, "could not open memhex32 file")
	}
	defer func() {
		if cerr := out.Close(); cerr != nil {
			err = multierror.Append(err, errors.Wrap(cerr, "close memhex32 file"))
		}
	}()

	sb := memhex.NewStoreBuffer(out, ctx.Logger)
	features, err := NewScanner(ctx, sb).Scan()
	if err != nil {
		return err
	}

	ctx.Features = features
	ctx.Stats = sb.Stats()
	return nil
}

func WriteFeaturesFile(ctx *Context) (err error) {
	out, err := ctx.Fs.Create(ctx.Arg.Features)
	if err != nil {
		return errors.Wrap(err, "could not open features file")
	}
	defer func() {
		if cerr := out.Close(); cerr != nil {
			err = multierror.Append(err, errors.Wrap(cerr, "close features file"))
		}
	}()

	return WriteFeatures(out, ctx.Image, ctx.Features)
}
