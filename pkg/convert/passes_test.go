package convert

import (
	"bytes"
	"debug/elf"
	"testing"

	"github.com/go-kit/log"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ksco/elf2hex/pkg/elfimage"
	"github.com/ksco/elf2hex/pkg/elfimage/elftest"
)

func newTestContext(t *testing.T, contents []byte) (*Context, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/work/prog.elf", contents, 0o644))

	ctx := NewContext(fs, log.NewNopLogger())
	ctx.Arg.Input = "/work/prog.elf"
	ctx.Arg.Output = "/work/prog.memhex32"
	return ctx, fs
}

func program(class elf.Class) *elftest.Builder {
	return elftest.New(class).
		Segment(0x8000_0000, 0x8000_0000, 0x100).
		Progbits(".text", 0x8000_0000, []byte{
			0x97, 0x01, 0x00, 0x00, // auipc gp, 0x0
			0x93, 0x81, 0x01, 0x00, // addi gp, gp, 0
			0x6f, 0x00, 0x00, 0x00, // j .
		}).
		Progbits(".data", 0x8000_0040, []byte{0x2a, 0x00, 0x00, 0x00}).
		Nobits(".bss", 0x8000_0044, 8).
		Symbol("_start", 0x8000_0000).
		Symbol("exit", 0x8000_0008).
		Symbol("tohost", 0x4000_0000)
}

const programMemhex = "" +
	"@20000000    // ---- 80000000\n" +
	"00000197     // 80000000\n" +
	"00018193     // 80000004\n" +
	"0000006f     // 80000008\n" +
	"@20000010    // ---- 80000040\n" +
	"0000002a     // 80000040\n" +
	"00000000     // 80000044\n" +
	"00000000     // 80000048\n"

func TestConvert(t *testing.T) {
	for _, class := range []elf.Class{elf.ELFCLASS32, elf.ELFCLASS64} {
		t.Run(class.String(), func(t *testing.T) {
			ctx, fs := newTestContext(t, program(class).Bytes())
			require.NoError(t, Convert(ctx))

			out, err := afero.ReadFile(fs, "/work/prog.memhex32")
			require.NoError(t, err)
			require.Equal(t, programMemhex, string(out))

			f := ctx.Features
			require.Equal(t, ctx.Image.BitWidth(), f.BitWidth)
			require.Equal(t, uint64(0x8000_0000), f.MinPAddr)
			require.Equal(t, uint64(0x8000_004b), f.MaxPAddr)
			require.Equal(t, uint64(24), f.TotalBytes)
			require.Equal(t, Marker{Addr: 0x8000_0000, Found: true}, f.Start)
			require.Equal(t, Marker{Addr: 0x8000_0008, Found: true}, f.Exit)
			require.Equal(t, Marker{Addr: 0x4000_0000, Found: true}, f.ToHost)
			require.Equal(t, uint64(6), ctx.Stats.Words)
			require.Equal(t, uint64(2), ctx.Stats.AddressLines)
		})
	}
}

func TestConvertFeaturesFile(t *testing.T) {
	b := program(elf.ELFCLASS32)
	b.Symbols = b.Symbols[:1]
	ctx, fs := newTestContext(t, b.Bytes())
	ctx.Arg.Features = "/work/prog.yaml"
	require.NoError(t, Convert(ctx))

	raw, err := afero.ReadFile(fs, "/work/prog.yaml")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(raw, &doc))
	require.Equal(t, map[string]any{
		"input":       "/work/prog.elf",
		"bit_width":   32,
		"min_paddr":   "0x80000000",
		"max_paddr":   "0x8000004b",
		"total_bytes": 24,
		"pc_start":    "0x80000000",
		"pc_exit":     nil,
		"tohost_addr": nil,
	}, doc)
}

func TestConvertVerboseReport(t *testing.T) {
	ctx, _ := newTestContext(t, program(elf.ELFCLASS64).Bytes())
	var report bytes.Buffer
	ctx.Arg.Verbose = true
	ctx.Report = &report
	require.NoError(t, Convert(ctx))

	out := report.String()
	require.Contains(t, out, "ELF file: /work/prog.elf (riscv64, 64-bit)")
	require.Contains(t, out, "Entry:     0")
	require.Contains(t, out, "PT_LOAD")
	require.Contains(t, out, "zero-fill")
	require.Contains(t, out, "Span:")
	require.Contains(t, out, "Output:    6 words, 2 address lines")
}

func TestConvertFailures(t *testing.T) {
	t.Run("missing input", func(t *testing.T) {
		ctx := NewContext(afero.NewMemMapFs(), log.NewNopLogger())
		ctx.Arg.Input = "/nope.elf"
		ctx.Arg.Output = "/out.memhex32"
		require.Error(t, Convert(ctx))
	})

	t.Run("not an ELF file", func(t *testing.T) {
		ctx, _ := newTestContext(t, []byte("#!/bin/sh\necho hello\n"))
		require.ErrorIs(t, Convert(ctx), elfimage.ErrNotELF)
	})

	t.Run("wrong machine", func(t *testing.T) {
		b := program(elf.ELFCLASS64)
		b.Machine = elf.EM_AARCH64
		ctx, _ := newTestContext(t, b.Bytes())
		require.ErrorIs(t, Convert(ctx), elfimage.ErrUnsupportedMachine)
	})

	t.Run("unmapped section", func(t *testing.T) {
		b := program(elf.ELFCLASS32).Progbits(".rodata", 0x1000, []byte{1, 2, 3, 4})
		ctx, fs := newTestContext(t, b.Bytes())
		require.ErrorIs(t, Convert(ctx), ErrNoCoveringSegment)

		// The output was created and closed even though the scan failed.
		exists, err := afero.Exists(fs, ctx.Arg.Output)
		require.NoError(t, err)
		require.True(t, exists)
	})

	t.Run("output directory is read-only", func(t *testing.T) {
		ctx, fs := newTestContext(t, program(elf.ELFCLASS32).Bytes())
		ctx.Fs = afero.NewReadOnlyFs(fs)
		require.Error(t, Convert(ctx))
	})
}

func TestConvertRelocatableWarns(t *testing.T) {
	b := program(elf.ELFCLASS32)
	b.Type = elf.ET_REL
	ctx, fs := newTestContext(t, b.Bytes())
	var logs bytes.Buffer
	ctx.Logger = log.NewLogfmtLogger(&logs)
	require.NoError(t, Convert(ctx))

	require.Contains(t, logs.String(), `level=warn msg="ELF file is not an executable"`)
	out, err := afero.ReadFile(fs, "/work/prog.memhex32")
	require.NoError(t, err)
	require.Equal(t, programMemhex, string(out))
}
