package convert

import (
	"debug/elf"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/ksco/elf2hex/pkg/elfimage"
	"github.com/ksco/elf2hex/pkg/utils"
)

type featuresDoc struct {
	Input      string  `yaml:"input"`
	BitWidth   int     `yaml:"bit_width"`
	MinPAddr   *string `yaml:"min_paddr"`
	MaxPAddr   *string `yaml:"max_paddr"`
	TotalBytes uint64  `yaml:"total_bytes"`
	Start      *string `yaml:"pc_start"`
	Exit       *string `yaml:"pc_exit"`
	ToHost     *string `yaml:"tohost_addr"`
}

func hexPtr(v uint64, ok bool) *string {
	if !ok {
		return nil
	}
	s := fmt.Sprintf("0x%x", v)
	return &s
}

// WriteFeatures encodes f as YAML. Addresses that are absent are written
// as null.
func WriteFeatures(w io.Writer, img *elfimage.Image, f *Features) error {
	doc := featuresDoc{
		Input:      img.Name,
		BitWidth:   f.BitWidth,
		MinPAddr:   hexPtr(f.MinPAddr, f.HasSpan),
		MaxPAddr:   hexPtr(f.MaxPAddr, f.HasSpan),
		TotalBytes: f.TotalBytes,
		Start:      hexPtr(f.Start.Addr, f.Start.Found),
		Exit:       hexPtr(f.Exit.Addr, f.Exit.Found),
		ToHost:     hexPtr(f.ToHost.Addr, f.ToHost.Found),
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return errors.Wrap(err, "encode features")
	}
	return enc.Close()
}

// WriteReport prints the segment and section tables of the converted image
// followed by its features.
func WriteReport(w io.Writer, ctx *Context) {
	img := ctx.Image
	fmt.Fprintf(w, "ELF file: %s (%s, %d-bit)\n", img.Name,
		elfimage.MachineTypeStringer{MachineType: img.Machine}, img.BitWidth())
	fmt.Fprintf(w, "Entry:     %x\n", img.Entry)

	fmt.Fprintln(w, "Segments:")
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Type", "Flags", "Offset", "VAddr", "PAddr", "FileSz", "MemSz", "Align"})
	table.AppendBulk(lo.Map(img.Segments, func(seg elfimage.Segment, i int) []string {
		return []string{
			fmt.Sprintf("%d", i),
			seg.Type.String(),
			seg.Flags.String(),
			fmt.Sprintf("%x", seg.Offset),
			fmt.Sprintf("%x", seg.VAddr),
			fmt.Sprintf("%x", seg.PAddr),
			fmt.Sprintf("%x", seg.FileSize),
			fmt.Sprintf("%x", seg.MemSize),
			fmt.Sprintf("%x", seg.Align),
		}
	}))
	table.Render()

	zeroFill := utils.NewMapSet(ctx.Arg.ZeroFillSections...)
	sections := lo.Filter(img.Sections, func(s elfimage.Section, _ int) bool {
		return s.Type != elf.SHT_NULL
	})

	fmt.Fprintln(w, "Sections:")
	table = tablewriter.NewWriter(w)
	table.SetHeader([]string{"Name", "Type", "VAddr", "Size", "Handling"})
	table.AppendBulk(lo.Map(sections, func(s elfimage.Section, _ int) []string {
		return []string{
			s.Name,
			s.Type.String(),
			fmt.Sprintf("%x", s.Addr),
			humanize.IBytes(s.Size),
			Classify(&s, zeroFill).String(),
		}
	}))
	table.Render()

	f := ctx.Features
	fmt.Fprintf(w, "Size:      0x%x (%s)\n", f.TotalBytes, humanize.IBytes(f.TotalBytes))
	if f.HasSpan {
		fmt.Fprintf(w, "Min paddr: %10x\n", f.MinPAddr)
		fmt.Fprintf(w, "Max paddr: %10x\n", f.MaxPAddr)
		fmt.Fprintf(w, "Span:      %10x (%s)\n", f.Span(), humanize.IBytes(f.Span()))
	}
	fmt.Fprintf(w, "%-10s %s\n", ctx.Arg.StartSymbol, f.Start)
	fmt.Fprintf(w, "%-10s %s\n", ctx.Arg.ExitSymbol, f.Exit)
	fmt.Fprintf(w, "%-10s %s\n", ctx.Arg.ToHostSymbol, f.ToHost)
	fmt.Fprintf(w, "Output:    %d words, %d address lines\n", ctx.Stats.Words, ctx.Stats.AddressLines)
}
