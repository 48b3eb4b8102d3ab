package convert

import (
	"debug/elf"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/ksco/elf2hex/pkg/elfimage"
	"github.com/ksco/elf2hex/pkg/memhex"
	"github.com/ksco/elf2hex/pkg/utils"
)

type Class uint8

const (
	ClassIgnored Class = iota
	ClassEmpty
	ClassLoad
	ClassZeroFill
	ClassNoBits
	ClassSymbolTable
)

func (c Class) String() string {
	switch c {
	case ClassEmpty:
		return "empty"
	case ClassLoad:
		return "load"
	case ClassZeroFill:
		return "zero-fill"
	case ClassNoBits:
		return "no-bits"
	case ClassSymbolTable:
		return "symtab"
	}
	return "ignored"
}

// Classify decides how a section contributes to the memory image.
// Symbol tables are recognised by type whatever their flags; everything
// else must be SHF_ALLOC to be considered.
func Classify(s *elfimage.Section, zeroFill utils.MapSet[string]) Class {
	switch {
	case s.Type == elf.SHT_SYMTAB:
		return ClassSymbolTable
	case !s.IsAlloc():
		return ClassIgnored
	case s.Size == 0:
		return ClassEmpty
	case s.HasBits():
		return ClassLoad
	case zeroFill.Contains(s.Name):
		return ClassZeroFill
	}
	return ClassNoBits
}

type Scanner struct {
	img      *elfimage.Image
	arg      *ContextArg
	sb       *memhex.StoreBuffer
	logger   log.Logger
	zeroFill utils.MapSet[string]

	features *Features
}

func NewScanner(ctx *Context, sb *memhex.StoreBuffer) *Scanner {
	return &Scanner{
		img:      ctx.Image,
		arg:      &ctx.Arg,
		sb:       sb,
		logger:   log.With(ctx.Logger, "component", "scanner"),
		zeroFill: utils.NewMapSet(ctx.Arg.ZeroFillSections...),
		features: &Features{BitWidth: ctx.Image.BitWidth()},
	}
}

// Scan walks the sections in table order, feeding loadable bytes to the
// store buffer and picking up marker symbols, then flushes the store
// buffer. An address outside every segment aborts the scan.
func (s *Scanner) Scan() (*Features, error) {
	for i := range s.img.Sections {
		sec := &s.img.Sections[i]

		class := Classify(sec, s.zeroFill)
		switch class {
		case ClassSymbolTable:
			if err := s.scanSymbols(sec); err != nil {
				return nil, err
			}
		case ClassLoad, ClassZeroFill, ClassNoBits:
			if err := s.loadSection(sec, class); err != nil {
				return nil, err
			}
		default:
			level.Debug(s.logger).Log("msg", "section ignored", "section", sec.Name, "class", class)
		}
	}

	s.reportMarkers()

	if err := s.sb.Flush(); err != nil {
		return nil, err
	}
	return s.features, nil
}

func (s *Scanner) loadSection(sec *elfimage.Section, class Class) error {
	paddr, err := Translate(s.img.Segments, sec.Addr, sec.Size)
	if err != nil {
		return err
	}

	level.Debug(s.logger).Log(
		"msg", "loading section",
		"section", sec.Name,
		"class", class,
		"vaddr", fmt.Sprintf("%x-%x", sec.Addr, sec.Addr+sec.Size),
		"paddr", fmt.Sprintf("%x", paddr),
		"size", sec.Size,
	)

	s.features.addRange(paddr, sec.Size)

	if class != ClassNoBits && !utils.IsAligned(paddr, memhex.WordSize) {
		level.Warn(s.logger).Log("msg", "section address is not 4-byte aligned", "section", sec.Name, "paddr", fmt.Sprintf("%x", paddr))
	}

	switch class {
	case ClassLoad:
		for j, b := range sec.Data {
			s.sb.Push(paddr+uint64(j), b)
		}
	case ClassZeroFill:
		for j := uint64(0); j < sec.Size; j++ {
			s.sb.Push(paddr+j, 0)
		}
	}
	return nil
}

func (s *Scanner) scanSymbols(sec *elfimage.Section) error {
	level.Debug(s.logger).Log(
		"msg", "searching symbol table",
		"section", sec.Name,
		"symbols", len(sec.Symbols),
	)

	for _, sym := range sec.Symbols {
		if sym.Name == "" {
			continue
		}

		switch sym.Name {
		case s.arg.StartSymbol:
			addr, err := Translate(s.img.Segments, sym.Value, memhex.WordSize)
			if err != nil {
				return err
			}
			s.features.Start = Marker{Addr: addr, Found: true}
		case s.arg.ExitSymbol:
			addr, err := Translate(s.img.Segments, sym.Value, memhex.WordSize)
			if err != nil {
				return err
			}
			s.features.Exit = Marker{Addr: addr, Found: true}
		case s.arg.ToHostSymbol:
			// tohost normally lives in MMIO space outside every segment.
			s.features.ToHost = Marker{Addr: sym.Value, Found: true}
		}
	}
	return nil
}

func (s *Scanner) reportMarkers() {
	markers := []struct {
		name   string
		marker Marker
	}{
		{s.arg.StartSymbol, s.features.Start},
		{s.arg.ExitSymbol, s.features.Exit},
		{s.arg.ToHostSymbol, s.features.ToHost},
	}
	for _, m := range markers {
		if !m.marker.Found {
			level.Warn(s.logger).Log("msg", "marker symbol not found", "symbol", m.name)
			continue
		}
		level.Debug(s.logger).Log("msg", "marker symbol", "symbol", m.name, "addr", m.marker)
	}
}
