// Package elftest writes small RISC-V ELF images for tests.
package elftest

import (
	"debug/elf"

	"github.com/ksco/elf2hex/pkg/elfimage"
	"github.com/ksco/elf2hex/pkg/utils"
)

type Section struct {
	Name  string
	Type  elf.SectionType
	Flags elf.SectionFlag
	Addr  uint64
	Data  []byte

	// Size is only used for SHT_NOBITS sections.
	Size uint64
}

// Builder assembles an ELF image. The zero value is not usable; call New.
type Builder struct {
	Class   elf.Class
	Data    elf.Data
	Machine elf.Machine
	Type    elf.Type
	Entry   uint64

	Segments []elfimage.Segment
	Sections []Section
	Symbols  []elfimage.Symbol
}

func New(class elf.Class) *Builder {
	return &Builder{
		Class:   class,
		Data:    elf.ELFDATA2LSB,
		Machine: elf.EM_RISCV,
		Type:    elf.ET_EXEC,
	}
}

// Identity adds a segment mapping [vaddr, vaddr+size) onto the same
// physical addresses.
func (b *Builder) Identity(vaddr, size uint64) *Builder {
	return b.Segment(vaddr, vaddr, size)
}

func (b *Builder) Segment(vaddr, paddr, size uint64) *Builder {
	b.Segments = append(b.Segments, elfimage.Segment{
		Type:     elf.PT_LOAD,
		Flags:    elf.PF_R | elf.PF_W | elf.PF_X,
		VAddr:    vaddr,
		PAddr:    paddr,
		FileSize: size,
		MemSize:  size,
		Align:    4,
	})
	return b
}

func (b *Builder) Progbits(name string, addr uint64, data []byte) *Builder {
	b.Sections = append(b.Sections, Section{
		Name:  name,
		Type:  elf.SHT_PROGBITS,
		Flags: elf.SHF_ALLOC | elf.SHF_WRITE,
		Addr:  addr,
		Data:  data,
	})
	return b
}

func (b *Builder) Nobits(name string, addr, size uint64) *Builder {
	b.Sections = append(b.Sections, Section{
		Name:  name,
		Type:  elf.SHT_NOBITS,
		Flags: elf.SHF_ALLOC | elf.SHF_WRITE,
		Addr:  addr,
		Size:  size,
	})
	return b
}

func (b *Builder) Symbol(name string, value uint64) *Builder {
	b.Symbols = append(b.Symbols, elfimage.Symbol{Name: name, Value: value})
	return b
}

type outShdr struct {
	name    uint32
	typ     elf.SectionType
	flags   elf.SectionFlag
	addr    uint64
	offset  uint64
	size    uint64
	link    uint32
	info    uint32
	entSize uint64
}

type strTab struct {
	buf []byte
}

func newStrTab() *strTab {
	return &strTab{buf: []byte{0}}
}

func (t *strTab) add(s string) uint32 {
	if s == "" {
		return 0
	}
	off := uint32(len(t.buf))
	t.buf = append(t.buf, s...)
	t.buf = append(t.buf, 0)
	return off
}

type image struct {
	buf []byte
}

func (im *image) grow(size uint64) []byte {
	off := uint64(len(im.buf))
	im.buf = append(im.buf, make([]byte, size)...)
	return im.buf[off:]
}

func (im *image) place(data []byte) uint64 {
	im.grow(utils.AlignTo(uint64(len(im.buf)), 8) - uint64(len(im.buf)))
	off := uint64(len(im.buf))
	copy(im.grow(uint64(len(data))), data)
	return off
}

// Bytes lays the image out as: ELF header, program headers, section
// contents, then the section header table.
func (b *Builder) Bytes() []byte {
	is64 := b.Class == elf.ELFCLASS64
	ehSize, phEntSize, shEntSize, symEntSize := utils.SizeOf[elfimage.Ehdr32](),
		utils.SizeOf[elfimage.Phdr32](), utils.SizeOf[elfimage.Shdr32](), utils.SizeOf[elfimage.Sym32]()
	if is64 {
		ehSize, phEntSize, shEntSize, symEntSize = utils.SizeOf[elfimage.Ehdr64](),
			utils.SizeOf[elfimage.Phdr64](), utils.SizeOf[elfimage.Shdr64](), utils.SizeOf[elfimage.Sym64]()
	}

	im := &image{}
	im.grow(uint64(ehSize + phEntSize*len(b.Segments)))

	shstrtab := newStrTab()
	shdrs := []outShdr{{}}
	for _, s := range b.Sections {
		sh := outShdr{
			name:  shstrtab.add(s.Name),
			typ:   s.Type,
			flags: s.Flags,
			addr:  s.Addr,
		}
		if s.Type == elf.SHT_NOBITS {
			sh.offset = uint64(len(im.buf))
			sh.size = s.Size
		} else {
			sh.offset = im.place(s.Data)
			sh.size = uint64(len(s.Data))
		}
		shdrs = append(shdrs, sh)
	}

	if len(b.Symbols) > 0 {
		strtab := newStrTab()
		syms := make([]byte, symEntSize*(len(b.Symbols)+1))
		for i, sym := range b.Symbols {
			dst := syms[symEntSize*(i+1):]
			name := strtab.add(sym.Name)
			if is64 {
				put(dst, elfimage.Sym64{Name: name, Info: uint8(elf.STT_NOTYPE), Shndx: 1, Val: sym.Value})
			} else {
				put(dst, elfimage.Sym32{Name: name, Info: uint8(elf.STT_NOTYPE), Shndx: 1, Val: uint32(sym.Value)})
			}
		}

		symtabIdx := uint32(len(shdrs))
		shdrs = append(shdrs, outShdr{
			name:    shstrtab.add(".symtab"),
			typ:     elf.SHT_SYMTAB,
			offset:  im.place(syms),
			size:    uint64(len(syms)),
			link:    symtabIdx + 1,
			info:    1,
			entSize: uint64(symEntSize),
		})
		shdrs = append(shdrs, outShdr{
			name:   shstrtab.add(".strtab"),
			typ:    elf.SHT_STRTAB,
			offset: im.place(strtab.buf),
			size:   uint64(len(strtab.buf)),
		})
	}

	shstrndx := len(shdrs)
	shdrs = append(shdrs, outShdr{name: shstrtab.add(".shstrtab"), typ: elf.SHT_STRTAB})
	shdrs[shstrndx].offset = im.place(shstrtab.buf)
	shdrs[shstrndx].size = uint64(len(shstrtab.buf))

	im.place(nil)
	shOff := uint64(len(im.buf))
	table := im.grow(uint64(shEntSize * len(shdrs)))
	for i, sh := range shdrs {
		b.writeShdr(table[i*shEntSize:], sh)
	}

	for i, seg := range b.Segments {
		b.writePhdr(im.buf[ehSize+i*phEntSize:], seg)
	}

	b.writeEhdr(im.buf, uint64(ehSize), shOff, len(shdrs), shstrndx,
		ehSize, phEntSize, shEntSize)
	return im.buf
}

func (b *Builder) writeEhdr(dst []byte, phOff, shOff uint64, shNum, shstrndx, ehSize, phEntSize, shEntSize int) {
	var ident [16]uint8
	WriteIdent(ident[:], b.Class, b.Data)

	if b.Class == elf.ELFCLASS64 {
		put(dst, elfimage.Ehdr64{
			Ident:     ident,
			Type:      uint16(b.Type),
			Machine:   uint16(b.Machine),
			Version:   uint32(elf.EV_CURRENT),
			Entry:     b.Entry,
			PhOff:     phOff,
			ShOff:     shOff,
			EhSize:    uint16(ehSize),
			PhEntSize: uint16(phEntSize),
			PhNum:     uint16(len(b.Segments)),
			ShEntSize: uint16(shEntSize),
			ShNum:     uint16(shNum),
			ShStrndx:  uint16(shstrndx),
		})
		return
	}

	put(dst, elfimage.Ehdr32{
		Ident:     ident,
		Type:      uint16(b.Type),
		Machine:   uint16(b.Machine),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     uint32(b.Entry),
		PhOff:     uint32(phOff),
		ShOff:     uint32(shOff),
		EhSize:    uint16(ehSize),
		PhEntSize: uint16(phEntSize),
		PhNum:     uint16(len(b.Segments)),
		ShEntSize: uint16(shEntSize),
		ShNum:     uint16(shNum),
		ShStrndx:  uint16(shstrndx),
	})
}

// put panics on encoding failures; header structs are fixed size and
// destinations are sized from them.
func put[T any](dst []byte, v T) {
	if err := utils.Write(dst, v); err != nil {
		panic(err)
	}
}

func WriteIdent(ident []byte, class elf.Class, data elf.Data) {
	elfimage.WriteMagic(ident)
	ident[elf.EI_CLASS] = uint8(class)
	ident[elf.EI_DATA] = uint8(data)
	ident[elf.EI_VERSION] = uint8(elf.EV_CURRENT)
	ident[elf.EI_OSABI] = 0
	ident[elf.EI_ABIVERSION] = 0
}

func (b *Builder) writePhdr(dst []byte, seg elfimage.Segment) {
	if b.Class == elf.ELFCLASS64 {
		put(dst, elfimage.Phdr64{
			Type:     uint32(seg.Type),
			Flags:    uint32(seg.Flags),
			Offset:   seg.Offset,
			VAddr:    seg.VAddr,
			PAddr:    seg.PAddr,
			FileSize: seg.FileSize,
			MemSize:  seg.MemSize,
			Align:    seg.Align,
		})
		return
	}

	put(dst, elfimage.Phdr32{
		Type:     uint32(seg.Type),
		Offset:   uint32(seg.Offset),
		VAddr:    uint32(seg.VAddr),
		PAddr:    uint32(seg.PAddr),
		FileSize: uint32(seg.FileSize),
		MemSize:  uint32(seg.MemSize),
		Flags:    uint32(seg.Flags),
		Align:    uint32(seg.Align),
	})
}

func (b *Builder) writeShdr(dst []byte, sh outShdr) {
	if b.Class == elf.ELFCLASS64 {
		put(dst, elfimage.Shdr64{
			Name:      sh.name,
			Type:      uint32(sh.typ),
			Flags:     uint64(sh.flags),
			Addr:      sh.addr,
			Offset:    sh.offset,
			Size:      sh.size,
			Link:      sh.link,
			Info:      sh.info,
			AddrAlign: 4,
			EntSize:   sh.entSize,
		})
		return
	}

	put(dst, elfimage.Shdr32{
		Name:      sh.name,
		Type:      uint32(sh.typ),
		Flags:     uint32(sh.flags),
		Addr:      uint32(sh.addr),
		Offset:    uint32(sh.offset),
		Size:      uint32(sh.size),
		Link:      sh.link,
		Info:      sh.info,
		AddrAlign: 4,
		EntSize:   uint32(sh.entSize),
	})
}
