package elfimage

import (
	"debug/elf"

	"github.com/pkg/errors"

	"github.com/ksco/elf2hex/pkg/utils"
)

var (
	ErrNotELF             = errors.New("not an ELF file")
	ErrBigEndian          = errors.New("big-endian ELF files are not supported")
	ErrUnsupportedMachine = errors.New("not a RISC-V ELF file")
	ErrUnknownClass       = errors.New("ELF file is neither 32-bit nor 64-bit")
	ErrTruncated          = errors.New("ELF file is truncated")
)

// ehdr is the class-independent part of the ELF header this package needs.
type ehdr struct {
	entry     uint64
	phOff     uint64
	shOff     uint64
	phEntSize uint64
	phNum     uint64
	shEntSize uint64
	shNum     uint64
	shStrndx  uint64
}

type inputFile struct {
	file  *File
	class elf.Class
}

// Parse validates that file is a little-endian RISC-V ELF image and
// decodes its program headers, section headers and symbol tables.
func Parse(file *File) (*Image, error) {
	contents := file.Contents
	if len(contents) < elf.EI_NIDENT || !CheckMagic(contents) {
		return nil, errors.Wrap(ErrNotELF, file.Name)
	}

	class := elf.Class(contents[elf.EI_CLASS])
	if class != elf.ELFCLASS32 && class != elf.ELFCLASS64 {
		return nil, errors.Wrapf(ErrUnknownClass, "%s: class %d", file.Name, class)
	}
	if elf.Data(contents[elf.EI_DATA]) != elf.ELFDATA2LSB {
		return nil, errors.Wrap(ErrBigEndian, file.Name)
	}
	if len(contents) < machineEnd {
		return nil, errors.Wrapf(ErrTruncated, "%s: %d byte header", file.Name, len(contents))
	}
	if GetMachineTypeFromContents(contents) == MachineTypeNone {
		return nil, errors.Wrap(ErrUnsupportedMachine, file.Name)
	}

	f := &inputFile{file: file, class: class}
	eh, err := f.readEhdr()
	if err != nil {
		return nil, err
	}

	img := &Image{
		Name:    file.Name,
		Class:   class,
		Machine: GetMachineTypeFromContents(contents),
		Entry:   eh.entry,
	}

	if img.Sections, err = f.readSections(&eh); err != nil {
		return nil, err
	}
	if img.Segments, err = f.readSegments(&eh); err != nil {
		return nil, err
	}
	if err = f.readSymbols(img.Sections); err != nil {
		return nil, err
	}
	return img, nil
}

func (f *inputFile) bytesAt(offset, size uint64) ([]byte, error) {
	contents := f.file.Contents
	end := offset + size
	if end < offset || uint64(len(contents)) < end {
		return nil, errors.Wrapf(ErrTruncated, "range %#x+%#x is out of file bounds", offset, size)
	}
	return contents[offset:end], nil
}

func (f *inputFile) readEhdr() (ehdr, error) {
	if f.class == elf.ELFCLASS32 {
		h, err := utils.Read[Ehdr32](f.file.Contents)
		if err != nil {
			return ehdr{}, errors.Wrap(ErrTruncated, err.Error())
		}
		return ehdr{
			entry:     uint64(h.Entry),
			phOff:     uint64(h.PhOff),
			shOff:     uint64(h.ShOff),
			phEntSize: entSize[Phdr32](h.PhEntSize),
			phNum:     uint64(h.PhNum),
			shEntSize: entSize[Shdr32](h.ShEntSize),
			shNum:     uint64(h.ShNum),
			shStrndx:  uint64(h.ShStrndx),
		}, nil
	}

	h, err := utils.Read[Ehdr64](f.file.Contents)
	if err != nil {
		return ehdr{}, errors.Wrap(ErrTruncated, err.Error())
	}
	return ehdr{
		entry:     h.Entry,
		phOff:     h.PhOff,
		shOff:     h.ShOff,
		phEntSize: entSize[Phdr64](h.PhEntSize),
		phNum:     uint64(h.PhNum),
		shEntSize: entSize[Shdr64](h.ShEntSize),
		shNum:     uint64(h.ShNum),
		shStrndx:  uint64(h.ShStrndx),
	}, nil
}

func entSize[T any](declared uint16) uint64 {
	if declared == 0 {
		return uint64(utils.SizeOf[T]())
	}
	return uint64(declared)
}

// rawShdr carries the header fields that are only needed while the image
// is being decoded.
type rawShdr struct {
	Section
	nameOff uint32
	offset  uint64
}

func (f *inputFile) readShdr(offset uint64) (rawShdr, error) {
	if f.class == elf.ELFCLASS32 {
		bs, err := f.bytesAt(offset, uint64(utils.SizeOf[Shdr32]()))
		if err != nil {
			return rawShdr{}, err
		}
		s, err := utils.Read[Shdr32](bs)
		if err != nil {
			return rawShdr{}, err
		}
		return rawShdr{
			Section: Section{
				Type:    elf.SectionType(s.Type),
				Flags:   elf.SectionFlag(s.Flags),
				Addr:    uint64(s.Addr),
				Size:    uint64(s.Size),
				Link:    s.Link,
				Info:    s.Info,
				EntSize: uint64(s.EntSize),
			},
			nameOff: s.Name,
			offset:  uint64(s.Offset),
		}, nil
	}

	bs, err := f.bytesAt(offset, uint64(utils.SizeOf[Shdr64]()))
	if err != nil {
		return rawShdr{}, err
	}
	s, err := utils.Read[Shdr64](bs)
	if err != nil {
		return rawShdr{}, err
	}
	return rawShdr{
		Section: Section{
			Type:    elf.SectionType(s.Type),
			Flags:   elf.SectionFlag(s.Flags),
			Addr:    s.Addr,
			Size:    s.Size,
			Link:    s.Link,
			Info:    s.Info,
			EntSize: s.EntSize,
		},
		nameOff: s.Name,
		offset:  s.Offset,
	}, nil
}

func (f *inputFile) readSections(eh *ehdr) ([]Section, error) {
	if eh.shOff == 0 {
		return nil, nil
	}

	first, err := f.readShdr(eh.shOff)
	if err != nil {
		return nil, err
	}

	numSections := eh.shNum
	if numSections == 0 {
		numSections = first.Size
	}
	shstrtabIdx := eh.shStrndx
	if shstrtabIdx == uint64(elf.SHN_XINDEX) {
		shstrtabIdx = uint64(first.Link)
	}
	if eh.phNum == 0xffff {
		eh.phNum = uint64(first.Info)
	}

	raws := []rawShdr{first}
	for i := uint64(1); i < numSections; i++ {
		raw, err := f.readShdr(eh.shOff + i*eh.shEntSize)
		if err != nil {
			return nil, err
		}
		raws = append(raws, raw)
	}

	for i := range raws {
		raw := &raws[i]
		if raw.Type == elf.SHT_NOBITS || raw.Type == elf.SHT_NULL || raw.Size == 0 {
			continue
		}
		if raw.Data, err = f.bytesAt(raw.offset, raw.Size); err != nil {
			return nil, errors.Wrapf(err, "section %d", i)
		}
	}

	var shStrtab []byte
	if shstrtabIdx < uint64(len(raws)) {
		shStrtab = raws[shstrtabIdx].Data
	}

	sections := make([]Section, 0, len(raws))
	for _, raw := range raws {
		raw.Name = getName(shStrtab, raw.nameOff)
		sections = append(sections, raw.Section)
	}
	return sections, nil
}

func (f *inputFile) readSegments(eh *ehdr) ([]Segment, error) {
	segments := make([]Segment, 0, eh.phNum)
	for i := uint64(0); i < eh.phNum; i++ {
		offset := eh.phOff + i*eh.phEntSize
		if f.class == elf.ELFCLASS32 {
			bs, err := f.bytesAt(offset, uint64(utils.SizeOf[Phdr32]()))
			if err != nil {
				return nil, errors.Wrapf(err, "program header %d", i)
			}
			p, err := utils.Read[Phdr32](bs)
			if err != nil {
				return nil, err
			}
			segments = append(segments, Segment{
				Type:     elf.ProgType(p.Type),
				Flags:    elf.ProgFlag(p.Flags),
				Offset:   uint64(p.Offset),
				VAddr:    uint64(p.VAddr),
				PAddr:    uint64(p.PAddr),
				FileSize: uint64(p.FileSize),
				MemSize:  uint64(p.MemSize),
				Align:    uint64(p.Align),
			})
			continue
		}

		bs, err := f.bytesAt(offset, uint64(utils.SizeOf[Phdr64]()))
		if err != nil {
			return nil, errors.Wrapf(err, "program header %d", i)
		}
		p, err := utils.Read[Phdr64](bs)
		if err != nil {
			return nil, err
		}
		segments = append(segments, Segment{
			Type:     elf.ProgType(p.Type),
			Flags:    elf.ProgFlag(p.Flags),
			Offset:   p.Offset,
			VAddr:    p.VAddr,
			PAddr:    p.PAddr,
			FileSize: p.FileSize,
			MemSize:  p.MemSize,
			Align:    p.Align,
		})
	}
	return segments, nil
}

func (f *inputFile) readSymbols(sections []Section) error {
	for i := range sections {
		s := &sections[i]
		if s.Type != elf.SHT_SYMTAB {
			continue
		}

		var strTab []byte
		if int(s.Link) < len(sections) {
			strTab = sections[s.Link].Data
		}

		if f.class == elf.ELFCLASS32 {
			syms, err := readSyms[Sym32](s)
			if err != nil {
				return err
			}
			for _, esym := range syms {
				s.Symbols = append(s.Symbols, Symbol{
					Name:  getName(strTab, esym.Name),
					Value: uint64(esym.Val),
				})
			}
			continue
		}

		syms, err := readSyms[Sym64](s)
		if err != nil {
			return err
		}
		for _, esym := range syms {
			s.Symbols = append(s.Symbols, Symbol{
				Name:  getName(strTab, esym.Name),
				Value: esym.Val,
			})
		}
	}
	return nil
}

func readSyms[T any](s *Section) ([]T, error) {
	stride := s.EntSize
	if stride == 0 {
		stride = uint64(utils.SizeOf[T]())
	}

	bs := s.Data
	nums := uint64(len(bs)) / stride
	syms := make([]T, 0, nums)
	for i := uint64(0); i < nums; i++ {
		sym, err := utils.Read[T](bs[i*stride:])
		if err != nil {
			return nil, errors.Wrapf(err, "symbol %d of %s", i, s.Name)
		}
		syms = append(syms, sym)
	}
	return syms, nil
}
