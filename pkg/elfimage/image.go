package elfimage

import (
	"debug/elf"
)

// Segment is a program header widened to 64 bits.
type Segment struct {
	Type     elf.ProgType
	Flags    elf.ProgFlag
	Offset   uint64
	VAddr    uint64
	PAddr    uint64
	FileSize uint64
	MemSize  uint64
	Align    uint64
}

// Section is a section header widened to 64 bits together with its
// contents. Data is nil for SHT_NOBITS sections; Symbols is only populated
// for SHT_SYMTAB sections.
type Section struct {
	Name    string
	Type    elf.SectionType
	Flags   elf.SectionFlag
	Addr    uint64
	Size    uint64
	Link    uint32
	Info    uint32
	EntSize uint64

	Data    []byte
	Symbols []Symbol
}

func (s *Section) IsAlloc() bool {
	return s.Flags&elf.SHF_ALLOC != 0
}

func (s *Section) HasBits() bool {
	return s.Type != elf.SHT_NOBITS
}

type Symbol struct {
	Name  string
	Value uint64
}

type Image struct {
	Name     string
	Class    elf.Class
	Machine  MachineType
	Entry    uint64
	Segments []Segment
	Sections []Section
}

func (img *Image) BitWidth() int {
	if img.Class == elf.ELFCLASS64 {
		return 64
	}
	return 32
}

func (img *Image) Section(name string) *Section {
	for i := range img.Sections {
		s := &img.Sections[i]
		if s.Name == name {
			return s
		}
	}
	return nil
}
