package elfimage

import (
	"bytes"
	"debug/elf"
)

// Raw on-disk headers. ELF32 and ELF64 lay their program headers and
// symbols out in a different field order, so each class has its own struct.

type Ehdr64 struct {
	Ident     [16]uint8
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	PhOff     uint64
	ShOff     uint64
	Flags     uint32
	EhSize    uint16
	PhEntSize uint16
	PhNum     uint16
	ShEntSize uint16
	ShNum     uint16
	ShStrndx  uint16
}

type Shdr64 struct {
	Name      uint32
	Type      uint32
	Flags     uint64
	Addr      uint64
	Offset    uint64
	Size      uint64
	Link      uint32
	Info      uint32
	AddrAlign uint64
	EntSize   uint64
}

type Phdr64 struct {
	Type     uint32
	Flags    uint32
	Offset   uint64
	VAddr    uint64
	PAddr    uint64
	FileSize uint64
	MemSize  uint64
	Align    uint64
}

type Sym64 struct {
	Name  uint32
	Info  uint8
	Other uint8
	Shndx uint16
	Val   uint64
	Size  uint64
}

type Ehdr32 struct {
	Ident     [16]uint8
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint32
	PhOff     uint32
	ShOff     uint32
	Flags     uint32
	EhSize    uint16
	PhEntSize uint16
	PhNum     uint16
	ShEntSize uint16
	ShNum     uint16
	ShStrndx  uint16
}

type Shdr32 struct {
	Name      uint32
	Type      uint32
	Flags     uint32
	Addr      uint32
	Offset    uint32
	Size      uint32
	Link      uint32
	Info      uint32
	AddrAlign uint32
	EntSize   uint32
}

type Phdr32 struct {
	Type     uint32
	Offset   uint32
	VAddr    uint32
	PAddr    uint32
	FileSize uint32
	MemSize  uint32
	Flags    uint32
	Align    uint32
}

type Sym32 struct {
	Name  uint32
	Val   uint32
	Size  uint32
	Info  uint8
	Other uint8
	Shndx uint16
}

func CheckMagic(contents []byte) bool {
	return bytes.HasPrefix(contents, []byte(elf.ELFMAG))
}

func WriteMagic(contents []byte) {
	copy(contents, elf.ELFMAG)
}

func getName(strTab []byte, offset uint32) string {
	if int(offset) >= len(strTab) {
		return ""
	}
	length := bytes.IndexByte(strTab[offset:], 0)
	if length < 0 {
		return string(strTab[offset:])
	}
	return string(strTab[offset : offset+uint32(length)])
}
