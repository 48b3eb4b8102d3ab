package elfimage

import (
	"debug/elf"
	"encoding/binary"
)

type MachineType = int8

const (
	MachineTypeNone    MachineType = iota
	MachineTypeRISCV32 MachineType = iota
	MachineTypeRISCV64 MachineType = iota
)

// machineEnd is the offset just past e_machine, which sits at the same
// place in both classes.
const machineEnd = 20

// GetMachineTypeFromContents reports which RISC-V flavour a little-endian
// ELF image targets, or MachineTypeNone for anything else.
func GetMachineTypeFromContents(contents []byte) MachineType {
	if !CheckMagic(contents) || len(contents) < machineEnd {
		return MachineTypeNone
	}
	if contents[elf.EI_DATA] != byte(elf.ELFDATA2LSB) {
		return MachineTypeNone
	}

	machine := binary.LittleEndian.Uint16(contents[machineEnd-2:])
	if machine == uint16(elf.EM_RISCV) {
		class := contents[elf.EI_CLASS]
		switch class {
		case byte(elf.ELFCLASS32):
			return MachineTypeRISCV32
		case byte(elf.ELFCLASS64):
			return MachineTypeRISCV64
		}
	}

	return MachineTypeNone
}

type MachineTypeStringer struct {
	MachineType
}

func (mts MachineTypeStringer) String() string {
	switch mts.MachineType {
	case MachineTypeRISCV32:
		return "riscv32"
	case MachineTypeRISCV64:
		return "riscv64"
	}
	return "none"
}
