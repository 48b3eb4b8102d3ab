package convert

import "fmt"

// Marker is the address of one of the marker symbols, if it was found.
type Marker struct {
	Addr  uint64
	Found bool
}

func (m Marker) String() string {
	if !m.Found {
		return "not found"
	}
	return fmt.Sprintf("%x", m.Addr)
}

// Features summarises what a conversion loaded.
type Features struct {
	BitWidth int

	// MinPAddr and MaxPAddr bound the loaded bytes inclusively. They are
	// only meaningful when HasSpan is set.
	MinPAddr   uint64
	MaxPAddr   uint64
	HasSpan    bool
	TotalBytes uint64

	Start  Marker
	Exit   Marker
	ToHost Marker
}

func (f *Features) addRange(paddr, size uint64) {
	last := paddr + size - 1
	if !f.HasSpan || paddr < f.MinPAddr {
		f.MinPAddr = paddr
	}
	if !f.HasSpan || f.MaxPAddr < last {
		f.MaxPAddr = last
	}
	f.HasSpan = true
	f.TotalBytes += size
}

// Span is the number of bytes between the lowest and highest loaded
// addresses, inclusive.
func (f *Features) Span() uint64 {
	if !f.HasSpan {
		return 0
	}
	return f.MaxPAddr + 1 - f.MinPAddr
}
