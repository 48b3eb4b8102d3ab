package convert

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/ksco/elf2hex/pkg/elfimage"
)

var ErrNoCoveringSegment = errors.New("could not find segment containing given virtual range")

type NoCoveringSegmentError struct {
	VAddr uint64
	Size  uint64
}

func (e *NoCoveringSegmentError) Error() string {
	return fmt.Sprintf("%s: vaddr %x size %x", ErrNoCoveringSegment, e.VAddr, e.Size)
}

func (e *NoCoveringSegmentError) Is(target error) bool {
	return target == ErrNoCoveringSegment
}

// Translate maps vaddr to a physical address through the first segment, in
// program header table order, whose virtual base is at or below vaddr and
// whose memory size can hold size bytes. When segments overlap the earlier
// one wins.
func Translate(segments []elfimage.Segment, vaddr, size uint64) (uint64, error) {
	for i := range segments {
		seg := &segments[i]
		if seg.VAddr <= vaddr && size <= seg.MemSize {
			return vaddr - seg.VAddr + seg.PAddr, nil
		}
	}
	return 0, &NoCoveringSegmentError{VAddr: vaddr, Size: size}
}
