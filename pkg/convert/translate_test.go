package convert

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/ksco/elf2hex/pkg/elfimage"
)

func TestTranslate(t *testing.T) {
	segments := []elfimage.Segment{
		{VAddr: 0xc000_0000, PAddr: 0x8000_0000, MemSize: 0x100},
		{VAddr: 0xc000_0000, PAddr: 0x9000_0000, MemSize: 0x10000},
		{VAddr: 0x1000, PAddr: 0x1000, MemSize: 0x1000},
	}

	for _, tc := range []struct {
		name  string
		vaddr uint64
		size  uint64
		want  uint64
	}{
		{"first segment wins", 0xc000_0010, 0x10, 0x8000_0010},
		{"falls through on size", 0xc000_0010, 0x200, 0x9000_0010},
		{"identity", 0x1004, 4, 0x1004},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Translate(segments, tc.vaddr, tc.size)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestTranslateNoCoveringSegment(t *testing.T) {
	segments := []elfimage.Segment{
		{VAddr: 0x1000, PAddr: 0x1000, MemSize: 0x10},
	}

	_, err := Translate(segments, 0x800, 4)
	require.ErrorIs(t, err, ErrNoCoveringSegment)

	var nc *NoCoveringSegmentError
	require.True(t, errors.As(err, &nc))
	require.Equal(t, uint64(0x800), nc.VAddr)
	require.Equal(t, uint64(4), nc.Size)

	_, err = Translate(segments, 0x1000, 0x20)
	require.ErrorIs(t, err, ErrNoCoveringSegment)

	_, err = Translate(nil, 0, 0)
	require.ErrorIs(t, err, ErrNoCoveringSegment)
}
