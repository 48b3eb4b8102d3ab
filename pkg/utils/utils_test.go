package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAlign(t *testing.T) {
	require.Equal(t, uint64(8), AlignTo(5, 4))
	require.Equal(t, uint64(8), AlignTo(8, 4))
	require.Equal(t, uint64(5), AlignTo(5, 0))
	require.Equal(t, uint64(4), AlignDown(7, 4))
	require.Equal(t, uint64(0x1000), AlignDown(0x1003, 4))
	require.True(t, IsAligned(0x1000, 4))
	require.False(t, IsAligned(0x1006, 4))
}

func TestRead(t *testing.T) {
	type pair struct {
		A uint16
		B uint32
	}
	require.Equal(t, 6, SizeOf[pair]())

	v, err := Read[pair]([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06})
	require.NoError(t, err)
	require.Equal(t, pair{A: 0x0201, B: 0x06050403}, v)

	buf := make([]byte, 6)
	require.NoError(t, Write(buf, v))
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}, buf)
	require.Error(t, Write(make([]byte, 4), v))

	_, err = Read[pair]([]byte{0x01})
	require.Error(t, err)
}

func TestMapSet(t *testing.T) {
	s := NewMapSet(".bss", ".sbss")
	require.True(t, s.Contains(".bss"))
	require.False(t, s.Contains(".data"))
	s.Add(".data")
	require.True(t, s.Contains(".data"))
}
