package convert

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeaturesAddRange(t *testing.T) {
	var f Features
	require.Equal(t, uint64(0), f.Span())

	f.addRange(0x2000, 0x10)
	require.True(t, f.HasSpan)
	require.Equal(t, uint64(0x2000), f.MinPAddr)
	require.Equal(t, uint64(0x200f), f.MaxPAddr)

	f.addRange(0x1000, 4)
	f.addRange(0x1800, 4)
	require.Equal(t, uint64(0x1000), f.MinPAddr)
	require.Equal(t, uint64(0x200f), f.MaxPAddr)
	require.Equal(t, uint64(0x18), f.TotalBytes)
	require.Equal(t, uint64(0x1010), f.Span())
}

func TestMarkerString(t *testing.T) {
	require.Equal(t, "not found", Marker{}.String())
	require.Equal(t, "80000000", Marker{Addr: 0x8000_0000, Found: true}.String())
}
