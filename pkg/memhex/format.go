package memhex

import (
	"fmt"
	"io"
	"strconv"
)

// WordSize is the number of bytes carried by one data line.
const WordSize = 4

func writeAddressLine(w io.Writer, base uint64) {
	fmt.Fprintf(w, "@%x    // ---- %x\n", base/WordSize, base)
}

func writeDataLine(w io.Writer, base uint64, word uint32) {
	fmt.Fprintf(w, "%08x     // %08x\n", word, base)
}

// hex renders an address for log records.
func hex(v uint64) string {
	return "0x" + strconv.FormatUint(v, 16)
}
