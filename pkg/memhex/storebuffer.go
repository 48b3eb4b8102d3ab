// Package memhex writes memhex32 memory images: one little-endian 32-bit
// word per line, with "@" address lines inserted wherever the stream of
// words is not contiguous.
package memhex

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/ksco/elf2hex/pkg/utils"
)

type Stats struct {
	Words        uint64
	AddressLines uint64
}

// StoreBuffer coalesces a stream of byte writes into aligned words. It
// holds at most one partially assembled word; pushing a byte for a
// different word writes the held one out first.
//
// A StoreBuffer belongs to a single conversion and is not safe for
// concurrent use.
type StoreBuffer struct {
	w      *bufio.Writer
	logger log.Logger

	live  bool
	base  uint64
	lanes [WordSize]byte

	written     bool
	lastWritten uint64

	stats Stats
}

func NewStoreBuffer(w io.Writer, logger log.Logger) *StoreBuffer {
	return &StoreBuffer{
		w:      bufio.NewWriter(w),
		logger: log.With(logger, "component", "memhex"),
	}
}

// Push merges b into the word containing addr. Addresses are expected in
// non-decreasing order; a lower address is reported but still merged.
func (sb *StoreBuffer) Push(addr uint64, b byte) {
	aligned := utils.AlignDown(addr, WordSize)
	lane := addr - aligned

	if !sb.live {
		sb.live = true
		sb.base = aligned
	}

	if addr < sb.base {
		level.Warn(sb.logger).Log(
			"msg", "write address is below the buffered word",
			"addr", hex(addr),
			"word", hex(sb.base),
		)
	}

	if aligned != sb.base {
		sb.emit()
		sb.base = aligned
		sb.lanes = [WordSize]byte{}
	}

	sb.lanes[lane] = b
}

// Flush writes out the buffered word, if any, and flushes the underlying
// writer. Write errors encountered at any point are returned here.
func (sb *StoreBuffer) Flush() error {
	if sb.live {
		sb.emit()
		sb.live = false
		sb.lanes = [WordSize]byte{}
	}
	if err := sb.w.Flush(); err != nil {
		return errors.Wrap(err, "write memhex32 output")
	}
	return nil
}

func (sb *StoreBuffer) Stats() Stats {
	return sb.stats
}

func (sb *StoreBuffer) emit() {
	if !sb.written || sb.lastWritten+WordSize != sb.base {
		writeAddressLine(sb.w, sb.base)
		sb.stats.AddressLines++
	}
	writeDataLine(sb.w, sb.base, binary.LittleEndian.Uint32(sb.lanes[:]))
	sb.stats.Words++

	sb.written = true
	sb.lastWritten = sb.base
}
