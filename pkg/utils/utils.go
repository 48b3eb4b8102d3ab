package utils

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/pkg/errors"
)

var fatalPrefix = color.New(color.Bold, color.FgRed).SprintFunc()

func MustNo(err error) {
	if err != nil {
		Fatal(err)
	}
}

// Fatal reports v on stderr and terminates the process. Only the command
// line entry point calls it; library packages return errors.
func Fatal(v any) {
	fmt.Fprintln(os.Stderr, "elf2hex:", fatalPrefix("ERROR:"), fmt.Sprintf("%s", v))
	os.Exit(1)
}

func AlignTo(val, align uint64) uint64 {
	if align == 0 {
		return val
	}
	return (val + align - 1) & ^(align - 1)
}

func AlignDown(val, align uint64) uint64 {
	if align == 0 {
		return val
	}
	return val & ^(align - 1)
}

func IsAligned(val, align uint64) bool {
	return AlignDown(val, align) == val
}

// Read decodes a little-endian T from the head of data.
func Read[T any](data []byte) (val T, err error) {
	reader := bytes.NewReader(data)
	if err = binary.Read(reader, binary.LittleEndian, &val); err != nil {
		return val, errors.Wrapf(err, "decode %T", val)
	}
	return val, nil
}

// Write encodes e little-endian into the head of data.
func Write[T any](data []byte, e T) error {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, e); err != nil {
		return errors.Wrapf(err, "encode %T", e)
	}
	if len(data) < buf.Len() {
		return errors.Errorf("encode %T: need %d bytes, have %d", e, buf.Len(), len(data))
	}
	copy(data, buf.Bytes())
	return nil
}

func SizeOf[T any]() int {
	var val T
	return binary.Size(val)
}
