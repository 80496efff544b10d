// Package wire describes the framing of the protobuf-compatible wire format used by generated code.
package wire

import "fmt"

// Type is the 3-bit suffix of a field tag.
type Type uint8

const (
	Varint          Type = 0
	Fixed64         Type = 1
	LengthDelimited Type = 2
	Fixed32         Type = 5
)

// MaxFieldNumber is the largest field number a tag can carry.
const MaxFieldNumber = 1<<29 - 1

func (t Type) String() string {
	switch t {
	case Varint:
		return "VARINT"
	case Fixed64:
		return "FIXED64"
	case LengthDelimited:
		return "LENGTH_DELIMITED"
	case Fixed32:
		return "FIXED32"
	}
	return fmt.Sprintf("WireType(%d)", uint8(t))
}

// Width returns the payload size of fixed-width wire types and 0 for the others.
func (t Type) Width() int {
	switch t {
	case Fixed32:
		return 4
	case Fixed64:
		return 8
	}
	return 0
}

// TagSize returns the number of bytes of the varint-encoded tag (number<<3)|t.
// It never looks at encoded bytes, so generated size routines can use it as a constant.
func TagSize(number int32, t Type) int {
	tag := uint32(number)<<3 | uint32(t&0b111)
	switch {
	case tag < 1<<7:
		return 1
	case tag < 1<<14:
		return 2
	case tag < 1<<21:
		return 3
	case tag < 1<<28:
		return 4
	}
	return 5
}
