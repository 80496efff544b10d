// Package fieldtype is the per-field code generation behavior: which C++ storage a field gets and
// which statements encode, decode, size and dump it.
package fieldtype

import (
	"fmt"

	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/wham/apigen/pkg/wire"
)

// Kind is the closed set of field kinds generated code can carry.
type Kind int

const (
	Bool Kind = iota
	Int32
	Int64
	Uint32
	Uint64
	Sint32
	Fixed32
	Sfixed32
	Sfixed64
	Float
	String
	Bytes
	Message
	Enum
)

var kindNames = [...]string{
	Bool:     "bool",
	Int32:    "int32",
	Int64:    "int64",
	Uint32:   "uint32",
	Uint64:   "uint64",
	Sint32:   "sint32",
	Fixed32:  "fixed32",
	Sfixed32: "sfixed32",
	Sfixed64: "sfixed64",
	Float:    "float",
	String:   "string",
	Bytes:    "bytes",
	Message:  "message",
	Enum:     "enum",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// KindOf maps a descriptor type onto a Kind. The 64-bit float, fixed and zig-zag types double the
// storage and encode cost on the targets this code runs on and have no Kind.
func KindOf(t descriptorpb.FieldDescriptorProto_Type) (Kind, error) {
	switch t {
	case descriptorpb.FieldDescriptorProto_TYPE_BOOL:
		return Bool, nil
	case descriptorpb.FieldDescriptorProto_TYPE_INT32:
		return Int32, nil
	case descriptorpb.FieldDescriptorProto_TYPE_INT64:
		return Int64, nil
	case descriptorpb.FieldDescriptorProto_TYPE_UINT32:
		return Uint32, nil
	case descriptorpb.FieldDescriptorProto_TYPE_UINT64:
		return Uint64, nil
	case descriptorpb.FieldDescriptorProto_TYPE_SINT32:
		return Sint32, nil
	case descriptorpb.FieldDescriptorProto_TYPE_FIXED32:
		return Fixed32, nil
	case descriptorpb.FieldDescriptorProto_TYPE_SFIXED32:
		return Sfixed32, nil
	case descriptorpb.FieldDescriptorProto_TYPE_SFIXED64:
		return Sfixed64, nil
	case descriptorpb.FieldDescriptorProto_TYPE_FLOAT:
		return Float, nil
	case descriptorpb.FieldDescriptorProto_TYPE_STRING:
		return String, nil
	case descriptorpb.FieldDescriptorProto_TYPE_BYTES:
		return Bytes, nil
	case descriptorpb.FieldDescriptorProto_TYPE_MESSAGE:
		return Message, nil
	case descriptorpb.FieldDescriptorProto_TYPE_ENUM:
		return Enum, nil
	case descriptorpb.FieldDescriptorProto_TYPE_DOUBLE,
		descriptorpb.FieldDescriptorProto_TYPE_FIXED64,
		descriptorpb.FieldDescriptorProto_TYPE_SINT64:
		return 0, fmt.Errorf("type %s is not supported, use float, fixed32 or sint32 instead", typeLabel(t))
	}
	return 0, fmt.Errorf("type %s is not supported", typeLabel(t))
}

func typeLabel(t descriptorpb.FieldDescriptorProto_Type) string {
	if name, ok := descriptorpb.FieldDescriptorProto_Type_name[int32(t)]; ok {
		return name
	}
	return fmt.Sprintf("%d", int32(t))
}

func (k Kind) WireType() wire.Type {
	switch k {
	case Fixed32, Sfixed32, Float:
		return wire.Fixed32
	case Sfixed64:
		return wire.Fixed64
	case String, Bytes, Message:
		return wire.LengthDelimited
	}
	return wire.Varint
}

// FixedWidth reports whether every encoded element has the same payload size.
func (k Kind) FixedWidth() bool {
	return k.WireType().Width() > 0
}

// DecodeEntry is one of the four wire-level decode callbacks of a generated message.
type DecodeEntry int

const (
	DecodeVarint DecodeEntry = iota
	DecodeLength
	Decode32Bit
	Decode64Bit
)

// DecodeEntries lists the callbacks in the order generated code declares them.
var DecodeEntries = []DecodeEntry{DecodeVarint, DecodeLength, Decode32Bit, Decode64Bit}

// Method returns the C++ method name of the callback.
func (e DecodeEntry) Method() string {
	switch e {
	case DecodeVarint:
		return "decode_varint"
	case DecodeLength:
		return "decode_length"
	case Decode32Bit:
		return "decode_32bit"
	}
	return "decode_64bit"
}

// ValueType returns the C++ type of the value the callback receives.
func (e DecodeEntry) ValueType() string {
	switch e {
	case DecodeVarint:
		return "ProtoVarInt"
	case DecodeLength:
		return "ProtoLengthDelimited"
	case Decode32Bit:
		return "Proto32Bit"
	}
	return "Proto64Bit"
}

// EntryFor returns the callback that receives values of wire type t.
func EntryFor(t wire.Type) DecodeEntry {
	switch t {
	case wire.LengthDelimited:
		return DecodeLength
	case wire.Fixed32:
		return Decode32Bit
	case wire.Fixed64:
		return Decode64Bit
	}
	return DecodeVarint
}
