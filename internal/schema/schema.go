// Package schema holds the read-only descriptor model the generator works on.
//
// A File is built once from a descriptorpb.FileDescriptorProto and never mutated afterwards;
// every analysis and emission pass only reads it.
package schema

import (
	"google.golang.org/protobuf/types/descriptorpb"
)

// Source is the direction a message travels in, seen from the device that runs generated code.
type Source int

const (
	// SourceBoth messages are encoded and decoded.
	SourceBoth Source = iota
	// SourceServer messages are only sent, so only encode logic is generated.
	SourceServer
	// SourceClient messages are only received, so only decode logic is generated.
	SourceClient
)

func (s Source) String() string {
	switch s {
	case SourceBoth:
		return "BOTH"
	case SourceServer:
		return "SERVER"
	case SourceClient:
		return "CLIENT"
	}
	return "UNKNOWN"
}

// Encodes reports whether generated code for the direction needs encode and size routines.
func (s Source) Encodes() bool { return s != SourceClient }

// Decodes reports whether generated code for the direction needs decode routines.
func (s Source) Decodes() bool { return s != SourceServer }

type Field struct {
	Name     string
	Number   int32
	Type     descriptorpb.FieldDescriptorProto_Type
	TypeName string // simple name of the message or enum type, empty for scalars
	Repeated bool

	Ifdef          string
	FixedArraySize uint32
	Deprecated     bool
}

func (f *Field) IsMessage() bool {
	return f.Type == descriptorpb.FieldDescriptorProto_TYPE_MESSAGE
}

func (f *Field) IsEnum() bool {
	return f.Type == descriptorpb.FieldDescriptorProto_TYPE_ENUM
}

type Message struct {
	Name   string
	Fields []*Field

	ID        uint32
	HasID     bool
	Source    Source
	HasSource bool
	Ifdef     string
	Log       bool
	BaseClass string
}

// ActiveFields returns the fields that take part in generated code, in declaration order.
func (m *Message) ActiveFields() []*Field {
	fields := make([]*Field, 0, len(m.Fields))
	for _, f := range m.Fields {
		if !f.Deprecated {
			fields = append(fields, f)
		}
	}
	return fields
}

type EnumValue struct {
	Name   string
	Number int32
}

type Enum struct {
	Name   string
	Values []EnumValue
}

type Method struct {
	Name   string
	Input  string
	Output string // empty when the method has no response

	NeedsSetupConnection bool
	NeedsAuthentication  bool
}

// Void reports whether the method sends nothing back.
func (m *Method) Void() bool { return m.Output == "" }

type Service struct {
	Name    string
	Methods []*Method
}

type File struct {
	Name     string
	Package  string
	Enums    []*Enum
	Messages []*Message
	Services []*Service

	messages map[string]*Message
	enums    map[string]*Enum
}

func (f *File) Message(name string) *Message { return f.messages[name] }

func (f *File) Enum(name string) *Enum { return f.enums[name] }

// IDMessages returns the messages that carry a message-type id, in declaration order.
func (f *File) IDMessages() []*Message {
	var out []*Message
	for _, m := range f.Messages {
		if m.HasID {
			out = append(out, m)
		}
	}
	return out
}
