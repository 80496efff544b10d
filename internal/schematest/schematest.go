// Package schematest builds descriptor trees for tests, with the generator's custom options
// attached the same way protoc attaches unregistered extensions.
package schematest

import (
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/wham/apigen/internal/schema"
)

// Package is the proto package every built file lives in.
const Package = "test"

type FieldType = descriptorpb.FieldDescriptorProto_Type

const (
	Bool     = descriptorpb.FieldDescriptorProto_TYPE_BOOL
	Int32    = descriptorpb.FieldDescriptorProto_TYPE_INT32
	Int64    = descriptorpb.FieldDescriptorProto_TYPE_INT64
	Uint32   = descriptorpb.FieldDescriptorProto_TYPE_UINT32
	Uint64   = descriptorpb.FieldDescriptorProto_TYPE_UINT64
	Sint32   = descriptorpb.FieldDescriptorProto_TYPE_SINT32
	Sint64   = descriptorpb.FieldDescriptorProto_TYPE_SINT64
	Fixed32  = descriptorpb.FieldDescriptorProto_TYPE_FIXED32
	Fixed64  = descriptorpb.FieldDescriptorProto_TYPE_FIXED64
	Sfixed32 = descriptorpb.FieldDescriptorProto_TYPE_SFIXED32
	Sfixed64 = descriptorpb.FieldDescriptorProto_TYPE_SFIXED64
	Float    = descriptorpb.FieldDescriptorProto_TYPE_FLOAT
	Double   = descriptorpb.FieldDescriptorProto_TYPE_DOUBLE
	String   = descriptorpb.FieldDescriptorProto_TYPE_STRING
	Bytes    = descriptorpb.FieldDescriptorProto_TYPE_BYTES
)

// File returns a proto3 file holding the given declarations. Methods returning "void" get the
// placeholder message added automatically.
func File(decls ...interface{}) *descriptorpb.FileDescriptorProto {
	fd := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("test.proto"),
		Package: proto.String(Package),
		Syntax:  proto.String("proto3"),
	}
	needsVoid := false
	for _, d := range decls {
		switch d := d.(type) {
		case *descriptorpb.DescriptorProto:
			fd.MessageType = append(fd.MessageType, d)
		case *descriptorpb.EnumDescriptorProto:
			fd.EnumType = append(fd.EnumType, d)
		case *descriptorpb.ServiceDescriptorProto:
			fd.Service = append(fd.Service, d)
			for _, m := range d.Method {
				if m.GetOutputType() == ref("void") {
					needsVoid = true
				}
			}
		default:
			panic("schematest: unsupported declaration")
		}
	}
	if needsVoid {
		fd.MessageType = append(fd.MessageType, Message("void"))
	}
	return fd
}

// Build runs schema.FromDescriptor and panics on error.
func Build(decls ...interface{}) *schema.File {
	f, err := schema.FromDescriptor(File(decls...))
	if err != nil {
		panic(err)
	}
	return f
}

func ref(name string) string {
	return "." + Package + "." + name
}

func Message(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: proto.String(name), Field: fields}
}

func Field(name string, number int32, t FieldType) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		Number:   proto.Int32(number),
		Type:     t.Enum(),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		JsonName: proto.String(name),
	}
}

func MessageField(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	f := Field(name, number, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE)
	f.TypeName = proto.String(ref(typeName))
	return f
}

func EnumField(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	f := Field(name, number, descriptorpb.FieldDescriptorProto_TYPE_ENUM)
	f.TypeName = proto.String(ref(typeName))
	return f
}

func Repeated(f *descriptorpb.FieldDescriptorProto) *descriptorpb.FieldDescriptorProto {
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return f
}

func Deprecated(f *descriptorpb.FieldDescriptorProto) *descriptorpb.FieldDescriptorProto {
	fieldOptions(f).Deprecated = proto.Bool(true)
	return f
}

func FieldIfdef(f *descriptorpb.FieldDescriptorProto, guard string) *descriptorpb.FieldDescriptorProto {
	appendString(fieldOptions(f), schema.OptFieldIfdef, guard)
	return f
}

func FixedArraySize(f *descriptorpb.FieldDescriptorProto, n uint64) *descriptorpb.FieldDescriptorProto {
	appendVarint(fieldOptions(f), schema.OptFieldFixedArraySize, n)
	return f
}

func ID(m *descriptorpb.DescriptorProto, id uint64) *descriptorpb.DescriptorProto {
	appendVarint(messageOptions(m), schema.OptMessageID, id)
	return m
}

func Source(m *descriptorpb.DescriptorProto, s schema.Source) *descriptorpb.DescriptorProto {
	appendVarint(messageOptions(m), schema.OptMessageSource, uint64(s))
	return m
}

func Ifdef(m *descriptorpb.DescriptorProto, guard string) *descriptorpb.DescriptorProto {
	appendString(messageOptions(m), schema.OptMessageIfdef, guard)
	return m
}

func NoLog(m *descriptorpb.DescriptorProto) *descriptorpb.DescriptorProto {
	appendVarint(messageOptions(m), schema.OptMessageLog, 0)
	return m
}

func BaseClass(m *descriptorpb.DescriptorProto, name string) *descriptorpb.DescriptorProto {
	appendString(messageOptions(m), schema.OptMessageBaseClass, name)
	return m
}

// Enum declares values numbered from zero in the given order.
func Enum(name string, values ...string) *descriptorpb.EnumDescriptorProto {
	e := &descriptorpb.EnumDescriptorProto{Name: proto.String(name)}
	for i, v := range values {
		e.Value = append(e.Value, &descriptorpb.EnumValueDescriptorProto{
			Name:   proto.String(v),
			Number: proto.Int32(int32(i)),
		})
	}
	return e
}

func Service(name string, methods ...*descriptorpb.MethodDescriptorProto) *descriptorpb.ServiceDescriptorProto {
	return &descriptorpb.ServiceDescriptorProto{Name: proto.String(name), Method: methods}
}

func Method(name, input, output string) *descriptorpb.MethodDescriptorProto {
	return &descriptorpb.MethodDescriptorProto{
		Name:       proto.String(name),
		InputType:  proto.String(ref(input)),
		OutputType: proto.String(ref(output)),
	}
}

func NoSetupConnection(m *descriptorpb.MethodDescriptorProto) *descriptorpb.MethodDescriptorProto {
	if m.Options == nil {
		m.Options = &descriptorpb.MethodOptions{}
	}
	appendVarint(m.Options, schema.OptMethodNeedsSetupConnection, 0)
	return m
}

func NoAuthentication(m *descriptorpb.MethodDescriptorProto) *descriptorpb.MethodDescriptorProto {
	if m.Options == nil {
		m.Options = &descriptorpb.MethodOptions{}
	}
	appendVarint(m.Options, schema.OptMethodNeedsAuthentication, 0)
	return m
}

func fieldOptions(f *descriptorpb.FieldDescriptorProto) *descriptorpb.FieldOptions {
	if f.Options == nil {
		f.Options = &descriptorpb.FieldOptions{}
	}
	return f.Options
}

func messageOptions(m *descriptorpb.DescriptorProto) *descriptorpb.MessageOptions {
	if m.Options == nil {
		m.Options = &descriptorpb.MessageOptions{}
	}
	return m.Options
}

func appendVarint(opts proto.Message, num protowire.Number, v uint64) {
	r := opts.ProtoReflect()
	b := protowire.AppendTag(r.GetUnknown(), num, protowire.VarintType)
	r.SetUnknown(protowire.AppendVarint(b, v))
}

func appendString(opts proto.Message, num protowire.Number, s string) {
	r := opts.ProtoReflect()
	b := protowire.AppendTag(r.GetUnknown(), num, protowire.BytesType)
	r.SetUnknown(protowire.AppendString(b, s))
}
