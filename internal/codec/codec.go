// Package codec encodes and decodes messages exactly the way generated code does, so schemas and
// captured traffic can be checked without a device.
//
// Singular fields holding their default value are skipped, empty singular sub-messages included.
// Repeated fields are never packed: every element is written with its own tag, defaults too.
package codec

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/wham/apigen/internal/fieldtype"
)

// Codec resolves message names of one descriptor set.
type Codec struct {
	files *protoregistry.Files
	pkg   string
}

// New builds a Codec for the last file of set; its dependencies must come first.
func New(set *descriptorpb.FileDescriptorSet) (*Codec, error) {
	if len(set.GetFile()) == 0 {
		return nil, fmt.Errorf("descriptor set is empty")
	}
	files, err := protodesc.NewFiles(set)
	if err != nil {
		return nil, fmt.Errorf("failed to link descriptors: %w", err)
	}
	main := set.GetFile()[len(set.GetFile())-1]
	return &Codec{files: files, pkg: main.GetPackage()}, nil
}

// ForFile builds a Codec for a file without imports.
func ForFile(fd *descriptorpb.FileDescriptorProto) (*Codec, error) {
	return New(&descriptorpb.FileDescriptorSet{File: []*descriptorpb.FileDescriptorProto{fd}})
}

// Descriptor looks name up in the package of the main file, falling back to a fully qualified
// lookup.
func (c *Codec) Descriptor(name string) (protoreflect.MessageDescriptor, error) {
	candidates := []string{name}
	if c.pkg != "" {
		candidates = []string{c.pkg + "." + name, name}
	}
	for _, n := range candidates {
		d, err := c.files.FindDescriptorByName(protoreflect.FullName(n))
		if err != nil {
			continue
		}
		md, ok := d.(protoreflect.MessageDescriptor)
		if !ok {
			return nil, fmt.Errorf("%s is not a message", n)
		}
		if err := supported(md, make(map[protoreflect.FullName]bool)); err != nil {
			return nil, err
		}
		return md, nil
	}
	return nil, fmt.Errorf("message %s not found", name)
}

// supported walks md and everything it references, rejecting kinds generated code cannot carry.
func supported(md protoreflect.MessageDescriptor, seen map[protoreflect.FullName]bool) error {
	if seen[md.FullName()] {
		return nil
	}
	seen[md.FullName()] = true
	fields := md.Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if _, err := fieldtype.KindOf(descriptorpb.FieldDescriptorProto_Type(fd.Kind())); err != nil {
			return fmt.Errorf("%s: %w", fd.FullName(), err)
		}
		if fd.Message() != nil {
			if err := supported(fd.Message(), seen); err != nil {
				return err
			}
		}
	}
	return nil
}

// FromJSON parses a protojson document into a new message of type name.
func (c *Codec) FromJSON(name string, data []byte) (*dynamicpb.Message, error) {
	md, err := c.Descriptor(name)
	if err != nil {
		return nil, err
	}
	m := dynamicpb.NewMessage(md)
	if err := (protojson.UnmarshalOptions{Resolver: dynamicpb.NewTypes(c.files)}).Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return m, nil
}

// Decode reads b into a new message of type name. Unknown and deprecated fields are dropped and
// both packed and unpacked repeated fields are accepted.
func (c *Codec) Decode(name string, b []byte) (*dynamicpb.Message, error) {
	md, err := c.Descriptor(name)
	if err != nil {
		return nil, err
	}
	m := dynamicpb.NewMessage(md)
	if err := (proto.UnmarshalOptions{DiscardUnknown: true}).Unmarshal(b, m); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	clearDeprecated(m)
	return m, nil
}

// clearDeprecated drops deprecated fields from m and every sub-message; generated decoders have
// no case for them.
func clearDeprecated(m protoreflect.Message) {
	fields := m.Descriptor().Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if !m.Has(fd) {
			continue
		}
		switch {
		case deprecated(fd):
			m.Clear(fd)
		case fd.Kind() != protoreflect.MessageKind:
		case fd.IsList():
			list := m.Get(fd).List()
			for j := 0; j < list.Len(); j++ {
				clearDeprecated(list.Get(j).Message())
			}
		default:
			clearDeprecated(m.Get(fd).Message())
		}
	}
}

// ToJSON renders m with field names as declared.
func ToJSON(m proto.Message) ([]byte, error) {
	return protojson.MarshalOptions{UseProtoNames: true, EmitUnpopulated: true}.Marshal(m)
}

// Encode appends m to b.
func Encode(b []byte, m protoreflect.Message) []byte {
	fields := m.Descriptor().Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if deprecated(fd) {
			continue
		}
		if fd.IsList() {
			list := m.Get(fd).List()
			for j := 0; j < list.Len(); j++ {
				b = appendValue(b, fd, list.Get(j), true)
			}
			continue
		}
		b = appendValue(b, fd, m.Get(fd), false)
	}
	return b
}

// Size returns the length Encode produces for m.
func Size(m protoreflect.Message) int {
	total := 0
	fields := m.Descriptor().Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if deprecated(fd) {
			continue
		}
		if fd.IsList() {
			list := m.Get(fd).List()
			for j := 0; j < list.Len(); j++ {
				total += valueSize(fd, list.Get(j), true)
			}
			continue
		}
		total += valueSize(fd, m.Get(fd), false)
	}
	return total
}

func deprecated(fd protoreflect.FieldDescriptor) bool {
	opts, ok := fd.Options().(*descriptorpb.FieldOptions)
	return ok && opts.GetDeprecated()
}

func appendValue(b []byte, fd protoreflect.FieldDescriptor, v protoreflect.Value, force bool) []byte {
	if !force && isDefault(fd, v) {
		return b
	}
	num := fd.Number()
	switch fd.Kind() {
	case protoreflect.BoolKind:
		b = protowire.AppendTag(b, num, protowire.VarintType)
		return protowire.AppendVarint(b, protowire.EncodeBool(v.Bool()))
	case protoreflect.Int32Kind, protoreflect.Int64Kind:
		b = protowire.AppendTag(b, num, protowire.VarintType)
		return protowire.AppendVarint(b, uint64(v.Int()))
	case protoreflect.Uint32Kind, protoreflect.Uint64Kind:
		b = protowire.AppendTag(b, num, protowire.VarintType)
		return protowire.AppendVarint(b, v.Uint())
	case protoreflect.EnumKind:
		b = protowire.AppendTag(b, num, protowire.VarintType)
		return protowire.AppendVarint(b, uint64(uint32(v.Enum())))
	case protoreflect.Sint32Kind:
		b = protowire.AppendTag(b, num, protowire.VarintType)
		return protowire.AppendVarint(b, protowire.EncodeZigZag(v.Int()))
	case protoreflect.Fixed32Kind:
		b = protowire.AppendTag(b, num, protowire.Fixed32Type)
		return protowire.AppendFixed32(b, uint32(v.Uint()))
	case protoreflect.Sfixed32Kind:
		b = protowire.AppendTag(b, num, protowire.Fixed32Type)
		return protowire.AppendFixed32(b, uint32(int32(v.Int())))
	case protoreflect.FloatKind:
		b = protowire.AppendTag(b, num, protowire.Fixed32Type)
		return protowire.AppendFixed32(b, math.Float32bits(float32(v.Float())))
	case protoreflect.Sfixed64Kind:
		b = protowire.AppendTag(b, num, protowire.Fixed64Type)
		return protowire.AppendFixed64(b, uint64(v.Int()))
	case protoreflect.StringKind:
		b = protowire.AppendTag(b, num, protowire.BytesType)
		return protowire.AppendString(b, v.String())
	case protoreflect.BytesKind:
		b = protowire.AppendTag(b, num, protowire.BytesType)
		return protowire.AppendBytes(b, v.Bytes())
	case protoreflect.MessageKind:
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendVarint(b, uint64(Size(v.Message())))
		return Encode(b, v.Message())
	}
	panic(fmt.Sprintf("codec: unsupported kind %s", fd.Kind()))
}

func valueSize(fd protoreflect.FieldDescriptor, v protoreflect.Value, force bool) int {
	if !force && isDefault(fd, v) {
		return 0
	}
	tag := protowire.SizeTag(fd.Number())
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return tag + 1
	case protoreflect.Int32Kind, protoreflect.Int64Kind:
		return tag + protowire.SizeVarint(uint64(v.Int()))
	case protoreflect.Uint32Kind, protoreflect.Uint64Kind:
		return tag + protowire.SizeVarint(v.Uint())
	case protoreflect.EnumKind:
		return tag + protowire.SizeVarint(uint64(uint32(v.Enum())))
	case protoreflect.Sint32Kind:
		return tag + protowire.SizeVarint(protowire.EncodeZigZag(v.Int()))
	case protoreflect.Fixed32Kind, protoreflect.Sfixed32Kind, protoreflect.FloatKind:
		return tag + 4
	case protoreflect.Sfixed64Kind:
		return tag + 8
	case protoreflect.StringKind:
		return tag + protowire.SizeBytes(len(v.String()))
	case protoreflect.BytesKind:
		return tag + protowire.SizeBytes(len(v.Bytes()))
	case protoreflect.MessageKind:
		return tag + protowire.SizeBytes(Size(v.Message()))
	}
	panic(fmt.Sprintf("codec: unsupported kind %s", fd.Kind()))
}

func isDefault(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return !v.Bool()
	case protoreflect.Int32Kind, protoreflect.Int64Kind, protoreflect.Sint32Kind,
		protoreflect.Sfixed32Kind, protoreflect.Sfixed64Kind:
		return v.Int() == 0
	case protoreflect.Uint32Kind, protoreflect.Uint64Kind, protoreflect.Fixed32Kind:
		return v.Uint() == 0
	case protoreflect.EnumKind:
		return v.Enum() == 0
	case protoreflect.FloatKind:
		return float32(v.Float()) == 0
	case protoreflect.StringKind:
		return v.String() == ""
	case protoreflect.BytesKind:
		return len(v.Bytes()) == 0
	case protoreflect.MessageKind:
		return !v.Message().IsValid() || Size(v.Message()) == 0
	}
	return false
}
