package fieldtype

import (
	"fmt"

	"github.com/wham/apigen/internal/schema"
	"github.com/wham/apigen/pkg/wire"
)

// TypeInfo is the code generation behavior of one field of one message. Statement methods return
// an empty string when the field takes no part in that routine.
type TypeInfo interface {
	Field() *schema.Field
	Kind() Kind
	WireType() wire.Type
	NeedsEncode() bool
	NeedsDecode() bool

	// Public and Protected return class member declarations, one entry per declaration.
	Public() []string
	Protected() []string

	// DecodeArm returns the switch case handling the field inside callback e.
	DecodeArm(e DecodeEntry) string
	Encode() string
	Size() string
	Dump() string

	// Estimate is a conservative guess of the encoded size used to pre-size send buffers.
	Estimate() int
}

// New selects the TypeInfo for field f of message m, whose generated code travels in direction dir.
func New(m *schema.Message, f *schema.Field, dir schema.Source) (TypeInfo, error) {
	subject := m.Name + "." + f.Name
	kind, err := KindOf(f.Type)
	if err != nil {
		return nil, schema.Errorf(subject, "%v", err)
	}
	b := base{
		field: f,
		elem:  element{kind: kind, typeName: f.TypeName},
		dir:   dir,
	}

	if f.FixedArraySize > 0 {
		if dir.Decodes() {
			return nil, schema.Errorf(subject,
				"fixed_array_size is only allowed on encode-only messages, %s is %s and would decode into a fixed buffer",
				m.Name, dir)
		}
		switch {
		case f.Repeated:
			return &fixedArray{base: b, size: f.FixedArraySize}, nil
		case kind == Bytes:
			return &fixedBytes{base: b, size: f.FixedArraySize}, nil
		}
		return nil, schema.Errorf(subject, "fixed_array_size needs a repeated or bytes field")
	}

	switch {
	case f.Repeated:
		return &repeated{base: b}, nil
	case kind == Bytes:
		return &bytesField{base: b}, nil
	}
	return &singular{base: b}, nil
}

type base struct {
	field *schema.Field
	elem  element
	dir   schema.Source
}

func (b *base) Field() *schema.Field { return b.field }
func (b *base) Kind() Kind { return b.elem.kind }
func (b *base) WireType() wire.Type { return b.elem.kind.WireType() }
func (b *base) NeedsEncode() bool { return b.dir.Encodes() }
func (b *base) NeedsDecode() bool { return b.dir.Decodes() }
func (b *base) Protected() []string { return nil }
func (b *base) tag() int { return wire.TagSize(b.field.Number, b.WireType()) }
func (b *base) member() string { return "this->" + b.field.Name }
func (b *base) dumpLabel() string { return fmt.Sprintf(`out.append("  %s: ");`, b.field.Name) }
func (b *base) decodes(e DecodeEntry) bool {
	return b.NeedsDecode() && EntryFor(b.WireType()) == e
}

func decodeCase(number int32, body string) string {
	return fmt.Sprintf("case %d: {\n%s\n  return true;\n}", number, indent(body, "  "))
}

const dumpNewline = `out.append("\n");`

// singular holds exactly one element; default values are omitted on the wire.
type singular struct {
	base
}

func (s *singular) Public() []string {
	return []string{fmt.Sprintf("%s %s{%s};", s.elem.cppType(), s.field.Name, s.elem.defaultValue())}
}

func (s *singular) DecodeArm(e DecodeEntry) string {
	if !s.decodes(e) {
		return ""
	}
	if s.elem.kind == Message {
		return decodeCase(s.field.Number, fmt.Sprintf("value.decode_to_message(%s);", s.member()))
	}
	return decodeCase(s.field.Number, fmt.Sprintf("%s = %s;", s.member(), s.elem.decodeExpr()))
}

func (s *singular) Encode() string {
	if !s.NeedsEncode() {
		return ""
	}
	return s.elem.encode(s.field.Number, s.member(), false)
}

func (s *singular) Size() string {
	if !s.NeedsEncode() {
		return ""
	}
	return s.elem.size(s.tag(), s.member(), false)
}

func (s *singular) Dump() string {
	return s.dumpLabel() + "\n" + s.elem.dump(s.member()) + "\n" + dumpNewline
}

func (s *singular) Estimate() int { return s.elem.estimate(s.tag()) }

// bytesField keeps received data in a std::string and lets senders point at their own buffer
// through set_<name>() without a copy. The pointer wins when both are set.
type bytesField struct {
	base
}

func (b *bytesField) ptr() string { return b.member() + "_ptr_" }
func (b *bytesField) length() string { return b.member() + "_len_" }

func (b *bytesField) Public() []string {
	name := b.field.Name
	return []string{
		fmt.Sprintf("std::string %s{};", name),
		fmt.Sprintf("void set_%s(const uint8_t *data, size_t len) {\n  %s = data;\n  %s = len;\n}", name, b.ptr(), b.length()),
	}
}

func (b *bytesField) Protected() []string {
	name := b.field.Name
	return []string{
		fmt.Sprintf("const uint8_t *%s_ptr_{nullptr};", name),
		fmt.Sprintf("size_t %s_len_{0};", name),
	}
}

func (b *bytesField) DecodeArm(e DecodeEntry) string {
	if !b.decodes(e) {
		return ""
	}
	return decodeCase(b.field.Number, fmt.Sprintf("%s = %s;", b.member(), b.elem.decodeExpr()))
}

func (b *bytesField) Encode() string {
	if !b.NeedsEncode() {
		return ""
	}
	return fmt.Sprintf("if (%s != nullptr) {\n  buffer.encode_bytes(%d, %s, %s);\n} else {\n  %s\n}",
		b.ptr(), b.field.Number, b.ptr(), b.length(), b.elem.encode(b.field.Number, b.member(), false))
}

func (b *bytesField) Size() string {
	if !b.NeedsEncode() {
		return ""
	}
	return fmt.Sprintf("ProtoSize::add_bytes_field(total_size, %d, %s != nullptr ? %s : %s.size());",
		b.tag(), b.ptr(), b.length(), b.member())
}

func (b *bytesField) Dump() string {
	return fmt.Sprintf("%s\nif (%s != nullptr) {\n  out.append(format_hex_pretty(%s, %s));\n} else {\n  %s\n}\n%s",
		b.dumpLabel(), b.ptr(), b.ptr(), b.length(), b.elem.dump(b.member()), dumpNewline)
}

func (b *bytesField) Estimate() int { return b.elem.estimate(b.tag()) }

// repeated holds a std::vector. Every element is written, defaults included.
type repeated struct {
	base
}

func (r *repeated) Public() []string {
	return []string{fmt.Sprintf("std::vector<%s> %s{};", r.elem.cppType(), r.field.Name)}
}

func (r *repeated) rangeVar() string {
	if r.elem.byValue() {
		return "auto it"
	}
	return "auto &it"
}

func (r *repeated) DecodeArm(e DecodeEntry) string {
	if !r.decodes(e) {
		return ""
	}
	if r.elem.kind == Message {
		return decodeCase(r.field.Number, fmt.Sprintf("%s.emplace_back();\nvalue.decode_to_message(%s.back());",
			r.member(), r.member()))
	}
	return decodeCase(r.field.Number, fmt.Sprintf("%s.push_back(%s);", r.member(), r.elem.decodeExpr()))
}

func (r *repeated) Encode() string {
	if !r.NeedsEncode() {
		return ""
	}
	return fmt.Sprintf("for (%s : %s) {\n  %s\n}", r.rangeVar(), r.member(), r.elem.encode(r.field.Number, "it", true))
}

func (r *repeated) Size() string {
	if !r.NeedsEncode() {
		return ""
	}
	switch {
	case r.elem.kind == Message:
		return fmt.Sprintf("ProtoSize::add_repeated_message(total_size, %d, %s);", r.tag(), r.member())
	case r.elem.kind.FixedWidth():
		return fmt.Sprintf("if (!%s.empty()) {\n  total_size += %s.size() * %d;\n}",
			r.member(), r.member(), r.tag()+r.WireType().Width())
	}
	return fmt.Sprintf("if (!%s.empty()) {\n  for (const %s : %s) {\n    %s\n  }\n}",
		r.member(), r.rangeVar(), r.member(), r.elem.size(r.tag(), "it", true))
}

func (r *repeated) Dump() string {
	return fmt.Sprintf("for (const %s : %s) {\n  %s\n%s\n  %s\n}",
		r.rangeVar(), r.member(), r.dumpLabel(), indent(r.elem.dump("it"), "  "), dumpNewline)
}

func (r *repeated) Estimate() int { return 2 * r.elem.estimate(r.tag()) }

// lengthType is the smallest counter able to hold size.
func lengthType(size uint32) string {
	if size > 255 {
		return "uint16_t"
	}
	return "uint8_t"
}

// fixedArray is a repeated field stored as T name[N] plus a name_len count of the used slots.
type fixedArray struct {
	base
	size uint32
}

func (a *fixedArray) Public() []string {
	return []string{
		fmt.Sprintf("%s %s[%d]{};", a.elem.cppType(), a.field.Name, a.size),
		fmt.Sprintf("%s %s_len{0};", lengthType(a.size), a.field.Name),
	}
}

func (a *fixedArray) count() string { return a.member() + "_len" }

func (a *fixedArray) loop(body string) string {
	return fmt.Sprintf("for (uint16_t i = 0; i < %s; i++) {\n%s\n}", a.count(), indent(body, "  "))
}

func (a *fixedArray) at(i string) string { return fmt.Sprintf("%s[%s]", a.member(), i) }

func (a *fixedArray) DecodeArm(DecodeEntry) string { return "" }

func (a *fixedArray) Encode() string {
	if a.size > 2 {
		return a.loop(a.elem.encode(a.field.Number, a.at("i"), true))
	}
	var out string
	for i := uint32(0); i < a.size; i++ {
		if i > 0 {
			out += "\n"
		}
		out += fmt.Sprintf("if (%s > %d) {\n  %s\n}", a.count(), i,
			a.elem.encode(a.field.Number, a.at(fmt.Sprint(i)), true))
	}
	return out
}

func (a *fixedArray) Size() string {
	if a.elem.kind.FixedWidth() {
		return fmt.Sprintf("total_size += %s * %d;", a.count(), a.tag()+a.WireType().Width())
	}
	return a.loop(a.elem.size(a.tag(), a.at("i"), true))
}

func (a *fixedArray) Dump() string {
	return a.loop(a.dumpLabel() + "\n" + a.elem.dump(a.at("i")) + "\n" + dumpNewline)
}

func (a *fixedArray) Estimate() int { return int(a.size) * a.elem.estimate(a.tag()) }

// fixedBytes is a bytes field stored as uint8_t name[N] plus a name_len count of the used bytes.
type fixedBytes struct {
	base
	size uint32
}

func (b *fixedBytes) Public() []string {
	return []string{
		fmt.Sprintf("uint8_t %s[%d]{};", b.field.Name, b.size),
		fmt.Sprintf("%s %s_len{0};", lengthType(b.size), b.field.Name),
	}
}

func (b *fixedBytes) DecodeArm(DecodeEntry) string { return "" }

func (b *fixedBytes) Encode() string {
	return fmt.Sprintf("buffer.encode_bytes(%d, %s, %s_len);", b.field.Number, b.member(), b.member())
}

func (b *fixedBytes) Size() string {
	return fmt.Sprintf("ProtoSize::add_bytes_field(total_size, %d, %s_len);", b.tag(), b.member())
}

func (b *fixedBytes) Dump() string {
	return fmt.Sprintf("%s\nout.append(format_hex_pretty(%s, %s_len));\n%s", b.dumpLabel(), b.member(), b.member(), dumpNewline)
}

func (b *fixedBytes) Estimate() int { return b.tag() + 1 + int(b.size) }
