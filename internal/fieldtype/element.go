package fieldtype

import (
	"fmt"
	"strings"
)

// element is one value of a Kind. Fields hold one element, a vector of them or a fixed buffer of them.
type element struct {
	kind     Kind
	typeName string
}

func (e element) cppType() string {
	switch e.kind {
	case Bool:
		return "bool"
	case Int32, Sint32, Sfixed32:
		return "int32_t"
	case Int64, Sfixed64:
		return "int64_t"
	case Uint32, Fixed32:
		return "uint32_t"
	case Uint64:
		return "uint64_t"
	case Float:
		return "float"
	case String, Bytes:
		return "std::string"
	case Message:
		return e.typeName
	case Enum:
		return "enums::" + e.typeName
	}
	panic(fmt.Sprintf("fieldtype: unhandled kind %s", e.kind))
}

func (e element) defaultValue() string {
	switch e.kind {
	case Bool:
		return "false"
	case Int32, Sint32, Sfixed32, Int64, Sfixed64, Uint32, Fixed32, Uint64:
		return "0"
	case Float:
		return "0.0f"
	case String, Bytes, Message, Enum:
		return ""
	}
	panic(fmt.Sprintf("fieldtype: unhandled kind %s", e.kind))
}

// decodeExpr converts the callback's value argument into the storage type. Message elements have
// no expression; they decode in place through decode_to_message.
func (e element) decodeExpr() string {
	switch e.kind {
	case Bool:
		return "value.as_bool()"
	case Int32:
		return "value.as_int32()"
	case Int64:
		return "value.as_int64()"
	case Uint32:
		return "value.as_uint32()"
	case Uint64:
		return "value.as_uint64()"
	case Sint32:
		return "value.as_sint32()"
	case Fixed32:
		return "value.as_fixed32()"
	case Sfixed32:
		return "value.as_sfixed32()"
	case Sfixed64:
		return "value.as_sfixed64()"
	case Float:
		return "value.as_float()"
	case String, Bytes:
		return "value.as_string()"
	case Enum:
		return fmt.Sprintf("static_cast<%s>(value.as_uint32())", e.cppType())
	case Message:
		return ""
	}
	panic(fmt.Sprintf("fieldtype: unhandled kind %s", e.kind))
}

func (e element) encode(number int32, expr string, force bool) string {
	var args string
	switch e.kind {
	case Enum:
		args = fmt.Sprintf("%d, static_cast<uint32_t>(%s)", number, expr)
	case Bytes:
		args = fmt.Sprintf("%d, reinterpret_cast<const uint8_t *>(%s.data()), %s.size()", number, expr, expr)
	default:
		args = fmt.Sprintf("%d, %s", number, expr)
	}
	if force {
		args += ", true"
	}
	return fmt.Sprintf("buffer.%s(%s);", e.encodeFunc(), args)
}

func (e element) encodeFunc() string {
	switch e.kind {
	case Bool:
		return "encode_bool"
	case Int32:
		return "encode_int32"
	case Int64:
		return "encode_int64"
	case Uint32, Enum:
		return "encode_uint32"
	case Uint64:
		return "encode_uint64"
	case Sint32:
		return "encode_sint32"
	case Fixed32:
		return "encode_fixed32"
	case Sfixed32:
		return "encode_sfixed32"
	case Sfixed64:
		return "encode_sfixed64"
	case Float:
		return "encode_float"
	case String:
		return "encode_string"
	case Bytes:
		return "encode_bytes"
	case Message:
		return "encode_message"
	}
	panic(fmt.Sprintf("fieldtype: unhandled kind %s", e.kind))
}

// size adds the encoded size of expr to total_size. Forced sizes count default values too, which
// is how repeated elements are encoded.
func (e element) size(tag int, expr string, force bool) string {
	suffix := ""
	if force {
		suffix = "_repeated"
	}
	switch e.kind {
	case Bool, Int32, Int64, Uint32, Uint64, Sint32, String:
		return fmt.Sprintf("ProtoSize::add_%s_field%s(total_size, %d, %s);", e.kind, suffix, tag, expr)
	case Bytes:
		return fmt.Sprintf("ProtoSize::add_string_field%s(total_size, %d, %s);", suffix, tag, expr)
	case Enum:
		return fmt.Sprintf("ProtoSize::add_enum_field%s(total_size, %d, static_cast<uint32_t>(%s));", suffix, tag, expr)
	case Message:
		return fmt.Sprintf("ProtoSize::add_message_object%s(total_size, %d, %s);", suffix, tag, expr)
	case Fixed32, Sfixed32, Float, Sfixed64:
		width := e.kind.WireType().Width()
		if force {
			return fmt.Sprintf("total_size += %d;", tag+width)
		}
		zero := "0"
		if e.kind == Float {
			zero = "0.0f"
		}
		return fmt.Sprintf("ProtoSize::add_fixed_field<%d>(total_size, %d, %s != %s);", width, tag, expr, zero)
	}
	panic(fmt.Sprintf("fieldtype: unhandled kind %s", e.kind))
}

// dump appends a readable rendering of expr to out. Numeric kinds format through the 64 byte
// buffer every dump_to declares.
func (e element) dump(expr string) string {
	switch e.kind {
	case Bool:
		return fmt.Sprintf("out.append(YESNO(%s));", expr)
	case Int32, Sint32, Sfixed32:
		return sprintfDump(`"%" PRId32`, expr)
	case Uint32, Fixed32:
		return sprintfDump(`"%" PRIu32`, expr)
	case Int64, Sfixed64:
		return sprintfDump(`"%lld"`, expr)
	case Uint64:
		return sprintfDump(`"%llu"`, expr)
	case Float:
		return sprintfDump(`"%g"`, expr)
	case String:
		return fmt.Sprintf(`out.append("'").append(%s).append("'");`, expr)
	case Bytes:
		return fmt.Sprintf("out.append(format_hex_pretty(reinterpret_cast<const uint8_t *>(%s.data()), %s.size()));", expr, expr)
	case Message:
		return fmt.Sprintf("%s.dump_to(out);", expr)
	case Enum:
		return fmt.Sprintf("out.append(proto_enum_to_string<%s>(%s));", e.cppType(), expr)
	}
	panic(fmt.Sprintf("fieldtype: unhandled kind %s", e.kind))
}

func sprintfDump(format, expr string) string {
	return fmt.Sprintf("sprintf(buffer, %s, %s);\nout.append(buffer);", format, expr)
}

// estimate is the worst-case encoded size of one element guessed for buffer pre-sizing.
func (e element) estimate(tag int) int {
	switch e.kind {
	case Bool, Enum:
		return tag + 1
	case Int32, Int64, Uint32, Uint64, Sint32:
		return tag + 3
	case Fixed32, Sfixed32, Float:
		return tag + 4
	case Sfixed64:
		return tag + 8
	case String, Bytes:
		return tag + 8
	case Message:
		return tag + 16
	}
	panic(fmt.Sprintf("fieldtype: unhandled kind %s", e.kind))
}

// byValue reports whether range loops must copy elements; std::vector<bool> has no references.
func (e element) byValue() bool {
	return e.kind == Bool
}

func indent(s, pad string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = pad + l
		}
	}
	return strings.Join(lines, "\n")
}
