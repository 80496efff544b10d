package schema

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
)

// Extension numbers of the generator's custom options.
const (
	OptMessageID        protowire.Number = 1036
	OptMessageSource    protowire.Number = 1037
	OptMessageIfdef     protowire.Number = 1038
	OptMessageLog       protowire.Number = 1039
	OptMessageBaseClass protowire.Number = 1041

	OptMethodNeedsSetupConnection protowire.Number = 1038
	OptMethodNeedsAuthentication  protowire.Number = 1039

	OptFieldIfdef          protowire.Number = 1042
	OptFieldFixedArraySize protowire.Number = 50007
)

// optionValue is the last raw value seen for an extension number.
type optionValue struct {
	typ    protowire.Type
	varint uint64
	bytes  []byte
}

// customOptions decodes extension values out of an options message. The extensions are not
// registered with the Go runtime, so they survive unmarshalling only as unknown fields; marshalling
// the options again and walking the tags finds them whether they ended up known or unknown.
type customOptions map[protowire.Number]optionValue

func parseCustomOptions(opts proto.Message) (customOptions, error) {
	result := customOptions{}
	if opts == nil || !opts.ProtoReflect().IsValid() {
		return result, nil
	}

	raw, err := proto.MarshalOptions{Deterministic: true}.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("marshal options: %w", err)
	}

	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return nil, fmt.Errorf("malformed options: %w", protowire.ParseError(n))
		}
		raw = raw[n:]

		v := optionValue{typ: typ}
		switch typ {
		case protowire.VarintType:
			v.varint, n = protowire.ConsumeVarint(raw)
		case protowire.BytesType:
			v.bytes, n = protowire.ConsumeBytes(raw)
		default:
			n = protowire.ConsumeFieldValue(num, typ, raw)
		}
		if n < 0 {
			return nil, fmt.Errorf("malformed option %d: %w", num, protowire.ParseError(n))
		}
		raw = raw[n:]
		result[num] = v
	}
	return result, nil
}

func (o customOptions) varintOpt(num protowire.Number) (uint64, bool) {
	v, ok := o[num]
	if !ok || v.typ != protowire.VarintType {
		return 0, false
	}
	return v.varint, true
}

func (o customOptions) boolOpt(num protowire.Number, def bool) bool {
	v, ok := o[num]
	if !ok || v.typ != protowire.VarintType {
		return def
	}
	return v.varint != 0
}

func (o customOptions) stringOpt(num protowire.Number) string {
	v, ok := o[num]
	if !ok || v.typ != protowire.BytesType {
		return ""
	}
	return string(v.bytes)
}
