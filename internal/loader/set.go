package loader

import (
	"fmt"
	"os"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

func ReadBinarySet(path string) (*descriptorpb.FileDescriptorSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	set := &descriptorpb.FileDescriptorSet{}
	if err := proto.Unmarshal(data, set); err != nil {
		return nil, fmt.Errorf("failed to parse descriptor set %s: %w", path, err)
	}
	return set, nil
}

// ReadJSONSet parses a protojson descriptor set. Custom options appear in JSON as extensions
// ("[id]": 7), so the set is read twice: once to learn the extensions it declares and once with
// them resolved. The result carries custom options as unknown fields, like a binary set.
func ReadJSONSet(path string) (*descriptorpb.FileDescriptorSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	set := &descriptorpb.FileDescriptorSet{}
	if err := (protojson.UnmarshalOptions{DiscardUnknown: true}).Unmarshal(data, set); err != nil {
		return nil, fmt.Errorf("failed to parse descriptor set %s: %w", path, err)
	}
	types := extensionTypes(set)
	if types == nil {
		return set, nil
	}

	set = &descriptorpb.FileDescriptorSet{}
	if err := (protojson.UnmarshalOptions{Resolver: types}).Unmarshal(data, set); err != nil {
		return nil, fmt.Errorf("failed to parse descriptor set %s: %w", path, err)
	}
	return reparse(set, nil)
}

// WriteSet saves set in binary form, or as protojson when json is set.
func WriteSet(path string, set *descriptorpb.FileDescriptorSet, json bool) error {
	var (
		data []byte
		err  error
	)
	if json {
		data, err = MarshalJSON(set)
	} else {
		data, err = proto.MarshalOptions{Deterministic: true}.Marshal(set)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// MarshalJSON renders set with the custom options it declares spelled out as extensions.
func MarshalJSON(set *descriptorpb.FileDescriptorSet) ([]byte, error) {
	opts := protojson.MarshalOptions{Multiline: true, Indent: "  "}
	if types := extensionTypes(set); types != nil {
		resolved, err := reparse(set, types)
		if err != nil {
			return nil, err
		}
		set = resolved
		opts.Resolver = types
	}
	return opts.Marshal(set)
}

// extensionTypes returns the extensions declared in set, or nil when there are none or the set
// does not link.
func extensionTypes(set *descriptorpb.FileDescriptorSet) *dynamicpb.Types {
	declares := false
	for _, fd := range set.GetFile() {
		if len(fd.GetExtension()) > 0 {
			declares = true
		}
	}
	if !declares {
		return nil
	}
	sorted, err := Sort(set.GetFile())
	if err != nil {
		return nil
	}
	files, err := protodesc.NewFiles(&descriptorpb.FileDescriptorSet{File: sorted})
	if err != nil {
		return nil
	}
	return dynamicpb.NewTypes(files)
}

// reparse round-trips set through the binary form, resolving extensions with types. A nil types
// turns every extension back into unknown fields.
func reparse(set *descriptorpb.FileDescriptorSet, types *dynamicpb.Types) (*descriptorpb.FileDescriptorSet, error) {
	data, err := proto.Marshal(set)
	if err != nil {
		return nil, err
	}
	out := &descriptorpb.FileDescriptorSet{}
	opts := proto.UnmarshalOptions{}
	if types != nil {
		opts.Resolver = types
	}
	if err := opts.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}
