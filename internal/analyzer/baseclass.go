package analyzer

import (
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/wham/apigen/internal/schema"
)

// BaseClass is a base_class group with the fields every member declares alike. Field numbers may
// differ between members, so the base only holds storage; wire routines stay on the members.
type BaseClass struct {
	Name    string
	Members []string

	// Fields are the shared fields as the first member declares them.
	Fields []*schema.Field

	hoisted map[string]bool
}

// Hoisted reports whether a field with this name lives in the base class.
func (b *BaseClass) Hoisted(field string) bool { return b.hoisted[field] }

// fieldKey is everything that shapes a field's storage. Members sharing a field must agree on all
// of it, or the hoisted declaration would not fit some of them.
type fieldKey struct {
	name           string
	typ            descriptorpb.FieldDescriptorProto_Type
	typeName       string
	repeated       bool
	fixedArraySize uint32
	ifdef          string
}

func keyOf(f *schema.Field) fieldKey {
	return fieldKey{
		name:           f.Name,
		typ:            f.Type,
		typeName:       f.TypeName,
		repeated:       f.Repeated,
		fixedArraySize: f.FixedArraySize,
		ifdef:          f.Ifdef,
	}
}

// GroupBaseClasses groups messages by base_class and intersects their active fields. Groups with
// nothing in common are dropped.
func GroupBaseClasses(f *schema.File) []*BaseClass {
	var order []string
	members := make(map[string][]*schema.Message)
	for _, m := range f.Messages {
		if m.BaseClass == "" {
			continue
		}
		if _, ok := members[m.BaseClass]; !ok {
			order = append(order, m.BaseClass)
		}
		members[m.BaseClass] = append(members[m.BaseClass], m)
	}

	var out []*BaseClass
	for _, name := range order {
		group := members[name]
		common := make(map[fieldKey]int)
		for _, m := range group {
			for _, field := range m.ActiveFields() {
				common[keyOf(field)]++
			}
		}

		b := &BaseClass{Name: name, hoisted: make(map[string]bool)}
		for _, m := range group {
			b.Members = append(b.Members, m.Name)
		}
		for _, field := range group[0].ActiveFields() {
			if common[keyOf(field)] == len(group) {
				b.Fields = append(b.Fields, field)
				b.hoisted[field.Name] = true
			}
		}
		if len(b.Fields) > 0 {
			out = append(out, b)
		}
	}
	return out
}
