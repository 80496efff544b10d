package analyzer

import (
	"maps"
	"slices"

	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/wham/apigen/internal/schema"
)

// InferSources assigns every message its direction and reports whether inference reached a fixed
// point within MaxPasses. Messages left undetermined fall back to SERVER, so no decode logic is
// generated that nothing asked for.
func InferSources(f *schema.File) (map[string]schema.Source, bool) {
	known := make(map[string]schema.Source)
	for _, m := range f.Messages {
		switch {
		case m.HasSource:
			known[m.Name] = m.Source
		case m.HasID:
			known[m.Name] = schema.SourceBoth
		}
	}

	converged := false
	for i := 0; i < MaxPasses; i++ {
		next := SourcePass(f, known)
		if maps.Equal(next, known) {
			converged = true
			break
		}
		known = next
	}

	for _, m := range f.Messages {
		if _, ok := known[m.Name]; !ok {
			known[m.Name] = schema.SourceServer
		}
	}
	return known, converged
}

// SourcePass decides the messages whose users are all decided: a single user direction is
// inherited, a mix resolves to SERVER. Messages with an undecided user wait for a later pass.
func SourcePass(f *schema.File, known map[string]schema.Source) map[string]schema.Source {
	users := usersOf(f)
	next := maps.Clone(known)

	for _, m := range f.Messages {
		if _, ok := known[m.Name]; ok {
			continue
		}
		refs := users[m.Name]
		if len(refs) == 0 {
			continue
		}

		dirs := make(map[schema.Source]bool)
		decided := true
		for _, r := range refs {
			s, ok := known[r.user.Name]
			if !ok {
				decided = false
				break
			}
			dirs[s] = true
		}
		if !decided {
			continue
		}
		if len(dirs) == 1 {
			for s := range dirs {
				next[m.Name] = s
			}
			continue
		}
		next[m.Name] = schema.SourceServer
	}
	return next
}

// UndecodedUsers finds messages that only encode but are embedded in messages that decode. The
// generated decoders of those users call decode_to_message on a type that cannot decode, which
// only shows up when the C++ is compiled. The result maps each such message to its decoding users.
func UndecodedUsers(f *schema.File, sources map[string]schema.Source) map[string][]string {
	out := make(map[string][]string)
	users := usersOf(f)
	for _, m := range f.Messages {
		if sources[m.Name].Decodes() {
			continue
		}
		for _, r := range users[m.Name] {
			if r.field.Type != descriptorpb.FieldDescriptorProto_TYPE_MESSAGE || !sources[r.user.Name].Decodes() {
				continue
			}
			if !slices.Contains(out[m.Name], r.user.Name) {
				out[m.Name] = append(out[m.Name], r.user.Name)
			}
		}
	}
	return out
}
