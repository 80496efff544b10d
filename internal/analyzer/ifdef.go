package analyzer

import (
	"maps"

	"github.com/wham/apigen/internal/schema"
)

// PropagateIfdefs assigns every message and enum its guard and reports whether the assignment
// reached a fixed point within MaxPasses.
func PropagateIfdefs(f *schema.File) (map[string]string, bool) {
	guards := make(map[string]string)
	for i := 0; i < MaxPasses; i++ {
		next := IfdefPass(f, guards)
		if maps.Equal(next, guards) {
			return guards, true
		}
		guards = next
	}
	return guards, false
}

// IfdefPass computes one round of guard inheritance from the guards of the previous round. A type
// keeps its explicit guard. Otherwise it inherits the guard all of its users share, then the field
// level guard all referencing fields share. A user without a guard, or users that disagree, leave
// the type unguarded.
func IfdefPass(f *schema.File, prev map[string]string) map[string]string {
	users := usersOf(f)
	next := make(map[string]string)

	resolve := func(name, explicit string) {
		if explicit != "" {
			next[name] = explicit
			return
		}
		refs := users[name]
		if len(refs) == 0 {
			return
		}
		if g := shared(refs, func(r reference) string { return prev[r.user.Name] }); g != "" {
			next[name] = g
			return
		}
		if g := shared(refs, func(r reference) string { return r.field.Ifdef }); g != "" {
			next[name] = g
		}
	}

	for _, e := range f.Enums {
		resolve(e.Name, "")
	}
	for _, m := range f.Messages {
		resolve(m.Name, m.Ifdef)
	}
	return next
}

// shared returns the value every reference agrees on, or "".
func shared(refs []reference, guard func(reference) string) string {
	first := guard(refs[0])
	for _, r := range refs[1:] {
		if guard(r) != first {
			return ""
		}
	}
	return first
}
