// Package analyzer runs the whole-schema passes: which conditional compilation guard wraps every
// type, which direction every message travels in, and which fields a base_class group shares.
package analyzer

import (
	"log/slog"
	"strings"

	"github.com/wham/apigen/internal/schema"
)

// MaxPasses bounds every fixed-point iteration. Usage graphs are DAGs in practice, so hitting the
// bound means a cycle or a much deeper schema than expected.
const MaxPasses = 10

// Usage holds the results of the analysis passes. It is computed once and only read afterwards.
type Usage struct {
	ifdefs   map[string]string
	sources  map[string]schema.Source
	usedByID map[string]bool

	bases  []*BaseClass
	baseOf map[string]*BaseClass
}

// Analyze runs every pass over f.
func Analyze(f *schema.File, logger *slog.Logger) *Usage {
	if logger == nil {
		logger = slog.Default()
	}
	u := &Usage{
		usedByID: reachableFromIDs(f),
		baseOf:   make(map[string]*BaseClass),
	}

	var converged bool
	u.ifdefs, converged = PropagateIfdefs(f)
	if !converged {
		logger.Warn("Guard propagation did not converge", "passes", MaxPasses)
	}
	u.sources, converged = InferSources(f)
	if !converged {
		logger.Warn("Source inference did not converge", "passes", MaxPasses)
	}
	undecoded := UndecodedUsers(f, u.sources)
	for _, m := range f.Messages {
		if users, ok := undecoded[m.Name]; ok {
			logger.Warn("Message is encode-only but decoded as a field, set its source option",
				"message", m.Name, "source", u.sources[m.Name].String(), "decoded_by", strings.Join(users, ","))
		}
	}

	u.bases = GroupBaseClasses(f)
	for _, b := range u.bases {
		for _, m := range b.Members {
			u.baseOf[m] = b
		}
	}
	return u
}

// IfdefOf returns the guard of a message or enum, or "" when it is compiled unconditionally.
func (u *Usage) IfdefOf(name string) string { return u.ifdefs[name] }

// SourceOf returns the direction of a message.
func (u *Usage) SourceOf(name string) schema.Source {
	if s, ok := u.sources[name]; ok {
		return s
	}
	return schema.SourceServer
}

// UsedByID reports whether the message carries an id or is reachable from one that does.
func (u *Usage) UsedByID(name string) bool { return u.usedByID[name] }

// BaseClasses returns the groups that share at least one field, in declaration order.
func (u *Usage) BaseClasses() []*BaseClass { return u.bases }

// BaseOf returns the base class message name derives from, or nil.
func (u *Usage) BaseOf(name string) *BaseClass { return u.baseOf[name] }

// reference is an active field of user whose type is the referenced message or enum.
type reference struct {
	user  *schema.Message
	field *schema.Field
}

// usersOf maps every type name to the fields referencing it. Self references do not count.
func usersOf(f *schema.File) map[string][]reference {
	users := make(map[string][]reference)
	for _, m := range f.Messages {
		for _, field := range m.ActiveFields() {
			if field.TypeName == "" || field.TypeName == m.Name {
				continue
			}
			users[field.TypeName] = append(users[field.TypeName], reference{user: m, field: field})
		}
	}
	return users
}

func reachableFromIDs(f *schema.File) map[string]bool {
	seen := make(map[string]bool)
	var queue []*schema.Message
	for _, m := range f.IDMessages() {
		seen[m.Name] = true
		queue = append(queue, m)
	}
	for len(queue) > 0 {
		m := queue[0]
		queue = queue[1:]
		for _, field := range m.ActiveFields() {
			if field.TypeName == "" || seen[field.TypeName] {
				continue
			}
			seen[field.TypeName] = true
			if next := f.Message(field.TypeName); next != nil {
				queue = append(queue, next)
			}
		}
	}
	return seen
}
