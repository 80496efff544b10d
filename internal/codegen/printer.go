package codegen

import (
	"fmt"
	"strings"
)

// printer accumulates one generated file. Preprocessor lines always start at column zero.
type printer struct {
	b      strings.Builder
	indent string

	guard string
}

// p prints one formatted line at the current indentation. Generated statements may contain '%',
// so pass them through text instead of using them as the format.
func (g *printer) p(format string, args ...interface{}) {
	g.text(fmt.Sprintf(format, args...))
}

// text prints s line by line at the current indentation.
func (g *printer) text(s string) {
	for _, line := range strings.Split(s, "\n") {
		switch {
		case line == "":
		case strings.HasPrefix(line, "#"):
			g.b.WriteString(line)
		default:
			g.b.WriteString(g.indent)
			g.b.WriteString(line)
		}
		g.b.WriteString("\n")
	}
}

func (g *printer) blank() {
	g.b.WriteString("\n")
}

func (g *printer) in() {
	g.indent += "  "
}

func (g *printer) out() {
	g.indent = g.indent[:len(g.indent)-2]
}

// setGuard switches the #ifdef block consecutive declarations share. Declarations with the same
// guard stay in one block; "" closes the current block.
func (g *printer) setGuard(guard string) {
	if guard == g.guard {
		return
	}
	if g.guard != "" {
		g.text("#endif  // " + g.guard)
	}
	if guard != "" {
		g.text("#ifdef " + guard)
	}
	g.guard = guard
}

// finish closes an open guard block and returns the file.
func (g *printer) finish() string {
	g.setGuard("")
	return g.b.String()
}

// guarded wraps a fragment in its own #ifdef block.
func guarded(guard, s string) string {
	if guard == "" || s == "" {
		return s
	}
	return "#ifdef " + guard + "\n" + s + "\n#endif"
}

const maxInlineWidth = 120

// function prints a C++ function definition. A body of one short single-line statement goes on
// the signature line.
func (g *printer) function(signature string, body []string) {
	if len(body) == 0 {
		g.text(signature + " {}")
		return
	}
	if len(body) == 1 && !strings.Contains(body[0], "\n") && len(signature)+len(body[0])+3 < maxInlineWidth {
		g.text(signature + " { " + body[0] + " }")
		return
	}
	g.text(signature + " {")
	g.in()
	for _, stmt := range body {
		g.text(stmt)
	}
	g.out()
	g.text("}")
}
