package codegen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func countOf(s, sub string) int { return strings.Count(s, sub) }

func indexOf(s, sub string) int { return strings.Index(s, sub) }

func TestPrinterKeepsPreprocessorAtColumnZero(t *testing.T) {
	g := &printer{}
	g.p("struct A {")
	g.in()
	g.text("#ifdef X\nint x;\n#endif")
	g.out()
	g.p("};")
	assert.Equal(t, "struct A {\n#ifdef X\n  int x;\n#endif\n};\n", g.finish())
}

func TestPrinterSetGuard(t *testing.T) {
	g := &printer{}
	g.setGuard("A")
	g.p("a1;")
	g.setGuard("A")
	g.p("a2;")
	g.setGuard("B")
	g.p("b;")
	g.setGuard("")
	g.p("c;")
	g.setGuard("D")
	g.p("d;")
	assert.Equal(t, "#ifdef A\na1;\na2;\n#endif  // A\n#ifdef B\nb;\n#endif  // B\nc;\n#ifdef D\nd;\n#endif  // D\n", g.finish())
}

func TestPrinterFunction(t *testing.T) {
	tests := []struct {
		name string
		body []string
		want string
	}{
		{"empty", nil, "void f() {}\n"},
		{"inline", []string{"x = 1;"}, "void f() { x = 1; }\n"},
		{"multiple", []string{"x = 1;", "y = 2;"}, "void f() {\n  x = 1;\n  y = 2;\n}\n"},
		{"multiline statement", []string{"#ifdef A\nx = 1;\n#endif"}, "void f() {\n#ifdef A\n  x = 1;\n#endif\n}\n"},
		{"too wide", []string{strings.Repeat("x", 120) + ";"}, "void f() {\n  " + strings.Repeat("x", 120) + ";\n}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &printer{}
			g.function("void f()", tt.body)
			assert.Equal(t, tt.want, g.finish())
		})
	}
}

func TestGuarded(t *testing.T) {
	assert.Equal(t, "x;", guarded("", "x;"))
	assert.Equal(t, "", guarded("A", ""))
	assert.Equal(t, "#ifdef A\nx;\n#endif", guarded("A", "x;"))
}
