package printer

import (
	"fmt"
	"strings"

	"github.com/chtl-lang/compiler/internal/handler"
	"github.com/chtl-lang/compiler/internal/namespace"
)

type RenderOptions struct {
	// Pretty puts a line break after the doctype; element markup is
	// emitted compact, without indentation, in both modes.
	Pretty bool
	Indent string
	// KeepGeneratorComments preserves `--` comments as HTML comments.
	KeepGeneratorComments bool
	// TargetES6 is not read by the HTML/CSS printer; the JS emitter's
	// module format is selected through JSOptions.Format.
	TargetES6 bool
	Minify    bool
}

func (o RenderOptions) indent() string {
	if o.Indent == "" {
		return "  "
	}
	return o.Indent
}

type printer struct {
	output  []byte
	css     []byte
	opts    RenderOptions
	table   *namespace.Table
	handler *handler.Handler
	depth   int
}

func (p *printer) print(text string) {
	p.output = append(p.output, text...)
}

func (p *printer) printf(format string, a ...interface{}) {
	p.print(fmt.Sprintf(format, a...))
}

func (p *printer) println(text string) {
	p.print(text + "\n")
}

func (p *printer) printCSS(text string) {
	p.css = append(p.css, text...)
}

func (p *printer) newline() {
	if p.opts.Pretty {
		p.print("\n" + strings.Repeat(p.opts.indent(), p.depth))
	}
}

// escape writes s with the five HTML-significant characters replaced.
func escape(b *strings.Builder, s string) {
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&#39;")
		default:
			b.WriteRune(r)
		}
	}
}

// EscapeString escapes HTML-significant characters in s.
func EscapeString(s string) string {
	if !strings.ContainsAny(s, `&<>"'`) {
		return s
	}
	var b strings.Builder
	escape(&b, s)
	return b.String()
}
