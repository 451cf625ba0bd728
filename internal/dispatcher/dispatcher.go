// Package dispatcher is the compilation-unit entry point: it feeds the
// source through the unified scanner, dispatches typed fragment batches
// to their compilers (in parallel when enabled), and merges the partial
// results into one CompilationResult.
package dispatcher

import (
	"context"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	chtl "github.com/chtl-lang/compiler/internal"
	"github.com/chtl-lang/compiler/internal/constraint"
	"github.com/chtl-lang/compiler/internal/handler"
	"github.com/chtl-lang/compiler/internal/js"
	"github.com/chtl-lang/compiler/internal/loc"
	"github.com/chtl-lang/compiler/internal/module"
	"github.com/chtl-lang/compiler/internal/namespace"
	"github.com/chtl-lang/compiler/internal/printer"
	"github.com/chtl-lang/compiler/internal/scanner"
	"github.com/chtl-lang/compiler/internal/transform"
)

type Config struct {
	Filename string
	// Parallel compiles per-type fragment batches concurrently. Merging
	// always happens on the dispatcher goroutine.
	Parallel bool
	Strict   bool
	Minify   bool
	Pretty   bool
	// KeepGeneratorComments preserves `--` comments through generation.
	KeepGeneratorComments bool
	TargetES6             bool
	MaxErrors             int
	// DefaultNamespace derives an implicit per-file namespace.
	DefaultNamespace bool

	// FS and SearchPaths serve module-block resolution; a nil FS skips
	// module loading.
	FS          fs.FS
	SearchPaths []string
	HostVersion string
}

// CompilationResult is the unit's merged output. The unit succeeded iff
// Diagnostics contains no error-severity entry.
type CompilationResult struct {
	HTML        string            `json:"html"`
	CSS         string            `json:"css"`
	JS          string            `json:"js"`
	Diagnostics []loc.Diagnostic  `json:"diagnostics"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func (r *CompilationResult) Succeeded() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == loc.ErrorType {
			return false
		}
	}
	return true
}

// compiled holds one fragment's partial result, joined in scan order.
type compiled struct {
	frag scanner.Fragment
	doc  *chtl.Node
	prog *js.Node
	h    *handler.Handler
}

// Compile runs the pipeline over one source. Cancellation is cooperative:
// the context is checked between fragment compilations and a cancelled
// unit returns a partial result carrying a Cancelled diagnostic.
func Compile(ctx context.Context, source string, cfg Config) *CompilationResult {
	log := slog.Default().With("component", "dispatcher", "file", cfg.Filename)
	res := &CompilationResult{Metadata: map[string]string{}}

	frags, scanDiags := scanner.Scan(source, scanner.Options{KeepGeneratorComments: cfg.KeepGeneratorComments})
	res.Diagnostics = append(res.Diagnostics, scanDiags...)
	log.Debug("scan complete", "fragments", len(frags))

	units := make([]*compiled, len(frags))
	compileOne := func(i int) {
		frag := frags[i]
		u := &compiled{frag: frag, h: handler.NewHandler(source, cfg.Filename)}
		switch frag.Type {
		case scanner.FragmentCHTL:
			u.doc = chtl.Parse(frag.Content, u.h, chtl.ParseOptions{Strict: cfg.Strict, Lexer: chtl.DefaultLexerOptions()})
		case scanner.FragmentCHTLJS:
			u.prog = js.Parse(frag.Body, u.h)
		}
		units[i] = u
	}

	if cfg.Parallel {
		g, _ := errgroup.WithContext(ctx)
		for i := range frags {
			i := i
			g.Go(func() error {
				compileOne(i)
				return nil
			})
		}
		g.Wait()
	} else {
		for i := range frags {
			if err := ctx.Err(); err != nil {
				res.Diagnostics = append(res.Diagnostics, cancelled())
				return finish(res, units, cfg)
			}
			compileOne(i)
		}
	}

	if err := ctx.Err(); err != nil {
		res.Diagnostics = append(res.Diagnostics, cancelled())
		return finish(res, units, cfg)
	}

	return finish(res, units, cfg)
}

func cancelled() loc.Diagnostic {
	return loc.Diagnostic{
		Severity: loc.ErrorType,
		Code:     loc.ERROR_CANCELLED,
		Text:     "compilation cancelled",
	}
}

// finish runs the single-threaded semantic passes and merges every
// fragment's channel output in scan order.
func finish(res *CompilationResult, units []*compiled, cfg Config) *CompilationResult {
	table := namespace.NewTable()
	sem := handler.NewHandler("", cfg.Filename)

	// Symbol registration and semantic passes happen on the coordinator
	// after all compilers finish; the table is never shared during
	// parsing.
	topts := transform.TransformOptions{
		Filename:         cfg.Filename,
		DefaultNamespace: cfg.DefaultNamespace,
	}
	for _, u := range units {
		if u == nil || u.doc == nil {
			continue
		}
		transform.BuildSymbols(u.doc, table, topts, sem)
	}
	for _, u := range units {
		if u == nil || u.doc == nil {
			continue
		}
		transform.ResolveUses(u.doc, table, sem)
		transform.AutomateSelectors(u.doc, topts)
		constraint.Check(u.doc, sem, constraint.Options{Strict: cfg.Strict, MaxViolations: cfg.MaxErrors})
	}

	var html, css strings.Builder
	mergedJS := &js.Node{Kind: js.ProgramNode}
	var pureJS []string
	popts := printer.RenderOptions{
		Pretty:                cfg.Pretty,
		KeepGeneratorComments: cfg.KeepGeneratorComments,
		TargetES6:             cfg.TargetES6,
		Minify:                cfg.Minify,
	}

	for _, u := range units {
		if u == nil {
			continue
		}
		switch u.frag.Type {
		case scanner.FragmentCHTL:
			if u.doc == nil {
				continue
			}
			// a fragment failure is confined to its own channel
			pr := printer.PrintDocument(u.doc, table, popts, u.h)
			html.Write(pr.HTML)
			css.Write(pr.CSS)
			for _, script := range pr.Scripts {
				appendScript(mergedJS, &pureJS, script, u.h)
			}
		case scanner.FragmentHTML:
			html.WriteString(strings.TrimSpace(u.frag.Content))
		case scanner.FragmentCSS:
			css.WriteString(normalizeCSS(u.frag.Body))
			css.WriteString("\n")
		case scanner.FragmentCHTLJS:
			if u.prog != nil {
				mergedJS.Children = append(mergedJS.Children, u.prog.Children...)
			}
		case scanner.FragmentPureJS:
			if body := strings.TrimSpace(u.frag.Body); body != "" {
				pureJS = append(pureJS, body)
			}
		case scanner.FragmentComment:
			if cfg.KeepGeneratorComments {
				html.WriteString("<!-- " + u.frag.Body + " -->")
			}
		}
	}

	var jsOut strings.Builder
	if len(mergedJS.Children) > 0 {
		jsopts := printer.JSOptions{WrapIIFE: true, Minify: cfg.Minify}
		if cfg.TargetES6 {
			jsopts.Format = printer.ModuleES6
		}
		if order := resolveModules(mergedJS, cfg, sem); order != nil {
			jsopts.LoadOrder = order
		}
		jsOut.Write(printer.PrintScript(mergedJS, jsopts, sem))
	}
	for _, body := range pureJS {
		if jsOut.Len() > 0 {
			jsOut.WriteString("\n")
		}
		jsOut.WriteString("(function() {\n'use strict';\n")
		jsOut.WriteString(normalizeJS(body))
		jsOut.WriteString("\n})();\n")
	}

	res.HTML = html.String()
	res.CSS = strings.TrimSpace(css.String())
	res.JS = jsOut.String()

	for _, u := range units {
		if u != nil {
			res.Diagnostics = append(res.Diagnostics, u.h.Diagnostics()...)
		}
	}
	res.Diagnostics = append(res.Diagnostics, sem.Diagnostics()...)
	sortDiagnostics(res.Diagnostics)
	return res
}

// appendScript routes an element-local script body into the right JS
// channel, classifying it the same way the scanner classifies top-level
// script blocks.
func appendScript(merged *js.Node, pureJS *[]string, body string, h *handler.Handler) {
	if strings.TrimSpace(body) == "" {
		return
	}
	if scanner.IsCHTLJS(body) {
		prog := js.Parse(body, h)
		merged.Children = append(merged.Children, prog.Children...)
		return
	}
	*pureJS = append(*pureJS, strings.TrimSpace(body))
}

// resolveModules runs the module loader over the merged program's module
// blocks and returns the dependency-resolved load order, or nil when no
// module block (or no filesystem) is present.
func resolveModules(prog *js.Node, cfg Config, h *handler.Handler) []string {
	if cfg.FS == nil {
		return nil
	}
	var block *js.Node
	for _, c := range prog.Children {
		if c.Kind == js.ModuleNode {
			if block == nil {
				block = c
			} else {
				block.Entries = append(block.Entries, c.Entries...)
			}
		}
	}
	if block == nil {
		return nil
	}
	loader := module.NewLoader(cfg.FS, module.Options{
		SearchPaths: cfg.SearchPaths,
		HostVersion: cfg.HostVersion,
	})
	result := loader.Load(block, cfg.Filename, h)
	if len(result.Order) == 0 {
		return nil
	}
	return result.Order
}

// normalizeCSS collapses a rule block's whitespace runs; rule structure
// is untouched.
func normalizeCSS(src string) string {
	lines := strings.Split(strings.TrimSpace(src), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	out := strings.Join(lines, " ")
	for strings.Contains(out, "  ") {
		out = strings.ReplaceAll(out, "  ", " ")
	}
	return out
}

// normalizeJS terminates unterminated simple statements so concatenated
// outputs stay parseable.
func normalizeJS(src string) string {
	lines := strings.Split(src, "\n")
	for i, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if trimmed == "" {
			lines[i] = trimmed
			continue
		}
		if strings.HasSuffix(trimmed, "*/") || strings.HasPrefix(strings.TrimSpace(trimmed), "//") {
			lines[i] = trimmed
			continue
		}
		last := trimmed[len(trimmed)-1]
		terminable := last == ')' || last == ']' || last == '"' || last == '\'' || last == '`' ||
			('a' <= last && last <= 'z') || ('A' <= last && last <= 'Z') || ('0' <= last && last <= '9')
		if terminable && !continuationFollows(lines, i) &&
			!strings.HasSuffix(trimmed, "return") && !strings.HasSuffix(trimmed, "else") {
			trimmed += ";"
		}
		lines[i] = trimmed
	}
	return strings.Join(lines, "\n")
}

// continuationFollows reports whether the next non-blank line continues
// the current statement, in which case no semicolon is inserted.
func continuationFollows(lines []string, i int) bool {
	for j := i + 1; j < len(lines); j++ {
		next := strings.TrimSpace(lines[j])
		if next == "" {
			continue
		}
		return strings.ContainsAny(next[:1], "{.)]:?&|+-=,")
	}
	return false
}

// sortDiagnostics orders diagnostics by (file, position), the canonical
// emission order.
func sortDiagnostics(diags []loc.Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		li, lj := diags[i].Location, diags[j].Location
		switch {
		case li == nil && lj == nil:
			return false
		case li == nil:
			return true
		case lj == nil:
			return false
		case li.File != lj.File:
			return li.File < lj.File
		case li.Line != lj.Line:
			return li.Line < lj.Line
		}
		return li.Column < lj.Column
	})
}
