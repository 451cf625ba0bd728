// Package module resolves, analyses, and orders script module loads. The
// loader works over an fs.FS byte provider; it never fetches anything
// over the network.
package module

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/chtl-lang/compiler/internal/cmod"
	"github.com/chtl-lang/compiler/internal/handler"
	"github.com/chtl-lang/compiler/internal/js"
	"github.com/chtl-lang/compiler/internal/loc"
)

// Type classifies a module entry by its file suffix.
type Type int

const (
	TypeAuto Type = iota
	TypeCJJS
	TypeJS
)

func (t Type) String() string {
	switch t {
	case TypeCJJS:
		return "cjjs"
	case TypeJS:
		return "js"
	}
	return "auto"
}

// Strategy selects the shape of the load order the loader produces.
type Strategy int

const (
	// StrategyDependency emits the topological order itself.
	StrategyDependency Strategy = iota
	// StrategySequential emits a single linearised order.
	StrategySequential
	// StrategyParallel emits per-level batches of independent modules.
	StrategyParallel
)

// An Entry is one resolved module.
type Entry struct {
	OriginalPath string   `json:"originalPath"`
	ResolvedPath string   `json:"resolvedPath"`
	Type         Type     `json:"type"`
	Name         string   `json:"name"`
	Loaded       bool     `json:"loaded"`
	Deps         []string `json:"deps,omitempty"`
}

// extensionLadder is tried in order when a path has no resolvable
// extension.
var extensionLadder = []string{".chtl", ".cjjs", ".js", ".mjs"}

type Options struct {
	SearchPaths []string
	Strategy    Strategy
	HostVersion string
}

// Loader resolves module paths against an fs.FS and caches loaded
// entries by resolved path. The cache is guarded by a single mutex.
type Loader struct {
	fsys fs.FS
	opts Options

	mu    sync.Mutex
	cache map[string]*Entry

	log *slog.Logger
}

func NewLoader(fsys fs.FS, opts Options) *Loader {
	return &Loader{
		fsys:  fsys,
		opts:  opts,
		cache: map[string]*Entry{},
		log:   slog.Default().With("component", "module-loader"),
	}
}

// Result is the outcome of loading one module block.
type Result struct {
	Entries []*Entry
	// Order is the resolved load order (original paths).
	Order []string
	// Batches holds per-level groups when the strategy is PARALLEL.
	Batches [][]string
}

// Load takes a parsed `module { load: … }` block and a base path,
// resolves every entry, builds the dependency graph, and computes the
// load order. Failures are recoverable diagnostics on the handler.
func (l *Loader) Load(block *js.Node, basePath string, h *handler.Handler) *Result {
	res := &Result{}
	order := map[string]int{}
	for _, e := range block.Entries {
		if e.Key != "load" || e.Val == "" {
			continue
		}
		if _, seen := order[e.Val]; seen {
			h.AppendWarning(&loc.ErrorWithRange{
				Code:  loc.WARNING_DUPLICATE_IMPORT,
				Text:  fmt.Sprintf("module %q listed more than once", e.Val),
				Range: loc.Range{Loc: e.Loc, Len: len(e.Val)},
			})
			continue
		}
		order[e.Val] = len(res.Entries)
		entry := l.resolve(e.Val, basePath, e.Loc, h)
		if entry == nil {
			continue
		}
		res.Entries = append(res.Entries, entry)
	}

	l.analyzeDeps(res, h)
	g := buildGraph(res.Entries)
	if cycle := g.findCycle(); cycle != nil {
		h.AppendError(&loc.ErrorWithRange{
			Code:  loc.ERROR_CYCLIC_DEPENDENCY,
			Text:  "cyclic module dependency: " + strings.Join(cycle, " -> "),
			Range: loc.Range{Loc: block.Loc, Len: 1},
		})
		// the loader stops for the affected subgraph; entries stay
		// individually resolvable for error recovery
		return res
	}

	sorted, batches := g.topoSort()
	res.Order = sorted
	switch l.opts.Strategy {
	case StrategyParallel:
		res.Batches = batches
	case StrategySequential, StrategyDependency:
		// the topological order already linearises sequential loading
	}
	l.log.Debug("module block resolved", "modules", len(res.Entries), "order", res.Order)
	return res
}

// resolve maps a load target onto the filesystem: absolute paths are
// used verbatim, `./`/`../` resolve against the base path, anything else
// walks the search paths in order. The extension ladder is tried when
// the path as given does not exist.
func (l *Loader) resolve(target, basePath string, at loc.Loc, h *handler.Handler) *Entry {
	var candidates []string
	switch {
	case path.IsAbs(target):
		candidates = []string{strings.TrimPrefix(target, "/")}
	case strings.HasPrefix(target, "./") || strings.HasPrefix(target, "../"):
		candidates = []string{path.Clean(path.Join(path.Dir(basePath), target))}
	default:
		for _, dir := range l.opts.SearchPaths {
			candidates = append(candidates, path.Clean(path.Join(dir, target)))
		}
		if len(candidates) == 0 {
			candidates = []string{path.Clean(target)}
		}
	}

	for _, cand := range candidates {
		if resolved, ok := l.tryLadder(cand); ok {
			l.mu.Lock()
			if cached, hit := l.cache[resolved]; hit {
				l.mu.Unlock()
				return cached
			}
			entry := &Entry{
				OriginalPath: target,
				ResolvedPath: resolved,
				Type:         typeOf(resolved),
				Name:         moduleName(resolved),
				Loaded:       true,
			}
			l.cache[resolved] = entry
			l.mu.Unlock()
			return entry
		}
	}
	h.AppendError(&loc.ErrorWithRange{
		Code:  loc.ERROR_MODULE_NOT_FOUND,
		Text:  fmt.Sprintf("module %q not found", target),
		Range: loc.Range{Loc: at, Len: len(target)},
	})
	return nil
}

func (l *Loader) tryLadder(cand string) (string, bool) {
	if fileExists(l.fsys, cand) {
		return cand, true
	}
	for _, ext := range extensionLadder {
		if fileExists(l.fsys, cand+ext) {
			return cand + ext, true
		}
	}
	return "", false
}

func fileExists(fsys fs.FS, name string) bool {
	fi, err := fs.Stat(fsys, name)
	return err == nil && !fi.IsDir()
}

func typeOf(p string) Type {
	switch path.Ext(p) {
	case ".cjjs":
		return TypeCJJS
	case ".js", ".mjs":
		return TypeJS
	}
	return TypeAuto
}

func moduleName(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}

// analyzeDeps statically extracts inner `load:` targets from .cjjs
// modules, resolving transitive dependencies to a fixpoint so diamond
// graphs order correctly. Pure-JS modules are skipped.
func (l *Loader) analyzeDeps(res *Result, h *handler.Handler) {
	seen := map[string]bool{}
	for _, e := range res.Entries {
		seen[e.ResolvedPath] = true
	}
	for i := 0; i < len(res.Entries); i++ {
		e := res.Entries[i]
		if e.Type != TypeCJJS {
			continue
		}
		data, err := fs.ReadFile(l.fsys, e.ResolvedPath)
		if err != nil {
			h.AppendError(&loc.ErrorWithRange{
				Code: loc.ERROR_MODULE_UNREADABLE,
				Text: fmt.Sprintf("cannot read module %q: %v", e.ResolvedPath, err),
			})
			continue
		}
		for _, target := range LoadTargets(string(data), e.ResolvedPath) {
			dep := l.resolve(target, e.ResolvedPath, loc.Loc{}, h)
			if dep == nil {
				continue
			}
			if dep.Name != e.Name {
				e.Deps = append(e.Deps, dep.Name)
			}
			if !seen[dep.ResolvedPath] {
				seen[dep.ResolvedPath] = true
				res.Entries = append(res.Entries, dep)
			}
		}
	}
}

// VerifyInfo checks a packaged module's declared compatibility range
// against the host version. Incompatibility is a recoverable diagnostic.
func (l *Loader) VerifyInfo(info cmod.Info, h *handler.Handler) bool {
	if l.opts.HostVersion == "" {
		return true
	}
	if !info.CompatibleWith(l.opts.HostVersion) {
		h.AppendError(&loc.ErrorWithRange{
			Code: loc.ERROR_VERSION_INCOMPATIBLE,
			Text: fmt.Sprintf("module %q requires %s..%s, host is %s",
				info.Name, info.MinVersion, info.MaxVersion, l.opts.HostVersion),
		})
		return false
	}
	return true
}

// LoadTargets statically extracts the `load:` targets of every module
// block in a script source.
func LoadTargets(source, filename string) []string {
	sub := handler.NewHandler(source, filename)
	prog := js.Parse(source, sub)
	var out []string
	for _, c := range prog.Children {
		if c.Kind != js.ModuleNode {
			continue
		}
		for _, le := range c.Entries {
			if le.Key == "load" && le.Val != "" {
				out = append(out, le.Val)
			}
		}
	}
	return out
}

// LoadFile loads a root module file: the root becomes the graph's first
// entry, depending on its module block's targets, so the emitted order
// places it after everything it transitively loads. A cycle through the
// root is cited starting from the root.
func (l *Loader) LoadFile(rootPath string, h *handler.Handler) *Result {
	root := l.resolve(rootPath, rootPath, loc.Loc{}, h)
	if root == nil {
		return &Result{}
	}
	res := &Result{Entries: []*Entry{root}}
	l.analyzeDeps(res, h)

	g := buildGraph(res.Entries)
	if cycle := g.findCycle(); cycle != nil {
		h.AppendError(&loc.ErrorWithRange{
			Code: loc.ERROR_CYCLIC_DEPENDENCY,
			Text: "cyclic module dependency: " + strings.Join(cycle, " -> "),
		})
		return res
	}
	sorted, batches := g.topoSort()
	res.Order = sorted
	if l.opts.Strategy == StrategyParallel {
		res.Batches = batches
	}
	return res
}
