package printer

import (
	"fmt"
	"strings"

	"github.com/chtl-lang/compiler/internal/handler"
	"github.com/chtl-lang/compiler/internal/js"
	"github.com/iancoleman/strcase"
)

// Runtime helper entry points referenced by generated code.
var (
	SELECTOR_HELPER   = "CHTLSelector"
	DELEGATION_HELPER = "CHTLEventDelegation"
	ANIMATION_HELPER  = "CHTLAnimation"
	VIRTUAL_OBJECTS   = "CHTLVirtualObjects"
	MODULE_LOADER     = "CHTLModuleLoader"
)

// selectorPrelude exposes CHTLSelector.{byClass,byId,byTag,query,current}.
const selectorPrelude = `// CHTL JS Selector Helpers
var CHTLSelector = {
  byClass: function(className) {
    return document.getElementsByClassName(className.substring(1));
  },
  byId: function(id) {
    return document.getElementById(id.substring(1));
  },
  byTag: function(tag) {
    return document.getElementsByTagName(tag);
  },
  query: function(selector) {
    return document.querySelectorAll(selector);
  },
  current: function() {
    return this._currentElement || document.body;
  }
};
`

const delegationPrelude = `// CHTL JS Event Delegation System
var CHTLEventDelegation = (function() {
  var delegations = new Map();
  function delegate(parent, target, event, handler) {
    var key = parent + '_' + event;
    if (!delegations.has(key)) {
      var parentEl = typeof parent === 'string' ? document.querySelector(parent) : parent;
      parentEl.addEventListener(event, function(e) {
        var targetEl = e.target.closest(target);
        if (targetEl) {
          delegations.get(key).forEach(function(h) {
            if (h.target === target) h.handler.call(targetEl, e);
          });
        }
      });
      delegations.set(key, []);
    }
    delegations.get(key).push({target: target, handler: handler});
  }
  return { delegate: delegate };
})();
`

// animationPrelude drives keyframe animations with requestAnimationFrame,
// linearly interpolating numeric properties between successive `when`
// states and bracketing the run with the begin/end states.
const animationPrelude = `// CHTL JS Animation Helpers
var CHTLAnimation = (function() {
  var easings = {
    'linear': function(t) { return t; },
    'ease-in': function(t) { return t * t; },
    'ease-out': function(t) { return t * (2 - t); },
    'ease-in-out': function(t) { return t < 0.5 ? 2 * t * t : -1 + (4 - 2 * t) * t; }
  };
  function interpolate(from, to, t) {
    var state = {};
    for (var k in to) {
      var a = parseFloat(from[k]), b = parseFloat(to[k]);
      if (isNaN(a) || isNaN(b)) { state[k] = to[k]; continue; }
      var unit = (String(to[k]).match(/[a-z%]+$/) || [''])[0];
      state[k] = (a + (b - a) * t) + unit;
    }
    return state;
  }
  function apply(target, state) {
    if (!target) return;
    for (var k in state) target.style[k] = state[k];
  }
  function animate(options) {
    var target = options.target;
    if (target && target.length !== undefined && target.style === undefined) target = target[0];
    var duration = options.duration || 1000;
    var ease = easings[options.easing] || easings['linear'];
    var frames = [];
    if (options.begin) frames.push({at: 0, props: options.begin});
    (options.when || []).forEach(function(w) {
      frames.push({at: w.at !== undefined ? w.at : 0.5, props: w});
    });
    if (options.end) frames.push({at: 1, props: options.end});
    frames.sort(function(a, b) { return a.at - b.at; });
    var loops = options.loop || 1;
    var direction = options.direction || 'normal';
    var played = 0;
    function run() {
      var start = null;
      function step(timestamp) {
        if (start === null) start = timestamp;
        var progress = Math.min((timestamp - start) / duration, 1);
        var t = ease(progress);
        if (direction === 'reverse' || (direction === 'alternate' && played % 2 === 1)) t = 1 - t;
        for (var i = 0; i + 1 < frames.length; i++) {
          var a = frames[i], b = frames[i + 1];
          if (t >= a.at && t <= b.at) {
            var local = b.at === a.at ? 1 : (t - a.at) / (b.at - a.at);
            apply(target, interpolate(a.props, b.props, local));
            break;
          }
        }
        if (progress < 1) {
          requestAnimationFrame(step);
        } else {
          played++;
          if (loops < 0 || played < loops) {
            run();
          } else if (options.callback) {
            options.callback();
          }
        }
      }
      requestAnimationFrame(step);
    }
    setTimeout(run, options.delay || 0);
  }
  return { animate: animate };
})();
`

const virtualObjectsPrelude = `// CHTL JS Virtual Object System
var CHTLVirtualObjects = {};
`

const moduleLoaderPrelude = `// CHTL JS Module Loader
var CHTLModuleLoader = (function() {
  var loaded = {};
  function loadModule(path, callback) {
    if (loaded[path]) {
      callback();
      return;
    }
    var script = document.createElement('script');
    script.src = path;
    script.onload = function() {
      loaded[path] = true;
      callback();
    };
    document.head.appendChild(script);
  }
  return { load: loadModule };
})();
`

// ModuleFormat selects how module blocks are emitted.
type ModuleFormat int

const (
	ModuleAMD ModuleFormat = iota
	ModuleCommonJS
	ModuleES6
)

type JSOptions struct {
	// WrapIIFE wraps the user code in an IIFE with 'use strict'.
	WrapIIFE bool
	Minify   bool
	Format   ModuleFormat
	// LoadOrder overrides the emission order of module load targets; when
	// nil the declaration order is used.
	LoadOrder []string
}

func DefaultJSOptions() JSOptions {
	return JSOptions{WrapIIFE: true}
}

type jsPrinter struct {
	output  []byte
	opts    JSOptions
	handler *handler.Handler

	usedModule bool
}

func (p *jsPrinter) print(text string) {
	p.output = append(p.output, text...)
}

func (p *jsPrinter) printf(format string, a ...interface{}) {
	p.print(fmt.Sprintf(format, a...))
}

func (p *jsPrinter) println(text string) {
	p.print(text + "\n")
}

// PrintScript emits the runtime prelude followed by the translated user
// code. The result is deterministic for a given tree and options.
func PrintScript(prog *js.Node, opts JSOptions, h *handler.Handler) []byte {
	p := &jsPrinter{opts: opts, handler: h}
	p.println(selectorPrelude)
	p.println(delegationPrelude)
	p.println(animationPrelude)
	p.println(virtualObjectsPrelude)
	for _, c := range prog.Children {
		if c.Kind == js.ModuleNode {
			p.println(moduleLoaderPrelude)
			p.usedModule = true
			break
		}
	}
	if opts.WrapIIFE {
		p.println("(function() {")
		p.println("'use strict';")
	}
	for _, c := range prog.Children {
		p.printStatement(c)
	}
	if opts.WrapIIFE {
		p.println("})();")
	}
	if opts.Minify {
		return []byte(minifyJS(string(p.output)))
	}
	return p.output
}

func (p *jsPrinter) printStatement(n *js.Node) {
	switch n.Kind {
	case js.RawNode:
		p.print(strings.TrimRight(n.Code, " \t"))
	case js.ArrowAccessNode:
		p.print(p.expr(n))
	case js.SelectorNode:
		p.print(p.expr(n))
	case js.EventBindingNode:
		p.printf("%s.addEventListener('%s', function(event) { %s });\n", p.expr(n.Target), n.Member, n.Code)
	case js.ListenNode:
		p.printListen(n)
	case js.DelegateNode:
		p.printDelegate(n)
	case js.AnimateNode:
		p.printAnimate(n)
	case js.VirtualObjectNode:
		p.printVirtualObject(n)
	case js.ModuleNode:
		p.printModule(n)
	case js.OpaqueBlockNode:
		p.printf("{ %s }", n.Code)
	}
}

// expr renders a node in expression position.
func (p *jsPrinter) expr(n *js.Node) string {
	if n == nil {
		return ""
	}
	switch n.Kind {
	case js.RawNode:
		return strings.TrimSpace(n.Code)
	case js.SelectorNode:
		return selectorExpr(n)
	case js.ArrowAccessNode:
		return p.expr(n.Target) + "." + n.Member
	case js.ListenNode, js.DelegateNode, js.AnimateNode:
		return p.blockObject(n)
	case js.OpaqueBlockNode:
		return "{ " + n.Code + " }"
	}
	return ""
}

func selectorExpr(n *js.Node) string {
	var code string
	switch n.SelectorType {
	case js.SelectorClass:
		code = SELECTOR_HELPER + ".byClass('" + n.Selector + "')"
	case js.SelectorID:
		code = SELECTOR_HELPER + ".byId('" + n.Selector + "')"
	case js.SelectorTag:
		code = SELECTOR_HELPER + ".byTag('" + n.Selector + "')"
	case js.SelectorReference:
		code = SELECTOR_HELPER + ".current()"
	default:
		code = SELECTOR_HELPER + ".query('" + n.Selector + "')"
	}
	if n.HasIndex {
		code += fmt.Sprintf("[%d]", n.Index)
	}
	return code
}

func (p *jsPrinter) printListen(n *js.Node) {
	if n.Target == nil {
		p.print(p.blockObject(n))
		p.println(";")
		return
	}
	target := p.targetExpr(n.Target)
	for _, e := range n.Entries {
		if e.Val == "" && e.Block == nil {
			continue
		}
		p.printf("%s.addEventListener('%s', %s);\n", target, e.Key, p.entryVal(e))
	}
}

func (p *jsPrinter) targetExpr(t *js.Node) string {
	return p.expr(t)
}

func (p *jsPrinter) entryVal(e js.Entry) string {
	if e.Block != nil {
		return p.expr(e.Block)
	}
	return e.Val
}

// printDelegate emits one delegated listener per event entry, dispatching
// on event.target against the `target` entry's selector.
func (p *jsPrinter) printDelegate(n *js.Node) {
	parent := "document"
	if n.Target != nil {
		parent = p.targetExpr(n.Target)
	}
	targetSel := ""
	var events []js.Entry
	for _, e := range n.Entries {
		if e.Key == "target" {
			if e.Block != nil && e.Block.Kind == js.SelectorNode {
				targetSel = "'" + e.Block.Selector + "'"
			} else {
				targetSel = e.Val
			}
			continue
		}
		events = append(events, e)
	}
	for _, e := range events {
		p.printf("%s.delegate(%s, %s, '%s', %s);\n", DELEGATION_HELPER, parent, targetSel, e.Key, p.entryVal(e))
	}
}

func (p *jsPrinter) printAnimate(n *js.Node) {
	p.printf("%s.animate(%s);\n", ANIMATION_HELPER, p.blockObject(n))
}

// blockObject renders a structured block's entries as an object literal.
// An animate block attached via `->` inherits its target from the arrow's
// left-hand side.
func (p *jsPrinter) blockObject(n *js.Node) string {
	var b strings.Builder
	b.WriteString("{")
	first := true
	if n.Kind == js.AnimateNode && n.Target != nil {
		b.WriteString("\n  target: ")
		b.WriteString(p.targetExpr(n.Target))
		first = false
	}
	for _, e := range n.Entries {
		if !first {
			b.WriteString(",")
		}
		b.WriteString("\n  ")
		b.WriteString(e.Key)
		b.WriteString(": ")
		b.WriteString(p.entryVal(e))
		first = false
	}
	b.WriteString("\n}")
	return b.String()
}

func (p *jsPrinter) printVirtualObject(n *js.Node) {
	name := strcase.ToLowerCamel(n.Member)
	p.printf("%s.%s = %s;\n", VIRTUAL_OBJECTS, name, p.expr(n.Target))
}

// printModule emits the load sequence in the configured format. The
// loader order defaults to declaration order; the dispatcher substitutes
// the dependency-resolved order when module analysis ran.
func (p *jsPrinter) printModule(n *js.Node) {
	paths := make([]string, 0, len(n.Entries))
	for _, e := range n.Entries {
		paths = append(paths, e.Val)
	}
	if p.opts.LoadOrder != nil {
		paths = p.opts.LoadOrder
	}
	switch p.opts.Format {
	case ModuleCommonJS:
		for _, path := range paths {
			p.printf("require('%s');\n", path)
		}
	case ModuleES6:
		for _, path := range paths {
			p.printf("import '%s';\n", path)
		}
	default:
		p.println("// Load modules")
		for _, path := range paths {
			p.printf("%s.load('%s', function() {});\n", MODULE_LOADER, path)
		}
	}
}

// minifyJS collapses insignificant whitespace. String literals are left
// untouched.
func minifyJS(src string) string {
	var b strings.Builder
	inString := byte(0)
	lastSpace := false
	for i := 0; i < len(src); i++ {
		c := src[i]
		if inString != 0 {
			b.WriteByte(c)
			if c == '\\' && i+1 < len(src) {
				i++
				b.WriteByte(src[i])
				continue
			}
			if c == inString {
				inString = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			inString = c
			b.WriteByte(c)
			lastSpace = false
		case ' ', '\t', '\n', '\r':
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		default:
			b.WriteByte(c)
			lastSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}
