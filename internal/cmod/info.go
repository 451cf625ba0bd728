// Package cmod implements CMOD module packaging: the on-disk layout, the
// info/export file format, structure validation, and the zip-family
// archive container.
package cmod

import (
	"fmt"
	"strings"

	chtl "github.com/chtl-lang/compiler/internal"
	"golang.org/x/mod/semver"
)

// ExportTable lists the names a module publishes, grouped by kind.
type ExportTable struct {
	CustomStyles     []string `json:"customStyles,omitempty"`
	CustomElements   []string `json:"customElements,omitempty"`
	CustomVars       []string `json:"customVars,omitempty"`
	TemplateStyles   []string `json:"templateStyles,omitempty"`
	TemplateElements []string `json:"templateElements,omitempty"`
	TemplateVars     []string `json:"templateVars,omitempty"`
	Origins          []string `json:"origins,omitempty"`
	Configurations   []string `json:"configurations,omitempty"`
}

func (t ExportTable) IsEmpty() bool {
	return len(t.CustomStyles)+len(t.CustomElements)+len(t.CustomVars)+
		len(t.TemplateStyles)+len(t.TemplateElements)+len(t.TemplateVars)+
		len(t.Origins)+len(t.Configurations) == 0
}

// Info is a module's metadata record, parsed from its info file.
type Info struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Author       string            `json:"author,omitempty"`
	License      string            `json:"license,omitempty"`
	Description  string            `json:"description,omitempty"`
	Dependencies []string          `json:"dependencies,omitempty"`
	MinVersion   string            `json:"minVersion,omitempty"`
	MaxVersion   string            `json:"maxVersion,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Exports      ExportTable       `json:"exports"`
}

// canonical returns the semver-comparable form of a version string.
func canonical(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// ValidVersion reports whether v matches <major>.<minor>.<patch> with an
// optional prerelease suffix.
func ValidVersion(v string) bool {
	c := canonical(v)
	// Canonical pads missing components, so requiring a fixed point here
	// enforces the full <major>.<minor>.<patch> shape.
	return semver.IsValid(c) && semver.Canonical(c) == c
}

// CompatibleWith reports whether the host version falls inside the
// module's declared min/max range. Open ends always pass.
func (i Info) CompatibleWith(hostVersion string) bool {
	host := canonical(hostVersion)
	if i.MinVersion != "" && semver.Compare(canonical(i.MinVersion), host) > 0 {
		return false
	}
	if i.MaxVersion != "" && semver.Compare(canonical(i.MaxVersion), host) < 0 {
		return false
	}
	return true
}

// ParseInfo parses an info file: an `[Info] { key = "value"; … }` block
// plus an optional `[Export] { … }` block with kind-grouped name lists.
func ParseInfo(src string) (Info, error) {
	info := Info{Metadata: map[string]string{}}
	lx := chtl.NewLexer(src, chtl.DefaultLexerOptions())
	for {
		t := lx.Next()
		switch {
		case t.Type == chtl.EOFToken || t.Type == chtl.ErrorToken:
			if info.Name == "" {
				return info, fmt.Errorf("info file missing [Info] block or name key")
			}
			if info.Version != "" && !ValidVersion(info.Version) {
				return info, fmt.Errorf("invalid version %q", info.Version)
			}
			return info, nil
		case t.Type == chtl.KeywordToken && t.Data == "[Info]":
			if err := parseInfoBlock(lx, &info); err != nil {
				return info, err
			}
		case t.Type == chtl.KeywordToken && t.Data == "[Export]":
			if err := parseExportBlock(lx, &info.Exports); err != nil {
				return info, err
			}
		}
	}
}

func parseInfoBlock(lx *chtl.Lexer, info *Info) error {
	if t := lx.Next(); !(t.Type == chtl.PunctToken && t.Data == "{") {
		return fmt.Errorf("expected { after [Info]")
	}
	for {
		t := lx.Next()
		if t.Type == chtl.PunctToken && t.Data == "}" {
			return nil
		}
		if t.Type == chtl.EOFToken || t.Type == chtl.ErrorToken {
			return fmt.Errorf("unterminated [Info] block")
		}
		if t.Type != chtl.IdentToken && t.Type != chtl.KeywordToken {
			continue
		}
		key := t.Data
		if eq := lx.Next(); !(eq.Type == chtl.PunctToken && eq.Data == "=") {
			return fmt.Errorf("expected = after %q", key)
		}
		val, _ := lx.RawValue()
		val = strings.Trim(val, `"'`)
		if semi := lx.Next(); !(semi.Type == chtl.PunctToken && semi.Data == ";") {
			return fmt.Errorf("expected ; after value of %q", key)
		}
		switch key {
		case "name":
			info.Name = val
		case "version":
			info.Version = val
		case "author":
			info.Author = val
		case "license":
			info.License = val
		case "description":
			info.Description = val
		case "dependencies":
			for _, d := range strings.Split(val, ",") {
				if d = strings.TrimSpace(d); d != "" {
					info.Dependencies = append(info.Dependencies, d)
				}
			}
		case "minVersion", "min-version":
			info.MinVersion = val
		case "maxVersion", "max-version":
			info.MaxVersion = val
		default:
			info.Metadata[key] = val
		}
	}
}

func parseExportBlock(lx *chtl.Lexer, exports *ExportTable) error {
	if t := lx.Next(); !(t.Type == chtl.PunctToken && t.Data == "{") {
		return fmt.Errorf("expected { after [Export]")
	}
	for {
		t := lx.Next()
		if t.Type == chtl.PunctToken && t.Data == "}" {
			return nil
		}
		if t.Type == chtl.EOFToken || t.Type == chtl.ErrorToken {
			return fmt.Errorf("unterminated [Export] block")
		}
		if t.Type != chtl.KeywordToken || !chtl.IsBracketKeyword(t.Data) {
			continue
		}
		group := t.Data
		kind := ""
		if group != "[Configuration]" {
			at := lx.Next()
			if !(at.Type == chtl.PunctToken && at.Data == "@") {
				return fmt.Errorf("expected @Kind after %s", group)
			}
			kindTok := lx.Next()
			kind = kindTok.Data
		}
		var names []string
		for {
			nt := lx.Next()
			if nt.Type == chtl.PunctToken && nt.Data == ";" {
				break
			}
			if nt.Type == chtl.PunctToken && nt.Data == "," {
				continue
			}
			if nt.Type == chtl.EOFToken || nt.Type == chtl.ErrorToken || (nt.Type == chtl.PunctToken && nt.Data == "}") {
				return fmt.Errorf("unterminated export entry in %s", group)
			}
			if nt.Type == chtl.IdentToken || nt.Type == chtl.UnquotedToken {
				names = append(names, nt.Data)
			}
		}
		switch group + "@" + kind {
		case "[Custom]@Style":
			exports.CustomStyles = append(exports.CustomStyles, names...)
		case "[Custom]@Element":
			exports.CustomElements = append(exports.CustomElements, names...)
		case "[Custom]@Var":
			exports.CustomVars = append(exports.CustomVars, names...)
		case "[Template]@Style":
			exports.TemplateStyles = append(exports.TemplateStyles, names...)
		case "[Template]@Element":
			exports.TemplateElements = append(exports.TemplateElements, names...)
		case "[Template]@Var":
			exports.TemplateVars = append(exports.TemplateVars, names...)
		case "[Configuration]@":
			exports.Configurations = append(exports.Configurations, names...)
		default:
			if group == "[Origin]" {
				exports.Origins = append(exports.Origins, names...)
			}
		}
	}
}
