package handler

import (
	"errors"
	"sort"
	"strings"

	"github.com/chtl-lang/compiler/internal/loc"
)

// Handler accumulates diagnostics for a single source file and resolves
// byte offsets to line/column pairs against that file's text.
type Handler struct {
	sourcetext  string
	filename    string
	lineOffsets []int
	errors      []error
	warnings    []error
	infos       []error
	hints       []error
}

func NewHandler(sourcetext string, filename string) *Handler {
	return &Handler{
		sourcetext:  sourcetext,
		filename:    filename,
		lineOffsets: lineOffsets(sourcetext),
		errors:      make([]error, 0),
		warnings:    make([]error, 0),
		infos:       make([]error, 0),
		hints:       make([]error, 0),
	}
}

func lineOffsets(text string) []int {
	offsets := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

func (h *Handler) Filename() string {
	return h.filename
}

func (h *Handler) HasErrors() bool {
	return len(h.errors) > 0
}

func (h *Handler) AppendError(err error) {
	h.errors = append(h.errors, err)
}

func (h *Handler) AppendWarning(err error) {
	h.warnings = append(h.warnings, err)
}

func (h *Handler) AppendInfo(err error) {
	h.infos = append(h.infos, err)
}

func (h *Handler) AppendHint(err error) {
	h.hints = append(h.hints, err)
}

// Position resolves a byte offset into a 1-based line/column pair.
func (h *Handler) Position(l loc.Loc) loc.Position {
	line := sort.Search(len(h.lineOffsets), func(i int) bool {
		return h.lineOffsets[i] > l.Start
	})
	col := l.Start - h.lineOffsets[line-1] + 1
	return loc.Position{Line: line, Column: col, Offset: l.Start}
}

func (h *Handler) Errors() []loc.Diagnostic {
	return h.collect(loc.ErrorType, h.errors)
}

func (h *Handler) Warnings() []loc.Diagnostic {
	return h.collect(loc.WarningType, h.warnings)
}

// Diagnostics returns every accumulated entry in canonical order: sorted
// by source position, ties broken by severity.
func (h *Handler) Diagnostics() []loc.Diagnostic {
	msgs := h.collect(loc.ErrorType, h.errors)
	msgs = append(msgs, h.collect(loc.WarningType, h.warnings)...)
	msgs = append(msgs, h.collect(loc.InformationType, h.infos)...)
	msgs = append(msgs, h.collect(loc.HintType, h.hints)...)
	sort.SliceStable(msgs, func(i, j int) bool {
		li, lj := msgs[i].Location, msgs[j].Location
		switch {
		case li == nil && lj == nil:
			return msgs[i].Severity < msgs[j].Severity
		case li == nil:
			return true
		case lj == nil:
			return false
		case li.Line != lj.Line:
			return li.Line < lj.Line
		case li.Column != lj.Column:
			return li.Column < lj.Column
		}
		return msgs[i].Severity < msgs[j].Severity
	})
	return msgs
}

func (h *Handler) collect(severity loc.DiagnosticSeverity, errs []error) []loc.Diagnostic {
	msgs := make([]loc.Diagnostic, 0)
	for _, err := range errs {
		if err != nil {
			msgs = append(msgs, h.errorToDiagnostic(severity, err))
		}
	}
	return msgs
}

func (h *Handler) errorToDiagnostic(severity loc.DiagnosticSeverity, err error) loc.Diagnostic {
	var rangedError *loc.ErrorWithRange
	switch {
	case errors.As(err, &rangedError):
		pos := h.Position(rangedError.Range.Loc)
		location := &loc.DiagnosticLocation{
			File:   h.filename,
			Line:   pos.Line,
			Column: pos.Column,
			Length: rangedError.Range.Len,
		}
		return rangedError.ToDiagnostic(severity, location)
	default:
		return loc.Diagnostic{Severity: severity, Text: strings.TrimSpace(err.Error())}
	}
}
