package handler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chtl-lang/compiler/internal/loc"
)

func TestPositionResolution(t *testing.T) {
	h := NewHandler("abc\ndef\nghi", "test.chtl")
	Cases := []struct {
		offset int
		line   int
		column int
	}{
		{0, 1, 1},
		{2, 1, 3},
		{4, 2, 1},
		{8, 3, 1},
		{10, 3, 3},
	}
	for _, c := range Cases {
		pos := h.Position(loc.Loc{Start: c.offset})
		assert.Equal(t, c.line, pos.Line, "offset %d", c.offset)
		assert.Equal(t, c.column, pos.Column, "offset %d", c.offset)
	}
}

func TestDiagnosticBuckets(t *testing.T) {
	h := NewHandler("src", "test.chtl")
	assert.False(t, h.HasErrors())
	h.AppendWarning(errors.New("just a warning"))
	assert.False(t, h.HasErrors())
	h.AppendError(errors.New("a real error"))
	assert.True(t, h.HasErrors())

	assert.Len(t, h.Errors(), 1)
	assert.Len(t, h.Warnings(), 1)
	assert.Len(t, h.Diagnostics(), 2)
}

func TestRangedErrorCarriesLocation(t *testing.T) {
	h := NewHandler("line one\nline two", "test.chtl")
	h.AppendError(&loc.ErrorWithRange{
		Code:       loc.ERROR_UNEXPECTED_TOKEN,
		Text:       "unexpected token",
		Range:      loc.Range{Loc: loc.Loc{Start: 9}, Len: 4},
		Suggestion: "remove it",
	})
	diags := h.Errors()
	require.Len(t, diags, 1)
	d := diags[0]
	assert.Equal(t, loc.ERROR_UNEXPECTED_TOKEN, d.Code)
	require.NotNil(t, d.Location)
	assert.Equal(t, 2, d.Location.Line)
	assert.Equal(t, 1, d.Location.Column)
	assert.Equal(t, 4, d.Location.Length)
	require.Len(t, d.Notes, 1)
	assert.Equal(t, "remove it", d.Notes[0].Text)
}

func TestDiagnosticsSortedByPosition(t *testing.T) {
	h := NewHandler("a\nb\nc", "test.chtl")
	h.AppendError(&loc.ErrorWithRange{Text: "late", Range: loc.Range{Loc: loc.Loc{Start: 4}, Len: 1}})
	h.AppendError(&loc.ErrorWithRange{Text: "early", Range: loc.Range{Loc: loc.Loc{Start: 0}, Len: 1}})
	diags := h.Diagnostics()
	require.Len(t, diags, 2)
	assert.Equal(t, "early", diags[0].Text)
	assert.Equal(t, "late", diags[1].Text)
}
