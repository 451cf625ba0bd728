package test_utils

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestDedent(t *testing.T) {
	out := Dedent("\n\t\tdiv {\n\t\t\tid: box;\n\t\t}\n")
	assert.Equal(t, "div {\n\t\t\tid: box;\n\t\t}", out)
}


func TestRemoveNewlines(t *testing.T) {
	assert.Equal(t, "ab", RemoveNewlines("a\nb"))
}

func TestRedactTestName(t *testing.T) {
	assert.Equal(t, "_div_class=_card__", RedactTestName(`<div class="card">`))
}

func TestANSIDiffEmptyForEqual(t *testing.T) {
	assert.Equal(t, "", ANSIDiff("same", "same"))
}

func TestANSIDiffMarksChanges(t *testing.T) {
	diff := ANSIDiff("a", "b")
	assert.Assert(t, diff != "")
}
