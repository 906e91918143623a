package styles

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tbd/internal/exports"
)

func TestPlainMarkdownRenderer(t *testing.T) {
	r, err := GetMarkdownRenderer(80, true)
	require.NoError(t, err)

	out, err := r.Render("# libdemo\n\n- **archs** arm64\n")
	require.NoError(t, err)
	assert.Contains(t, out, "libdemo")
	assert.Contains(t, out, "arm64")
}

func TestColoredMarkdownRenderer(t *testing.T) {
	r, err := GetMarkdownRenderer(80, false)
	require.NoError(t, err)
	out, err := r.Render("## exports\n")
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "exports"))
}

func TestPlainPalette(t *testing.T) {
	p := NewPalette(true)
	assert.Equal(t, "_foo", p.Name.Render("_foo"))
	assert.Equal(t, "objc-class", p.Kind[exports.ObjCClass].Render("objc-class"))
}
