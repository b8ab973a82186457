package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRelative(t *testing.T) {
	h := NewMapHost(nil)

	got, err := h.Resolve("./util", "/src/main.loom")
	require.NoError(t, err)
	assert.Equal(t, "/src/util.loom", got)

	got, err = h.Resolve("../lib/util", "/src/app/main.loom")
	require.NoError(t, err)
	assert.Equal(t, "/src/lib/util.loom", got)

	// An explicit extension is kept as written.
	got, err = h.Resolve("./util.loom", "/src/main.loom")
	require.NoError(t, err)
	assert.Equal(t, "/src/util.loom", got)
}

func TestResolveStdlib(t *testing.T) {
	h := NewMapHost(nil)
	got, err := h.Resolve("stdlib:core", "/src/main.loom")
	require.NoError(t, err)
	assert.Equal(t, "loom:std/core", got)

	_, err = h.Resolve("stdlib:nope", "/src/main.loom")
	assert.Error(t, err)
}

func TestResolveBareSpecifierRejected(t *testing.T) {
	h := NewMapHost(nil)
	_, err := h.Resolve("util", "/src/main.loom")
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	h := NewMapHost(map[string]string{"/a.loom": "let x = 1\n"})

	text, err := h.Load("/a.loom")
	require.NoError(t, err)
	assert.Equal(t, "let x = 1\n", text)

	_, err = h.Load("/missing.loom")
	assert.Error(t, err)

	// Standard libraries load from the registry regardless of host files.
	text, err = h.Load("loom:std/core")
	require.NoError(t, err)
	assert.Contains(t, text, "class Error")
}
