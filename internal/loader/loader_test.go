package loader_test

import (
	"strings"
	"testing"

	"github.com/rogpeppe/go-internal/txtar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loom-lang/loom/internal/ast"
	"github.com/loom-lang/loom/internal/host"
	"github.com/loom-lang/loom/internal/loader"
	"github.com/loom-lang/loom/internal/sema"
	"github.com/loom-lang/loom/internal/stdlib"
	"github.com/loom-lang/loom/internal/test_util"
)

// lineParse understands just enough syntax for loader fixtures: one
// `import "<specifier>"` per line.
func lineParse(src *ast.Source) ([]ast.Stmt, []*sema.Diagnostic) {
	var stmts []ast.Stmt
	for _, line := range strings.Split(src.Contents, "\n") {
		line = strings.TrimSpace(line)
		if spec, ok := strings.CutPrefix(line, "import "); ok {
			spec = strings.Trim(spec, `"`)
			stmts = append(stmts, test_util.Import(spec))
		}
	}
	return stmts, nil
}

func hostFromTxtar(t *testing.T, archive string) host.Host {
	t.Helper()
	ar := txtar.Parse([]byte(archive))
	files := make(map[string]string, len(ar.Files))
	for _, f := range ar.Files {
		files["/"+f.Name] = string(f.Data)
	}
	return host.NewMapHost(files)
}

const diamond = `
-- main.loom --
import "./a"
import "./b"
-- a.loom --
import "./shared"
-- b.loom --
import "./shared"
-- shared.loom --
`

func TestComputeGraphTopologicalOrder(t *testing.T) {
	ld := loader.NewLoader(hostFromTxtar(t, diamond), lineParse)
	graph, err := ld.ComputeGraph("/main.loom")
	require.NoError(t, err)
	assert.False(t, graph.HasCycle)

	position := make(map[string]int)
	for i, lib := range graph.Sorted {
		position[lib.Path] = i
	}

	// Dependencies come before dependents.
	assert.Less(t, position["/shared.loom"], position["/a.loom"])
	assert.Less(t, position["/shared.loom"], position["/b.loom"])
	assert.Less(t, position["/a.loom"], position["/main.loom"])
	assert.Less(t, position["/b.loom"], position["/main.loom"])

	// The prelude is a dependency of every non-stdlib library.
	assert.Less(t, position[stdlib.Prefix+"core"], position["/shared.loom"])
}

func TestLoadIsMemoised(t *testing.T) {
	ld := loader.NewLoader(hostFromTxtar(t, diamond), lineParse)
	first, err := ld.Load("/shared.loom")
	require.NoError(t, err)
	second, err := ld.Load("/shared.loom")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestCycleDetection(t *testing.T) {
	archive := `
-- main.loom --
import "./a"
-- a.loom --
import "./b"
-- b.loom --
import "./a"
`
	ld := loader.NewLoader(hostFromTxtar(t, archive), lineParse)
	graph, err := ld.ComputeGraph("/main.loom")
	require.NoError(t, err)
	assert.True(t, graph.HasCycle)
	assert.NotEmpty(t, graph.CycleMembers)
}

func TestMissingLibraryPropagates(t *testing.T) {
	archive := `
-- main.loom --
import "./missing"
`
	ld := loader.NewLoader(hostFromTxtar(t, archive), lineParse)
	_, err := ld.ComputeGraph("/main.loom")
	assert.Error(t, err)
}

func TestStdlibFlag(t *testing.T) {
	ld := loader.NewLoader(hostFromTxtar(t, diamond), lineParse)
	lib, err := ld.Load(stdlib.Prefix + "core")
	require.NoError(t, err)
	assert.True(t, lib.Stdlib)
	assert.NotEmpty(t, lib.Stmts)
}
