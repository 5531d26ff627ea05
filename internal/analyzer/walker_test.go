package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codesynapse/codesynapse/internal/graph"
)

// Test Plan for the project walker:
// - Missing or non-directory roots fail fast
// - Discovery honors include/ignore globs and skips hidden directories
// - Sequential and parallel walks produce identical node and edge sets
// - Repeated walks over an unchanged tree are identical
// - Syntax-error files contribute a bare module
// - Merged output has no self-loops and no duplicate edges
// - Every contained entity's module is declared (containment consistency)
// - Cache hits short-circuit parsing; progress reporting is invoked
// - Cache entries are partitioned by signature-collection mode

// writeProject materializes a small fixture project and returns its root.
func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

var fixtureProject = map[string]string{
	"app/__init__.py": "",
	"app/models.py": `class User:
    def __init__(self, name):
        self.name = name

def load_user(uid):
    return User(uid)
`,
	"app/views.py": `from app.models import User, load_user

def show(uid):
    user = load_user(uid)
    return render(user)
`,
	"scripts/tool.py": `import os

def main():
    print(os.getcwd())
`,
}

func TestParseProject_InvalidRoot(t *testing.T) {
	t.Parallel()

	_, _, err := ParseProject(context.Background(), filepath.Join(t.TempDir(), "missing"), Options{})
	require.Error(t, err)

	file := filepath.Join(t.TempDir(), "not_a_dir.py")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, _, err = ParseProject(context.Background(), file, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestFileDiscovery(t *testing.T) {
	t.Parallel()

	root := writeProject(t, map[string]string{
		"a.py":            "",
		"pkg/b.py":        "",
		"pkg/notes.txt":   "",
		".venv/lib/c.py":  "",
		"build/gen.py":    "",
		"pkg/sub/deep.py": "",
	})

	d, err := NewFileDiscovery(nil, []string{"build/**"})
	require.NoError(t, err)
	files, err := d.Discover(root)
	require.NoError(t, err)

	// Test: sorted, Python-only, hidden and ignored dirs excluded
	assert.Equal(t, []string{"a.py", "pkg/b.py", "pkg/sub/deep.py"}, files)
}

func TestFileDiscovery_BadPattern(t *testing.T) {
	t.Parallel()

	_, err := NewFileDiscovery([]string{"[oops"}, nil)
	require.Error(t, err)
}

func TestParseProject_Basic(t *testing.T) {
	t.Parallel()

	root := writeProject(t, fixtureProject)
	nodes, edges, err := ParseProject(context.Background(), root, Options{})
	require.NoError(t, err)

	ids := make(map[string]graph.NodeKind)
	for _, n := range nodes {
		ids[n.ID] = n.Kind
	}

	assert.Equal(t, graph.NodeModule, ids["app"])
	assert.Equal(t, graph.NodeModule, ids["app.models"])
	assert.Equal(t, graph.NodeClass, ids["app.models.User"])
	assert.Equal(t, graph.NodeFunction, ids["app.views.show"])
	assert.Equal(t, graph.NodeModule, ids["scripts.tool"])

	// Test: cross-file call resolved through the alias table
	assert.True(t, hasEdge(edges, "app.views.show", "app.models.load_user", graph.EdgeCalls))
	// Test: instantiation of a known class
	assert.True(t, hasEdge(edges, "app.models.load_user", "app.models.User", graph.EdgeInstantiates))
	// Test: unresolved call passes through verbatim
	assert.True(t, hasEdge(edges, "app.views.show", "render", graph.EdgeCalls))
	assert.True(t, hasEdge(edges, "scripts.tool", "os", graph.EdgeImports))
}

func TestParseProject_SequentialParallelEquivalence(t *testing.T) {
	t.Parallel()

	root := writeProject(t, fixtureProject)

	seqNodes, seqEdges, err := ParseProject(context.Background(), root, Options{Parallel: false})
	require.NoError(t, err)
	parNodes, parEdges, err := ParseProject(context.Background(), root, Options{Parallel: true, MaxWorkers: 4})
	require.NoError(t, err)

	assert.ElementsMatch(t, seqNodes, parNodes)
	assert.ElementsMatch(t, seqEdges, parEdges)
}

func TestParseProject_Idempotent(t *testing.T) {
	t.Parallel()

	root := writeProject(t, fixtureProject)

	first, firstEdges, err := ParseProject(context.Background(), root, Options{CollectSignatures: true})
	require.NoError(t, err)
	second, secondEdges, err := ParseProject(context.Background(), root, Options{CollectSignatures: true})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, firstEdges, secondEdges)
}

func TestParseProject_SyntaxError(t *testing.T) {
	t.Parallel()

	root := writeProject(t, map[string]string{
		"good.py":   "def ok():\n    pass\n",
		"broken.py": "def broken(:\n",
	})

	nodes, _, err := ParseProject(context.Background(), root, Options{})
	require.NoError(t, err)

	var brokenNode *graph.Node
	for i := range nodes {
		if nodes[i].ID == "broken" {
			brokenNode = &nodes[i]
		}
	}
	// Test: unparseable file still declares its module, nothing else
	require.NotNil(t, brokenNode)
	assert.Equal(t, graph.NodeModule, brokenNode.Kind)
	for _, n := range nodes {
		assert.NotContains(t, n.ID, "broken.", "no declarations under a broken module")
	}
}

func TestParseProject_NoSelfLoopsNoDuplicates(t *testing.T) {
	t.Parallel()

	root := writeProject(t, map[string]string{
		"m.py": `import os
import os

def fib(n):
    if n < 2:
        return n
    return fib(n - 1) + fib(n - 2)
`,
	})

	_, edges, err := ParseProject(context.Background(), root, Options{})
	require.NoError(t, err)

	seen := make(map[graph.Edge]bool)
	for _, e := range edges {
		assert.NotEqual(t, e.From, e.To, "self-loop in output")
		assert.False(t, seen[e], "duplicate edge %+v", e)
		seen[e] = true
	}
}

func TestParseProject_ContainmentConsistency(t *testing.T) {
	t.Parallel()

	root := writeProject(t, fixtureProject)
	nodes, edges, err := ParseProject(context.Background(), root, Options{})
	require.NoError(t, err)

	declared := make(map[string]bool)
	for _, n := range nodes {
		declared[n.ID] = true
	}
	for _, e := range edges {
		if e.Kind == graph.EdgeContains || e.Kind == graph.EdgeDefines {
			assert.True(t, declared[e.From], "container %s must be declared", e.From)
			assert.True(t, declared[e.To], "contained %s must be declared", e.To)
		}
	}
}

// memoryCache is a test double for ParseCache.
type memoryCache struct {
	mu      sync.Mutex
	entries map[memoryCacheKey]*graph.FileResult
	hits    int
	puts    int
}

type memoryCacheKey struct {
	path       string
	signatures bool
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[memoryCacheKey]*graph.FileResult{}}
}

func (c *memoryCache) Get(absPath string, collectSignatures bool) (*graph.FileResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[memoryCacheKey{absPath, collectSignatures}]
	if ok {
		c.hits++
	}
	return r, ok
}

func (c *memoryCache) Put(absPath string, collectSignatures bool, result *graph.FileResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[memoryCacheKey{absPath, collectSignatures}] = result
	c.puts++
	return nil
}

func TestParseProject_Cache(t *testing.T) {
	t.Parallel()

	root := writeProject(t, fixtureProject)
	cache := newMemoryCache()

	first, firstEdges, err := ParseProject(context.Background(), root, Options{Cache: cache})
	require.NoError(t, err)
	assert.Equal(t, len(fixtureProject), cache.puts)

	second, secondEdges, err := ParseProject(context.Background(), root, Options{Cache: cache})
	require.NoError(t, err)

	// Test: second walk is served from cache and produces identical output
	assert.Equal(t, len(fixtureProject), cache.hits)
	assert.Equal(t, first, second)
	assert.Equal(t, firstEdges, secondEdges)
}

func TestParseProject_CacheSignatureMode(t *testing.T) {
	t.Parallel()

	root := writeProject(t, fixtureProject)
	cache := newMemoryCache()

	withSigs, _, err := ParseProject(context.Background(), root, Options{CollectSignatures: true, Cache: cache})
	require.NoError(t, err)

	var signed int
	for _, n := range withSigs {
		if n.Signature != "" {
			signed++
		}
	}
	require.NotZero(t, signed)

	// Test: a warm cache from a signature walk never feeds a bare walk
	bare, _, err := ParseProject(context.Background(), root, Options{CollectSignatures: false, Cache: cache})
	require.NoError(t, err)
	for _, n := range bare {
		assert.Empty(t, n.Signature, "%s carries a signature from the wrong cache entry", n.ID)
		assert.Nil(t, n.Complexity, "%s carries complexity from the wrong cache entry", n.ID)
	}

	// Test: a repeat signature walk still hits its own entries
	cache.mu.Lock()
	cache.hits = 0
	cache.mu.Unlock()
	again, _, err := ParseProject(context.Background(), root, Options{CollectSignatures: true, Cache: cache})
	require.NoError(t, err)
	assert.Equal(t, len(fixtureProject), cache.hits)
	assert.Equal(t, withSigs, again)
}

// countingReporter is a test double for ProgressReporter.
type countingReporter struct {
	mu       sync.Mutex
	total    int
	ticks    int
	finished bool
}

func (r *countingReporter) Start(total int) { r.total = total }
func (r *countingReporter) Increment() {
	r.mu.Lock()
	r.ticks++
	r.mu.Unlock()
}
func (r *countingReporter) Finish() { r.finished = true }

func TestParseProject_Progress(t *testing.T) {
	t.Parallel()

	root := writeProject(t, fixtureProject)
	reporter := &countingReporter{}

	_, _, err := ParseProject(context.Background(), root, Options{Progress: reporter})
	require.NoError(t, err)

	assert.Equal(t, len(fixtureProject), reporter.total)
	assert.Equal(t, len(fixtureProject), reporter.ticks)
	assert.True(t, reporter.finished)
}

func TestParseProject_Cancelled(t *testing.T) {
	t.Parallel()

	root := writeProject(t, fixtureProject)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := ParseProject(ctx, root, Options{})
	require.ErrorIs(t, err, context.Canceled)
}
