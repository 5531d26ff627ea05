package analyzer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codesynapse/codesynapse/internal/graph"
)

// Test Plan for the per-file visitor:
// - Module, class, and function nodes with dotted IDs and containment edges
// - Method vs function flags, dunder detection, async detection
// - Decorators: list capture, classmethod/staticmethod flags, abstract marker
// - Plain, aliased, from, relative, and wildcard imports and the alias table
// - Malformed relative imports are dropped without edges
// - Dynamic import hint comments
// - Nested function declarations are not collected
// - Syntax-error files reduce to a bare module

// visitSource parses source as root-relative file relPath and runs the
// visitor with signature collection on.
func visitSource(t *testing.T, rootDir, relPath, source string) *graph.FileResult {
	t.Helper()
	tree := parsePython([]byte(source))
	require.NotNil(t, tree)
	defer tree.Close()
	require.False(t, tree.RootNode().HasError(), "fixture must be valid Python")
	return visitFile(rootDir, relPath, []byte(source), tree.RootNode(), true)
}

func findNode(result *graph.FileResult, id string) *graph.Node {
	for i := range result.Nodes {
		if result.Nodes[i].ID == id {
			return &result.Nodes[i]
		}
	}
	return nil
}

func hasEdge(edges []graph.Edge, from, to string, kind graph.EdgeKind) bool {
	for _, e := range edges {
		if e.From == from && e.To == to && e.Kind == kind {
			return true
		}
	}
	return false
}

func TestModuleID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "main", moduleID("main.py"))
	assert.Equal(t, "pkg.sub.mod", moduleID("pkg/sub/mod.py"))
	// Test: __init__ files take their directory's dotted path
	assert.Equal(t, "pkg", moduleID("pkg/__init__.py"))
	assert.Equal(t, "__init__", moduleID("__init__.py"))
}

func TestVisit_Declarations(t *testing.T) {
	t.Parallel()

	source := `"""App module."""

class Service:
    """Does the work."""

    def run(self):
        pass

    async def poll(self):
        pass

    def __repr__(self):
        return "Service"

def helper():
    pass
`
	result := visitSource(t, t.TempDir(), "app/svc.py", source)

	require.NotNil(t, findNode(result, "app.svc"))
	assert.Equal(t, graph.NodeModule, findNode(result, "app.svc").Kind)
	assert.Equal(t, "app/svc.py", findNode(result, "app.svc").File)

	cls := findNode(result, "app.svc.Service")
	require.NotNil(t, cls)
	assert.Equal(t, graph.NodeClass, cls.Kind)
	assert.Equal(t, "Does the work.", cls.Docstring)
	assert.Equal(t, 3, cls.Line)

	run := findNode(result, "app.svc.Service.run")
	require.NotNil(t, run)
	assert.True(t, run.IsMethod)
	assert.False(t, run.Async)

	// Test: async and dunder flags
	assert.True(t, findNode(result, "app.svc.Service.poll").Async)
	assert.True(t, findNode(result, "app.svc.Service.__repr__").IsDunder)

	helper := findNode(result, "app.svc.helper")
	require.NotNil(t, helper)
	assert.False(t, helper.IsMethod)

	// Test: containment vs definition edges
	assert.True(t, hasEdge(result.Edges, "app.svc", "app.svc.Service", graph.EdgeContains))
	assert.True(t, hasEdge(result.Edges, "app.svc.Service", "app.svc.Service.run", graph.EdgeDefines))
	assert.True(t, hasEdge(result.Edges, "app.svc", "app.svc.helper", graph.EdgeContains))
}

func TestVisit_Decorators(t *testing.T) {
	t.Parallel()

	source := `from abc import ABC, abstractmethod
from functools import lru_cache

class Base(ABC):
    @abstractmethod
    def load(self):
        ...

class Registry:
    @classmethod
    def create(cls):
        pass

    @staticmethod
    def probe():
        pass

@lru_cache(maxsize=128)
def cached():
    pass
`
	result := visitSource(t, t.TempDir(), "core.py", source)

	// Test: abstract marker from decorator names
	load := findNode(result, "core.Base.load")
	require.NotNil(t, load)
	assert.Equal(t, []string{"abstractmethod"}, load.Decorators)

	// Test: classmethod/staticmethod set flags, no decoration raw ref
	create := findNode(result, "core.Registry.create")
	require.NotNil(t, create)
	assert.True(t, create.IsClassmethod)
	probe := findNode(result, "core.Registry.probe")
	require.NotNil(t, probe)
	assert.True(t, probe.IsStaticmethod)
	for _, ref := range result.Decorators {
		assert.NotEqual(t, "classmethod", ref.Name)
		assert.NotEqual(t, "staticmethod", ref.Name)
	}

	// Test: decorator calls unwrap to the callee name
	assert.Contains(t, result.Decorators, graph.RawRef{Owner: "core.cached", Name: "lru_cache"})

	// Test: base classes recorded raw for the resolver
	assert.Contains(t, result.Bases, graph.RawRef{Owner: "core.Base", Name: "ABC"})
}

func TestVisit_AbstractClass(t *testing.T) {
	t.Parallel()

	source := `import abc

@some.ABCMeta_helper
class Shape:
    pass
`
	result := visitSource(t, t.TempDir(), "shapes.py", source)
	cls := findNode(result, "shapes.Shape")
	require.NotNil(t, cls)
	assert.True(t, cls.Abstract)
}

func TestVisit_Imports(t *testing.T) {
	t.Parallel()

	source := `import os
import numpy as np
import os.path
from collections import OrderedDict
from app.models import User as U, Role
`
	result := visitSource(t, t.TempDir(), "app/views.py", source)

	assert.True(t, hasEdge(result.Edges, "app.views", "os", graph.EdgeImports))
	assert.True(t, hasEdge(result.Edges, "app.views", "numpy", graph.EdgeImports))
	assert.True(t, hasEdge(result.Edges, "app.views", "os.path", graph.EdgeImports))
	assert.True(t, hasEdge(result.Edges, "app.views", "collections.OrderedDict", graph.EdgeImports))
	assert.True(t, hasEdge(result.Edges, "app.views", "app.models.User", graph.EdgeImports))
	assert.True(t, hasEdge(result.Edges, "app.views", "app.models.Role", graph.EdgeImports))

	// Test: alias table maps local names to qualified ones
	assert.Equal(t, "numpy", result.Aliases["np"])
	assert.Equal(t, "os.path", result.Aliases["os.path"])
	assert.Equal(t, "app.models.User", result.Aliases["U"])
	assert.Equal(t, "app.models.Role", result.Aliases["Role"])
	assert.Equal(t, "collections.OrderedDict", result.Aliases["OrderedDict"])
}

func TestVisit_RelativeImports(t *testing.T) {
	t.Parallel()

	source := `from . import sibling
from ..common import util
`
	result := visitSource(t, t.TempDir(), "pkg/sub/mod.py", source)

	assert.True(t, hasEdge(result.Edges, "pkg.sub.mod", "pkg.sub.sibling", graph.EdgeImports))
	assert.True(t, hasEdge(result.Edges, "pkg.sub.mod", "pkg.common.util", graph.EdgeImports))
	assert.Equal(t, "pkg.sub.sibling", result.Aliases["sibling"])
	assert.Equal(t, "pkg.common.util", result.Aliases["util"])
}

func TestVisit_RelativeImportBeyondRoot(t *testing.T) {
	t.Parallel()

	// Test: dot level exceeding module depth drops the import entirely
	source := `from ....deep import thing
`
	result := visitSource(t, t.TempDir(), "pkg/mod.py", source)

	for _, e := range result.Edges {
		assert.NotEqual(t, graph.EdgeImports, e.Kind, "malformed relative import must not produce an edge")
	}
	assert.Empty(t, result.Aliases)
}

func TestVisit_WildcardImport(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "lib"), 0o755))
	helpers := `__all__ = ["alpha", "beta"]

def alpha():
    pass

def beta():
    pass

def _hidden():
    pass
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "lib", "helpers.py"), []byte(helpers), 0o644))

	source := `from lib.helpers import *
`
	result := visitSource(t, root, "main.py", source)

	// Test: star edge to the wildcard base
	var star bool
	for _, e := range result.Edges {
		if e.Kind == graph.EdgeImports && e.To == "lib.helpers" && e.Star {
			star = true
		}
	}
	assert.True(t, star)

	// Test: __all__ names become aliases, others do not
	assert.Equal(t, "lib.helpers.alpha", result.Aliases["alpha"])
	assert.Equal(t, "lib.helpers.beta", result.Aliases["beta"])
	assert.NotContains(t, result.Aliases, "_hidden")
}

func TestVisit_WildcardWithoutAll(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "util.py"), []byte("def f():\n    pass\n"), 0o644))

	result := visitSource(t, root, "main.py", "from util import *\n")

	// Test: no __all__ means conservative aliasing (none)
	assert.Empty(t, result.Aliases)
	assert.True(t, hasEdge(result.Edges, "main", "util", graph.EdgeImports))
}

func TestVisit_DynamicImportHint(t *testing.T) {
	t.Parallel()

	source := `import importlib

# codesynapse: import plugins.audio
mod = importlib.import_module("plugins.audio")
`
	result := visitSource(t, t.TempDir(), "loader.py", source)

	var found bool
	for _, e := range result.Edges {
		if e.To == "plugins.audio" && e.Kind == graph.EdgeImports {
			assert.True(t, e.Dynamic)
			found = true
		}
	}
	assert.True(t, found, "hint comment should yield a dynamic import edge")
}

func TestVisit_NestedFunctionsSkipped(t *testing.T) {
	t.Parallel()

	source := `def outer():
    def inner():
        pass
    return inner
`
	result := visitSource(t, t.TempDir(), "m.py", source)

	assert.NotNil(t, findNode(result, "m.outer"))
	// Test: closures are not declarations
	assert.Nil(t, findNode(result, "m.outer.inner"))
	assert.Nil(t, findNode(result, "m.inner"))
}

func TestVisit_FunctionBodyImport(t *testing.T) {
	t.Parallel()

	source := `def lazy():
    import json
    from app.models import User as U
    return U(json.dumps({}))
`
	result := visitSource(t, t.TempDir(), "m.py", source)

	// Test: deferred imports still register aliases and module edges
	assert.True(t, hasEdge(result.Edges, "m", "json", graph.EdgeImports))
	assert.True(t, hasEdge(result.Edges, "m", "app.models.User", graph.EdgeImports))
	assert.Equal(t, "json", result.Aliases["json"])
	assert.Equal(t, "app.models.User", result.Aliases["U"])
}

func TestVisit_ConditionalDeclarations(t *testing.T) {
	t.Parallel()

	source := `import sys

if sys.version_info >= (3, 11):
    def fast_path():
        pass
else:
    def fast_path():
        pass
`
	result := visitSource(t, t.TempDir(), "compat.py", source)
	assert.NotNil(t, findNode(result, "compat.fast_path"))
}

func TestVisit_TypeHintEdges(t *testing.T) {
	t.Parallel()

	source := `from app.models import User

def greet(user: User) -> str:
    return "hi"
`
	result := visitSource(t, t.TempDir(), "views.py", source)

	var hinted bool
	for _, e := range result.Edges {
		if e.From == "views.greet" && e.To == "app.models.User" && e.TypeHint {
			hinted = true
		}
	}
	assert.True(t, hinted, "annotation using an imported name should yield a type-hint edge")

	// Test: builtin annotation names resolve to themselves, no edge
	for _, e := range result.Edges {
		assert.NotEqual(t, "str", e.To)
	}
}

func TestVisit_RawCalls(t *testing.T) {
	t.Parallel()

	source := `import json

def publish(event):
    payload = json.dumps(event)
    send(payload)
    for i in range(3):
        retry(payload)
`
	result := visitSource(t, t.TempDir(), "bus.py", source)

	assert.Contains(t, result.Calls, graph.RawRef{Owner: "bus.publish", Name: "json.dumps"})
	assert.Contains(t, result.Calls, graph.RawRef{Owner: "bus.publish", Name: "send"})
	// Test: calls inside loops attribute to the enclosing function
	assert.Contains(t, result.Calls, graph.RawRef{Owner: "bus.publish", Name: "retry"})
}

func TestBareModuleResult(t *testing.T) {
	t.Parallel()

	result := bareModuleResult("pkg/broken.py")
	require.Len(t, result.Nodes, 1)
	assert.Equal(t, "pkg.broken", result.Nodes[0].ID)
	assert.Equal(t, graph.NodeModule, result.Nodes[0].Kind)
	assert.Empty(t, result.Edges)
}
