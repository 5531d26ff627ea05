package analyzer

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codesynapse/codesynapse/internal/graph"
)

// collectCalls walks a function body and records a raw reference for every
// call whose callee is a plain name chain. Calls inside nested constructs
// (conditionals, loops, comprehensions, nested defs) are attributed to the
// enclosing named function. Computed callees like get_handler()() cannot be
// named and are skipped; their inner calls are still found by the walk.
func (v *fileVisitor) collectCalls(body *sitter.Node, owner string) {
	walkTree(body, func(n *sitter.Node) bool {
		if n.Kind() != "call" {
			return true
		}
		callee := dottedName(n.ChildByFieldName("function"), v.source)
		if callee != "" {
			v.result.Calls = append(v.result.Calls, graph.RawRef{Owner: owner, Name: callee})
		}
		// Keep descending: arguments and computed callee expressions may
		// contain further calls.
		return true
	})
}
