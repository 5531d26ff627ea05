package analyzer

import (
	"strings"
	"unicode"

	"github.com/codesynapse/codesynapse/internal/graph"
)

// resolveReferences runs the second pass: every raw reference collected by
// the per-file visits is resolved against the complete declaration set. The
// pass is pure over its inputs, so its output is independent of file visit
// order and of whether files were parsed in parallel.
func resolveReferences(results []*graph.FileResult) []graph.Edge {
	declared := make(map[string]graph.NodeKind)
	for _, r := range results {
		for _, n := range r.Nodes {
			declared[n.ID] = n.Kind
		}
	}

	var edges []graph.Edge
	add := func(e graph.Edge) {
		if e.From != e.To {
			edges = append(edges, e)
		}
	}

	for _, r := range results {
		for _, ref := range r.Bases {
			resolved := resolveName(ref.Name, r.Module, r.Aliases, declared)
			add(graph.Edge{From: ref.Owner, To: resolved, Kind: graph.EdgeInherits})
		}

		for _, ref := range r.Decorators {
			resolved := resolveName(ref.Name, r.Module, r.Aliases, declared)
			add(graph.Edge{From: ref.Owner, To: resolved, Kind: graph.EdgeDecorates})
			// A decorator living outside this module implies a dependency the
			// import statements may not show (e.g. injected via wildcard).
			if resolved != r.Module && !strings.HasPrefix(resolved, r.Module+".") {
				add(graph.Edge{From: r.Module, To: resolved, Kind: graph.EdgeImports})
			}
		}

		for _, ref := range r.Calls {
			resolved := resolveName(ref.Name, r.Module, r.Aliases, declared)
			kind := classifyCall(resolved, declared)
			add(graph.Edge{From: ref.Owner, To: resolved, Kind: kind})
		}
	}
	return edges
}

// resolveName maps a raw reference to a fully qualified identifier:
//
//  1. a name that is already a declared identifier stays as is;
//  2. a name declared inside the referencing module gets module-qualified;
//  3. otherwise the alias table rewrites the first dotted segment;
//  4. failing all of those, the name passes through verbatim and will
//     materialize as an external placeholder at assembly.
func resolveName(name, module string, aliases map[string]string, declared map[string]graph.NodeKind) string {
	if _, ok := declared[name]; ok {
		return name
	}
	if qualified := module + "." + name; declared[qualified] != "" {
		return qualified
	}
	if substituted := substituteAlias(name, aliases); substituted != name {
		return substituted
	}
	return name
}

// classifyCall decides whether a resolved call target denotes instantiation.
// Known classes always do; other declared targets never do; unresolved
// targets fall back to the Python naming convention that classes are
// capitalized.
func classifyCall(resolved string, declared map[string]graph.NodeKind) graph.EdgeKind {
	if kind, ok := declared[resolved]; ok {
		if kind == graph.NodeClass {
			return graph.EdgeInstantiates
		}
		return graph.EdgeCalls
	}
	last := shortName(resolved)
	for _, r := range last {
		if unicode.IsUpper(r) {
			return graph.EdgeInstantiates
		}
		return graph.EdgeCalls
	}
	return graph.EdgeCalls
}
