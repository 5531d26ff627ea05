package serializer

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/codesynapse/codesynapse/internal/graph"
)

var nodeShapes = map[graph.NodeKind]string{
	graph.NodeModule:      "box",
	graph.NodeClass:       "ellipse",
	graph.NodeFunction:    "oval",
	graph.NodeExternalLib: "note",
}

// WriteDOT exports the graph in Graphviz DOT form, for quick visual
// inspection with the standard dot toolchain.
func WriteDOT(w io.Writer, cg *graph.CodeGraph) error {
	var b strings.Builder
	b.WriteString("digraph codesynapse {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [fontsize=10];\n")

	ids := make([]string, 0, len(cg.Nodes))
	for id := range cg.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		n := cg.Nodes[id]
		shape := nodeShapes[n.Kind]
		if shape == "" {
			shape = "box"
		}
		fmt.Fprintf(&b, "  %s [label=%s, shape=%s];\n", quote(id), quote(id), shape)
	}

	edges := append([]graph.Edge(nil), cg.Edges...)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		if edges[i].To != edges[j].To {
			return edges[i].To < edges[j].To
		}
		return edges[i].Kind < edges[j].Kind
	})

	for _, e := range edges {
		style := ""
		if e.Dynamic || e.TypeHint {
			style = ", style=dashed"
		}
		fmt.Fprintf(&b, "  %s -> %s [label=%q%s];\n", quote(e.From), quote(e.To), e.Kind, style)
	}

	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func quote(id string) string {
	return fmt.Sprintf("%q", id)
}
