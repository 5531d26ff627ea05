package serializer

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/codesynapse/codesynapse/internal/graph"
)

// Generator identifies this tool in exported documents.
const Generator = "codesynapse"

// Summary aggregates the graph by node and edge kind.
type Summary struct {
	NodeKinds map[graph.NodeKind]int `json:"node_kinds"`
	EdgeKinds map[graph.EdgeKind]int `json:"edge_kinds"`
}

// Document is the JSON envelope for one exported graph.
type Document struct {
	Metadata graph.GraphMetadata `json:"metadata"`
	Summary  Summary             `json:"summary"`
	Nodes    []graph.Node        `json:"nodes"`
	Edges    []graph.Edge        `json:"edges"`
}

// sortGraphData orders nodes by ID and edges by endpoints so repeated exports
// of the same graph are byte-identical apart from metadata.
func sortGraphData(data *graph.GraphData) {
	sort.Slice(data.Nodes, func(i, j int) bool { return data.Nodes[i].ID < data.Nodes[j].ID })
	sort.Slice(data.Edges, func(i, j int) bool {
		a, b := data.Edges[i], data.Edges[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return a.Kind < b.Kind
	})
}

func summarize(data *graph.GraphData) Summary {
	summary := Summary{
		NodeKinds: make(map[graph.NodeKind]int),
		EdgeKinds: make(map[graph.EdgeKind]int),
	}
	for _, n := range data.Nodes {
		summary.NodeKinds[n.Kind]++
	}
	for _, e := range data.Edges {
		summary.EdgeKinds[e.Kind]++
	}
	return summary
}

// BuildDocument assembles the export envelope with deterministically ordered
// nodes and edges.
func BuildDocument(cg *graph.CodeGraph, projectPath, version string) *Document {
	data := cg.Data()
	sortGraphData(data)
	summary := summarize(data)

	return &Document{
		Metadata: graph.GraphMetadata{
			Generator:   Generator,
			Version:     version,
			RunID:       uuid.NewString(),
			ProjectPath: projectPath,
			GeneratedAt: time.Now().UTC(),
			NodeCount:   len(data.Nodes),
			EdgeCount:   len(data.Edges),
		},
		Summary: summary,
		Nodes:   data.Nodes,
		Edges:   data.Edges,
	}
}

// WriteJSON exports the graph as indented JSON.
func WriteJSON(w io.Writer, cg *graph.CodeGraph, projectPath, version string) error {
	doc := BuildDocument(cg, projectPath, version)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode graph: %w", err)
	}
	return nil
}
