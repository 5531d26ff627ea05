package graph

import (
	"fmt"

	"github.com/dominikbraun/graph"
)

// Hierarchy levels for layout consumers.
const (
	LevelExternal = 0
	LevelModule   = 1
	LevelClass    = 2
	LevelFunction = 3
)

// CodeGraph is the assembled directed property graph of a project.
type CodeGraph struct {
	graph graph.Graph[string, *Node]

	// Nodes indexes every vertex by ID, including auto-created externals.
	Nodes map[string]*Node
	// Edges holds every edge in the graph.
	Edges []Edge
}

// Assemble materializes the directed graph from final node and edge sets.
// Any edge target with no declared node is auto-created as an external
// library placeholder. Derived attributes (importance, hierarchy level) are
// computed here, strictly after the node and edge sets are final.
func Assemble(nodes []Node, edges []Edge) (*CodeGraph, error) {
	g := graph.New(func(n *Node) string { return n.ID }, graph.Directed())

	cg := &CodeGraph{
		graph: g,
		Nodes: make(map[string]*Node, len(nodes)),
	}

	for i := range nodes {
		n := nodes[i]
		if _, exists := cg.Nodes[n.ID]; exists {
			// Re-declaration under the same path: last write wins.
			*cg.Nodes[n.ID] = n
			continue
		}
		node := &n
		if err := g.AddVertex(node); err != nil {
			return nil, fmt.Errorf("failed to add node %s: %w", n.ID, err)
		}
		cg.Nodes[n.ID] = node
	}

	for _, e := range edges {
		if e.From == e.To {
			// Self-loops are disallowed by construction; drop defensively.
			continue
		}
		if _, ok := cg.Nodes[e.From]; !ok {
			// Edge sources are always declared nodes; an unknown source means
			// the input violated the pipeline contract.
			return nil, fmt.Errorf("edge source %s is not a declared node", e.From)
		}
		if _, ok := cg.Nodes[e.To]; !ok {
			ext := &Node{ID: e.To, Kind: NodeExternalLib}
			if err := g.AddVertex(ext); err != nil {
				return nil, fmt.Errorf("failed to add external node %s: %w", e.To, err)
			}
			cg.Nodes[e.To] = ext
		}
		if err := g.AddEdge(e.From, e.To); err != nil {
			// Parallel edges of different kinds map onto one graph edge; the
			// typed edge list keeps the full relationship set.
			if err != graph.ErrEdgeAlreadyExists {
				return nil, fmt.Errorf("failed to add edge %s -> %s: %w", e.From, e.To, err)
			}
		}
		cg.Edges = append(cg.Edges, e)
	}

	cg.computeDerived()
	return cg, nil
}

// computeDerived fills in usage-importance counts and hierarchy levels.
func (cg *CodeGraph) computeDerived() {
	for _, e := range cg.Edges {
		if e.Kind == EdgeCalls || e.Kind == EdgeInstantiates {
			if n, ok := cg.Nodes[e.To]; ok {
				n.Importance++
			}
		}
	}

	for _, n := range cg.Nodes {
		switch n.Kind {
		case NodeModule:
			n.Level = LevelModule
		case NodeClass:
			n.Level = LevelClass
		case NodeFunction:
			n.Level = LevelFunction
		default:
			n.Level = LevelExternal
		}
	}
}

// Node returns the node with the given ID, or nil if absent.
func (cg *CodeGraph) Node(id string) *Node {
	return cg.Nodes[id]
}

// Order returns the number of nodes in the graph.
func (cg *CodeGraph) Order() int {
	return len(cg.Nodes)
}

// Size returns the number of typed edges in the graph.
func (cg *CodeGraph) Size() int {
	return len(cg.Edges)
}

// AdjacencyMap exposes the underlying graph's adjacency structure for
// consumers that need to traverse the graph directly.
func (cg *CodeGraph) AdjacencyMap() (map[string]map[string]graph.Edge[string], error) {
	return cg.graph.AdjacencyMap()
}

// Data returns the serializable form of the graph. Node order follows no
// particular sequence; consumers must treat nodes and edges as sets.
func (cg *CodeGraph) Data() *GraphData {
	data := &GraphData{
		Nodes: make([]Node, 0, len(cg.Nodes)),
		Edges: append([]Edge(nil), cg.Edges...),
	}
	for _, n := range cg.Nodes {
		data.Nodes = append(data.Nodes, *n)
	}
	data.Metadata.NodeCount = len(data.Nodes)
	data.Metadata.EdgeCount = len(data.Edges)
	return data
}
