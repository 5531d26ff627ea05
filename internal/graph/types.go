package graph

import "time"

// NodeKind represents the kind of a code entity.
type NodeKind string

const (
	NodeModule      NodeKind = "module"
	NodeClass       NodeKind = "class"
	NodeFunction    NodeKind = "function"
	NodeExternalLib NodeKind = "external"
)

// EdgeKind represents the kind of relationship between entities.
type EdgeKind string

const (
	EdgeImports      EdgeKind = "imports"      // Module imports module/symbol
	EdgeCalls        EdgeKind = "calls"        // Function calls function
	EdgeInherits     EdgeKind = "inherits"     // Class inherits from class
	EdgeContains     EdgeKind = "contains"     // Module contains class/function
	EdgeDefines      EdgeKind = "defines"      // Class defines method
	EdgeInstantiates EdgeKind = "instantiates" // Function instantiates class
	EdgeDecorates    EdgeKind = "decorates"    // Function is decorated by target
)

// Halstead holds the Halstead complexity metrics for one function.
type Halstead struct {
	Volume     float64 `json:"volume"`
	Difficulty float64 `json:"difficulty"`
	Effort     float64 `json:"effort"`
	Vocabulary int     `json:"vocabulary"`
	Length     int     `json:"length"`
}

// Complexity holds all complexity scores for one function.
type Complexity struct {
	Cyclomatic int      `json:"cyclomatic"`
	Cognitive  int      `json:"cognitive"`
	Halstead   Halstead `json:"halstead"`
}

// Node represents a declared code entity or an external placeholder.
// ID is the fully qualified dotted path (e.g. "pkg.module.Class.method").
type Node struct {
	ID   string   `json:"id"`
	Kind NodeKind `json:"kind"`

	// Module attributes
	File string `json:"file,omitempty"` // Source path relative to project root

	// Class and function attributes
	Line       int      `json:"line,omitempty"`
	EndLine    int      `json:"end_line,omitempty"`
	Docstring  string   `json:"docstring,omitempty"`
	Decorators []string `json:"decorators,omitempty"`

	// Class attributes
	Abstract bool `json:"abstract,omitempty"`

	// Function attributes
	Async          bool        `json:"async,omitempty"`
	IsMethod       bool        `json:"is_method,omitempty"`
	IsClassmethod  bool        `json:"is_classmethod,omitempty"`
	IsStaticmethod bool        `json:"is_staticmethod,omitempty"`
	IsDunder       bool        `json:"is_dunder,omitempty"`
	Signature      string      `json:"signature,omitempty"`
	Complexity     *Complexity `json:"complexity,omitempty"`

	// Derived attributes, computed by Assemble after nodes/edges are final.
	Importance int `json:"importance"`
	Level      int `json:"level,omitempty"`
}

// Edge represents a directed, typed relationship between two entity IDs.
type Edge struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Kind EdgeKind `json:"kind"`

	// Dynamic marks imports discovered via a hint comment rather than syntax.
	Dynamic bool `json:"dynamic,omitempty"`
	// Star marks wildcard (import *) imports.
	Star bool `json:"star,omitempty"`
	// TypeHint marks relationships discovered via a type annotation.
	TypeHint bool `json:"type_hint,omitempty"`
}

// RawRef is an unresolved name reference collected during the per-file visit.
// Owner is the fully qualified ID of the referencing entity.
type RawRef struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// FileResult holds everything the per-file visitor extracted from one file.
// Raw references are resolved by the cross-file resolver once every file has
// been visited and merged.
type FileResult struct {
	Module  string            `json:"module"` // Module ID for this file
	Path    string            `json:"path"`   // Source path relative to project root
	Nodes   []Node            `json:"nodes"`
	Edges   []Edge            `json:"edges"`
	Aliases map[string]string `json:"aliases"` // local name -> fully qualified name

	// Raw facts awaiting cross-file resolution.
	Calls      []RawRef `json:"calls"`      // call/instantiation candidates, owner = function
	Bases      []RawRef `json:"bases"`      // base classes, owner = class
	Decorators []RawRef `json:"decorators"` // decorators, owner = function
}

// GraphData is the serializable form of a built graph.
type GraphData struct {
	Metadata GraphMetadata `json:"metadata"`
	Nodes    []Node        `json:"nodes"`
	Edges    []Edge        `json:"edges"`
}

// GraphMetadata describes one analysis run.
type GraphMetadata struct {
	Generator   string    `json:"generator"`
	Version     string    `json:"version"`
	RunID       string    `json:"run_id"`
	ProjectPath string    `json:"project_path,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
	NodeCount   int       `json:"node_count"`
	EdgeCount   int       `json:"edge_count"`
}
