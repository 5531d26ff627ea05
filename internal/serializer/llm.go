package serializer

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/codesynapse/codesynapse/internal/graph"
)

// FunctionSummary describes one function or method with its resolved call
// relationships in both directions.
type FunctionSummary struct {
	Name     string   `json:"name"`
	FullName string   `json:"full_name"`
	Calls    []string `json:"calls"`
	CalledBy []string `json:"called_by"`
}

// ClassSummary describes one class with its methods and type relationships.
type ClassSummary struct {
	FullName       string             `json:"full_name"`
	Methods        []*FunctionSummary `json:"methods"`
	InheritsFrom   []string           `json:"inherits_from"`
	InheritedBy    []string           `json:"inherited_by"`
	InstantiatedBy []string           `json:"instantiated_by"`
}

// ModuleSummary groups a module's declarations and import relationships.
type ModuleSummary struct {
	Classes    map[string]*ClassSummary `json:"classes"`
	Functions  []*FunctionSummary       `json:"functions"`
	Imports    []string                 `json:"imports"`
	ImportedBy []string                 `json:"imported_by"`
}

// Statistics extends the kind summary with totals.
type Statistics struct {
	TotalNodes int `json:"total_nodes"`
	TotalEdges int `json:"total_edges"`
	Summary
}

// InheritanceEntry lists the classes deriving from one base.
type InheritanceEntry struct {
	BaseClass      string   `json:"base_class"`
	DerivedClasses []string `json:"derived_classes"`
}

// LLMDocument is a denormalized view of the graph arranged for language-model
// consumption: declarations grouped per module, with relationship lists
// spelled out in both directions instead of a flat edge list.
type LLMDocument struct {
	ProjectStructure     map[string]*ModuleSummary    `json:"project_structure"`
	ExternalDependencies []string                     `json:"external_dependencies"`
	Statistics           Statistics                   `json:"statistics"`
	CallGraph            map[string][]string          `json:"call_graph"`
	InheritanceTree      map[string]*InheritanceEntry `json:"inheritance_tree"`
}

// BuildLLMDocument regroups the graph per module. Classes are keyed by their
// short name within the owning module; methods are attached through their
// defining class. All lists come out in deterministic order.
func BuildLLMDocument(cg *graph.CodeGraph) *LLMDocument {
	data := cg.Data()
	sortGraphData(data)

	modules := make(map[string]*ModuleSummary)
	var external []string
	for _, n := range data.Nodes {
		switch n.Kind {
		case graph.NodeModule:
			modules[n.ID] = &ModuleSummary{Classes: map[string]*ClassSummary{}}
		case graph.NodeExternalLib:
			external = append(external, n.ID)
		}
	}

	classes := make(map[string]*ClassSummary)
	functions := make(map[string]*FunctionSummary)
	for _, n := range data.Nodes {
		switch n.Kind {
		case graph.NodeClass:
			if m := owningModule(modules, parentOf(n.ID)); m != nil {
				cs := &ClassSummary{FullName: n.ID}
				m.Classes[lastSegment(n.ID)] = cs
				classes[n.ID] = cs
			}
		case graph.NodeFunction:
			// Methods are attached below via their defining class.
			if m, ok := modules[parentOf(n.ID)]; ok {
				fs := &FunctionSummary{Name: lastSegment(n.ID), FullName: n.ID}
				m.Functions = append(m.Functions, fs)
				functions[n.ID] = fs
			}
		}
	}

	for _, e := range data.Edges {
		if e.Kind != graph.EdgeDefines {
			continue
		}
		if cs, ok := classes[e.From]; ok {
			fs := &FunctionSummary{Name: lastSegment(e.To), FullName: e.To}
			cs.Methods = append(cs.Methods, fs)
			functions[e.To] = fs
		}
	}

	callGraph := make(map[string][]string)
	inheritance := make(map[string]*InheritanceEntry)
	for _, e := range data.Edges {
		switch e.Kind {
		case graph.EdgeImports:
			if m, ok := modules[e.From]; ok {
				m.Imports = appendUnique(m.Imports, e.To)
			}
			if m, ok := modules[e.To]; ok {
				m.ImportedBy = appendUnique(m.ImportedBy, e.From)
			}
		case graph.EdgeInherits:
			if cs, ok := classes[e.From]; ok {
				cs.InheritsFrom = append(cs.InheritsFrom, e.To)
			}
			if cs, ok := classes[e.To]; ok {
				cs.InheritedBy = append(cs.InheritedBy, e.From)
			}
			entry := inheritance[e.To]
			if entry == nil {
				entry = &InheritanceEntry{BaseClass: e.To}
				inheritance[e.To] = entry
			}
			entry.DerivedClasses = append(entry.DerivedClasses, e.From)
		case graph.EdgeInstantiates:
			if cs, ok := classes[e.To]; ok {
				cs.InstantiatedBy = append(cs.InstantiatedBy, e.From)
			}
		case graph.EdgeCalls:
			callGraph[e.From] = append(callGraph[e.From], e.To)
			if fs, ok := functions[e.From]; ok {
				fs.Calls = append(fs.Calls, e.To)
			}
			if fs, ok := functions[e.To]; ok {
				fs.CalledBy = append(fs.CalledBy, e.From)
			}
		}
	}

	sort.Strings(external)
	return &LLMDocument{
		ProjectStructure:     modules,
		ExternalDependencies: external,
		Statistics: Statistics{
			TotalNodes: len(data.Nodes),
			TotalEdges: len(data.Edges),
			Summary:    summarize(data),
		},
		CallGraph:       callGraph,
		InheritanceTree: inheritance,
	}
}

// WriteLLM exports the regrouped document as indented JSON.
func WriteLLM(w io.Writer, cg *graph.CodeGraph) error {
	doc := BuildLLMDocument(cg)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode graph: %w", err)
	}
	return nil
}

// owningModule walks dotted prefixes of path until one names a module,
// covering declarations nested inside classes.
func owningModule(modules map[string]*ModuleSummary, path string) *ModuleSummary {
	for path != "" {
		if m, ok := modules[path]; ok {
			return m
		}
		idx := strings.LastIndex(path, ".")
		if idx < 0 {
			return nil
		}
		path = path[:idx]
	}
	return nil
}

func parentOf(id string) string {
	if idx := strings.LastIndex(id, "."); idx != -1 {
		return id[:idx]
	}
	return ""
}

func lastSegment(id string) string {
	if idx := strings.LastIndex(id, "."); idx != -1 {
		return id[idx+1:]
	}
	return id
}

// appendUnique skips an entry already present, collapsing the star, dynamic,
// and type-hint variants of one import relationship.
func appendUnique(list []string, entry string) []string {
	for _, existing := range list {
		if existing == entry {
			return list
		}
	}
	return append(list, entry)
}
