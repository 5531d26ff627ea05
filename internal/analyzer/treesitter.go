package analyzer

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

// pythonLanguage is shared by every parser instance; tree-sitter languages are
// immutable and safe for concurrent use.
var pythonLanguage = sitter.NewLanguage(python.Language())

// parsePython parses Python source and returns the syntax tree, or nil if the
// parser could not produce one. The caller owns the returned tree and must
// Close it.
func parsePython(source []byte) *sitter.Tree {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(pythonLanguage)
	return parser.Parse(source, nil)
}

// nodeText extracts the source text of a tree-sitter node.
func nodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return string(source[node.StartByte():node.EndByte()])
}

// walkTree recursively walks a tree and calls the visitor for each node.
// Returning false from the visitor stops descent into that node's children.
func walkTree(node *sitter.Node, visitor func(*sitter.Node) bool) {
	if node == nil {
		return
	}
	if !visitor(node) {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		walkTree(node.Child(i), visitor)
	}
}

// findChildByKind finds the first direct child with the given kind.
func findChildByKind(node *sitter.Node, kind string) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == kind {
			return child
		}
	}
	return nil
}

// countChildrenByKind counts direct children with the given kind.
func countChildrenByKind(node *sitter.Node, kind string) int {
	count := 0
	for i := uint(0); i < node.ChildCount(); i++ {
		if node.Child(i).Kind() == kind {
			count++
		}
	}
	return count
}

// dottedName flattens an identifier or attribute-access chain into a dotted
// string. Returns "" when the expression is not a plain name chain (e.g. a
// call or subscript appears as the object).
func dottedName(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	switch node.Kind() {
	case "identifier", "dotted_name":
		return nodeText(node, source)
	case "attribute":
		object := dottedName(node.ChildByFieldName("object"), source)
		if object == "" {
			return ""
		}
		attr := nodeText(node.ChildByFieldName("attribute"), source)
		return object + "." + attr
	default:
		return ""
	}
}

// stringLiteral extracts the content of a Python string node, stripping
// quotes and common prefixes. Returns "" for non-string nodes.
func stringLiteral(node *sitter.Node, source []byte) string {
	if node == nil || node.Kind() != "string" {
		return ""
	}
	text := nodeText(node, source)
	for _, prefix := range []string{"r", "b", "u", "f", "R", "B", "U", "F"} {
		text = strings.TrimPrefix(text, prefix)
	}
	for _, quote := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(text, quote) && strings.HasSuffix(text, quote) && len(text) >= 2*len(quote) {
			return text[len(quote) : len(text)-len(quote)]
		}
	}
	return text
}

// docstring returns the docstring of a module/class/function body: the string
// expression appearing as the body's first statement, if any.
func docstring(body *sitter.Node, source []byte) string {
	if body == nil || body.ChildCount() == 0 {
		return ""
	}
	first := body.Child(0)
	if first.Kind() != "expression_statement" || first.ChildCount() == 0 {
		return ""
	}
	return strings.TrimSpace(stringLiteral(first.Child(0), source))
}
