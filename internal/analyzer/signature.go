package analyzer

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// renderSignature produces a textual signature for a function definition:
// parameter names, annotations, defaults, splat markers, and the return
// annotation, prefixed with "async" when applicable. It never fails the
// caller: on any internal error it falls back to a source-text slice of the
// def line, and to a "(...)" placeholder if that too is unavailable.
func renderSignature(node *sitter.Node, source []byte, lines []string, className string) (sig string) {
	startLine := int(node.StartPosition().Row) + 1

	defer func() {
		if r := recover(); r != nil {
			sig = fallbackSignature(lines, startLine)
		}
	}()

	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return fallbackSignature(lines, startLine)
	}

	var b strings.Builder
	if isAsyncDef(node) {
		b.WriteString("async ")
	}
	if className != "" {
		b.WriteString(className)
		b.WriteString(".")
	}
	b.WriteString(nodeText(nameNode, source))
	b.WriteString(renderParameters(node.ChildByFieldName("parameters"), source))

	if ret := node.ChildByFieldName("return_type"); ret != nil {
		b.WriteString(" -> ")
		b.WriteString(normalizeExpr(nodeText(ret, source)))
	}
	return b.String()
}

// renderParameters renders a parameters node back to source-like text, one
// parameter at a time so multi-line definitions collapse onto one line.
func renderParameters(params *sitter.Node, source []byte) string {
	if params == nil {
		return "()"
	}
	var parts []string
	for i := uint(0); i < params.NamedChildCount(); i++ {
		child := params.NamedChild(i)
		switch child.Kind() {
		case "keyword_separator":
			parts = append(parts, "*")
		case "positional_separator":
			parts = append(parts, "/")
		default:
			parts = append(parts, normalizeExpr(nodeText(child, source)))
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// normalizeExpr collapses internal whitespace so annotations and defaults
// spanning several source lines render on one.
func normalizeExpr(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// fallbackSignature reconstructs a best-effort signature from the original
// def line, or returns the "(...)" placeholder when the source is gone.
func fallbackSignature(lines []string, startLine int) string {
	if startLine < 1 || startLine > len(lines) {
		return "(...)"
	}
	line := strings.TrimSpace(lines[startLine-1])
	if line == "" {
		return "(...)"
	}
	if idx := strings.LastIndex(line, ":"); idx != -1 && strings.HasSuffix(line, ":") {
		line = line[:idx]
	}
	return line
}

// isAsyncDef reports whether a function_definition carries the async keyword.
func isAsyncDef(node *sitter.Node) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if !child.IsNamed() && nodeTextEquals(child, "async") {
			return true
		}
		if child.Kind() == "def" {
			break
		}
	}
	return false
}

// nodeTextEquals compares a token node's kind against a literal. Anonymous
// token nodes have their source text as their kind.
func nodeTextEquals(node *sitter.Node, text string) bool {
	return node.Kind() == text
}
