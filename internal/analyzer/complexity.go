package analyzer

import (
	"math"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codesynapse/codesynapse/internal/graph"
)

// comprehensionKinds are the Python comprehension forms; each contributes its
// filter-clause count plus one to cyclomatic complexity.
var comprehensionKinds = map[string]bool{
	"list_comprehension":       true,
	"set_comprehension":        true,
	"dictionary_comprehension": true,
	"generator_expression":     true,
}

// cyclomaticComplexity computes McCabe complexity for a declaration subtree:
// 1 + decision points. Boolean operators in tree-sitter are binary, so each
// operator node contributes exactly one extra path.
func cyclomaticComplexity(node *sitter.Node) int {
	complexity := 1
	walkTree(node, func(n *sitter.Node) bool {
		switch kind := n.Kind(); {
		case kind == "if_statement" || kind == "elif_clause" ||
			kind == "while_statement" || kind == "for_statement" ||
			kind == "except_clause":
			complexity++
		case kind == "boolean_operator":
			complexity++
		case comprehensionKinds[kind]:
			complexity += countChildrenByKind(n, "if_clause") + 1
		}
		return true
	})
	return complexity
}

// cognitiveComplexity computes cognitive complexity (Sonar-style): branching
// constructs cost 1 + nesting depth and increase depth for their bodies;
// boolean operators and lambdas cost a flat 1.
func cognitiveComplexity(node *sitter.Node) int {
	return cognitiveWalk(node, 0)
}

func cognitiveWalk(node *sitter.Node, depth int) int {
	if node == nil {
		return 0
	}
	score := 0
	childDepth := depth
	switch node.Kind() {
	case "if_statement":
		return cognitiveIf(node, depth)
	case "for_statement", "while_statement", "except_clause":
		score += 1 + depth
		childDepth = depth + 1
	case "boolean_operator", "lambda":
		score++
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		score += cognitiveWalk(node.Child(i), childDepth)
	}
	return score
}

// cognitiveIf scores an entire if/elif/else chain. Each elif behaves like an
// if nested one level deeper than the clause before it, and every branch that
// is followed by another clause pays the extra else cost.
func cognitiveIf(node *sitter.Node, depth int) int {
	var clauses []*sitter.Node
	for i := uint(0); i < node.ChildCount(); i++ {
		if kind := node.Child(i).Kind(); kind == "elif_clause" || kind == "else_clause" {
			clauses = append(clauses, node.Child(i))
		}
	}

	score := 1 + depth
	if len(clauses) > 0 {
		score++
	}
	score += cognitiveWalk(node.ChildByFieldName("condition"), depth)
	score += cognitiveWalk(node.ChildByFieldName("consequence"), depth+1)

	elifs := 0
	for i, clause := range clauses {
		switch clause.Kind() {
		case "elif_clause":
			clauseDepth := depth + 1 + elifs
			score += 1 + clauseDepth
			if i < len(clauses)-1 {
				score++
			}
			score += cognitiveWalk(clause.ChildByFieldName("condition"), clauseDepth)
			score += cognitiveWalk(clause.ChildByFieldName("consequence"), clauseDepth+1)
			elifs++
		case "else_clause":
			score += cognitiveWalk(clause.ChildByFieldName("body"), depth+1+elifs)
		}
	}
	return score
}

// halsteadOperators maps expression node kinds to a fixed operator token.
var halsteadOperators = map[string]string{
	"call":      "call",
	"attribute": ".",
	"subscript": "[]",
}

// halsteadMetrics computes Halstead volume/difficulty/effort over a
// declaration subtree. Returns all zeros when either distinct count is zero,
// guarding the log2 and division below.
func halsteadMetrics(node *sitter.Node, source []byte) graph.Halstead {
	var operators, operands []string

	walkTree(node, func(n *sitter.Node) bool {
		switch kind := n.Kind(); kind {
		case "binary_operator", "boolean_operator", "unary_operator":
			if op := n.ChildByFieldName("operator"); op != nil {
				operators = append(operators, nodeText(op, source))
			}
		case "not_operator":
			operators = append(operators, "not")
		case "comparison_operator":
			// Comparison operator tokens are anonymous children.
			for i := uint(0); i < n.ChildCount(); i++ {
				if child := n.Child(i); !child.IsNamed() {
					operators = append(operators, nodeText(child, source))
				}
			}
		case "identifier":
			// The attribute name in obj.attr is part of the access operator,
			// not a standalone operand.
			if !isAttributeName(n) {
				operands = append(operands, nodeText(n, source))
			}
		case "integer", "float", "string", "true", "false", "none":
			operands = append(operands, nodeText(n, source))
			return kind != "string" // Skip interpolation internals
		default:
			if op, ok := halsteadOperators[kind]; ok {
				operators = append(operators, op)
			}
		}
		return true
	})

	n1 := distinctCount(operators)
	n2 := distinctCount(operands)
	if n1 == 0 || n2 == 0 {
		return graph.Halstead{}
	}

	bigN1 := len(operators)
	bigN2 := len(operands)
	vocabulary := n1 + n2
	length := bigN1 + bigN2
	volume := float64(length) * math.Log2(float64(vocabulary))
	difficulty := (float64(n1) / 2) * (float64(bigN2) / float64(n2))

	return graph.Halstead{
		Volume:     round2(volume),
		Difficulty: round2(difficulty),
		Effort:     round2(volume * difficulty),
		Vocabulary: vocabulary,
		Length:     length,
	}
}

// computeComplexity bundles all three metrics for one function declaration.
func computeComplexity(node *sitter.Node, source []byte) *graph.Complexity {
	return &graph.Complexity{
		Cyclomatic: cyclomaticComplexity(node),
		Cognitive:  cognitiveComplexity(node),
		Halstead:   halsteadMetrics(node, source),
	}
}

// isAttributeName reports whether n is the attribute field of an attribute
// access node.
func isAttributeName(n *sitter.Node) bool {
	parent := n.Parent()
	if parent == nil || parent.Kind() != "attribute" {
		return false
	}
	attr := parent.ChildByFieldName("attribute")
	return attr != nil && attr.StartByte() == n.StartByte()
}

func distinctCount(items []string) int {
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		seen[item] = true
	}
	return len(seen)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
