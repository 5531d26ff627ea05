package analyzer

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codesynapse/codesynapse/internal/graph"
)

// dynamicImportMarker is the hint comment acknowledging imports invisible to
// syntax analysis (importlib-driven loading). A manual escape hatch, not an
// automatic detector.
const dynamicImportMarker = "# codesynapse: import "

// fileVisitor walks one file's syntax tree and accumulates nodes, edges, the
// module's alias table, and raw (pre-resolution) reference lists.
type fileVisitor struct {
	rootDir           string
	source            []byte
	lines             []string
	collectSignatures bool

	module     string
	classStack []string

	result *graph.FileResult
}

// moduleID derives the dotted module identifier from a root-relative path.
// An __init__ file takes its containing directory's dotted path.
func moduleID(relPath string) string {
	id := strings.TrimSuffix(filepath.ToSlash(relPath), ".py")
	id = strings.ReplaceAll(id, "/", ".")
	id = strings.TrimSuffix(id, ".__init__")
	return id
}

// bareModuleResult is the contribution of a file whose body could not be
// parsed: the module declaration only, so edges from other files pointing at
// it are not orphaned into external placeholders.
func bareModuleResult(relPath string) *graph.FileResult {
	module := moduleID(relPath)
	return &graph.FileResult{
		Module:  module,
		Path:    relPath,
		Nodes:   []graph.Node{{ID: module, Kind: graph.NodeModule, File: relPath}},
		Aliases: map[string]string{},
	}
}

// visitFile runs the full per-file visit over a parsed tree.
func visitFile(rootDir, relPath string, source []byte, root *sitter.Node, collectSignatures bool) *graph.FileResult {
	module := moduleID(relPath)
	v := &fileVisitor{
		rootDir:           rootDir,
		source:            source,
		lines:             strings.Split(string(source), "\n"),
		collectSignatures: collectSignatures,
		module:            module,
		result: &graph.FileResult{
			Module:  module,
			Path:    relPath,
			Aliases: map[string]string{},
		},
	}

	v.addNode(graph.Node{ID: module, Kind: graph.NodeModule, File: relPath})
	v.visitBody(root)
	v.scanDynamicImportHints()

	return v.result
}

// scope returns the identifier declarations nest under: the innermost class,
// or the module.
func (v *fileVisitor) scope() string {
	if len(v.classStack) > 0 {
		return v.classStack[len(v.classStack)-1]
	}
	return v.module
}

func (v *fileVisitor) addNode(n graph.Node) {
	v.result.Nodes = append(v.result.Nodes, n)
}

func (v *fileVisitor) addEdge(e graph.Edge) {
	if e.From == e.To {
		return
	}
	v.result.Edges = append(v.result.Edges, e)
}

// visitBody dispatches over the statements of a module or class body.
// Unhandled constructs fall through to a default traversal that still
// recurses, so declarations guarded by conditionals are found.
func (v *fileVisitor) visitBody(body *sitter.Node) {
	walkTree(body, func(n *sitter.Node) bool {
		switch n.Kind() {
		case "decorated_definition":
			v.visitDecorated(n)
			return false
		case "class_definition":
			v.visitClass(n, nil)
			return false
		case "function_definition":
			v.visitFunction(n, nil)
			return false
		case "import_statement":
			v.visitImport(n)
			return false
		case "import_from_statement":
			v.visitFromImport(n)
			return false
		}
		return true
	})
}

// visitDecorated unwraps a decorated definition, collecting decorator names.
func (v *fileVisitor) visitDecorated(n *sitter.Node) {
	var decorators []string
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child.Kind() == "decorator" {
			if name := decoratorName(child, v.source); name != "" {
				decorators = append(decorators, name)
			}
		}
	}
	def := n.ChildByFieldName("definition")
	if def == nil {
		return
	}
	switch def.Kind() {
	case "class_definition":
		v.visitClass(def, decorators)
	case "function_definition":
		v.visitFunction(def, decorators)
	}
}

// decoratorName extracts the dotted name of a decorator expression,
// unwrapping decorator calls like @lru_cache(maxsize=128).
func decoratorName(dec *sitter.Node, source []byte) string {
	expr := dec.NamedChild(0)
	if expr == nil {
		return ""
	}
	if expr.Kind() == "call" {
		expr = expr.ChildByFieldName("function")
	}
	return dottedName(expr, source)
}

// visitClass emits a class node, raw base-class references, and descends into
// the class body with the enclosing-class state updated.
func (v *fileVisitor) visitClass(n *sitter.Node, decorators []string) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, v.source)
	parent := v.scope()
	classID := parent + "." + name
	body := n.ChildByFieldName("body")

	var bases []string
	if supers := n.ChildByFieldName("superclasses"); supers != nil {
		for i := uint(0); i < supers.NamedChildCount(); i++ {
			base := supers.NamedChild(i)
			if base.Kind() == "keyword_argument" {
				continue // metaclass=... and friends
			}
			if dotted := dottedName(base, v.source); dotted != "" {
				bases = append(bases, dotted)
				v.result.Bases = append(v.result.Bases, graph.RawRef{Owner: classID, Name: dotted})
			}
		}
	}

	v.addNode(graph.Node{
		ID:         classID,
		Kind:       graph.NodeClass,
		Line:       int(n.StartPosition().Row) + 1,
		Docstring:  docstring(body, v.source),
		Abstract:   isAbstract(decorators, bases),
		Decorators: decorators,
	})
	v.addEdge(graph.Edge{From: parent, To: classID, Kind: graph.EdgeContains})

	if v.collectSignatures {
		v.scanClassAttributeHints(body, classID)
	}

	v.classStack = append(v.classStack, classID)
	v.visitBody(body)
	v.classStack = v.classStack[:len(v.classStack)-1]
}

// isAbstract reports whether a class is marked abstract via a decorator or a
// base class carrying an ABC marker.
func isAbstract(decorators, bases []string) bool {
	for _, d := range decorators {
		if strings.Contains(d, "abstract") || strings.Contains(d, "ABC") {
			return true
		}
	}
	for _, b := range bases {
		if strings.Contains(b, "ABC") || b == "Protocol" || strings.HasSuffix(b, ".Protocol") {
			return true
		}
	}
	return false
}

// visitFunction emits a function node with its flags, containment edge, raw
// decorator references, and runs the call-analysis sub-walk over its body.
// Function bodies are not descended for further declarations, but imports
// inside them still register aliases and module edges.
func (v *fileVisitor) visitFunction(n *sitter.Node, decorators []string) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, v.source)
	isMethod := len(v.classStack) > 0
	parent := v.scope()
	funcID := parent + "." + name
	body := n.ChildByFieldName("body")

	node := graph.Node{
		ID:         funcID,
		Kind:       graph.NodeFunction,
		Line:       int(n.StartPosition().Row) + 1,
		EndLine:    int(n.EndPosition().Row) + 1,
		Docstring:  docstring(body, v.source),
		Async:      isAsyncDef(n),
		IsMethod:   isMethod,
		IsDunder:   strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__"),
		Decorators: decorators,
	}

	for _, dec := range decorators {
		switch dec {
		case "classmethod":
			node.IsClassmethod = true
		case "staticmethod":
			node.IsStaticmethod = true
		default:
			v.result.Decorators = append(v.result.Decorators, graph.RawRef{Owner: funcID, Name: dec})
		}
	}

	if v.collectSignatures {
		className := ""
		if isMethod {
			className = shortName(parent)
		}
		node.Signature = renderSignature(n, v.source, v.lines, className)
		node.Complexity = computeComplexity(n, v.source)
		v.scanFunctionTypeHints(n, funcID)
	}

	v.addNode(node)
	if isMethod {
		v.addEdge(graph.Edge{From: parent, To: funcID, Kind: graph.EdgeDefines})
	} else {
		v.addEdge(graph.Edge{From: parent, To: funcID, Kind: graph.EdgeContains})
	}

	v.collectCalls(body, funcID)
	v.collectBodyImports(body)
}

// collectBodyImports walks a function body for import statements. Deferred
// imports bind the same file-level aliases as top-level ones, so calls into
// them resolve identically.
func (v *fileVisitor) collectBodyImports(body *sitter.Node) {
	if body == nil {
		return
	}
	walkTree(body, func(n *sitter.Node) bool {
		switch n.Kind() {
		case "import_statement":
			v.visitImport(n)
			return false
		case "import_from_statement":
			v.visitFromImport(n)
			return false
		}
		return true
	})
}

// visitImport handles plain imports: "import X [as Y]". The target is already
// fully qualified, so the edge needs no cross-file resolution.
func (v *fileVisitor) visitImport(n *sitter.Node) {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		child := n.NamedChild(i)
		switch child.Kind() {
		case "dotted_name":
			full := nodeText(child, v.source)
			v.result.Aliases[full] = full
			v.addEdge(graph.Edge{From: v.module, To: full, Kind: graph.EdgeImports})
		case "aliased_import":
			full := nodeText(child.ChildByFieldName("name"), v.source)
			alias := nodeText(child.ChildByFieldName("alias"), v.source)
			if full == "" || alias == "" {
				continue
			}
			v.result.Aliases[alias] = full
			v.addEdge(graph.Edge{From: v.module, To: full, Kind: graph.EdgeImports})
		}
	}
}

// visitFromImport handles "from M import ..." with relative levels, aliases,
// and wildcard targets.
func (v *fileVisitor) visitFromImport(n *sitter.Node) {
	moduleNode := n.ChildByFieldName("module_name")
	if moduleNode == nil {
		return
	}

	var base string
	switch moduleNode.Kind() {
	case "relative_import":
		level, tail := splitRelativeImport(moduleNode, v.source)
		resolved, ok := resolveRelative(v.module, level, tail)
		if !ok {
			log.Printf("Warning: malformed relative import (level %d) in %s", level, v.result.Path)
			return
		}
		base = resolved
	default:
		base = nodeText(moduleNode, v.source)
	}
	if base == "" {
		return
	}

	if wildcard := findChildByKind(n, "wildcard_import"); wildcard != nil {
		v.addEdge(graph.Edge{From: v.module, To: base, Kind: graph.EdgeImports, Star: true})
		v.registerWildcardAliases(base)
		return
	}

	for i := uint(0); i < n.NamedChildCount(); i++ {
		child := n.NamedChild(i)
		if child.StartByte() == moduleNode.StartByte() {
			continue // the module_name field itself
		}
		var name, local string
		switch child.Kind() {
		case "dotted_name":
			name = nodeText(child, v.source)
			local = name
		case "aliased_import":
			name = nodeText(child.ChildByFieldName("name"), v.source)
			local = nodeText(child.ChildByFieldName("alias"), v.source)
		default:
			continue
		}
		if name == "" || local == "" {
			continue
		}
		target := base + "." + name
		v.result.Aliases[local] = target
		v.addEdge(graph.Edge{From: v.module, To: target, Kind: graph.EdgeImports})
	}
}

// splitRelativeImport extracts the dot level and optional module tail from a
// relative_import node.
func splitRelativeImport(n *sitter.Node, source []byte) (int, string) {
	level := 0
	if prefix := findChildByKind(n, "import_prefix"); prefix != nil {
		level = strings.Count(nodeText(prefix, source), ".")
	}
	tail := ""
	if dn := findChildByKind(n, "dotted_name"); dn != nil {
		tail = nodeText(dn, source)
	}
	return level, tail
}

// resolveRelative resolves a relative import against the current module path
// by stripping level trailing segments. Reports failure when the level
// exceeds the module's nesting depth.
func resolveRelative(module string, level int, tail string) (string, bool) {
	parts := strings.Split(module, ".")
	if level > len(parts) {
		return "", false
	}
	base := strings.Join(parts[:len(parts)-level], ".")
	switch {
	case base != "" && tail != "":
		base = base + "." + tail
	case base == "":
		base = tail
	}
	if base == "" {
		return "", false
	}
	return base, true
}

// registerWildcardAliases reads the wildcard target's own source file inside
// the project root and registers an alias for each name its __all__ literal
// exports. Without a readable __all__, nothing is registered.
func (v *fileVisitor) registerWildcardAliases(base string) {
	rel := strings.ReplaceAll(base, ".", string(filepath.Separator))
	candidates := []string{
		filepath.Join(v.rootDir, rel+".py"),
		filepath.Join(v.rootDir, rel, "__init__.py"),
	}
	for _, candidate := range candidates {
		source, err := os.ReadFile(candidate)
		if err != nil {
			continue
		}
		for _, name := range readAllLiteral(source) {
			v.result.Aliases[name] = base + "." + name
		}
		return
	}
}

// readAllLiteral extracts the string entries of a module-level __all__ list
// or tuple literal.
func readAllLiteral(source []byte) []string {
	tree := parsePython(source)
	if tree == nil {
		return nil
	}
	defer tree.Close()

	var names []string
	root := tree.RootNode()
	for i := uint(0); i < root.NamedChildCount(); i++ {
		stmt := root.NamedChild(i)
		if stmt.Kind() != "expression_statement" {
			continue
		}
		assign := findChildByKind(stmt, "assignment")
		if assign == nil {
			continue
		}
		left := assign.ChildByFieldName("left")
		if left == nil || left.Kind() != "identifier" || nodeText(left, source) != "__all__" {
			continue
		}
		right := assign.ChildByFieldName("right")
		if right == nil || (right.Kind() != "list" && right.Kind() != "tuple") {
			continue
		}
		for j := uint(0); j < right.NamedChildCount(); j++ {
			if name := stringLiteral(right.NamedChild(j), source); name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

// scanDynamicImportHints scans the raw file text for dynamic-import marker
// comments and emits a flagged import edge for each.
func (v *fileVisitor) scanDynamicImportHints() {
	for _, line := range v.lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, dynamicImportMarker) {
			continue
		}
		target := strings.TrimSpace(trimmed[len(dynamicImportMarker):])
		if target == "" || strings.ContainsAny(target, " \t") {
			continue
		}
		v.addEdge(graph.Edge{From: v.module, To: target, Kind: graph.EdgeImports, Dynamic: true})
	}
}

// scanFunctionTypeHints collects every name used in parameter and return
// annotations and emits a type-hint import edge when the alias table maps it
// to an imported symbol.
func (v *fileVisitor) scanFunctionTypeHints(fn *sitter.Node, funcID string) {
	if params := fn.ChildByFieldName("parameters"); params != nil {
		walkTree(params, func(n *sitter.Node) bool {
			if n.Kind() == "typed_parameter" || n.Kind() == "typed_default_parameter" {
				if typ := n.ChildByFieldName("type"); typ != nil {
					v.emitTypeHints(typ, funcID)
				}
			}
			return true
		})
	}
	if ret := fn.ChildByFieldName("return_type"); ret != nil {
		v.emitTypeHints(ret, funcID)
	}
}

// scanClassAttributeHints inspects annotated class attributes for type-only
// dependencies.
func (v *fileVisitor) scanClassAttributeHints(body *sitter.Node, classID string) {
	if body == nil {
		return
	}
	for i := uint(0); i < body.NamedChildCount(); i++ {
		stmt := body.NamedChild(i)
		if stmt.Kind() != "expression_statement" {
			continue
		}
		assign := findChildByKind(stmt, "assignment")
		if assign == nil {
			continue
		}
		if typ := assign.ChildByFieldName("type"); typ != nil {
			v.emitTypeHints(typ, classID)
		}
	}
}

// emitTypeHints resolves each name in an annotation expression through the
// alias table; a changed name denotes an imported symbol and yields an edge.
func (v *fileVisitor) emitTypeHints(annotation *sitter.Node, owner string) {
	for _, name := range annotationNames(annotation, v.source) {
		resolved := substituteAlias(name, v.result.Aliases)
		if resolved != name {
			v.addEdge(graph.Edge{From: owner, To: resolved, Kind: graph.EdgeImports, TypeHint: true})
		}
	}
}

// annotationNames collects every bare name and dotted attribute-access name
// appearing in an annotation expression. String forward references are
// skipped.
func annotationNames(node *sitter.Node, source []byte) []string {
	var names []string
	walkTree(node, func(n *sitter.Node) bool {
		switch n.Kind() {
		case "attribute":
			if dotted := dottedName(n, source); dotted != "" {
				names = append(names, dotted)
				return false
			}
		case "identifier":
			names = append(names, nodeText(n, source))
		case "string":
			return false
		}
		return true
	})
	return names
}

// substituteAlias replaces the first dotted segment of name with its alias
// table mapping, if one is registered.
func substituteAlias(name string, aliases map[string]string) string {
	if full, ok := aliases[name]; ok {
		return full
	}
	head, rest, found := strings.Cut(name, ".")
	if !found {
		return name
	}
	if full, ok := aliases[head]; ok {
		return full + "." + rest
	}
	return name
}

// shortName returns the last dotted segment of an identifier.
func shortName(id string) string {
	if idx := strings.LastIndex(id, "."); idx != -1 {
		return id[idx+1:]
	}
	return id
}
