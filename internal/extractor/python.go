package extractor

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// PythonExtractor implements LanguageExtractor for Python.
type PythonExtractor struct{}

func (p *PythonExtractor) Name() string { return "python" }

func (p *PythonExtractor) Extensions() []string { return []string{"py", "pyi"} }

func (p *PythonExtractor) Language() *sitter.Language { return python.GetLanguage() }

func (p *PythonExtractor) Extract(root *sitter.Node, source []byte) (string, []Declaration, []ImportEdge) {
	var decls []Declaration
	var imports []ImportEdge

	doc := moduleDocstring(root, source)

	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		node := unwrapDecorated(child)

		switch node.Type() {
		case "function_definition":
			decls = append(decls, p.functionDecl(node, source, ""))
		case "class_definition":
			decls = append(decls, p.classDecls(node, source)...)
		case "import_statement", "import_from_statement":
			if edge, ok := p.importEdge(node, source); ok {
				imports = append(imports, edge)
			}
		case "expression_statement":
			if decl, ok := p.constantDecl(node, source); ok {
				decls = append(decls, decl)
			}
		}
	}

	return doc, decls, imports
}

// classDecls returns the class declaration followed by its methods, each
// carrying the class name as their nesting parent.
func (p *PythonExtractor) classDecls(node *sitter.Node, source []byte) []Declaration {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	className := nameNode.Content(source)

	decl := Declaration{
		Kind:      KindClass,
		Name:      className,
		Signature: headerSignature(node, source),
		Doc:       attachedDoc(node, source),
		StartLine: int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
	}

	decls := []Declaration{decl}
	body := node.ChildByFieldName("body")
	if body == nil {
		return decls
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := unwrapDecorated(body.NamedChild(i))
		if member.Type() != "function_definition" {
			continue
		}
		method := p.functionDecl(member, source, className)
		method.Kind = KindMethod
		decls = append(decls, method)
	}
	return decls
}

func (p *PythonExtractor) functionDecl(node *sitter.Node, source []byte, parent string) Declaration {
	name := ""
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		name = nameNode.Content(source)
	}
	return Declaration{
		Kind:      KindFunction,
		Name:      name,
		Signature: headerSignature(node, source),
		Doc:       attachedDoc(node, source),
		StartLine: int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
		Parent:    parent,
	}
}

// constantDecl recognizes module-level UPPER_CASE assignments.
func (p *PythonExtractor) constantDecl(stmt *sitter.Node, source []byte) (Declaration, bool) {
	assign := stmt.NamedChild(0)
	if assign == nil || assign.Type() != "assignment" {
		return Declaration{}, false
	}
	left := assign.ChildByFieldName("left")
	if left == nil || left.Type() != "identifier" {
		return Declaration{}, false
	}
	name := left.Content(source)
	if !isUpperSnake(name) {
		return Declaration{}, false
	}
	return Declaration{
		Kind:      KindConstant,
		Name:      name,
		Signature: firstLine(assign.Content(source)),
		Doc:       precedingComments(stmt, source),
		StartLine: int(stmt.StartPoint().Row) + 1,
		EndLine:   int(stmt.EndPoint().Row) + 1,
	}, true
}

func (p *PythonExtractor) importEdge(node *sitter.Node, source []byte) (ImportEdge, bool) {
	switch node.Type() {
	case "import_statement":
		// "import a.b, c as d" produces one edge per target; the first
		// target carries the edge, the rest are appended as names.
		var targets []string
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			switch child.Type() {
			case "dotted_name":
				targets = append(targets, child.Content(source))
			case "aliased_import":
				if nameNode := child.ChildByFieldName("name"); nameNode != nil {
					targets = append(targets, nameNode.Content(source))
				}
			}
		}
		if len(targets) == 0 {
			return ImportEdge{}, false
		}
		edge := ImportEdge{Target: targets[0]}
		if len(targets) > 1 {
			edge.Names = targets[1:]
		}
		return edge, true

	case "import_from_statement":
		moduleNode := node.ChildByFieldName("module_name")
		if moduleNode == nil {
			return ImportEdge{}, false
		}
		edge := ImportEdge{Target: moduleNode.Content(source)}
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child == moduleNode {
				continue
			}
			switch child.Type() {
			case "dotted_name", "identifier":
				edge.Names = append(edge.Names, child.Content(source))
			case "aliased_import":
				if nameNode := child.ChildByFieldName("name"); nameNode != nil {
					edge.Names = append(edge.Names, nameNode.Content(source))
				}
			case "wildcard_import":
				edge.Names = append(edge.Names, "*")
			}
		}
		return edge, true
	}
	return ImportEdge{}, false
}

// unwrapDecorated returns the wrapped definition for decorated nodes.
func unwrapDecorated(node *sitter.Node) *sitter.Node {
	if node.Type() == "decorated_definition" {
		if def := node.ChildByFieldName("definition"); def != nil {
			return def
		}
	}
	return node
}

// headerSignature extracts the "def f(a, b) -> int" / "class C(Base)" header:
// everything before the body, without the trailing colon.
func headerSignature(node *sitter.Node, source []byte) string {
	body := node.ChildByFieldName("body")
	if body == nil {
		return firstLine(node.Content(source))
	}
	header := string(source[node.StartByte():body.StartByte()])
	header = strings.TrimSpace(header)
	header = strings.TrimSuffix(header, ":")
	return strings.Join(strings.Fields(header), " ")
}

// attachedDoc prefers the body docstring, falling back to comment lines
// immediately above the declaration.
func attachedDoc(node *sitter.Node, source []byte) string {
	if body := node.ChildByFieldName("body"); body != nil {
		if doc := docstringOf(body, source); doc != "" {
			return doc
		}
	}
	return precedingComments(node, source)
}

// moduleDocstring returns the file's leading string literal, if any.
func moduleDocstring(root *sitter.Node, source []byte) string {
	return docstringOf(root, source)
}

func docstringOf(block *sitter.Node, source []byte) string {
	first := block.NamedChild(0)
	if first == nil || first.Type() != "expression_statement" {
		return ""
	}
	str := first.NamedChild(0)
	if str == nil || str.Type() != "string" {
		return ""
	}
	return cleanDocstring(str.Content(source))
}

// precedingComments collects contiguous comment lines directly above a node,
// in source order.
func precedingComments(node *sitter.Node, source []byte) string {
	var lines []string
	current := node
	// decorated definitions attach comments above the first decorator
	if parent := current.Parent(); parent != nil && parent.Type() == "decorated_definition" {
		current = parent
	}
	for {
		prev := current.PrevNamedSibling()
		if prev == nil || prev.Type() != "comment" {
			break
		}
		if current.StartPoint().Row-prev.EndPoint().Row > 1 {
			break
		}
		text := strings.TrimSpace(strings.TrimPrefix(prev.Content(source), "#"))
		lines = append([]string{text}, lines...)
		current = prev
	}
	return strings.Join(lines, "\n")
}

func cleanDocstring(raw string) string {
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(raw, q) && strings.HasSuffix(raw, q) && len(raw) >= 2*len(q) {
			raw = strings.TrimSuffix(strings.TrimPrefix(raw, q), q)
			break
		}
	}
	lines := strings.Split(raw, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func isUpperSnake(name string) bool {
	hasLetter := false
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z':
			hasLetter = true
		case r == '_' || (r >= '0' && r <= '9'):
		default:
			return false
		}
	}
	return hasLetter
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}
