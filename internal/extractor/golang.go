package extractor

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// GoExtractor implements LanguageExtractor for Go. Structs and interfaces
// map onto the class kind; methods carry their receiver type as parent.
type GoExtractor struct{}

func (g *GoExtractor) Name() string { return "go" }

func (g *GoExtractor) Extensions() []string { return []string{"go"} }

func (g *GoExtractor) Language() *sitter.Language { return golang.GetLanguage() }

func (g *GoExtractor) Extract(root *sitter.Node, source []byte) (string, []Declaration, []ImportEdge) {
	var decls []Declaration
	var imports []ImportEdge
	var doc string

	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		switch node.Type() {
		case "package_clause":
			doc = goDocComment(node, source)
		case "function_declaration":
			decls = append(decls, g.functionDecl(node, source))
		case "method_declaration":
			decls = append(decls, g.methodDecl(node, source))
		case "type_declaration":
			decls = append(decls, g.typeDecls(node, source)...)
		case "const_declaration":
			decls = append(decls, g.constDecls(node, source)...)
		case "import_declaration":
			imports = append(imports, g.importEdges(node, source)...)
		}
	}

	return doc, decls, imports
}

func (g *GoExtractor) functionDecl(node *sitter.Node, source []byte) Declaration {
	return Declaration{
		Kind:      KindFunction,
		Name:      fieldContent(node, "name", source),
		Signature: headerBeforeBody(node, source),
		Doc:       goDocComment(node, source),
		StartLine: int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
	}
}

func (g *GoExtractor) methodDecl(node *sitter.Node, source []byte) Declaration {
	decl := g.functionDecl(node, source)
	decl.Kind = KindMethod
	decl.Parent = receiverTypeName(node, source)
	return decl
}

// typeDecls handles grouped declarations: `type ( A struct{...}; B int )`.
func (g *GoExtractor) typeDecls(node *sitter.Node, source []byte) []Declaration {
	groupDoc := goDocComment(node, source)
	var decls []Declaration
	for i := 0; i < int(node.NamedChildCount()); i++ {
		spec := node.NamedChild(i)
		if spec.Type() != "type_spec" {
			continue
		}
		doc := goDocComment(spec, source)
		if doc == "" {
			doc = groupDoc
		}
		decls = append(decls, Declaration{
			Kind:      KindClass,
			Name:      fieldContent(spec, "name", source),
			Signature: firstLine(spec.Content(source)),
			Doc:       doc,
			StartLine: int(spec.StartPoint().Row) + 1,
			EndLine:   int(spec.EndPoint().Row) + 1,
		})
	}
	return decls
}

func (g *GoExtractor) constDecls(node *sitter.Node, source []byte) []Declaration {
	groupDoc := goDocComment(node, source)
	var decls []Declaration
	for i := 0; i < int(node.NamedChildCount()); i++ {
		spec := node.NamedChild(i)
		if spec.Type() != "const_spec" {
			continue
		}
		doc := goDocComment(spec, source)
		if doc == "" {
			doc = groupDoc
		}
		decls = append(decls, Declaration{
			Kind:      KindConstant,
			Name:      fieldContent(spec, "name", source),
			Signature: firstLine(spec.Content(source)),
			Doc:       doc,
			StartLine: int(spec.StartPoint().Row) + 1,
			EndLine:   int(spec.EndPoint().Row) + 1,
		})
	}
	return decls
}

func (g *GoExtractor) importEdges(node *sitter.Node, source []byte) []ImportEdge {
	var edges []ImportEdge
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "import_spec" {
			if pathNode := n.ChildByFieldName("path"); pathNode != nil {
				target := strings.Trim(pathNode.Content(source), `"`)
				edges = append(edges, ImportEdge{Target: target})
			}
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(node)
	return edges
}

// receiverTypeName extracts "Server" from "(s *Server)".
func receiverTypeName(node *sitter.Node, source []byte) string {
	recv := node.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	name := recv.Content(source)
	name = strings.Trim(name, "()")
	fields := strings.Fields(name)
	if len(fields) > 0 {
		name = fields[len(fields)-1]
	}
	name = strings.TrimPrefix(name, "*")
	if idx := strings.IndexByte(name, '['); idx >= 0 {
		name = name[:idx]
	}
	return name
}

// headerBeforeBody returns the declaration text with the body stripped.
func headerBeforeBody(node *sitter.Node, source []byte) string {
	if body := node.ChildByFieldName("body"); body != nil {
		return strings.TrimSpace(string(source[node.StartByte():body.StartByte()]))
	}
	return firstLine(node.Content(source))
}

// goDocComment collects contiguous // comments directly above a node,
// mirroring how godoc associates them.
func goDocComment(node *sitter.Node, source []byte) string {
	var lines []string
	current := node
	for {
		prev := current.PrevNamedSibling()
		if prev == nil || prev.Type() != "comment" {
			break
		}
		if current.StartPoint().Row-prev.EndPoint().Row > 1 {
			break
		}
		lines = append([]string{prev.Content(source)}, lines...)
		current = prev
	}
	return cleanLineComments(strings.Join(lines, "\n"))
}

func cleanLineComments(raw string) string {
	if raw == "" {
		return ""
	}
	var cleaned []string
	for _, l := range strings.Split(raw, "\n") {
		l = strings.TrimSpace(l)
		l = strings.TrimPrefix(l, "//")
		l = strings.TrimPrefix(l, "/*")
		l = strings.TrimSuffix(l, "*/")
		cleaned = append(cleaned, strings.TrimSpace(l))
	}
	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}

func fieldContent(node *sitter.Node, field string, source []byte) string {
	if child := node.ChildByFieldName(field); child != nil {
		return child.Content(source)
	}
	return ""
}
