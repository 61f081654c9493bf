package blocks

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// Convert parses Markdown into an ordered block sequence. It is total:
// any UTF-8 input produces a valid (possibly empty) sequence, and
// constructs outside the supported grammar degrade to paragraphs. Synthesis
// output is not trusted to be well formed, so nothing here returns an
// error.
func Convert(markdown string) []Block {
	src := []byte(markdown)
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	doc := md.Parser().Parse(text.NewReader(src))

	var seq []Block
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		seq = append(seq, convertNode(n, src)...)
	}
	return seq
}

func convertNode(n ast.Node, src []byte) []Block {
	switch node := n.(type) {
	case *ast.Heading:
		level := node.Level
		if level > 3 {
			level = 3
		}
		types := map[int]BlockType{1: Heading1, 2: Heading2, 3: Heading3}
		return []Block{{Type: types[level], Rich: inlineSpans(node, src, spanStyle{})}}

	case *ast.Paragraph, *ast.TextBlock:
		rich := inlineSpans(n, src, spanStyle{})
		if len(rich) == 0 {
			return nil
		}
		return []Block{{Type: Paragraph, Rich: rich}}

	case *ast.FencedCodeBlock:
		lang := string(node.Language(src))
		return []Block{{Type: Code, Language: lang, Text: rawLines(node, src)}}

	case *ast.CodeBlock:
		return []Block{{Type: Code, Text: rawLines(node, src)}}

	case *ast.List:
		return convertList(node, src)

	case *east.Table:
		return convertTable(node, src)

	case *ast.Blockquote:
		// quotes are outside the target grammar; their content survives
		// as plain blocks
		var out []Block
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			out = append(out, convertNode(c, src)...)
		}
		return out

	case *ast.ThematicBreak:
		return nil

	case *ast.HTMLBlock:
		if t := strings.TrimSpace(rawLines(node, src)); t != "" {
			return []Block{{Type: Paragraph, Rich: []TextSpan{{Text: t}}}}
		}
		return nil

	default:
		// degrade anything unrecognized to a paragraph of its raw text
		if t := strings.TrimSpace(rawLines(n, src)); t != "" {
			return []Block{{Type: Paragraph, Rich: []TextSpan{{Text: t}}}}
		}
		if rich := inlineSpans(n, src, spanStyle{}); len(rich) > 0 {
			return []Block{{Type: Paragraph, Rich: rich}}
		}
		return nil
	}
}

func convertList(list *ast.List, src []byte) []Block {
	itemType := BulletedListItem
	if list.IsOrdered() {
		itemType = NumberedListItem
	}

	var items []Block
	for li := list.FirstChild(); li != nil; li = li.NextSibling() {
		item := Block{Type: itemType}
		for c := li.FirstChild(); c != nil; c = c.NextSibling() {
			switch child := c.(type) {
			case *ast.List:
				item.Children = append(item.Children, convertList(child, src)...)
			case *ast.Paragraph, *ast.TextBlock:
				spans := inlineSpans(child, src, spanStyle{})
				if len(item.Rich) > 0 && len(spans) > 0 {
					item.Rich = append(item.Rich, TextSpan{Text: "\n"})
				}
				item.Rich = append(item.Rich, spans...)
			default:
				item.Children = append(item.Children, convertNode(c, src)...)
			}
		}
		items = append(items, item)
	}
	return items
}

func convertTable(table *east.Table, src []byte) []Block {
	block := Block{Type: Table}
	for row := table.FirstChild(); row != nil; row = row.NextSibling() {
		if _, ok := row.(*east.TableHeader); ok {
			block.HasHeader = true
		}
		tr := Block{Type: TableRow}
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			tr.Cells = append(tr.Cells, inlineSpans(cell, src, spanStyle{}))
		}
		block.Children = append(block.Children, tr)
	}
	return []Block{block}
}

type spanStyle struct {
	bold   bool
	italic bool
	code   bool
	link   string
}

func (s spanStyle) apply(text string) TextSpan {
	return TextSpan{Text: text, Bold: s.bold, Italic: s.italic, Code: s.code, Link: s.link}
}

// inlineSpans flattens the inline children of a node into annotated runs,
// preserving source order.
func inlineSpans(n ast.Node, src []byte, style spanStyle) []TextSpan {
	var spans []TextSpan
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *ast.Text:
			t := string(node.Segment.Value(src))
			if node.SoftLineBreak() {
				t += " "
			} else if node.HardLineBreak() {
				t += "\n"
			}
			if t != "" {
				spans = append(spans, style.apply(t))
			}
		case *ast.String:
			spans = append(spans, style.apply(string(node.Value)))
		case *ast.CodeSpan:
			code := style
			code.code = true
			spans = append(spans, inlineSpans(node, src, code)...)
		case *ast.Emphasis:
			em := style
			if node.Level >= 2 {
				em.bold = true
			} else {
				em.italic = true
			}
			spans = append(spans, inlineSpans(node, src, em)...)
		case *ast.Link:
			linked := style
			linked.link = string(node.Destination)
			spans = append(spans, inlineSpans(node, src, linked)...)
		case *ast.AutoLink:
			url := string(node.URL(src))
			linked := style
			linked.link = url
			spans = append(spans, linked.apply(url))
		case *ast.Image:
			linked := style
			linked.link = string(node.Destination)
			spans = append(spans, inlineSpans(node, src, linked)...)
		case *ast.RawHTML:
			for i := 0; i < node.Segments.Len(); i++ {
				seg := node.Segments.At(i)
				spans = append(spans, style.apply(string(seg.Value(src))))
			}
		default:
			spans = append(spans, inlineSpans(c, src, style)...)
		}
	}
	return spans
}

// rawLines concatenates a block node's source segments.
func rawLines(n ast.Node, src []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(src))
	}
	return strings.TrimRight(sb.String(), "\n")
}
