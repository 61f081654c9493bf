package extractor

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// LanguageExtractor defines what each language grammar must implement.
type LanguageExtractor interface {
	// Name is the canonical language name ("python", "go").
	Name() string
	// Extensions lists file extensions (without dot) handled by this language.
	Extensions() []string
	// Language returns the tree-sitter grammar.
	Language() *sitter.Language
	// Extract walks a parsed, syntactically valid tree and produces the
	// file's declarations and import edges. It must not evaluate source
	// content in any way.
	Extract(root *sitter.Node, source []byte) (doc string, decls []Declaration, imports []ImportEdge)
}

// Extractor turns source file content into StructuralRecords using a
// single configured language grammar per run.
type Extractor struct {
	lang LanguageExtractor
}

// New creates an extractor for the named language.
func New(language string) (*Extractor, error) {
	lang, ok := registry[language]
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", language)
	}
	return &Extractor{lang: lang}, nil
}

// LanguageName returns the configured language.
func (e *Extractor) LanguageName() string {
	return e.lang.Name()
}

// Handles reports whether this extractor processes files with the given
// extension (without dot).
func (e *Extractor) Handles(ext string) bool {
	for _, x := range e.lang.Extensions() {
		if x == ext {
			return true
		}
	}
	return false
}

// Extract parses source content and returns its structural record.
// It returns a *ParseError when the content is not syntactically valid;
// the caller is expected to isolate that failure to this file.
func (e *Extractor) Extract(path string, source []byte) (*StructuralRecord, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(e.lang.Language())
	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	root := tree.RootNode()
	if root.HasError() {
		return nil, &ParseError{Path: path, Line: firstErrorLine(root)}
	}

	doc, decls, imports := e.lang.Extract(root, source)
	return &StructuralRecord{
		Path:         path,
		Language:     e.lang.Name(),
		Doc:          doc,
		Declarations: decls,
		Imports:      imports,
	}, nil
}

// firstErrorLine finds the line of the first ERROR or MISSING node.
func firstErrorLine(root *sitter.Node) int {
	cursor := sitter.NewTreeCursor(root)
	defer cursor.Close()

	var visit func() int
	visit = func() int {
		n := cursor.CurrentNode()
		if n.IsError() || n.IsMissing() {
			return int(n.StartPoint().Row) + 1
		}
		if cursor.GoToFirstChild() {
			for {
				if line := visit(); line > 0 {
					return line
				}
				if !cursor.GoToNextSibling() {
					break
				}
			}
			cursor.GoToParent()
		}
		return 0
	}
	return visit()
}
